// Package cache memoizes expensive aggregation and render results keyed
// by thread, sort method and group visibility, with explicit
// invalidation. Any failure on the read path is treated as a miss and
// recomputed, never surfaced as an error.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LongTime is the fixed expiry ceiling for cached aggregates. Kept at
// 30 days so memcached-style backends treat it as a duration, not a date.
const LongTime = 30 * 24 * time.Hour

// Cache is the external cache collaborator. Single-key operations are
// assumed atomic; no multi-key transactional semantics are relied on.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	DeleteMany(keys []string)
	Contains(key string) bool
}

// PostDataKey identifies one cached post-data aggregate.
type PostDataKey struct {
	ThreadID   uint
	SortMethod string
	GroupIDs   []uint
}

// String renders the key deterministically; group ids are sorted so the
// same group set always yields the same key.
func (k PostDataKey) String() string {
	base := fmt.Sprintf("thread-data-%d-%s", k.ThreadID, k.SortMethod)
	if len(k.GroupIDs) == 0 {
		return base
	}
	ids := make([]uint, len(k.GroupIDs))
	copy(ids, k.GroupIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return base + "-" + strings.Join(parts, "-")
}

// SummaryKey identifies one cached summary-HTML entry.
type SummaryKey struct {
	ThreadID uint
	Lang     string
}

func (k SummaryKey) String() string {
	return fmt.Sprintf("thread-question-summary-%d-%s", k.ThreadID, k.Lang)
}

// PostDataKeys returns the post-data keys for every sort method; used by
// all-or-nothing invalidation.
func PostDataKeys(threadID uint, sortMethods []string) []string {
	keys := make([]string, 0, len(sortMethods))
	for _, m := range sortMethods {
		keys = append(keys, PostDataKey{ThreadID: threadID, SortMethod: m}.String())
	}
	return keys
}

// SummaryKeys returns the summary keys for every active language.
func SummaryKeys(threadID uint, langs []string) []string {
	keys := make([]string, 0, len(langs))
	for _, l := range langs {
		keys = append(keys, SummaryKey{ThreadID: threadID, Lang: l}.String())
	}
	return keys
}
