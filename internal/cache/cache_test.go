package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPostDataKeyDeterministic(t *testing.T) {
	a := PostDataKey{ThreadID: 7, SortMethod: "votes", GroupIDs: []uint{3, 1, 2}}
	b := PostDataKey{ThreadID: 7, SortMethod: "votes", GroupIDs: []uint{2, 3, 1}}
	assert.Equal(t, a.String(), b.String(), "group order must not change the key")
	assert.Equal(t, "thread-data-7-votes-1-2-3", a.String())

	bare := PostDataKey{ThreadID: 7, SortMethod: "votes"}
	assert.Equal(t, "thread-data-7-votes", bare.String())
	assert.NotEqual(t, bare.String(), a.String())
}

func TestSummaryKey(t *testing.T) {
	k := SummaryKey{ThreadID: 12, Lang: "en"}
	assert.Equal(t, "thread-question-summary-12-en", k.String())
}

func TestKeyFanout(t *testing.T) {
	keys := PostDataKeys(5, []string{"latest", "oldest", "votes"})
	assert.Len(t, keys, 3)
	assert.Contains(t, keys, "thread-data-5-oldest")

	langs := SummaryKeys(5, []string{"en", "de"})
	assert.Equal(t, []string{
		"thread-question-summary-5-en",
		"thread-question-summary-5-de",
	}, langs)
}

func TestMemoryGetSetDelete(t *testing.T) {
	m := NewMemory()

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Set("a", "one", time.Minute)
	m.Set("b", 2, time.Minute)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	assert.True(t, m.Contains("b"))

	m.DeleteMany([]string{"a", "b", "never-existed"})
	assert.False(t, m.Contains("a"))
	assert.False(t, m.Contains("b"))
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Set("k", "v", time.Minute)
	_, ok := m.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = m.Get("k")
	assert.False(t, ok, "entries past their TTL read as misses")
}

func TestMemoryZeroTTLDefaultsToLongTime(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Set("k", "v", 0)
	now = now.Add(29 * 24 * time.Hour)
	assert.True(t, m.Contains("k"))
	now = now.Add(2 * 24 * time.Hour)
	assert.False(t, m.Contains("k"))
}
