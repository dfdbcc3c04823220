// Package search filters threads by a free-text query. It is a plain
// LIKE-based transformation over the thread table; full-text backends
// can replace it behind the same function shape.
package search

import (
	"strings"

	"gorm.io/gorm"

	"github.com/sujalbistaa/askgo/internal/models"
)

// Threads returns non-deleted threads whose title contains the query or
// whose tag string carries it as a whole tag, newest activity first.
// An empty query lists recent threads.
func Threads(db *gorm.DB, query, lang string, limit int) ([]models.Thread, error) {
	if limit <= 0 {
		limit = 30
	}
	q := db.Model(&models.Thread{}).Where("deleted = ?", false)
	if lang != "" {
		q = q.Where("language_code = ?", lang)
	}
	if query = strings.TrimSpace(strings.ToLower(query)); query != "" {
		q = q.Where(
			"LOWER(title) LIKE ? OR (' ' || tag_names || ' ') LIKE ?",
			"%"+query+"%", "% "+query+" %",
		)
	}
	var threads []models.Thread
	err := q.Order("last_activity_at DESC").Limit(limit).Find(&threads).Error
	return threads, err
}
