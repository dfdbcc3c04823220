package search

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/askgo/internal/models"
)

func seedThreads(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Thread{
		{Title: "Deploying Go services", TagNames: "go deployment", LanguageCode: "en", LastActivityAt: base.Add(3 * time.Hour)},
		{Title: "Postgres connection pooling", TagNames: "postgres go", LanguageCode: "en", LastActivityAt: base.Add(2 * time.Hour)},
		{Title: "Warum Go?", TagNames: "go", LanguageCode: "de", LastActivityAt: base.Add(time.Hour)},
		{Title: "Old and gone", TagNames: "go", LanguageCode: "en", Deleted: true, LastActivityAt: base.Add(4 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	return db
}

func titles(threads []models.Thread) []string {
	out := make([]string, len(threads))
	for i, th := range threads {
		out[i] = th.Title
	}
	return out
}

func TestThreadsByTitle(t *testing.T) {
	db := seedThreads(t)
	got, err := Threads(db, "postgres", "en", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Postgres connection pooling"}, titles(got))
}

func TestThreadsByTag(t *testing.T) {
	db := seedThreads(t)
	got, err := Threads(db, "deployment", "en", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Deploying Go services"}, titles(got))
}

func TestThreadsLanguageAndDeletedFilter(t *testing.T) {
	db := seedThreads(t)
	got, err := Threads(db, "go", "en", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Deploying Go services", "Postgres connection pooling"}, titles(got),
		"newest activity first, other languages and deleted threads excluded")

	got, err = Threads(db, "", "de", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Warum Go?"}, titles(got))
}

func TestThreadsEmptyQueryListsRecent(t *testing.T) {
	db := seedThreads(t)
	got, err := Threads(db, "", "en", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Deploying Go services"}, titles(got))
}
