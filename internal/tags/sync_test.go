package tags

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/askgo/internal/config"
	"github.com/sujalbistaa/askgo/internal/events"
	"github.com/sujalbistaa/askgo/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

var userSeq int

func newThread(t *testing.T, db *gorm.DB) (*models.Thread, *models.User) {
	t.Helper()
	userSeq++
	user := &models.User{Username: fmt.Sprintf("alice-%d", userSeq)}
	require.NoError(t, db.Create(user).Error)
	th := &models.Thread{
		Title:            "How do I deploy this?",
		LanguageCode:     "en",
		LastActivityAt:   time.Now(),
		LastActivityByID: user.ID,
	}
	require.NoError(t, db.Create(th).Error)
	return th, user
}

func tagByName(t *testing.T, db *gorm.DB, name string) *models.Tag {
	t.Helper()
	var tag models.Tag
	require.NoError(t, db.Where("name = ?", name).First(&tag).Error)
	return &tag
}

func TestSyncRetagScenario(t *testing.T) {
	db := newTestDB(t)
	th, user := newThread(t, db)
	s := NewSynchronizer(config.Defaults(), events.Discard{})

	changed, err := s.Sync(db, th, "python django", user)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "python django", th.TagNames)
	assert.Equal(t, 1, tagByName(t, db, "python").UsedCount)
	assert.Equal(t, 1, tagByName(t, db, "django").UsedCount)

	changed, err = s.Sync(db, th, "python flask", user)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "python flask", th.TagNames)

	django := tagByName(t, db, "django")
	assert.Equal(t, 0, django.UsedCount)
	assert.Equal(t, models.TagStatusDeleted, django.Status, "unused tag is slated for collection")
	assert.Equal(t, 1, tagByName(t, db, "flask").UsedCount)
	assert.Equal(t, 1, tagByName(t, db, "python").UsedCount)
}

func TestSyncIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	th, user := newThread(t, db)
	rec := &events.Recorder{}
	s := NewSynchronizer(config.Defaults(), rec)

	changed, err := s.Sync(db, th, "go concurrency", user)
	require.NoError(t, err)
	require.True(t, changed)
	require.Len(t, rec.Events, 1)

	changed, err = s.Sync(db, th, "go concurrency", user)
	require.NoError(t, err)
	assert.False(t, changed, "second application must not change anything")
	assert.Len(t, rec.Events, 1, "no event on a no-op sync")
	assert.Equal(t, "go concurrency", th.TagNames)
	assert.Equal(t, 1, tagByName(t, db, "go").UsedCount)
	assert.Equal(t, 1, tagByName(t, db, "concurrency").UsedCount)
}

func TestSyncEmptyStringIsNoop(t *testing.T) {
	db := newTestDB(t)
	th, user := newThread(t, db)
	s := NewSynchronizer(config.Defaults(), events.Discard{})

	_, err := s.Sync(db, th, "python", user)
	require.NoError(t, err)

	changed, err := s.Sync(db, th, "   ", user)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "python", th.TagNames)
}

func TestSyncAppliesSynonyms(t *testing.T) {
	db := newTestDB(t)
	th, user := newThread(t, db)
	require.NoError(t, db.Create(&models.TagSynonym{
		SourceTagName: "js",
		TargetTagName: "javascript",
		LanguageCode:  "en",
	}).Error)
	s := NewSynchronizer(config.Defaults(), events.Discard{})

	_, err := s.Sync(db, th, "js node", user)
	require.NoError(t, err)

	assert.Equal(t, "javascript node", th.TagNames, "synonym keeps the caller's position")
	assert.Equal(t, 1, tagByName(t, db, "javascript").UsedCount)

	var syn models.TagSynonym
	require.NoError(t, db.First(&syn).Error)
	assert.Equal(t, 1, syn.AutoRenameCount)

	var count int64
	db.Model(&models.Tag{}).Where("name = ?", "js").Count(&count)
	assert.Zero(t, count, "the source name never becomes a tag")
}

func TestSyncLowercasesNames(t *testing.T) {
	db := newTestDB(t)
	th, user := newThread(t, db)
	s := NewSynchronizer(config.Defaults(), events.Discard{})

	_, err := s.Sync(db, th, "Python PYTHON golang", user)
	require.NoError(t, err)
	assert.Equal(t, "python golang", th.TagNames)
	assert.Equal(t, 1, tagByName(t, db, "python").UsedCount)
}

func TestSyncSharedTagUseCount(t *testing.T) {
	db := newTestDB(t)
	th1, user := newThread(t, db)
	th2, _ := newThread(t, db)
	s := NewSynchronizer(config.Defaults(), events.Discard{})

	_, err := s.Sync(db, th1, "python", user)
	require.NoError(t, err)
	_, err = s.Sync(db, th2, "python rust", user)
	require.NoError(t, err)
	assert.Equal(t, 2, tagByName(t, db, "python").UsedCount)

	_, err = s.Sync(db, th2, "rust", user)
	require.NoError(t, err)
	python := tagByName(t, db, "python")
	assert.Equal(t, 1, python.UsedCount)
	assert.Equal(t, models.TagStatusAccepted, python.Status)
}

func TestSyncUndeletesReusedTag(t *testing.T) {
	db := newTestDB(t)
	th1, user := newThread(t, db)
	th2, _ := newThread(t, db)
	s := NewSynchronizer(config.Defaults(), events.Discard{})

	_, err := s.Sync(db, th1, "erlang", user)
	require.NoError(t, err)
	_, err = s.Sync(db, th1, "elixir", user)
	require.NoError(t, err)
	require.Equal(t, models.TagStatusDeleted, tagByName(t, db, "erlang").Status)

	_, err = s.Sync(db, th2, "erlang", user)
	require.NoError(t, err)
	erlang := tagByName(t, db, "erlang")
	assert.Equal(t, models.TagStatusAccepted, erlang.Status)
	assert.Equal(t, 1, erlang.UsedCount)
}

func TestSyncModerationQueuesNewTags(t *testing.T) {
	db := newTestDB(t)
	th, user := newThread(t, db)
	settings := config.Defaults()
	settings.TagModerationEnabled = true
	s := NewSynchronizer(settings, events.Discard{})

	_, err := s.Sync(db, th, "python brand-new", user)
	require.NoError(t, err)

	assert.Equal(t, models.TagStatusSuggested, tagByName(t, db, "python").Status)
	assert.Equal(t, models.TagStatusSuggested, tagByName(t, db, "brand-new").Status)
	assert.Equal(t, "", th.TagNames, "suggested tags stay out of the denormalized string")
}

func TestSyncModeratorBypassesQueue(t *testing.T) {
	db := newTestDB(t)
	th, _ := newThread(t, db)
	mod := &models.User{Username: "mod", IsModerator: true}
	require.NoError(t, db.Create(mod).Error)
	settings := config.Defaults()
	settings.TagModerationEnabled = true
	s := NewSynchronizer(settings, events.Discard{})

	_, err := s.Sync(db, th, "python", mod)
	require.NoError(t, err)
	assert.Equal(t, models.TagStatusAccepted, tagByName(t, db, "python").Status)
	assert.Equal(t, "python", th.TagNames)
}

func TestSyncRejectsMalformedNames(t *testing.T) {
	db := newTestDB(t)
	th, user := newThread(t, db)
	s := NewSynchronizer(config.Defaults(), events.Discard{})

	_, err := s.Sync(db, th, "ok-tag not/ok", user)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestSyncEmitsTagsUpdated(t *testing.T) {
	db := newTestDB(t)
	th, user := newThread(t, db)
	rec := &events.Recorder{}
	s := NewSynchronizer(config.Defaults(), rec)

	_, err := s.Sync(db, th, "python django", user)
	require.NoError(t, err)
	require.Len(t, rec.Events, 1)
	assert.Equal(t, events.TagsUpdated, rec.Events[0].Name)
}

func TestCleanTagNames(t *testing.T) {
	assert.Equal(t, "", CleanTagNames("   "))
	assert.Equal(t, "a b c", CleanTagNames("  a   b c "))

	long := strings.Repeat("verylongtagname ", 20)
	cleaned := CleanTagNames(long)
	assert.LessOrEqual(t, len(cleaned), 125)
	assert.True(t, strings.HasPrefix(long, cleaned+" "), "truncation drops trailing tags only")

	// a single oversized tag cannot fit at all
	assert.Equal(t, "", CleanTagNames(strings.Repeat("x", 126)))
}

func TestDeleteUnused(t *testing.T) {
	db := newTestDB(t)
	th, user := newThread(t, db)
	s := NewSynchronizer(config.Defaults(), events.Discard{})

	_, err := s.Sync(db, th, "shortlived keeper", user)
	require.NoError(t, err)
	_, err = s.Sync(db, th, "keeper", user)
	require.NoError(t, err)

	n, err := DeleteUnused(db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var count int64
	db.Model(&models.Tag{}).Where("name = ?", "shortlived").Count(&count)
	assert.Zero(t, count)
	assert.Equal(t, 1, tagByName(t, db, "keeper").UsedCount)
}
