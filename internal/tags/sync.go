// Package tags reconciles a thread's free-text tag string against
// normalized tag records: synonym substitution, lazy creation,
// moderation queuing and use-count maintenance.
package tags

import (
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/sujalbistaa/askgo/internal/config"
	"github.com/sujalbistaa/askgo/internal/events"
	"github.com/sujalbistaa/askgo/internal/models"
)

// maxTagNamesBytes caps the denormalized tag string on Thread.
const maxTagNamesBytes = 125

var tagNameRe = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}\-+.#]*$`)

// Synchronizer applies tag-string changes to threads.
type Synchronizer struct {
	settings *config.Settings
	sink     events.Sink
}

// NewSynchronizer wires a synchronizer with its behavior switches and
// event sink.
func NewSynchronizer(settings *config.Settings, sink events.Sink) *Synchronizer {
	return &Synchronizer{settings: settings, sink: sink}
}

// CleanTagNames trims and re-joins a tag-name string so it fits the
// 125-byte column, dropping trailing tags until it does.
func CleanTagNames(tagnames string) string {
	names := strings.Fields(tagnames)
	for len(names) > 0 {
		joined := strings.Join(names, " ")
		if len(joined) <= maxTagNamesBytes {
			return joined
		}
		names = names[:len(names)-1]
	}
	return ""
}

// ValidateTagNames checks each whitespace-separated name against the
// allowed tag alphabet.
func ValidateTagNames(tagnames string) error {
	for _, name := range strings.Fields(tagnames) {
		if !tagNameRe.MatchString(name) {
			return models.Validationf("invalid tag name %q", name)
		}
	}
	return nil
}

// resolveSynonyms lowercases the ordered names and substitutes each one
// that has a TagSynonym mapping, bumping the synonym's usage counter.
// Order is preserved; duplicates collapse to their first occurrence.
func resolveSynonyms(tx *gorm.DB, names []string, lang string) ([]string, error) {
	resolved := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(name)
		var syn models.TagSynonym
		err := tx.Where("source_tag_name = ? AND language_code = ?", name, lang).
			First(&syn).Error
		switch {
		case err == nil:
			name = strings.ToLower(syn.TargetTagName)
			if err := tx.Model(&syn).
				UpdateColumn("auto_rename_count", gorm.Expr("auto_rename_count + 1")).Error; err != nil {
				return nil, err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no mapping, keep the name
		default:
			return nil, err
		}
		if !seen[name] {
			seen[name] = true
			resolved = append(resolved, name)
		}
	}
	return resolved, nil
}

// Sync updates the thread's Tag associations to match tagnames. New tags
// are created lazily; with tag moderation on, tags created by
// non-moderators start out suggested. Use counts are recalculated in
// bulk for every modified tag and a tags_updated event is emitted.
// An empty tagnames string is a no-op. Sync must run inside the caller's
// transaction; it reports whether anything changed.
func (s *Synchronizer) Sync(tx *gorm.DB, thread *models.Thread, tagnames string, user *models.User) (bool, error) {
	if strings.TrimSpace(tagnames) == "" {
		return false, nil
	}
	if err := ValidateTagNames(tagnames); err != nil {
		return false, err
	}

	lang := thread.LanguageCode

	var previousTags []models.Tag
	err := tx.Model(&models.Tag{}).
		Joins("JOIN thread_tags ON thread_tags.tag_id = tags.id").
		Where("thread_tags.thread_id = ? AND tags.status = ?", thread.ID, models.TagStatusAccepted).
		Find(&previousTags).Error
	if err != nil {
		return false, err
	}

	orderedNames, err := resolveSynonyms(tx, strings.Fields(tagnames), lang)
	if err != nil {
		return false, err
	}

	updated := make(map[string]bool, len(orderedNames))
	for _, name := range orderedNames {
		updated[name] = true
	}
	previous := make(map[string]bool, len(previousTags))
	for _, tag := range previousTags {
		previous[tag.Name] = true
	}

	var removedTags []models.Tag
	for _, tag := range previousTags {
		if !updated[tag.Name] {
			removedTags = append(removedTags, tag)
		}
	}

	var addedNames []string
	for _, name := range orderedNames {
		if !previous[name] {
			addedNames = append(addedNames, name)
		}
	}

	modified := make([]models.Tag, 0, len(removedTags)+len(addedNames))

	if len(removedTags) > 0 {
		detach := make([]*models.Tag, len(removedTags))
		removedIDs := make([]uint, len(removedTags))
		for i := range removedTags {
			detach[i] = &removedTags[i]
			removedIDs[i] = removedTags[i].ID
		}
		if err := tx.Model(thread).Association("Tags").Delete(detach); err != nil {
			return false, err
		}
		if err := tx.Model(&models.Tag{}).Where("id IN ?", removedIDs).
			UpdateColumn("used_count", gorm.Expr("used_count - 1")).Error; err != nil {
			return false, err
		}
		modified = append(modified, removedTags...)
	}

	var addedTags []models.Tag
	if len(addedNames) > 0 {
		addedTags, err = s.resolveAddedTags(tx, addedNames, lang, user)
		if err != nil {
			return false, err
		}
		attach := make([]*models.Tag, len(addedTags))
		for i := range addedTags {
			attach[i] = &addedTags[i]
		}
		if err := tx.Model(thread).Association("Tags").Append(attach); err != nil {
			return false, err
		}
		modified = append(modified, addedTags...)
	}

	// Rebuild the denormalized tag string in the caller's order,
	// restricted to tags that ended up accepted.
	accepted := make(map[string]bool, len(orderedNames))
	for _, tag := range previousTags {
		if updated[tag.Name] {
			accepted[tag.Name] = true
		}
	}
	for _, tag := range addedTags {
		if tag.Status == models.TagStatusAccepted {
			accepted[tag.Name] = true
		}
	}
	finalNames := make([]string, 0, len(orderedNames))
	for _, name := range orderedNames {
		if accepted[name] {
			finalNames = append(finalNames, name)
		}
	}
	thread.TagNames = CleanTagNames(strings.Join(finalNames, " "))
	if err := tx.Model(thread).Update("tag_names", thread.TagNames).Error; err != nil {
		return false, err
	}

	if len(modified) == 0 {
		return false, nil
	}

	if err := recountUseCounts(tx, modified); err != nil {
		return false, err
	}

	names := make([]string, 0, len(modified))
	seen := make(map[uint]bool, len(modified))
	for _, tag := range modified {
		if !seen[tag.ID] {
			seen[tag.ID] = true
			names = append(names, tag.Name)
		}
	}
	s.sink.Emit(events.Event{Name: events.TagsUpdated, Data: map[string]any{
		"threadId": thread.ID,
		"tags":     names,
	}})
	return true, nil
}

// resolveAddedTags reuses existing tags (undeleting soft-deleted ones)
// and creates the genuinely new names.
func (s *Synchronizer) resolveAddedTags(tx *gorm.DB, names []string, lang string, user *models.User) ([]models.Tag, error) {
	var reused []models.Tag
	err := tx.Where("name IN ? AND language_code = ?", names, lang).Find(&reused).Error
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(reused))
	var undeleteIDs []uint
	for i := range reused {
		existing[reused[i].Name] = true
		if reused[i].Status == models.TagStatusDeleted {
			undeleteIDs = append(undeleteIDs, reused[i].ID)
			reused[i].Status = models.TagStatusAccepted
		}
	}
	if len(undeleteIDs) > 0 {
		if err := tx.Model(&models.Tag{}).Where("id IN ?", undeleteIDs).
			Update("status", models.TagStatusAccepted).Error; err != nil {
			return nil, err
		}
	}

	status := models.TagStatusAccepted
	if s.settings.TagModerationEnabled && (user == nil || !user.IsModerator) {
		status = models.TagStatusSuggested
	}

	tags := reused
	for _, name := range names {
		if existing[name] {
			continue
		}
		tag := models.Tag{
			Name:         name,
			LanguageCode: lang,
			Status:       status,
		}
		if user != nil {
			tag.CreatedByID = user.ID
		}
		if err := tx.Create(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// recountUseCounts sets used_count on each modified tag to the number of
// non-deleted threads referencing it, then slates unused tags for
// garbage collection.
func recountUseCounts(tx *gorm.DB, modified []models.Tag) error {
	ids := make([]uint, 0, len(modified))
	seen := make(map[uint]bool, len(modified))
	for _, tag := range modified {
		if !seen[tag.ID] {
			seen[tag.ID] = true
			ids = append(ids, tag.ID)
		}
	}
	err := tx.Model(&models.Tag{}).Where("id IN ?", ids).
		UpdateColumn("used_count", gorm.Expr(
			`(SELECT COUNT(*) FROM thread_tags
			  JOIN threads ON threads.id = thread_tags.thread_id AND threads.deleted = ?
			  WHERE thread_tags.tag_id = tags.id)`, false)).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.Tag{}).
		Where("id IN ? AND used_count = 0", ids).
		Update("status", models.TagStatusDeleted).Error
}

// DeleteUnused physically removes tags slated for garbage collection.
// Runs outside the request path, from the admin API.
func DeleteUnused(db *gorm.DB) (int64, error) {
	res := db.Where("status = ? AND used_count = 0", models.TagStatusDeleted).
		Delete(&models.Tag{})
	return res.RowsAffected, res.Error
}
