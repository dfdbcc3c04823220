// Package thread implements the Q&A core around a thread: creation and
// mutation of posts, the post aggregator, cached aggregates and their
// invalidation hooks.
package thread

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/sujalbistaa/askgo/internal/cache"
	"github.com/sujalbistaa/askgo/internal/config"
	"github.com/sujalbistaa/askgo/internal/events"
	"github.com/sujalbistaa/askgo/internal/models"
	"github.com/sujalbistaa/askgo/internal/tags"
)

// Service owns thread reads and mutations. Every state-changing method
// invalidates the thread's cached aggregates before returning, so the
// next read recomputes.
type Service struct {
	db       *gorm.DB
	cache    cache.Cache
	settings *config.Settings
	tags     *tags.Synchronizer
	sink     events.Sink
	renderer Renderer
	titles   TitleRenderer
}

// NewService wires a Service. renderer and titles may be nil, in which
// case the built-in defaults are used.
func NewService(db *gorm.DB, c cache.Cache, settings *config.Settings, sink events.Sink, renderer Renderer, titles TitleRenderer) *Service {
	if renderer == nil {
		renderer = DefaultRenderer()
	}
	if titles == nil {
		titles = DefaultTitleRenderer{}
	}
	return &Service{
		db:       db,
		cache:    c,
		settings: settings,
		tags:     tags.NewSynchronizer(settings, sink),
		sink:     sink,
		renderer: renderer,
		titles:   titles,
	}
}

// Get loads a thread by id.
func (s *Service) Get(id uint) (*models.Thread, error) {
	var t models.Thread
	if err := s.db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// CreateThreadInput carries everything needed to open a new thread.
type CreateThreadInput struct {
	Title        string
	Text         string
	TagNames     string
	AuthorID     uint
	LanguageCode string
	AddedAt      time.Time
}

// CreateThread creates the thread, its question post and the first
// revision in one transaction, then synchronizes tags.
func (s *Service) CreateThread(in CreateThreadInput) (*models.Thread, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, models.Validationf("title is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, models.Validationf("text is required")
	}
	if in.AddedAt.IsZero() {
		in.AddedAt = time.Now()
	}
	if in.LanguageCode == "" {
		in.LanguageCode = s.settings.DefaultLanguage
	}
	if !s.settings.HasLanguage(in.LanguageCode) {
		return nil, models.Validationf("language %q is not active", in.LanguageCode)
	}

	var author models.User
	if err := s.db.First(&author, in.AuthorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}

	t := &models.Thread{
		Title:            in.Title,
		TagNames:         tags.CleanTagNames(in.TagNames),
		LanguageCode:     in.LanguageCode,
		LastActivityAt:   in.AddedAt,
		LastActivityByID: in.AuthorID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		question := &models.Post{
			PostType: models.PostTypeQuestion,
			ThreadID: t.ID,
			AuthorID: in.AuthorID,
			Text:     in.Text,
			Summary:  snippet(in.Text),
			AddedAt:  in.AddedAt,
		}
		if err := tx.Create(question).Error; err != nil {
			return err
		}
		rev := &models.PostRevision{
			PostID:    question.ID,
			AuthorID:  in.AuthorID,
			Revision:  1,
			Title:     in.Title,
			Text:      in.Text,
			TagNames:  t.TagNames,
			RevisedAt: in.AddedAt,
		}
		if err := tx.Create(rev).Error; err != nil {
			return err
		}
		_, err := s.tags.Sync(tx, t, in.TagNames, &author)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.sink.Emit(events.Event{Name: events.NewPost, Data: t})
	return t, nil
}

// AddAnswer appends an answer post to an open thread.
func (s *Service) AddAnswer(threadID, authorID uint, text string, addedAt time.Time) (*models.Post, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.Validationf("text is required")
	}
	if addedAt.IsZero() {
		addedAt = time.Now()
	}
	t, err := s.Get(threadID)
	if err != nil {
		return nil, err
	}
	if t.Closed {
		return nil, models.Validationf("thread %d is closed", threadID)
	}

	post := &models.Post{
		PostType: models.PostTypeAnswer,
		ThreadID: t.ID,
		AuthorID: authorID,
		Text:     text,
		Summary:  snippet(text),
		AddedAt:  addedAt,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		rev := &models.PostRevision{
			PostID:    post.ID,
			AuthorID:  authorID,
			Revision:  1,
			Text:      text,
			RevisedAt: addedAt,
		}
		if err := tx.Create(rev).Error; err != nil {
			return err
		}
		if err := refreshAnswerCount(tx, t.ID); err != nil {
			return err
		}
		return setLastActivity(tx, t.ID, addedAt, authorID)
	})
	if err != nil {
		return nil, err
	}

	s.ClearCachedData(t.ID)
	s.sink.Emit(events.Event{Name: events.NewPost, Data: post})
	return post, nil
}

// AddComment attaches a comment to a question or answer post.
func (s *Service) AddComment(parentPostID, authorID uint, text string, addedAt time.Time) (*models.Post, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.Validationf("text is required")
	}
	if addedAt.IsZero() {
		addedAt = time.Now()
	}
	var parent models.Post
	if err := s.db.First(&parent, parentPostID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if parent.IsComment() {
		return nil, models.Validationf("cannot comment on a comment")
	}

	comment := &models.Post{
		PostType: models.PostTypeComment,
		ThreadID: parent.ThreadID,
		ParentID: &parent.ID,
		AuthorID: authorID,
		Text:     text,
		Summary:  snippet(text),
		AddedAt:  addedAt,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		rev := &models.PostRevision{
			PostID:    comment.ID,
			AuthorID:  authorID,
			Revision:  1,
			Text:      text,
			RevisedAt: addedAt,
		}
		if err := tx.Create(rev).Error; err != nil {
			return err
		}
		return setLastActivity(tx, parent.ThreadID, addedAt, authorID)
	})
	if err != nil {
		return nil, err
	}

	s.ClearCachedData(parent.ThreadID)
	s.sink.Emit(events.Event{Name: events.NewPost, Data: comment})
	return comment, nil
}

// Retag replaces the thread's tag string. All three arguments are
// required; retagging with an empty string is rejected here, unlike the
// lower-level synchronizer where it is a no-op.
func (s *Service) Retag(threadID uint, retaggedByID uint, tagnames string, retaggedAt time.Time) error {
	if retaggedByID == 0 || retaggedAt.IsZero() {
		return models.Validationf("retaggedBy and retaggedAt are required")
	}
	if strings.TrimSpace(tagnames) == "" {
		return models.Validationf("tagnames is required")
	}
	t, err := s.Get(threadID)
	if err != nil {
		return err
	}
	var user models.User
	if err := s.db.First(&user, retaggedByID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrNotFound
		}
		return err
	}

	question, err := s.QuestionPost(t.ID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.tags.Sync(tx, t, tagnames, &user); err != nil {
			return err
		}
		if err := tx.Model(question).Updates(map[string]any{
			"last_edited_at": retaggedAt,
			"last_edited_by": retaggedByID,
		}).Error; err != nil {
			return err
		}
		var lastRev models.PostRevision
		revNumber := 1
		if err := tx.Where("post_id = ?", question.ID).
			Order("revision DESC").First(&lastRev).Error; err == nil {
			revNumber = lastRev.Revision + 1
		}
		rev := &models.PostRevision{
			PostID:    question.ID,
			AuthorID:  retaggedByID,
			Revision:  revNumber,
			Title:     t.Title,
			Text:      question.Text,
			TagNames:  t.TagNames,
			Summary:   "retagged",
			RevisedAt: retaggedAt,
		}
		return tx.Create(rev).Error
	})
	if err != nil {
		return err
	}

	s.ClearCachedData(t.ID)
	return nil
}

// SetClosed opens or closes a thread.
func (s *Service) SetClosed(threadID uint, closed bool, byID uint) error {
	t, err := s.Get(threadID)
	if err != nil {
		return err
	}
	if err := s.db.Model(t).Update("closed", closed).Error; err != nil {
		return err
	}
	s.ClearCachedData(t.ID)
	s.sink.Emit(events.Event{Name: events.ThreadClosed, Data: map[string]any{
		"threadId": t.ID, "closed": closed, "byId": byID,
	}})
	return nil
}

// SetAcceptedAnswer marks an answer as accepted, or clears the mark when
// answerID is zero.
func (s *Service) SetAcceptedAnswer(threadID, answerID, actorID uint) error {
	t, err := s.Get(threadID)
	if err != nil {
		return err
	}
	var value *uint
	if answerID != 0 {
		var answer models.Post
		if err := s.db.First(&answer, answerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return err
		}
		if !answer.IsAnswer() || answer.ThreadID != t.ID {
			return models.Validationf("post %d is not an answer of thread %d", answerID, threadID)
		}
		if answer.Deleted {
			return models.Validationf("cannot accept a deleted answer")
		}
		value = &answerID
	}
	if err := s.db.Model(t).Update("accepted_answer_id", value).Error; err != nil {
		return err
	}
	s.ClearCachedData(t.ID)
	s.sink.Emit(events.Event{Name: events.AnswerAccept, Data: map[string]any{
		"threadId": t.ID, "answerId": answerID, "actorId": actorID,
	}})
	return nil
}

// DeletePost soft-deletes a post. Deleting an answer refreshes the
// thread's answer count.
func (s *Service) DeletePost(postID, byID uint) error {
	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrNotFound
		}
		return err
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&post).Update("deleted", true).Error; err != nil {
			return err
		}
		if post.IsAnswer() {
			return refreshAnswerCount(tx, post.ThreadID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.ClearCachedData(post.ThreadID)
	s.sink.Emit(events.Event{Name: events.PostDeleted, Data: map[string]any{
		"id": post.ID, "threadId": post.ThreadID, "byId": byID,
	}})
	return nil
}

// Vote records a +1/-1 vote and adjusts the post's points in one
// transaction.
func (s *Service) Vote(postID, userID uint, value int) (int, error) {
	if value != 1 && value != -1 {
		return 0, models.Validationf("vote value must be +1 or -1")
	}
	var post models.Post
	var newPoints int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return err
		}
		if post.Deleted {
			return models.Validationf("cannot vote on a deleted post")
		}
		vote := models.Vote{PostID: postID, UserID: userID, Value: value}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		newPoints = post.Points + value
		return tx.Model(&post).Update("points", newPoints).Error
	})
	if err != nil {
		return 0, err
	}
	s.ClearCachedData(post.ThreadID)
	s.sink.Emit(events.Event{Name: events.PostVoted, Data: map[string]any{
		"id": post.ID, "points": newPoints,
	}})
	return newPoints, nil
}

// IncreaseViewCount bumps the view counter atomically. Views are not
// part of any cached aggregate, so nothing is invalidated.
func (s *Service) IncreaseViewCount(threadID uint, increment int) error {
	return s.db.Model(&models.Thread{}).Where("id = ?", threadID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", increment)).Error
}

// CachedPostData returns post data through the cache. Group-scoped
// requests bypass the cache entirely and compute fresh, avoiding both
// key blowup and stale cross-group leakage.
func (s *Service) CachedPostData(t *models.Thread, sortMethod string, groupIDs []uint) (*PostData, error) {
	if sortMethod == "" {
		sortMethod = s.settings.DefaultSortMethod
	}
	if len(groupIDs) > 0 {
		return s.PostData(t, sortMethod, groupIDs)
	}
	key := cache.PostDataKey{ThreadID: t.ID, SortMethod: sortMethod}.String()
	if v, ok := s.cache.Get(key); ok {
		if data, ok := v.(*PostData); ok {
			return data, nil
		}
		// corrupt entry: treat as a miss
	}
	data, err := s.PostData(t, sortMethod, nil)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, data, cache.LongTime)
	return data, nil
}

// GroupsForUser resolves the group scope used by post-data reads.
// Anonymous users and deployments without groups see the public scope.
func (s *Service) GroupsForUser(user *models.User) ([]uint, error) {
	if !s.settings.GroupsEnabled || user == nil {
		return nil, nil
	}
	var ids []uint
	err := s.db.Table("user_groups").Where("user_id = ?", user.ID).
		Pluck("group_id", &ids).Error
	return ids, err
}

// InvalidateCachedPostData drops the thread's post-data entries for
// every known sort method.
func (s *Service) InvalidateCachedPostData(threadID uint) {
	s.cache.DeleteMany(cache.PostDataKeys(threadID, config.SortMethods))
}

// InvalidateCachedSummaryHTML drops the thread's summary entries for
// every active language, plus the thread's own language in case it was
// deactivated after the thread was created.
func (s *Service) InvalidateCachedSummaryHTML(threadID uint) {
	langs := s.settings.Languages
	var t models.Thread
	err := s.db.Select("language_code").First(&t, threadID).Error
	if err == nil && t.LanguageCode != "" && !s.settings.HasLanguage(t.LanguageCode) {
		langs = append(append([]string(nil), langs...), t.LanguageCode)
	}
	s.cache.DeleteMany(cache.SummaryKeys(threadID, langs))
}

// ClearCachedData is the all-or-nothing invalidation hook called by
// every mutation.
func (s *Service) ClearCachedData(threadID uint) {
	s.InvalidateCachedPostData(threadID)
	s.InvalidateCachedSummaryHTML(threadID)
}

func refreshAnswerCount(tx *gorm.DB, threadID uint) error {
	var n int64
	err := tx.Model(&models.Post{}).
		Where("thread_id = ? AND post_type = ? AND deleted = ? AND approved = ?",
			threadID, models.PostTypeAnswer, false, true).
		Count(&n).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.Thread{}).Where("id = ?", threadID).
		UpdateColumn("answer_count", n).Error
}

func setLastActivity(tx *gorm.DB, threadID uint, at time.Time, byID uint) error {
	return tx.Model(&models.Thread{}).Where("id = ?", threadID).
		Updates(map[string]any{
			"last_activity_at":    at,
			"last_activity_by_id": byID,
		}).Error
}

const snippetLength = 120

// snippet derives the short summary stored alongside a post's text.
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= snippetLength {
		return text
	}
	cut := text[:snippetLength]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	} else {
		// No space to break at; back up so we never cut a rune in half.
		for len(cut) > 0 && !utf8.RuneStart(text[len(cut)]) {
			cut = cut[:len(cut)-1]
		}
	}
	return cut + "..."
}
