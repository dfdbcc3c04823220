package models

import (
	"time"
)

// Post types. Exactly one question post exists per thread; answers and
// comments hang off it.
const (
	PostTypeQuestion = "question"
	PostTypeAnswer   = "answer"
	PostTypeComment  = "comment"
)

// Tag statuses.
const (
	TagStatusSuggested = "suggested"
	TagStatusAccepted  = "accepted"
	TagStatusDeleted   = "deleted"
)

// ThreadGroup visibility modes. "published" means non-member group users
// only see publicly published answers; "all" exposes the full stream.
const (
	VisibilityPublishedResponses = "published"
	VisibilityAllResponses       = "all"
)

// Thread is one question plus its answers, comments and metadata.
// TagNames is denormalized from the accepted Tag associations and is
// kept within 125 UTF-8 bytes by truncating trailing tags.
type Thread struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	Title            string    `gorm:"not null" json:"title"`
	TagNames         string    `gorm:"size:125;not null;default:''" json:"tagNames"`
	ViewCount        int       `gorm:"not null;default:0" json:"viewCount"`
	AnswerCount      int       `gorm:"not null;default:0" json:"answerCount"`
	FavoriteCount    int       `gorm:"not null;default:0" json:"favoriteCount"`
	Points           int       `gorm:"not null;default:0" json:"points"`
	Closed           bool      `gorm:"not null;default:false" json:"closed"`
	Deleted          bool      `gorm:"not null;default:false" json:"-"`
	Approved         bool      `gorm:"not null;default:true" json:"approved"`
	AcceptedAnswerID *uint     `gorm:"index" json:"acceptedAnswerId"`
	LanguageCode     string    `gorm:"size:16;not null;default:'en';index" json:"languageCode"`
	LastActivityAt   time.Time `json:"lastActivityAt"`
	LastActivityByID uint      `json:"lastActivityById"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	Posts []Post `gorm:"foreignKey:ThreadID" json:"-"`
	Tags  []Tag  `gorm:"many2many:thread_tags" json:"-"`
}

// Post is a question, answer or comment row. Comments reference their
// parent post through ParentID.
type Post struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	PostType     string     `gorm:"size:16;not null;index" json:"postType"`
	ThreadID     uint       `gorm:"not null;index" json:"threadId"`
	ParentID     *uint      `gorm:"index" json:"parentId,omitempty"`
	AuthorID     uint       `gorm:"not null" json:"authorId"`
	Text         string     `gorm:"not null" json:"text"`
	HTML         string     `gorm:"column:html" json:"html"`
	Summary      string     `json:"summary"`
	Points       int        `gorm:"not null;default:0" json:"points"`
	Approved     bool       `gorm:"not null;default:true" json:"approved"`
	Deleted      bool       `gorm:"not null;default:false" json:"-"`
	AddedAt      time.Time  `gorm:"index" json:"addedAt"`
	LastEditedAt *time.Time `json:"lastEditedAt,omitempty"`
	LastEditedBy *uint      `json:"lastEditedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	Groups []Group `gorm:"many2many:post_groups" json:"-"`

	// Comments attached by the aggregator; never persisted.
	Comments []*Post `gorm:"-" json:"comments,omitempty"`
}

// IsQuestion reports whether the post is the thread's question.
func (p *Post) IsQuestion() bool { return p.PostType == PostTypeQuestion }

// IsAnswer reports whether the post is an answer.
func (p *Post) IsAnswer() bool { return p.PostType == PostTypeAnswer }

// IsComment reports whether the post is a comment.
func (p *Post) IsComment() bool { return p.PostType == PostTypeComment }

// Tag is a normalized topical label. Identity is case-insensitive within
// a language, so Name is always stored lowercased. UsedCount tracks the
// number of non-deleted threads referencing the tag.
type Tag struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Name         string    `gorm:"size:255;not null;uniqueIndex:idx_tag_name_lang" json:"name"`
	LanguageCode string    `gorm:"size:16;not null;default:'en';uniqueIndex:idx_tag_name_lang" json:"languageCode"`
	Status       string    `gorm:"size:16;not null;default:'accepted'" json:"status"`
	UsedCount    int       `gorm:"not null;default:0" json:"usedCount"`
	CreatedByID  uint      `json:"createdById"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TagSynonym redirects one tag name to another on write.
type TagSynonym struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	SourceTagName   string    `gorm:"size:255;not null;uniqueIndex:idx_synonym_source_lang" json:"sourceTagName"`
	TargetTagName   string    `gorm:"size:255;not null" json:"targetTagName"`
	LanguageCode    string    `gorm:"size:16;not null;default:'en';uniqueIndex:idx_synonym_source_lang" json:"languageCode"`
	AutoRenameCount int       `gorm:"not null;default:0" json:"autoRenameCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Group is a visibility scope for threads and posts.
type Group struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ThreadGroup is the thread/group join carrying the visibility mode.
type ThreadGroup struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	ThreadID   uint   `gorm:"not null;uniqueIndex:idx_thread_group" json:"threadId"`
	GroupID    uint   `gorm:"not null;uniqueIndex:idx_thread_group" json:"groupId"`
	Visibility string `gorm:"size:16;not null;default:'all'" json:"visibility"`
}

// User holds only what the Q&A core needs; authentication lives elsewhere.
type User struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Username    string    `gorm:"size:255;not null;uniqueIndex" json:"username"`
	IsModerator bool      `gorm:"not null;default:false" json:"isModerator"`
	Reputation  int       `gorm:"not null;default:1" json:"reputation"`
	CreatedAt   time.Time `json:"createdAt"`

	Groups []Group `gorm:"many2many:user_groups" json:"-"`
}

// PostRevision records one edit of a post. Creation, edits and retags
// each append a revision.
type PostRevision struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	AuthorID  uint      `gorm:"not null" json:"authorId"`
	Revision  int       `gorm:"not null" json:"revision"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	TagNames  string    `json:"tagNames"`
	Summary   string    `json:"summary"`
	RevisedAt time.Time `json:"revisedAt"`
}

// Vote represents a +1 or -1 vote on a Post.
type Vote struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	UserID    uint      `gorm:"not null" json:"userId"`
	Value     int       `gorm:"not null" json:"value"` // Should be +1 or -1
	CreatedAt time.Time `json:"createdAt"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Thread{}, &Post{}, &Tag{}, &TagSynonym{},
		&Group{}, &ThreadGroup{}, &User{}, &PostRevision{}, &Vote{},
	}
}
