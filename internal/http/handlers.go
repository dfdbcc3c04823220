package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/sujalbistaa/askgo/internal/config"
	"github.com/sujalbistaa/askgo/internal/events"
	"github.com/sujalbistaa/askgo/internal/models"
	"github.com/sujalbistaa/askgo/internal/search"
	"github.com/sujalbistaa/askgo/internal/tags"
	"github.com/sujalbistaa/askgo/internal/thread"
)

// --- Configuration Constants ---
const (
	rateLimitRPS   = 1.0 / 3.0 // 1 request every 3 seconds
	rateLimitBurst = 1
)

// --- Structs for request binding ---
type CreateThreadInput struct {
	Title    string `json:"title" binding:"required,min=1,max=255"`
	Text     string `json:"text" binding:"required,min=1"`
	TagNames string `json:"tagNames" binding:"max=1000"`
	AuthorID uint   `json:"authorId" binding:"required"`
	Language string `json:"language" binding:"max=16"`
}
type CreatePostInput struct {
	Text     string `json:"text" binding:"required,min=1"`
	AuthorID uint   `json:"authorId" binding:"required"`
}
type RetagInput struct {
	TagNames string `json:"tagNames" binding:"required,max=1000"`
	UserID   uint   `json:"userId" binding:"required"`
}
type VoteInput struct {
	Value  int  `json:"value" binding:"required,oneof=-1 1"` // Must be 1 or -1
	UserID uint `json:"userId" binding:"required"`
}
type CloseInput struct {
	Closed bool `json:"closed"`
	UserID uint `json:"userId" binding:"required"`
}
type AcceptInput struct {
	AnswerID uint `json:"answerId"`
	UserID   uint `json:"userId" binding:"required"`
}

// --- Rate Limiter ---
type IPRateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.RWMutex
	rps      rate.Limit
	burst    int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		mu:       sync.RWMutex{},
		rps:      r,
		burst:    b,
	}
}
func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[ip] = limiter
	}
	return limiter
}
func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait."})
			return
		}
		c.Next()
	}
}

// --- Handlers ---
type Env struct {
	DB       *gorm.DB
	Threads  *thread.Service
	Settings *config.Settings
	Sink     events.Sink
}

// writeError maps core errors onto HTTP statuses. ConsistencyError is a
// data-integrity bug and comes back as a 500.
func writeError(c *gin.Context, err error) {
	switch {
	case models.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// ListThreads handles GET /api/threads?q=&lang=&limit=.
func (e *Env) ListThreads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	threads, err := search.Threads(e.DB, c.Query("q"), c.Query("lang"), limit)
	if err != nil {
		log.Printf("Error searching threads: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch threads"})
		return
	}
	c.JSON(http.StatusOK, threads)
}

// GetThread handles GET /api/threads/:id?sort=. It returns the thread
// with its aggregated post data and bumps the view counter.
func (e *Env) GetThread(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := e.Threads.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	var user *models.User
	if raw := c.Query("userId"); raw != "" {
		if uid, err := strconv.ParseUint(raw, 10, 32); err == nil {
			var u models.User
			if e.DB.First(&u, uint(uid)).Error == nil {
				user = &u
			}
		}
	}
	groupIDs, err := e.Threads.GroupsForUser(user)
	if err != nil {
		writeError(c, err)
		return
	}

	data, err := e.Threads.CachedPostData(t, c.Query("sort"), groupIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := e.Threads.IncreaseViewCount(t.ID, 1); err != nil {
		log.Printf("Error bumping view count for thread %d: %v", t.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"thread":             t,
		"question":           data.Question,
		"answers":            data.Answers,
		"postAuthors":        data.PostAuthors,
		"publishedAnswerIds": data.PublishedAnswerIDs,
	})
}

// GetThreadSummary handles GET /api/threads/:id/summary.
func (e *Env) GetThreadSummary(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := e.Threads.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	html, err := e.Threads.SummaryHTML(t)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// CreateThread handles POST /api/threads.
func (e *Env) CreateThread(c *gin.Context) {
	var input CreateThreadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	t, err := e.Threads.CreateThread(thread.CreateThreadInput{
		Title:        input.Title,
		Text:         input.Text,
		TagNames:     input.TagNames,
		AuthorID:     input.AuthorID,
		LanguageCode: input.Language,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// CreateAnswer handles POST /api/threads/:id/answers.
func (e *Env) CreateAnswer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	post, err := e.Threads.AddAnswer(id, input.AuthorID, input.Text, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// CreateComment handles POST /api/posts/:id/comments.
func (e *Env) CreateComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	post, err := e.Threads.AddComment(id, input.AuthorID, input.Text, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// Retag handles PUT /api/threads/:id/tags.
func (e *Env) Retag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input RetagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if err := e.Threads.Retag(id, input.UserID, input.TagNames, time.Now()); err != nil {
		writeError(c, err)
		return
	}
	t, err := e.Threads.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": t.ID, "tagNames": t.TagNames})
}

// VoteOnPost handles POST /api/posts/:id/vote.
func (e *Env) VoteOnPost(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	points, err := e.Threads.Vote(id, input.UserID, input.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "points": points})
}

// CloseThread handles POST /api/threads/:id/close.
func (e *Env) CloseThread(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input CloseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if err := e.Threads.SetClosed(id, input.Closed, input.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "closed": input.Closed})
}

// AcceptAnswer handles POST /api/threads/:id/accept.
func (e *Env) AcceptAnswer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input AcceptInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if err := e.Threads.SetAcceptedAnswer(id, input.AnswerID, input.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "acceptedAnswerId": input.AnswerID})
}

// DeletePost handles DELETE /api/posts/:id (admin only).
func (e *Env) DeletePost(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := e.Threads.DeletePost(id, 0); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// CollectUnusedTags handles POST /api/admin/tags/gc (admin only). It
// physically removes tags slated for garbage collection.
func (e *Env) CollectUnusedTags(c *gin.Context) {
	n, err := tags.DeleteUnused(e.DB)
	if err != nil {
		log.Printf("Error collecting unused tags: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect tags"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
