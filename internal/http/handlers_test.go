package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/askgo/internal/cache"
	"github.com/sujalbistaa/askgo/internal/config"
	"github.com/sujalbistaa/askgo/internal/events"
	"github.com/sujalbistaa/askgo/internal/models"
	"github.com/sujalbistaa/askgo/internal/thread"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Env) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	settings := config.Defaults()
	env := &Env{
		DB:       db,
		Threads:  thread.NewService(db, cache.NewMemory(), settings, events.Discard{}, nil, nil),
		Settings: settings,
		Sink:     events.Discard{},
	}

	router := gin.New()
	api := router.Group("/api")
	api.GET("/threads", env.ListThreads)
	api.GET("/threads/:id", env.GetThread)
	api.GET("/threads/:id/summary", env.GetThreadSummary)
	api.POST("/threads", env.CreateThread)
	api.POST("/threads/:id/answers", env.CreateAnswer)
	api.PUT("/threads/:id/tags", env.Retag)
	api.POST("/threads/:id/close", env.CloseThread)
	api.POST("/threads/:id/accept", env.AcceptAnswer)
	api.POST("/posts/:id/comments", env.CreateComment)
	api.POST("/posts/:id/vote", env.VoteOnPost)
	return router, env
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createFixtureUser(t *testing.T, env *Env, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name}
	require.NoError(t, env.DB.Create(u).Error)
	return u
}

func TestCreateAndFetchThread(t *testing.T) {
	router, env := newTestRouter(t)
	user := createFixtureUser(t, env, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/threads", gin.H{
		"title":    "How do I cancel a context?",
		"text":     "I need to stop a long-running call.",
		"tagNames": "go context",
		"authorId": user.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Thread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "go context", created.TagNames)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/threads/%d?sort=votes", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Thread   models.Thread  `json:"thread"`
		Question *models.Post   `json:"question"`
		Answers  []*models.Post `json:"answers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Question)
	assert.Equal(t, created.ID, got.Question.ThreadID)
	assert.Empty(t, got.Answers)
}

func TestAnswerVoteFlow(t *testing.T) {
	router, env := newTestRouter(t)
	alice := createFixtureUser(t, env, "alice")
	bob := createFixtureUser(t, env, "bob")

	w := doJSON(t, router, http.MethodPost, "/api/threads", gin.H{
		"title": "T", "text": "body", "tagNames": "go", "authorId": alice.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var th models.Thread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &th))

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/threads/%d/answers", th.ID), gin.H{
		"text": "an answer", "authorId": bob.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var answer models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", answer.ID), gin.H{
		"value": 1, "userId": alice.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"points":1`)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", answer.ID), gin.H{
		"value": 3, "userId": alice.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "vote value outside -1/1 is rejected by binding")
}

func TestRetagEndpoint(t *testing.T) {
	router, env := newTestRouter(t)
	alice := createFixtureUser(t, env, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/threads", gin.H{
		"title": "T", "text": "body", "tagNames": "python django", "authorId": alice.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var th models.Thread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &th))

	w = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/threads/%d/tags", th.ID), gin.H{
		"tagNames": "python flask", "userId": alice.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"tagNames":"python flask"`)

	w = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/threads/%d/tags", th.ID), gin.H{
		"tagNames": "bad/name", "userId": alice.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	router, env := newTestRouter(t)
	alice := createFixtureUser(t, env, "alice")

	w := doJSON(t, router, http.MethodGet, "/api/threads/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/threads/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/threads", gin.H{
		"title": "", "text": "body", "authorId": alice.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "binding rejects an empty title")
}

func TestSummaryEndpoint(t *testing.T) {
	router, env := newTestRouter(t)
	alice := createFixtureUser(t, env, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/threads", gin.H{
		"title": "Summary me", "text": "body text", "tagNames": "go", "authorId": alice.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var th models.Thread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &th))

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/threads/%d/summary", th.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Summary me")
}
