package http

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/sujalbistaa/askgo/internal/cache"
	"github.com/sujalbistaa/askgo/internal/config"
	"github.com/sujalbistaa/askgo/internal/events"
	"github.com/sujalbistaa/askgo/internal/thread"
	"github.com/sujalbistaa/askgo/internal/ws"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, db *gorm.DB, hub *ws.Hub, settings *config.Settings) {

	// --- Dependencies ---
	sink := &events.HubSink{Hub: hub}
	threads := thread.NewService(db, cache.NewMemory(), settings, sink, nil, nil)
	env := &Env{DB: db, Threads: threads, Settings: settings, Sink: sink}

	// --- Middleware ---

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	// CORS Middleware
	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "*" // Default to allow all for local dev
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// --- Rate Limiter Setup ---
	limiter := NewIPRateLimiter(rate.Limit(rateLimitRPS), rateLimitBurst)
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			limiter.mu.Lock()
			for ip, v := range limiter.visitors {
				if v.Allow() {
					// Idle limiter; forget the visitor.
					delete(limiter.visitors, ip)
				}
			}
			limiter.mu.Unlock()
		}
	}()

	writeLimited := RateLimitMiddleware(limiter)

	// --- API Routes ---

	api := router.Group("/api")
	{
		api.GET("/threads", env.ListThreads)
		api.GET("/threads/:id", env.GetThread)
		api.GET("/threads/:id/summary", env.GetThreadSummary)
		api.POST("/threads", writeLimited, env.CreateThread)
		api.POST("/threads/:id/answers", writeLimited, env.CreateAnswer)
		api.PUT("/threads/:id/tags", env.Retag)
		api.POST("/threads/:id/close", env.CloseThread)
		api.POST("/threads/:id/accept", env.AcceptAnswer)
		api.POST("/posts/:id/comments", writeLimited, env.CreateComment)
		api.POST("/posts/:id/vote", env.VoteOnPost)

		admin := api.Group("", AdminAuthMiddleware())
		{
			admin.DELETE("/posts/:id", env.DeletePost)
			admin.POST("/admin/tags/gc", env.CollectUnusedTags)
		}
	}

	// --- WebSocket Route ---

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, c.Writer, c.Request)
	})
}
