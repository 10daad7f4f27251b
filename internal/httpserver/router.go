package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	handler *NotificationHandler,
	jwtSecret string,
	db *pgxpool.Pool,
) *Router {
	r := gin.Default()
	r.Use(TraceMiddleware(), MetricsMiddleware())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/notifications/user/:userID", handler.List)
		auth.PUT("/notifications/user/:userID/read-all", handler.MarkAllRead)
		auth.PUT("/notifications/:id/read", handler.MarkRead)
		auth.DELETE("/notifications/:id", handler.Delete)
		auth.GET("/notifications/stream", handler.Stream)
		auth.POST("/notifications/simulate", handler.Simulate)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
