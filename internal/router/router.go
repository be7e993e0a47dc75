package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"multitimer/internal/handler"
	"multitimer/internal/middleware"
	"multitimer/internal/service"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Timer    *handler.TimerHandler
	Run      *handler.RunHandler
	Transfer *handler.TransferHandler
}

func New(
	authService *service.AuthService,
	handlers Handlers,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", handlers.Auth.Register)
	auth.POST("/login", handlers.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.Auth(authService))

	timers := protected.Group("/timers")
	timers.GET("", handlers.Timer.List)
	timers.POST("", handlers.Timer.Create)
	timers.POST("/delete", handlers.Timer.DeleteMany)
	timers.GET("/:name", handlers.Timer.Get)
	timers.PUT("/:name", handlers.Timer.Update)
	timers.DELETE("/:name", handlers.Timer.Delete)
	timers.POST("/:name/presets", handlers.Timer.AddPreset)
	timers.POST("/:name/presets/delete", handlers.Timer.DeletePresets)
	timers.POST("/:name/presets/move", handlers.Timer.MovePreset)
	timers.PUT("/:name/presets/:order", handlers.Timer.UpdatePreset)
	timers.DELETE("/:name/presets/:order", handlers.Timer.DeletePreset)

	protected.GET("/watch/timers", handlers.Timer.Watch)

	runs := protected.Group("/runs")
	runs.POST("", handlers.Run.Start)
	runs.GET("", handlers.Run.List)
	runs.GET("/:id", handlers.Run.Get)
	runs.POST("/:id/pause", handlers.Run.Pause)
	runs.POST("/:id/resume", handlers.Run.Resume)
	runs.POST("/:id/cancel", handlers.Run.Cancel)
	runs.GET("/:id/alerts", handlers.Run.TakeAlerts)
	runs.GET("/:id/events", handlers.Run.Events)

	protected.GET("/history", handlers.Run.History)
	protected.GET("/export", handlers.Transfer.Export)
	protected.POST("/import", handlers.Transfer.Import)

	return engine
}
