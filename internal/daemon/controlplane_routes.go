package daemon

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/daemon/middleware"
	"github.com/openmined/rclonebox/internal/version"
)

type RouteConfig struct {
	Auth      middleware.TokenAuthConfig
	RateLimit int64 // requests per second per client; 0 uses the default
	Logger    *slog.Logger
}

func SetupRoutes(svc *handlers.Services, routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	statusH := handlers.NewStatusHandler(svc)
	mountH := handlers.NewMountHandler(svc.Mounts)
	taskH := handlers.NewTaskHandler(svc.Tasks)
	remoteH := handlers.NewRemoteHandler(svc.Remotes)
	eventsH := handlers.NewEventsHandler(svc.Bus)

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(routeConfig.Logger))
	r.Use(middleware.CORS())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.Gzip())
	r.Use(middleware.RateLimit(routeConfig.RateLimit, time.Second))

	r.GET("/", IndexHandler)

	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(routeConfig.Auth))
	{
		v1.GET("/status", statusH.Status)
		v1.GET("/events", eventsH.Stream)
		v1.GET("/cron/validate", taskH.ValidateCron)

		v1Mounts := v1.Group("/mounts")
		{
			v1Mounts.GET("", mountH.List)
			v1Mounts.POST("", mountH.Create)
			v1Mounts.POST("/refresh", mountH.Refresh)
			v1Mounts.GET("/drives", mountH.Drives)
			v1Mounts.DELETE("/:name", mountH.Delete)
			v1Mounts.POST("/:name/mount", mountH.Mount)
			v1Mounts.POST("/:name/unmount", mountH.Unmount)
			v1Mounts.GET("/:name/stats", mountH.Stats)
		}

		v1Tasks := v1.Group("/tasks")
		{
			v1Tasks.GET("", taskH.List)
			v1Tasks.POST("", taskH.Create)
			v1Tasks.GET("/:id", taskH.Get)
			v1Tasks.PUT("/:id", taskH.Update)
			v1Tasks.DELETE("/:id", taskH.Delete)
			v1Tasks.POST("/:id/run", taskH.Run)
			v1Tasks.POST("/:id/cancel", taskH.Cancel)
			v1Tasks.PUT("/:id/schedule", taskH.Schedule)
			v1Tasks.DELETE("/:id/schedule", taskH.Unschedule)
			v1Tasks.GET("/:id/history", taskH.History)
		}

		v1Remotes := v1.Group("/remotes")
		{
			v1Remotes.GET("", remoteH.List)
			v1Remotes.POST("", remoteH.Create)
			v1Remotes.GET("/:name", remoteH.Get)
			v1Remotes.PATCH("/:name", remoteH.Update)
			v1Remotes.DELETE("/:name", remoteH.Delete)
			v1Remotes.POST("/:name/test", remoteH.Test)
			v1Remotes.GET("/:name/about", remoteH.About)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeNotFound,
			Error:     "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeBadRequest,
			Error:     "method not allowed",
		})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Detailed())
}
