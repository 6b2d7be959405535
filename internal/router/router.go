package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/weibaohui/goalagent/backend/config"
	"github.com/weibaohui/goalagent/backend/internal/handler"
)

func Setup(
	cfg *config.Config,
	runHandler *handler.RunHandler,
	catalogHandler *handler.CatalogHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	api := r.Group("/api")
	{
		runs := api.Group("/runs")
		{
			runs.POST("", runHandler.Submit)
			runs.GET("", runHandler.List)
			runs.POST("/sync", runHandler.SubmitSync)
			runs.GET("/current", runHandler.Current)
			runs.POST("/current/cancel", runHandler.Cancel)
			runs.GET("/:id", runHandler.Get)
		}

		spaces := api.Group("/spaces")
		{
			spaces.GET("", catalogHandler.Spaces)
			spaces.GET("/:key/pages", catalogHandler.Pages)
		}

		api.GET("/tools", runHandler.Tools)
		api.GET("/status", runHandler.Status)
	}

	return r
}
