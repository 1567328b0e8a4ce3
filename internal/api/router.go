package api

import (
	"github.com/gin-gonic/gin"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/api/handler"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/api/middleware"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/config"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/repository"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/service"
)

// SetupRouter configures the Gin router with all routes.
func SetupRouter(
	cfg *config.Config,
	ingest *service.IngestService,
	items *repository.ItemRepository,
	log *logger.Logger,
) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	itemHandler := handler.NewItemHandler(ingest, items)

	r.GET("/health", healthHandler.Health)

	// Local fallback for images whose durable upload failed.
	r.Static(cfg.Enrichment.UploadBasePath, cfg.Enrichment.UploadDir)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/wishlists/:id/items/image", itemHandler.CreateFromImage)
		v1.POST("/wishlists/:id/items/text", itemHandler.CreateFromText)
		v1.GET("/wishlists/:id/items", itemHandler.ListItems)

		v1.GET("/items/:id", itemHandler.GetItem)
	}

	return r
}
