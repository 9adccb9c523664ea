package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/common"
	"github.com/suPer8Hu/sms-archive/internal/config"
	"github.com/suPer8Hu/sms-archive/internal/httpapi/handlers"
	"github.com/suPer8Hu/sms-archive/internal/httpapi/middleware"
	"github.com/suPer8Hu/sms-archive/internal/imports"
	"github.com/suPer8Hu/sms-archive/internal/metrics"
	"github.com/suPer8Hu/sms-archive/internal/store/redisstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the optional collaborators of the router. Nil fields disable the
// feature they back.
type Deps struct {
	Redis     *redisstore.Store
	Publisher imports.Publisher
	Registry  *prometheus.Registry
	Log       *zap.Logger
}

func NewRouter(db *gorm.DB, cfg config.Config, deps Deps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	var ingestMetrics *metrics.Ingest
	if deps.Registry != nil {
		r.Use(middleware.Metrics(metrics.NewHTTP(deps.Registry)))
		ingestMetrics = metrics.NewIngest(deps.Registry)
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	h := &handlers.Handler{
		Archive:   archive.NewRepo(db),
		Imports:   imports.NewService(imports.NewRepo(db), ingestMetrics),
		Publisher: deps.Publisher,
		Log:       log,
	}
	// keep the interface nil rather than wrapping a nil pointer
	if deps.Redis != nil {
		h.ETags = deps.Redis
	}

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/:id", h.GetConversation)
	api.GET("/conversations/:id/messages", h.ListMessages)
	api.GET("/conversations/:id/media", h.ListConversationMedia)
	api.GET("/conversations/:id/search", h.SearchMessages)
	api.GET("/messages/:id", h.GetMessage)
	api.GET("/media/:id", h.GetMedia)
	api.GET("/media/:id/file", h.GetMediaFile)

	// imports (JWT required)
	authGroup := api.Group("/imports")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.POST("", h.CreateImport)
	authGroup.GET("/:id", h.GetImport)
	return r
}
