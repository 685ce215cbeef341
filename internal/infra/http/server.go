package http

import (
	"log/slog"
	"net/http"
	"time"

	"gnsd/internal/config"
	"gnsd/internal/domain"
	"gnsd/internal/usecase"

	"github.com/gin-gonic/gin"
)

// Server is the node's local command surface. It drives the collection,
// epoch, trust and handle workflows over HTTP; it is not the relay.
type Server struct {
	cfg    config.Config
	r      *gin.Engine
	logger *slog.Logger

	identities *usecase.IdentityService
	collector  *usecase.Collector
	publisher  *usecase.Publisher
	scorer     *usecase.Scorer
	handles    *usecase.HandleWorkflow
	relay      domain.RelayClient

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

type ServerDeps struct {
	Identities  *usecase.IdentityService
	Collector   *usecase.Collector
	Publisher   *usecase.Publisher
	Scorer      *usecase.Scorer
	Handles     *usecase.HandleWorkflow
	Relay       domain.RelayClient
	RateLimiter domain.RateLimiter
	Logger      *slog.Logger
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:               cfg,
		r:                 r,
		logger:            logger,
		identities:        deps.Identities,
		collector:         deps.Collector,
		publisher:         deps.Publisher,
		scorer:            deps.Scorer,
		handles:           deps.Handles,
		relay:             deps.Relay,
		rateLimiter:       deps.RateLimiter,
		rateLimitRequests: cfg.RateLimitRequests,
		rateLimitWindow:   cfg.RateLimitWindow(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/identities", s.handleCreateIdentity)
		v1.GET("/identities", s.handleListIdentities)
		v1.GET("/identities/:id", s.handleGetIdentity)
		v1.DELETE("/identities/:id", s.handleDeleteIdentity)

		v1.POST("/identities/:id/breadcrumbs", s.handleCollect)
		v1.GET("/identities/:id/collection", s.handleCollectionStatus)
		v1.POST("/identities/:id/collection/start", s.handleStartCollection)
		v1.POST("/identities/:id/collection/stop", s.handleStopCollection)

		v1.POST("/identities/:id/epochs", s.handlePublishEpoch)
		v1.GET("/identities/:id/epochs", s.handleListEpochs)

		v1.GET("/identities/:id/trust", s.handleTrustScore)
		v1.POST("/identities/:id/trust/verify", s.handleVerifyTrust)

		v1.GET("/handles/:handle", s.handleCheckHandle)
		v1.POST("/identities/:id/handle/reserve", s.handleReserveHandle)
		v1.POST("/identities/:id/handle/claim", s.handleClaimHandle)
		v1.POST("/identities/:id/handle/release", s.handleReleaseHandle)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.r
}
