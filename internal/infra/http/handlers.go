package http

import (
	"errors"
	"net/http"

	"gnsd/internal/domain"
	"gnsd/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type createIdentityRequest struct {
	DisplayName string `json:"displayName"`
}

type handleRequest struct {
	Handle string `json:"handle"`
}

type verifyTrustRequest struct {
	MinBreadcrumbs     int64   `json:"minBreadcrumbs"`
	MinTrustScore      float64 `json:"minTrustScore"`
	MinAccountAgeDays  int     `json:"minAccountAgeDays"`
	MinUniqueLocations int64   `json:"minUniqueLocations"`
	RequiredTier       string  `json:"requiredTier"`
}

type handleAvailabilityResponse struct {
	Handle    string `json:"handle"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Available *bool  `json:"available,omitempty"`
}

type epochListResponse struct {
	Epochs []domain.Epoch `json:"epochs"`
}

func (s *Server) handleCreateIdentity(c *gin.Context) {
	if !s.enforceRateLimit(c, routeIdentitiesWrite, "") {
		return
	}
	var req createIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	identity, err := s.identities.Create(c.Request.Context(), req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, identity)
}

func (s *Server) handleListIdentities(c *gin.Context) {
	list, err := s.identities.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identities": list})
}

func (s *Server) handleGetIdentity(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, identity)
}

func (s *Server) handleDeleteIdentity(c *gin.Context) {
	if !s.enforceRateLimit(c, routeIdentitiesWrite, c.Param("id")) {
		return
	}
	s.collector.Stop(c.Param("id"))
	if err := s.identities.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCollect(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeBreadcrumbsCollect, identity.ID) {
		return
	}
	crumb, err := s.collector.CollectOnce(c.Request.Context(), *identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, crumb)
}

func (s *Server) handleCollectionStatus(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	status, err := s.collector.Status(c.Request.Context(), *identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleStartCollection(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	if err := s.collector.Start(c.Request.Context(), *identity); err != nil {
		writeError(c, err)
		return
	}
	status, err := s.collector.Status(c.Request.Context(), *identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleStopCollection(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	s.collector.Stop(identity.ID)
	status, err := s.collector.Status(c.Request.Context(), *identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handlePublishEpoch(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeEpochsPublish, identity.ID) {
		return
	}
	epoch, err := s.publisher.Publish(c.Request.Context(), *identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, epoch)
}

func (s *Server) handleListEpochs(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	epochs, err := s.publisher.EpochChain(c.Request.Context(), identity.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, epochListResponse{Epochs: epochs})
}

func (s *Server) handleTrustScore(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeTrustRead, identity.ID) {
		return
	}
	score, err := s.scorer.Score(c.Request.Context(), *identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

func (s *Server) handleVerifyTrust(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeTrustRead, identity.ID) {
		return
	}
	var req verifyTrustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	verification, err := s.scorer.Verify(c.Request.Context(), *identity, usecase.TrustRequirements{
		MinBreadcrumbs:     req.MinBreadcrumbs,
		MinTrustScore:      req.MinTrustScore,
		MinAccountAgeDays:  req.MinAccountAgeDays,
		MinUniqueLocations: req.MinUniqueLocations,
		RequiredTier:       domain.TrustTier(req.RequiredTier),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verification)
}

func (s *Server) handleCheckHandle(c *gin.Context) {
	if !s.enforceRateLimit(c, routeHandlesRead, "") {
		return
	}
	clean, err := usecase.ValidateFormat(c.Param("handle"))
	if err != nil {
		var invalid *domain.ValidationError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusOK, handleAvailabilityResponse{
				Handle: c.Param("handle"),
				Valid:  false,
				Reason: invalid.Reason,
			})
			return
		}
		writeError(c, err)
		return
	}

	out := handleAvailabilityResponse{Handle: clean, Valid: true}
	if s.relay != nil {
		available, err := s.relay.IsHandleAvailable(c.Request.Context(), clean)
		if err != nil {
			writeError(c, err)
			return
		}
		out.Available = &available
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleReserveHandle(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeHandlesWrite, identity.ID) {
		return
	}
	var req handleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	status, err := s.handles.Reserve(c.Request.Context(), *identity, req.Handle)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleClaimHandle(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeHandlesWrite, identity.ID) {
		return
	}
	var req handleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	status, err := s.handles.Claim(c.Request.Context(), *identity, req.Handle)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleReleaseHandle(c *gin.Context) {
	identity, ok := s.loadIdentity(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, routeHandlesWrite, identity.ID) {
		return
	}
	if err := s.handles.Release(c.Request.Context(), *identity); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func (s *Server) loadIdentity(c *gin.Context) (*domain.Identity, bool) {
	identity, err := s.identities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return identity, true
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	var details map[string]any

	var invalid *domain.ValidationError
	var tooFew *domain.InsufficientBreadcrumbsError
	var lowTrust *domain.InsufficientTrustError
	switch {
	case errors.As(err, &invalid):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
		details = map[string]any{"field": invalid.Field}
	case errors.As(err, &tooFew):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_BREADCRUMBS"
		details = map[string]any{"required": tooFew.Required, "current": tooFew.Current}
	case errors.As(err, &lowTrust):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_TRUST"
		details = map[string]any{"required": lowTrust.Required, "current": lowTrust.Current}
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrIdentityExists):
		status, code = http.StatusConflict, "IDENTITY_EXISTS"
	case errors.Is(err, domain.ErrHandleTaken):
		status, code = http.StatusConflict, "HANDLE_TAKEN"
	case errors.Is(err, domain.ErrAlreadyClaimed):
		status, code = http.StatusConflict, "ALREADY_CLAIMED"
	case errors.Is(err, domain.ErrNoReservation):
		status, code = http.StatusConflict, "NO_RESERVATION"
	case errors.Is(err, domain.ErrRelayUnavailable):
		status, code = http.StatusBadGateway, "RELAY_UNAVAILABLE"
	}
	c.JSON(status, errorResponse{
		Code:    code,
		Message: err.Error(),
		Details: details,
	})
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
