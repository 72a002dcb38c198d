package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/services/aggregate"
	"github.com/providerlens/providerlens/pkg/httputil"
)

// LookupHandler serves provider lookup requests.
type LookupHandler struct {
	service *aggregate.Service
	logger  *zap.Logger
}

// NewLookupHandler creates a new lookup handler
func NewLookupHandler(service *aggregate.Service, logger *zap.Logger) *LookupHandler {
	return &LookupHandler{
		service: service,
		logger:  logger,
	}
}

// Create handles POST /api/v1/lookups. The run is synchronous: the response
// carries the full aggregate record, so the server's write timeout must
// cover a whole run.
func (h *LookupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req aggregate.LookupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	result, err := h.service.Lookup(r.Context(), req)
	if err != nil {
		h.logger.Warn("lookup failed",
			zap.String("name", req.Name),
			zap.Error(err),
		)
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
