package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	auditpkg "github.com/concierge-tc/portal-backend/shared/audit"
	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/shared/utils"
	"github.com/concierge-tc/portal-backend/v1/middleware"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/services"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds JSON and CSV request bodies
const maxBodyBytes = 1 << 20

// Dependencies are the collaborators the API handler is built from
type Dependencies struct {
	Transactions *services.TransactionService
	Agents       *services.AgentService
	Offers       *services.OfferService
	Vendors      *services.VendorService
	Wizards      *services.WizardService
	Feed         services.ChangeFeed
	Notifier     services.Notifier
	Auditor      auditpkg.Auditor
	// StreamHeartbeat is the SSE keep-alive interval
	StreamHeartbeat time.Duration
}

// V1Handler handles all V1 API routes
type V1Handler struct {
	transactions *services.TransactionService
	agents       *services.AgentService
	offers       *services.OfferService
	vendors      *services.VendorService
	wizards      *services.WizardService
	feed         services.ChangeFeed
	notifier     services.Notifier
	auditor      auditpkg.Auditor
	heartbeat    time.Duration

	closeOnce sync.Once
	closing   chan struct{}
}

// NewV1Handler creates a new V1 handler. Notifier and Auditor default to log and no-op.
func NewV1Handler(deps Dependencies) *V1Handler {
	if deps.Notifier == nil {
		deps.Notifier = services.LogNotifier{}
	}
	if deps.Auditor == nil {
		deps.Auditor = auditpkg.NoopAuditor{}
	}
	if deps.StreamHeartbeat <= 0 {
		deps.StreamHeartbeat = 25 * time.Second
	}
	return &V1Handler{
		transactions: deps.Transactions,
		agents:       deps.Agents,
		offers:       deps.Offers,
		vendors:      deps.Vendors,
		wizards:      deps.Wizards,
		feed:         deps.Feed,
		notifier:     deps.Notifier,
		auditor:      deps.Auditor,
		heartbeat:    deps.StreamHeartbeat,
		closing:      make(chan struct{}),
	}
}

// CloseStreams ends every open change stream. http.Server.Shutdown waits for active responses,
// so open streams would hold it until its deadline unless this runs via RegisterOnShutdown.
func (h *V1Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// SetupV1Routes mounts every /api/v1 route on r
func (h *V1Handler) SetupV1Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/wizards", func(r chi.Router) {
			r.Post("/{kind}", h.startWizard)
			r.Get("/{sessionID}", h.getWizard)
			r.Put("/{sessionID}/steps/{stepID}", h.updateWizardStep)
			r.Post("/{sessionID}/next", h.nextWizardStep)
			r.Post("/{sessionID}/previous", h.previousWizardStep)
			r.Post("/{sessionID}/submit", h.submitWizard)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.listTransactions)
			r.Get("/progress", h.transactionProgress)
			r.Get("/stream", h.streamChanges)
			r.Post("/bulk-status", h.bulkUpdateStatus)
			r.Post("/reassign", h.reassignTransactions)
			r.Get("/{id}", h.getTransaction)
			r.Patch("/{id}/status", h.updateTransactionStatus)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.listAgents)
			r.Post("/", h.inviteAgent)
			r.Get("/performance", h.agentPerformance)
			r.Post("/import", h.importAgents)
			r.Post("/bulk-actions", h.bulkAgentAction)
			r.Get("/{id}", h.getAgent)
			r.Delete("/{id}", h.deleteAgent)
			r.Patch("/{id}/status", h.updateAgentStatus)
			r.Post("/{id}/setup-link", h.resendSetupLink)
			r.Post("/{id}/complete-setup", h.completeSetup)
			r.Get("/{id}/vendors", h.listVendors)
			r.Post("/{id}/vendors", h.createVendor)
		})

		r.Route("/vendors", func(r chi.Router) {
			r.Put("/{id}", h.updateVendor)
			r.Delete("/{id}", h.deleteVendor)
			r.Post("/{id}/primary", h.setPrimaryVendor)
		})

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", h.listOffers)
			r.Post("/", h.createOffer)
			r.Get("/{id}", h.getOffer)
			r.Patch("/{id}/status", h.updateOfferStatus)
		})
	})
}

// currentUser returns the authenticated user or writes 401
func (h *V1Handler) currentUser(w http.ResponseWriter, r *http.Request) (*models.AuthenticatedUser, bool) {
	user, err := middleware.GetUserFromRequest(r)
	if err != nil {
		utils.RespondWithCodedError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return nil, false
	}
	return user, true
}

// scope resolves the data scope of the request's user or writes the error
func (h *V1Handler) scope(w http.ResponseWriter, r *http.Request, user *models.AuthenticatedUser, resource models.ResourceType) (services.Scope, bool) {
	scope, err := h.agents.ScopeFor(r.Context(), user)
	if err != nil {
		h.handleError(w, r, err, resource, nil)
		return services.Scope{}, false
	}
	return scope, true
}

// decodeJSON reads a bounded JSON body or writes 400
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := utils.DecodeJSONBody(r, dst); err != nil {
		utils.RespondWithCodedError(w, http.StatusBadRequest, "INVALID_BODY", fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// handleError writes the error response and reports the failure to the log, the user and the audit stream
func (h *V1Handler) handleError(w http.ResponseWriter, r *http.Request, err error, resource models.ResourceType, resourceID *string) {
	apiErr := apperrors.GetAPIError(err)
	if apiErr == nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			apiErr = apperrors.ValidationError("BODY_TOO_LARGE", "Request body is too large")
			apiErr.HTTPStatus = http.StatusRequestEntityTooLarge
		} else {
			apiErr = apperrors.InternalErrorWithCause("Internal server error", err)
		}
	}

	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err, "path", r.URL.Path, "method", r.Method, "requestID", models.GetRequestID(r.Context()))
	} else {
		slog.Warn("Request rejected", "error", err, "code", apiErr.Code, "path", r.URL.Path, "method", r.Method)
	}

	if user, ok := models.GetAuthenticatedUser(r.Context()); ok {
		h.notify(r.Context(), user.UserID, models.NotificationError, "Something went wrong", apiErr.Message)
	}
	h.audit(r, middleware.AuditEntry{Resource: resource, ResourceID: resourceID, Status: models.AuditStatusFailure})

	writeAPIError(w, r, apiErr)
}

// succeed records the audit event and user notification for a completed write, then responds
func (h *V1Handler) succeed(w http.ResponseWriter, r *http.Request, status int, body interface{}, entry middleware.AuditEntry, title string) {
	if entry.Resource != "" {
		entry.Status = models.AuditStatusSuccess
		h.audit(r, entry)
	}
	if title != "" {
		if user, ok := models.GetAuthenticatedUser(r.Context()); ok {
			h.notify(r.Context(), user.UserID, models.NotificationSuccess, title, "")
		}
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}
	utils.RespondWithSuccess(w, status, body)
}

func (h *V1Handler) notify(ctx context.Context, userID, level, title, message string) {
	if err := h.notifier.Notify(ctx, userID, models.Notification{Level: level, Title: title, Message: message}); err != nil {
		slog.Warn("Failed to deliver notification", "userID", userID, "error", err)
	}
}

func (h *V1Handler) audit(r *http.Request, entry middleware.AuditEntry) {
	middleware.LogAudit(h.auditor, r, entry)
}

func idParam(r *http.Request) *string {
	id := chi.URLParam(r, "id")
	return &id
}

func writeAPIError(w http.ResponseWriter, r *http.Request, apiErr *apperrors.APIError) {
	utils.RespondWithJSON(w, apiErr.HTTPStatus, apperrors.NewErrorResponse(apiErr, models.GetRequestID(r.Context())))
}

func streamingUnsupported() *apperrors.APIError {
	return apperrors.NewAPIError(apperrors.ErrorTypeInternal, "STREAMING_UNSUPPORTED", "Change stream is not available", http.StatusNotImplemented)
}
