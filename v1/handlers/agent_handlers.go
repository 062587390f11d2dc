package handlers

import (
	"io"
	"mime"
	"net/http"
	"strings"

	auditpkg "github.com/concierge-tc/portal-backend/shared/audit"
	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/v1/middleware"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/services"
	"github.com/go-chi/chi/v5"
)

func (h *V1Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := services.AgentListQuery{
		InvitationStatus: models.InvitationStatus(query.Get("invitationStatus")),
		AccountStatus:    models.AccountStatus(query.Get("accountStatus")),
		Search:           strings.TrimSpace(query.Get("search")),
	}
	agents, err := h.agents.ListAgents(r.Context(), q)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, map[string]interface{}{"agents": agents, "count": len(agents)}, middleware.AuditEntry{}, "")
}

func (h *V1Handler) inviteAgent(w http.ResponseWriter, r *http.Request) {
	var req models.InviteAgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	agent, err := h.agents.InviteAgent(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, nil)
		return
	}
	h.succeed(w, r, http.StatusCreated, agent,
		middleware.AuditEntry{Resource: models.ResourceTypeAgents, ResourceID: &agent.AgentID,
			Metadata: map[string]interface{}{"setupMethod": agent.SetupMethod}},
		"Agent invited")
}

// getAgent returns a profile. Agent-only users may read their own profile only.
func (h *V1Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	agentID := chi.URLParam(r, "id")
	if !h.ownsAgent(w, r, user, agentID) {
		return
	}
	agent, err := h.agents.GetAgent(r.Context(), agentID)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, &agentID)
		return
	}
	h.succeed(w, r, http.StatusOK, agent, middleware.AuditEntry{}, "")
}

func (h *V1Handler) deleteAgent(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteAgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	agentID := chi.URLParam(r, "id")
	if err := h.agents.DeleteAgent(r.Context(), agentID, req.Confirmation); err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, &agentID)
		return
	}
	h.succeed(w, r, http.StatusNoContent, nil,
		middleware.AuditEntry{Resource: models.ResourceTypeAgents, ResourceID: &agentID},
		"Agent deleted")
}

func (h *V1Handler) updateAgentStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateAgentStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	agentID := chi.URLParam(r, "id")
	agent, err := h.agents.UpdateInvitationStatus(r.Context(), agentID, req.InvitationStatus)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, &agentID)
		return
	}
	h.succeed(w, r, http.StatusOK, agent,
		middleware.AuditEntry{Resource: models.ResourceTypeAgents, ResourceID: &agentID,
			Metadata: map[string]interface{}{"invitationStatus": req.InvitationStatus}},
		"Agent status updated")
}

func (h *V1Handler) bulkAgentAction(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req models.BulkAgentActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.agents.BulkAction(r.Context(), user, req.AgentIDs, req.Action, req.Confirmation)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, nil)
		return
	}

	entry := middleware.AuditEntry{
		EventType: auditpkg.EventTypeBulk,
		Resource:  models.ResourceTypeAgents,
		Metadata: map[string]interface{}{
			"action":       result.Action,
			"successCount": result.SuccessCount,
			"failureCount": result.FailureCount,
		},
	}
	if result.FailureCount > 0 {
		entry.Status = models.AuditStatusFailure
		h.audit(r, entry)
		if user, ok := models.GetAuthenticatedUser(r.Context()); ok {
			h.notify(r.Context(), user.UserID, models.NotificationError, "Some agents could not be updated", "")
		}
		// partial failures still answer 200 with per-item results
		h.succeed(w, r, http.StatusOK, result, middleware.AuditEntry{}, "")
		return
	}
	h.succeed(w, r, http.StatusOK, result, entry, "Bulk action completed")
}

// importAgents accepts text/csv or JSON {"csv": "..."}
func (h *V1Handler) importAgents(w http.ResponseWriter, r *http.Request) {
	var csvText string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" || mediaType == "text/plain" {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			h.handleError(w, r, err, models.ResourceTypeAgents, nil)
			return
		}
		csvText = string(body)
	} else {
		var req models.ImportAgentsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		csvText = req.CSV
	}

	resp, err := h.agents.ImportAgents(r.Context(), csvText)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, resp,
		middleware.AuditEntry{EventType: auditpkg.EventTypeImport, Resource: models.ResourceTypeAgents,
			Metadata: map[string]interface{}{"created": resp.Created, "skipped": resp.Skipped, "failed": resp.Failed}},
		"Agent import finished")
}

func (h *V1Handler) resendSetupLink(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	job, err := h.agents.ResendSetupLink(r.Context(), agentID)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, &agentID)
		return
	}
	h.succeed(w, r, http.StatusAccepted, job,
		middleware.AuditEntry{Resource: models.ResourceTypeAgents, ResourceID: &agentID,
			Metadata: map[string]interface{}{"jobId": job.JobID}},
		"Setup link queued")
}

func (h *V1Handler) completeSetup(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteSetupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	agentID := chi.URLParam(r, "id")
	agent, err := h.agents.CompleteSetup(r.Context(), agentID, req.UserID)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, &agentID)
		return
	}
	h.succeed(w, r, http.StatusOK, agent,
		middleware.AuditEntry{Resource: models.ResourceTypeAgents, ResourceID: &agentID},
		"Agent setup completed")
}

// ownsAgent lets unrestricted users through and limits agent-only users to their own profile.
// Other profiles are reported as not found.
func (h *V1Handler) ownsAgent(w http.ResponseWriter, r *http.Request, user *models.AuthenticatedUser, agentID string) bool {
	scope, ok := h.scope(w, r, user, models.ResourceTypeAgents)
	if !ok {
		return false
	}
	if !scope.Allows(&agentID) {
		h.handleError(w, r, apperrors.NotFoundError("agent"), models.ResourceTypeAgents, &agentID)
		return false
	}
	return true
}
