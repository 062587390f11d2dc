package handlers

import (
	"net/http"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/v1/middleware"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/go-chi/chi/v5"
)

func (h *V1Handler) startWizard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	session, err := h.wizards.Start(r.Context(), models.WizardKind(chi.URLParam(r, "kind")), user)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeWizards, nil)
		return
	}
	h.succeed(w, r, http.StatusCreated, session,
		middleware.AuditEntry{Resource: models.ResourceTypeWizards, ResourceID: &session.SessionID,
			Metadata: map[string]interface{}{"kind": session.Kind}},
		"")
}

func (h *V1Handler) getWizard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	session, err := h.wizards.Get(r.Context(), chi.URLParam(r, "sessionID"), user)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeWizards, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, session, middleware.AuditEntry{}, "")
}

func (h *V1Handler) updateWizardStep(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateWizardStepRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.wizards.UpdateStep(r.Context(), chi.URLParam(r, "sessionID"), user, chi.URLParam(r, "stepID"), req.Data)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeWizards, nil)
		return
	}
	// step edits are auto-saves, too frequent to audit
	h.succeed(w, r, http.StatusOK, session, middleware.AuditEntry{}, "")
}

func (h *V1Handler) nextWizardStep(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	session, err := h.wizards.Next(r.Context(), chi.URLParam(r, "sessionID"), user)
	if err != nil {
		h.respondWizardError(w, r, err)
		return
	}
	h.succeed(w, r, http.StatusOK, session, middleware.AuditEntry{}, "")
}

func (h *V1Handler) previousWizardStep(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	session, err := h.wizards.Previous(r.Context(), chi.URLParam(r, "sessionID"), user)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeWizards, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, session, middleware.AuditEntry{}, "")
}

func (h *V1Handler) submitWizard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.wizards.Submit(r.Context(), sessionID, user)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeWizards, &sessionID)
		return
	}

	resource := models.ResourceTypeTransactions
	title := "Transaction created"
	if session.Kind == models.WizardKindOffer {
		resource = models.ResourceTypeOffers
		title = "Offer created"
	}
	h.succeed(w, r, http.StatusOK, session,
		middleware.AuditEntry{Resource: resource, ResourceID: &session.ResultID,
			Metadata: map[string]interface{}{"sessionId": sessionID}},
		title)
}

// respondWizardError answers an incomplete step without notifying or auditing it; the field errors are the feedback
func (h *V1Handler) respondWizardError(w http.ResponseWriter, r *http.Request, err error) {
	if apiErr := apperrors.GetAPIError(err); apiErr != nil && apiErr.HTTPStatus == http.StatusUnprocessableEntity {
		writeAPIError(w, r, apiErr)
		return
	}
	h.handleError(w, r, err, models.ResourceTypeWizards, nil)
}
