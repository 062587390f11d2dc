package handlers

import (
	"net/http"

	auditpkg "github.com/concierge-tc/portal-backend/shared/audit"
	"github.com/concierge-tc/portal-backend/v1/middleware"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/go-chi/chi/v5"
)

func (h *V1Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeTransactions, nil)
		return
	}
	scope, ok := h.scope(w, r, user, models.ResourceTypeTransactions)
	if !ok {
		return
	}

	cards, err := h.transactions.ListCards(r.Context(), scope, q)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeTransactions, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, map[string]interface{}{"transactions": cards, "count": len(cards)}, middleware.AuditEntry{}, "")
}

func (h *V1Handler) transactionProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeTransactions, nil)
		return
	}
	scope, ok := h.scope(w, r, user, models.ResourceTypeTransactions)
	if !ok {
		return
	}

	view, err := h.transactions.Progress(r.Context(), scope, q)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeTransactions, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, view, middleware.AuditEntry{}, "")
}

func (h *V1Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	scope, ok := h.scope(w, r, user, models.ResourceTypeTransactions)
	if !ok {
		return
	}
	txn, err := h.transactions.GetTransaction(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeTransactions, idParam(r))
		return
	}
	h.succeed(w, r, http.StatusOK, txn, middleware.AuditEntry{}, "")
}

func (h *V1Handler) updateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateTransactionStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scope, ok := h.scope(w, r, user, models.ResourceTypeTransactions)
	if !ok {
		return
	}

	txn, err := h.transactions.UpdateStatus(r.Context(), scope, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeTransactions, idParam(r))
		return
	}
	h.succeed(w, r, http.StatusOK, txn,
		middleware.AuditEntry{Resource: models.ResourceTypeTransactions, ResourceID: &txn.TransactionID,
			Metadata: map[string]interface{}{"status": req.Status}},
		"Transaction status updated")
}

func (h *V1Handler) bulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.BulkStatusUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.transactions.BulkUpdateStatus(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeTransactions, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, resp,
		middleware.AuditEntry{EventType: auditpkg.EventTypeBulk, Resource: models.ResourceTypeTransactions,
			Metadata: map[string]interface{}{"status": req.Status, "requested": resp.Requested, "updated": resp.Updated}},
		"Transactions updated")
}

func (h *V1Handler) reassignTransactions(w http.ResponseWriter, r *http.Request) {
	var req models.ReassignTransactionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.transactions.Reassign(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeTransactions, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, resp,
		middleware.AuditEntry{EventType: auditpkg.EventTypeBulk, Resource: models.ResourceTypeTransactions,
			Metadata: map[string]interface{}{"agentId": req.AgentID, "updated": resp.Updated}},
		"Transactions reassigned")
}

func (h *V1Handler) agentPerformance(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, nil)
		return
	}
	stats, err := h.transactions.AgentPerformance(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeAgents, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, map[string]interface{}{"agents": stats}, middleware.AuditEntry{}, "")
}
