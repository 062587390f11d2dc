package handlers

import (
	"net/http"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/v1/middleware"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/services"
	"github.com/go-chi/chi/v5"
)

func (h *V1Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	agentID := chi.URLParam(r, "id")
	if !h.ownsAgent(w, r, user, agentID) {
		return
	}
	vendors, err := h.vendors.ListVendors(r.Context(), agentID, models.VendorType(r.URL.Query().Get("type")))
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeVendors, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, map[string]interface{}{"vendors": vendors, "count": len(vendors)}, middleware.AuditEntry{}, "")
}

func (h *V1Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req models.CreateVendorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	agentID := chi.URLParam(r, "id")
	if !h.ownsAgent(w, r, user, agentID) {
		return
	}
	vendor, err := h.vendors.CreateVendor(r.Context(), agentID, &req)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeVendors, nil)
		return
	}
	h.succeed(w, r, http.StatusCreated, vendor,
		middleware.AuditEntry{Resource: models.ResourceTypeVendors, ResourceID: &vendor.VendorID,
			Metadata: map[string]interface{}{"vendorType": vendor.VendorType, "primary": vendor.IsPrimary}},
		"Vendor added")
}

// ownsVendor loads the vendor and checks the caller may manage its agent's list
func (h *V1Handler) ownsVendor(w http.ResponseWriter, r *http.Request, vendorID string) bool {
	user, ok := h.currentUser(w, r)
	if !ok {
		return false
	}
	vendor, err := h.vendors.GetVendor(r.Context(), vendorID)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeVendors, &vendorID)
		return false
	}
	scope, ok := h.scope(w, r, user, models.ResourceTypeVendors)
	if !ok {
		return false
	}
	if !scope.Allows(&vendor.AgentID) {
		h.handleError(w, r, apperrors.NotFoundError("vendor"), models.ResourceTypeVendors, &vendorID)
		return false
	}
	return true
}

func (h *V1Handler) updateVendor(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateVendorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vendorID := chi.URLParam(r, "id")
	if !h.ownsVendor(w, r, vendorID) {
		return
	}
	vendor, err := h.vendors.UpdateVendor(r.Context(), vendorID, &req)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeVendors, &vendorID)
		return
	}
	h.succeed(w, r, http.StatusOK, vendor,
		middleware.AuditEntry{Resource: models.ResourceTypeVendors, ResourceID: &vendorID},
		"Vendor updated")
}

func (h *V1Handler) deleteVendor(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "id")
	if !h.ownsVendor(w, r, vendorID) {
		return
	}
	if err := h.vendors.DeleteVendor(r.Context(), vendorID); err != nil {
		h.handleError(w, r, err, models.ResourceTypeVendors, &vendorID)
		return
	}
	h.succeed(w, r, http.StatusNoContent, nil,
		middleware.AuditEntry{Resource: models.ResourceTypeVendors, ResourceID: &vendorID},
		"Vendor removed")
}

func (h *V1Handler) setPrimaryVendor(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "id")
	if !h.ownsVendor(w, r, vendorID) {
		return
	}
	vendor, err := h.vendors.SetPrimary(r.Context(), vendorID)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeVendors, &vendorID)
		return
	}
	h.succeed(w, r, http.StatusOK, vendor,
		middleware.AuditEntry{Resource: models.ResourceTypeVendors, ResourceID: &vendorID,
			Metadata: map[string]interface{}{"primary": true}},
		"Primary vendor changed")
}

func (h *V1Handler) listOffers(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	scope, ok := h.scope(w, r, user, models.ResourceTypeOffers)
	if !ok {
		return
	}
	offers, err := h.offers.ListOffers(r.Context(), scope, models.OfferStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeOffers, nil)
		return
	}
	h.succeed(w, r, http.StatusOK, map[string]interface{}{"offers": offers, "count": len(offers)}, middleware.AuditEntry{}, "")
}

// createOfferRequest carries the offer wizard's step data in one request
type createOfferRequest struct {
	Steps map[string]map[string]interface{} `json:"steps"`
}

func (h *V1Handler) createOffer(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req createOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	offerID, err := h.wizards.SubmitData(r.Context(), models.WizardKindOffer, user, req.Steps)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeOffers, nil)
		return
	}
	offer, err := h.offers.GetOffer(r.Context(), services.Unrestricted, offerID)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeOffers, &offerID)
		return
	}
	h.succeed(w, r, http.StatusCreated, offer,
		middleware.AuditEntry{Resource: models.ResourceTypeOffers, ResourceID: &offerID},
		"Offer created")
}

func (h *V1Handler) getOffer(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	scope, ok := h.scope(w, r, user, models.ResourceTypeOffers)
	if !ok {
		return
	}
	offer, err := h.offers.GetOffer(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeOffers, idParam(r))
		return
	}
	h.succeed(w, r, http.StatusOK, offer, middleware.AuditEntry{}, "")
}

func (h *V1Handler) updateOfferStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateOfferStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scope, ok := h.scope(w, r, user, models.ResourceTypeOffers)
	if !ok {
		return
	}
	offer, err := h.offers.UpdateStatus(r.Context(), scope, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeOffers, idParam(r))
		return
	}
	h.succeed(w, r, http.StatusOK, offer,
		middleware.AuditEntry{Resource: models.ResourceTypeOffers, ResourceID: &offer.OfferID,
			Metadata: map[string]interface{}{"status": req.Status}},
		"Offer status updated")
}
