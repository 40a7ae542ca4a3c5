package handlers

import (
	"encoding/json"
	"net/http"

	"learnhub/http/middleware"
	"learnhub/http/response"
	"learnhub/models"
	"learnhub/services"
	"learnhub/store"
)

// PaymentHandler serves checkout, the synchronous verify path and payment
// listing.
type PaymentHandler struct {
	payments    *services.PaymentService
	paymentRepo store.PaymentRepository
}

func NewPaymentHandler(payments *services.PaymentService, paymentRepo store.PaymentRepository) *PaymentHandler {
	return &PaymentHandler{payments: payments, paymentRepo: paymentRepo}
}

// Checkout opens a gateway order for the authenticated user and course.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		response.ErrorResponse(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var req struct {
		CourseID string `json:"course_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.CourseID == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "course_id is required")
		return
	}

	order, err := h.payments.Checkout(r.Context(), actor.UID, req.CourseID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Checkout order created", order)
}

// Verify is the synchronous client-side confirmation path.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "order_id and payment_id are required")
		return
	}

	result, err := h.payments.Verify(r.Context(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Payment verified", result)
}

// List returns an institution's payments for dashboards. Admin only.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	_, payments, ok := h.institutionPayments(w, r)
	if !ok {
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Payments retrieved", payments)
}

// institutionPayments resolves the institution scope and loads its
// payments; shared by List and the report export.
func (h *PaymentHandler) institutionPayments(w http.ResponseWriter, r *http.Request) (models.Actor, []models.Payment, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		response.ErrorResponse(w, http.StatusUnauthorized, "missing caller identity")
		return models.Actor{}, nil, false
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperadmin {
		response.ErrorResponse(w, http.StatusForbidden, "admin role required")
		return models.Actor{}, nil, false
	}

	institutionID := r.URL.Query().Get("institution_id")
	if institutionID == "" {
		institutionID = actor.InstitutionID
	}
	if institutionID != actor.InstitutionID && !actor.CrossInstitution() {
		response.ErrorResponse(w, http.StatusForbidden, "institution out of scope")
		return models.Actor{}, nil, false
	}

	payments, err := h.paymentRepo.ListByInstitution(r.Context(), institutionID)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error fetching payments")
		return models.Actor{}, nil, false
	}
	return actor, payments, true
}
