package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"learnhub/cache"
	"learnhub/http/middleware"
	"learnhub/http/response"
	"learnhub/models"
	"learnhub/services"
)

const verifyCacheTTL = 10 * time.Minute

// CertificateHandler serves issuance and public verification.
type CertificateHandler struct {
	certificates *services.CertificateService
	verifyCache  *cache.Cache
}

func NewCertificateHandler(certificates *services.CertificateService, verifyCache *cache.Cache) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, verifyCache: verifyCache}
}

// Issue triggers the issuance pipeline for an enrollment. An enrollment
// that already has a certificate answers 409 carrying the existing id.
func (h *CertificateHandler) Issue(w http.ResponseWriter, r *http.Request) {
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
		EnrollmentID string   `json:"enrollment_id"`
		Grade        string   `json:"grade,omitempty"`
		FinalScore   *float64 `json:"final_score,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.EnrollmentID == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "enrollment_id is required")
		return
	}

	result, err := h.certificates.Issue(r.Context(), actor, req.EnrollmentID, req.Grade, req.FinalScore)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if result.AlreadyIssued {
		response.SendJSON(w, http.StatusConflict, response.StandardResponse{
			Status:  "conflict",
			Message: "Certificate already issued",
			Data:    result,
		})
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Certificate issued", result)
}

// Verify is the public, unauthenticated verification endpoint behind the
// URL printed on every certificate.
func (h *CertificateHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	certID := r.URL.Query().Get("id")
	if certID == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "Certificate ID is required")
		return
	}

	cacheKey := "cert:verify:" + certID
	var cached models.Certificate
	if found, err := h.verifyCache.GetJSON(r.Context(), cacheKey, &cached); err == nil && found {
		response.SuccessResponse(w, http.StatusOK, "Certificate found", cached)
		return
	}

	cert, err := h.certificates.Lookup(r.Context(), certID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	// Best-effort; a cache error never fails the lookup.
	_ = h.verifyCache.SetJSON(r.Context(), cacheKey, cert, verifyCacheTTL)

	response.SuccessResponse(w, http.StatusOK, "Certificate found", cert)
}
