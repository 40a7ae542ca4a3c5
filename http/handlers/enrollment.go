package handlers

import (
	"net/http"

	"learnhub/http/middleware"
	"learnhub/http/response"
	"learnhub/models"
	"learnhub/store"
)

// EnrollmentHandler serves enrollment listing for dashboards.
type EnrollmentHandler struct {
	enrollments store.EnrollmentRepository
	catalog     store.CatalogRepository
}

func NewEnrollmentHandler(enrollments store.EnrollmentRepository, catalog store.CatalogRepository) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, catalog: catalog}
}

// List returns a user's enrollments. Students can only list their own;
// staff may list any user within their own institution; only superadmins
// cross institution boundaries.
func (h *EnrollmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		response.ErrorResponse(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor.UID
	}
	if userID != actor.UID {
		if actor.Role == models.RoleStudent {
			response.ErrorResponse(w, http.StatusForbidden, "students may only list their own enrollments")
			return
		}
		if !actor.CrossInstitution() {
			user, err := h.catalog.UserByID(r.Context(), userID)
			if err != nil {
				response.ErrorResponse(w, http.StatusForbidden, "user out of scope")
				return
			}
			if user.InstitutionID != actor.InstitutionID {
				response.ErrorResponse(w, http.StatusForbidden, "user belongs to another institution")
				return
			}
		}
	}

	enrollments, err := h.enrollments.ListByUser(r.Context(), userID)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error fetching enrollments")
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Enrollments retrieved", enrollments)
}
