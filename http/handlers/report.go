package handlers

import (
	"net/http"

	"learnhub/http/response"
	"learnhub/logger"
	"learnhub/services"
)

// ExportPayments streams the institution's payments as an xlsx workbook.
// Same scoping rules as the JSON listing.
func (h *PaymentHandler) ExportPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	_, payments, ok := h.institutionPayments(w, r)
	if !ok {
		return
	}

	report, err := services.BuildPaymentsReport(payments)
	if err != nil {
		logger.Error("Error building payments report: %v", err)
		response.ErrorResponse(w, http.StatusInternalServerError, "Error building report")
		return
	}
	defer report.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="payments.xlsx"`)
	if err := report.Write(w); err != nil {
		logger.Error("Error streaming payments report: %v", err)
	}
}
