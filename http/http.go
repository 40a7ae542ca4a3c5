package http

import (
	"net/http"

	"learnhub/http/handlers"
	"learnhub/http/middleware"
	"learnhub/store"
)

// Handlers bundles the constructed handlers the router wires up.
type Handlers struct {
	Webhook     *handlers.WebhookHandler
	Payment     *handlers.PaymentHandler
	Certificate *handlers.CertificateHandler
	Enrollment  *handlers.EnrollmentHandler
}

// SetupRoutes registers all HTTP routes and middleware on the default mux.
func SetupRoutes(h Handlers, catalog store.CatalogRepository, filesRoot string) {
	// Issued certificate files are public by design: anyone holding the
	// link may read them, no authentication.
	http.Handle("/files/", http.StripPrefix("/files/",
		http.FileServer(http.Dir(filesRoot))))

	// Gateway webhook; authenticated by signature, not by session.
	http.HandleFunc("/webhooks/razorpay", h.Webhook.Handle)

	// Payment APIs
	http.HandleFunc("/checkout", middleware.EnableCORS(middleware.RequireAuth(catalog, h.Payment.Checkout)))
	http.HandleFunc("/verify-payment", middleware.EnableCORS(h.Payment.Verify))
	http.HandleFunc("/payments", middleware.EnableCORS(middleware.RequireAuth(catalog, h.Payment.List)))
	http.HandleFunc("/payments/export", middleware.EnableCORS(middleware.RequireAuth(catalog, h.Payment.ExportPayments)))

	// Enrollment APIs
	http.HandleFunc("/enrollments", middleware.EnableCORS(middleware.RequireAuth(catalog, h.Enrollment.List)))

	// Certificate APIs
	http.HandleFunc("/certificates/issue", middleware.EnableCORS(middleware.RequireAuth(catalog, h.Certificate.Issue)))
	http.HandleFunc("/certificates/verify", middleware.EnableCORS(h.Certificate.Verify))
}
