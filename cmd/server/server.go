// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tbeckett/slotwizard/internal/api"
	wizardapi "github.com/tbeckett/slotwizard/internal/api/wizard"
	"github.com/tbeckett/slotwizard/internal/config"
)

func newServer(cfg *config.Config) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	// Register routes
	registerRoutes(router)

	return &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.App.Port),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Preview and apply wait on the optimizer, which can take up to a
		// minute on large divisions.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Division lookup for session creation
	mux.HandleFunc("GET /api/v1/divisions", wizardapi.HandleDivisions)

	// Session lifecycle
	mux.HandleFunc("POST /api/v1/wizard/sessions", wizardapi.HandleCreateSession)
	mux.HandleFunc("GET /api/v1/wizard/sessions/{id}", wizardapi.HandleGetSession)
	mux.HandleFunc("DELETE /api/v1/wizard/sessions/{id}", wizardapi.HandleDeleteSession)

	// Step configuration
	mux.HandleFunc("PUT /api/v1/wizard/sessions/{id}/basics", wizardapi.HandleUpdateBasics)
	mux.HandleFunc("PUT /api/v1/wizard/sessions/{id}/postseason", wizardapi.HandleUpdatePostseason)
	mux.HandleFunc("PUT /api/v1/wizard/sessions/{id}/rules", wizardapi.HandleUpdateRules)
	mux.HandleFunc("PUT /api/v1/wizard/sessions/{id}/blocked", wizardapi.HandleUpdateBlocked)
	mux.HandleFunc("PUT /api/v1/wizard/sessions/{id}/anchors", wizardapi.HandleUpdateAnchors)

	// Slot plan
	mux.HandleFunc("POST /api/v1/wizard/sessions/{id}/slots/load", wizardapi.HandleLoadSlots)
	mux.HandleFunc("GET /api/v1/wizard/sessions/{id}/patterns", wizardapi.HandleListPatterns)
	mux.HandleFunc("PATCH /api/v1/wizard/sessions/{id}/patterns", wizardapi.HandlePatternEdit)
	mux.HandleFunc("POST /api/v1/wizard/sessions/{id}/patterns/autorank", wizardapi.HandleAutoRank)
	mux.HandleFunc("POST /api/v1/wizard/sessions/{id}/patterns/bulk", wizardapi.HandleBulkType)

	// Derived state
	mux.HandleFunc("GET /api/v1/wizard/sessions/{id}/capacity", wizardapi.HandleCapacity)
	mux.HandleFunc("GET /api/v1/wizard/sessions/{id}/steps", wizardapi.HandleSteps)

	// Schedule computation and export
	mux.HandleFunc("POST /api/v1/wizard/sessions/{id}/preview", wizardapi.HandlePreview)
	mux.HandleFunc("POST /api/v1/wizard/sessions/{id}/apply", wizardapi.HandleApply)
	mux.HandleFunc("GET /api/v1/wizard/sessions/{id}/export", wizardapi.HandleExport)
}
