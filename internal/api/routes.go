package api

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/triage/internal/identity"
	"github.com/JaimeStill/triage/pkg/routes"
)

// registerRoutes mounts each domain surface behind the role allowed to use
// it. Doctors work the review queue; patients own chat and history.
func registerRoutes(mux *http.ServeMux, domain *Domain, logger *slog.Logger) {
	routes.Register(
		mux,
		restrict(domain.Review.Handler().Routes(), identity.RoleDoctor, logger),
		restrict(domain.History.Handler().Routes(), identity.RolePatient, logger),
		restrict(domain.Chat.Handler().Routes(), identity.RolePatient, logger),
	)
}

func restrict(group routes.Group, role identity.Role, logger *slog.Logger) routes.Group {
	group.Middleware = append(
		[]func(http.Handler) http.Handler{identity.RequireRole(role, logger)},
		group.Middleware...,
	)
	return group
}
