package api

import (
	"net/http"

	"github.com/JaimeStill/triage/internal/chat"
	"github.com/JaimeStill/triage/internal/classifier"
	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/internal/infrastructure"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	HTTPClient *http.Client
	Pagination pagination.Config
	Classifier classifier.Config
	Chat       chat.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Identity:  infra.Identity,
		},
		HTTPClient: &http.Client{},
		Pagination: cfg.API.Pagination,
		Classifier: cfg.Classifier,
		Chat:       cfg.Chat,
	}
}
