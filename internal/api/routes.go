package api

import (
	"net/http"

	"github.com/JaimeStill/clearance/internal/config"
	"github.com/JaimeStill/clearance/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) {
	routes.Register(
		mux,
		domain.Shipments.Handler().Routes(),
		domain.Documents.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.Overrides.Handler().Routes(),
		domain.Validation.Handler().Routes(),
	)
}
