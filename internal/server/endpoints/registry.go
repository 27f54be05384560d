package endpoints

import (
	"github.com/jackzampolin/wordfmt/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// SwaggerSpecPath serves an OpenAPI file from disk instead of the
	// embedded copy.
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Formatting
		&FormatEndpoint{},
		&FormatUploadEndpoint{},
		&ExtractEndpoint{},

		// Downloads
		&GetDownloadEndpoint{},
		&ListDownloadsEndpoint{},

		// Cache
		&GetCacheEntryEndpoint{},

		// Prompts
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},

		// Metrics
		&ListMetricsEndpoint{},
		&MetricsSummaryEndpoint{},

		&ListProvidersEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}
