package http

import (
	"log/slog"

	"github.com/go-api-accounts/internal/application/account"
	"github.com/go-api-accounts/internal/application/auth"
	"github.com/go-api-accounts/internal/metrics"
	"github.com/go-api-accounts/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps holds the services and infrastructure the router wires into handlers.
type Deps struct {
	Auth     auth.Service
	Accounts account.Service
	Tokens   middleware.TokenVerifier
	Logger   *slog.Logger

	// Metrics and Gatherer are optional. Without a Gatherer /metrics is not mounted.
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
}
