// Package observability provides structured logging, Prometheus metrics, and
// health checks for the federation gateway.
//
// # Overview
//
// Logging uses stdlib slog with a JSON handler behind a small wrapper that
// supports contextual fields. Metrics cover the HTTP surface plus the
// federation flows themselves: login outcomes per provider, state token
// failures by kind, auto-provisioned users, and issued sessions. Health
// checks probe the database and Redis.
//
// # Usage Example
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	logger.WithField("tenant_id", tenantID).Info("login initiated")
//
// # Related Packages
//
//   - pkg/sso: records login and state failure metrics
//   - pkg/middleware: HTTP instrumentation
package observability
