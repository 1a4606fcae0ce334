// Package observability provides OpenTelemetry tracing and RED metrics
// for the orchestrator. It implements production-ready observability
// following cloud-native best practices.
//
// # Tracing
//
// Initialize the provider at application startup:
//
//	obs, err := observability.New(ctx, observability.DefaultConfig())
//	defer obs.Shutdown(ctx)
//
// Create spans manually:
//
//	ctx, span := obs.StartSpan(ctx, "operation_name")
//	defer span.End()
//
// # Metrics
//
// The provider records RED metrics (Rate, Errors, Duration) for
// operations wrapped with TrackOperation or the TrackAgentRun,
// TrackConductorTransition and TrackRepairAttempt helpers; a span opened
// with StartSpan alone records no metrics.
package observability
