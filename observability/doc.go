// Package observability wires OpenTelemetry tracing and metrics for the
// transcription pipeline.
//
//	p := observability.NewProvider(cfg.Observability, "whisper-server", version.Get().Version, log)
//	_ = p.Start(ctx)
//	defer p.Stop(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
//	defer observability.EndSpan(span, err)
//
// When export is disabled the global providers stay no-ops, so spans and
// instruments can be used unconditionally.
package observability
