package build

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/notify"
)

func (b *Builder) summarize(report *Report, logger *slog.Logger) {
	attrs := []any{
		slog.String("status", string(report.Status)),
		slog.Int("built", len(report.Built)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)),
		slog.Int("aggregates_written", len(report.Aggregates)),
		slog.Int("aggregates_skipped", report.AggregatesSkipped),
		slog.Int("metadata_cache_hits", report.MetadataCacheHits),
		logfields.DurationMS(float64(report.Duration.Microseconds()) / 1000),
	}
	if report.Status.IsSuccess() {
		logger.Info("Build complete", attrs...)
		return
	}
	for _, f := range report.Failed {
		logger.Debug("Failed post", logfields.Post(f.Post), logfields.Error(f.Err))
	}
	logger.Warn("Build finished with errors", attrs...)
}

// publish announces the report. Notification problems never fail a build.
func (b *Builder) publish(ctx context.Context, report *Report, logger *slog.Logger) {
	pub := b.publisher
	if pub == nil {
		var err error
		pub, err = notify.New(b.cfg.Notify, logger)
		if err != nil {
			logger.Warn("Build notification skipped", logfields.Error(err))
			return
		}
		defer func() { _ = pub.Close() }()
	}
	if err := pub.Publish(ctx, report.Event()); err != nil {
		logger.Warn("Build notification failed", logfields.Error(err))
	}
}
