package lightcurve

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultPrewarmWorkers bounds concurrent downloads during a pre-warm pass.
const DefaultPrewarmWorkers = 2

// PrewarmResult is the outcome for one target of a pre-warm pass.
type PrewarmResult struct {
	Target   string        `json:"target"`
	Path     string        `json:"path,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (r PrewarmResult) OK() bool { return r.Error == "" }

// Prewarm resolves every target on a bounded worker pool. A failing target
// is logged and recorded; it never stops the remaining ones. Results keep
// the order of targets.
func Prewarm(ctx context.Context, r *Resolver, targets []string, workers int, logger zerolog.Logger) []PrewarmResult {
	if workers <= 0 {
		workers = DefaultPrewarmWorkers
	}
	logger = logger.With().Str("component", "prewarm").Logger()

	results := make([]PrewarmResult, len(targets))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, target := range targets {
		g.Go(func() error {
			start := time.Now()
			res := PrewarmResult{Target: target}

			if err := ctx.Err(); err != nil {
				res.Error = err.Error()
				results[i] = res
				return nil
			}

			path, err := r.Resolve(ctx, target)
			res.Duration = time.Since(start)
			if err != nil {
				res.Error = err.Error()
				logger.Warn().Err(err).Str("target", target).Msg("pre-cache failed")
			} else {
				res.Path = path
				logger.Info().Str("target", target).Str("path", path).Msg("pre-cached")
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, res := range results {
		if res.OK() {
			ok++
		}
	}
	logger.Info().Int("ok", ok).Int("failed", len(results)-ok).Msg("pre-cache pass finished")
	return results
}
