package lightcurve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"keplerhub/pkg/models"
)

const (
	DefaultMission  = "Kepler"
	DefaultTimeout  = 60 * time.Second
	DefaultCacheDir = "lightcurves"
)

// Archive is the external search + download capability. Search returns an
// empty slice when nothing matches; Download returns a nil series when the
// product holds no data.
type Archive interface {
	Search(ctx context.Context, target, mission string) ([]models.DataProduct, error)
	Download(ctx context.Context, product models.DataProduct) (*models.LightCurve, error)
}

// Recorder receives one observation per Resolve call.
type Recorder interface {
	RecordResolve(ctx context.Context, outcome string, fetch time.Duration)
}

// Resolve outcomes reported to the Recorder.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeInvalid = "invalid"
	OutcomeTimeout = "timeout"
	OutcomeNoData  = "no_data"
	OutcomeError   = "error"
)

type Config struct {
	CacheDir string
	Timeout  time.Duration
	Mission  string
}

func (c Config) withDefaults() Config {
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Mission == "" {
		c.Mission = DefaultMission
	}
	return c
}

// Resolver owns the cache directory and turns target names into PNG paths.
type Resolver struct {
	cfg      Config
	archive  Archive
	renderer Renderer
	notifier Notifier
	recorder Recorder
	logger   zerolog.Logger
}

type Option func(*Resolver)

func WithRenderer(r Renderer) Option { return func(rs *Resolver) { rs.renderer = r } }
func WithNotifier(n Notifier) Option { return func(rs *Resolver) { rs.notifier = n } }
func WithRecorder(r Recorder) Option { return func(rs *Resolver) { rs.recorder = r } }
func WithLogger(l zerolog.Logger) Option {
	return func(rs *Resolver) { rs.logger = l.With().Str("component", "lightcurve").Logger() }
}

func NewResolver(cfg Config, archive Archive, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:      cfg.withDefaults(),
		archive:  archive,
		renderer: NewPNGRenderer(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config { return r.cfg }

// Resolve returns the absolute path of the cached plot for rawTarget,
// fetching and rendering it on first use.
func (r *Resolver) Resolve(ctx context.Context, rawTarget string) (string, error) {
	return r.ResolveInto(ctx, rawTarget, "")
}

// ResolveInto is Resolve with a cache directory override; "" uses the
// configured directory.
func (r *Resolver) ResolveInto(ctx context.Context, rawTarget, cacheDir string) (string, error) {
	target, err := Validate(rawTarget)
	if err != nil {
		r.record(ctx, OutcomeInvalid, 0)
		return "", err
	}
	r.logger.Debug().Str("raw", rawTarget).Str("target", target).Msg("normalized target")

	dir := cacheDir
	if dir == "" {
		dir = r.cfg.CacheDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	path, err := filepath.Abs(filepath.Join(dir, ToFilename(target)))
	if err != nil {
		return "", fmt.Errorf("resolve cache path: %w", err)
	}

	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		r.logger.Debug().Str("path", path).Msg("cache hit")
		r.record(ctx, OutcomeHit, 0)
		return path, nil
	}

	r.logger.Info().Str("target", target).Msg("downloading light curve")
	start := time.Now()
	lc, err := r.fetch(ctx, target)
	elapsed := time.Since(start)
	if err != nil {
		r.record(ctx, outcomeFor(err), elapsed)
		r.notify(Event{Type: EventFailed, Target: target, Error: err.Error(), At: time.Now().UTC()})
		return "", err
	}

	if err := r.persist(lc, target, path); err != nil {
		r.record(ctx, OutcomeError, elapsed)
		r.notify(Event{Type: EventFailed, Target: target, Error: err.Error(), At: time.Now().UTC()})
		return "", err
	}

	r.logger.Info().Str("path", path).Dur("fetch", elapsed).Msg("saved light curve")
	r.record(ctx, OutcomeMiss, elapsed)
	r.notify(Event{Type: EventReady, Target: target, File: filepath.Base(path), At: time.Now().UTC()})
	return path, nil
}

// fetch runs search + download on its own goroutine and waits for it at most
// cfg.Timeout.
func (r *Resolver) fetch(ctx context.Context, target string) (*models.LightCurve, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	type result struct {
		lc  *models.LightCurve
		err error
	}
	done := make(chan result, 1)

	go func() {
		lc, err := r.searchAndDownload(ctx, target)
		done <- result{lc: lc, err: err}
	}()

	select {
	case res := <-done:
		return res.lc, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q after %s", ErrFetchTimeout, target, r.cfg.Timeout)
		}
		return nil, fmt.Errorf("%w: %q: %w", ErrUnexpectedFetch, target, ctx.Err())
	}
}

func (r *Resolver) searchAndDownload(ctx context.Context, target string) (*models.LightCurve, error) {
	products, err := r.archive.Search(ctx, target, r.cfg.Mission)
	if err != nil {
		return nil, classifyFetchError(target, err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf(
			"%w: no %s light curve for %q, verify the name at https://exoplanetarchive.ipac.caltech.edu/",
			ErrNoData, r.cfg.Mission, target,
		)
	}

	lc, err := r.archive.Download(ctx, products[0])
	if err != nil {
		return nil, classifyFetchError(target, err)
	}
	if lc.Len() == 0 {
		return nil, fmt.Errorf("%w: download returned no data for %q", ErrNoData, target)
	}
	// lc belongs to the archive and may be shared; it is only read from here on
	return lc, nil
}

// classifyFetchError keeps timeouts and our own kinds intact and wraps
// everything else.
func classifyFetchError(target string, err error) error {
	switch {
	case errors.Is(err, ErrNoData), errors.Is(err, ErrFetchTimeout), errors.Is(err, ErrUnexpectedFetch):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %q: %w", ErrFetchTimeout, target, err)
	default:
		return fmt.Errorf("%w: failed to fetch light curve for %q: %w", ErrUnexpectedFetch, target, err)
	}
}

// persist renders into a temp file next to path and renames it into place,
// so a failed render never leaves a partial PNG behind.
func (r *Resolver) persist(lc *models.LightCurve, target, path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp plot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err = r.renderer.Render(tmp, lc, PlotTitle(target)); err != nil {
		return fmt.Errorf("render %q: %w", target, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp plot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp plot: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("commit plot: %w", err)
	}
	return nil
}

func (r *Resolver) record(ctx context.Context, outcome string, d time.Duration) {
	if r.recorder != nil {
		r.recorder.RecordResolve(ctx, outcome, d)
	}
}

func (r *Resolver) notify(ev Event) {
	if r.notifier != nil {
		r.notifier.Notify(ev)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTarget):
		return OutcomeInvalid
	case errors.Is(err, ErrFetchTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrNoData):
		return OutcomeNoData
	default:
		return OutcomeError
	}
}

// PlotTitle is the figure title for a canonical target.
func PlotTitle(target string) string {
	return target + " - Kepler Light Curve"
}
