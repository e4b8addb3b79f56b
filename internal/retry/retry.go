// Package retry holds the fetch retry policies selectable by configuration.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/eapache/go-resiliency/retrier"

	"github.com/mohammed-shakir/sportmap/internal/core/config"
)

// ErrPermanent marks failures that no policy may retry, such as 4xx replies.
var ErrPermanent = errors.New("permanent failure")

type Policy interface {
	Name() string
	Do(ctx context.Context, fn func(context.Context) error) error
}

type Factory func(cfg config.Config, logger *slog.Logger) (Policy, error)

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

// Names lists the registered policies.
func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func New(name string, cfg config.Config, logger *slog.Logger) (Policy, error) {
	if f, ok := reg[name]; ok {
		return f(cfg, logger)
	}
	if f, ok := reg["none"]; ok {
		logger.Warn("unknown retry policy; falling back to none", "policy", name, "known", Names())
		return f(cfg, logger)
	}
	return nil, fmt.Errorf("no factory for retry policy %q and no default registered", name)
}

func init() {
	Register("none", func(config.Config, *slog.Logger) (Policy, error) { return None{}, nil })
	Register("fixed", func(cfg config.Config, logger *slog.Logger) (Policy, error) {
		if cfg.RetryAttempts < 1 {
			return nil, fmt.Errorf("fixed retry needs at least 1 attempt, got %d", cfg.RetryAttempts)
		}
		return NewFixed(cfg.RetryAttempts, cfg.RetryDelay, logger), nil
	})
}

// None runs fn once. The user re-triggers a failed fetch by re-toggling.
type None struct{}

func (None) Name() string { return "none" }

func (None) Do(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// Fixed runs fn up to Attempts times with a constant Delay between tries.
// Permanent failures stop it at once; on cancellation the last fetch error
// is returned.
type Fixed struct {
	Attempts int
	Delay    time.Duration

	logger *slog.Logger
	r      *retrier.Retrier
}

func NewFixed(attempts int, delay time.Duration, logger *slog.Logger) *Fixed {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := retrier.New(retrier.ConstantBackoff(attempts-1, delay), retrier.BlacklistClassifier{ErrPermanent})
	return &Fixed{
		Attempts: attempts,
		Delay:    delay,
		logger:   logger,
		r:        r.WithSurfaceWorkErrors(),
	}
}

func (*Fixed) Name() string { return "fixed" }

func (f *Fixed) Do(ctx context.Context, fn func(context.Context) error) error {
	return f.r.RunFn(ctx, func(ctx context.Context, retries int) error {
		if retries > 0 {
			f.logger.DebugContext(ctx, "retrying fetch", "attempt", retries+1, "of", f.Attempts)
		}
		return fn(ctx)
	})
}
