package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/dialect"
)

// Executor runs compiled aggregates. Implementations bind :named parameters for their driver.
type Executor interface {
	Query(ctx context.Context, sql string, args map[string]interface{}) ([]Row, error)
	Dialect() dialect.Dialect
}

type Options struct {
	TipProbability float64
	Seed           int64
}

func OptionsFromConfig(cfg internal.RouterConfig) Options {
	return Options{TipProbability: cfg.TipProbability, Seed: cfg.Seed}
}

// Answer is the router's reply. Matched is false for IntentUnmatched, which callers hand to
// the assistant instead.
type Answer struct {
	Intent   Intent      `json:"query_type"`
	Matched  bool        `json:"-"`
	Response string      `json:"response"`
	Data     interface{} `json:"data,omitempty"`
}

type Router struct {
	exec   Executor
	tips   *TipPicker
	logger *slog.Logger
	now    func() time.Time
}

func NewRouter(exec Executor, opts Options, logger *slog.Logger) *Router {
	return &Router{
		exec:   exec,
		tips:   NewTipPicker(opts.TipProbability, opts.Seed),
		logger: logger,
		now:    time.Now,
	}
}

func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

func (r *Router) Answer(ctx context.Context, userID int64, utterance string) (*Answer, error) {
	m := Classify(utterance)
	if m.Intent == IntentUnmatched {
		return &Answer{Intent: IntentUnmatched}, nil
	}

	compiled, err := Compile(m, userID, r.now(), r.exec.Dialect())
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidPeriod)
	}
	rows, err := r.exec.Query(ctx, compiled.SQL, compiled.Args)
	if err != nil {
		r.logger.Error("query execution failed", "error", err, "intent", compiled.Intent, "user_id", userID)
		return nil, fmt.Errorf("failed to run %s query: %w", compiled.Intent, err)
	}

	out := format(compiled, rows)
	response := out.text
	if out.tip != "" {
		response += "\n\n" + out.tip
	} else if tip, ok := r.tips.Maybe(); ok {
		response += "\n\n" + tip
	}

	r.logger.Debug("query answered", "intent", compiled.Intent, "user_id", userID, "rows", len(rows))
	return &Answer{
		Intent:   compiled.Intent,
		Matched:  true,
		Response: response,
		Data:     out.data,
	}, nil
}
