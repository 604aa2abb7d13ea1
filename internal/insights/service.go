// Package insights is the user-facing surface over the ledger aggregates, the query router,
// the forecaster, the budget engine and the assistant.
package insights

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/budget"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/frahmantamala/expense-insights/internal/forecast"
	"github.com/frahmantamala/expense-insights/internal/llm"
	"github.com/frahmantamala/expense-insights/internal/query"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const maxMessageLength = 2000

type Spending interface {
	AggregateTotal(ctx context.Context, scope expense.Scope, period *timeframe.Period) (expense.Total, error)
	AggregateByCategory(ctx context.Context, scope expense.Scope, period *timeframe.Period) ([]expense.CategoryTotal, error)
}

type Router interface {
	Answer(ctx context.Context, userID int64, utterance string) (*query.Answer, error)
}

type Assistant interface {
	Chat(ctx context.Context, userID int64, req llm.ChatRequest) *llm.ChatResponse
	Commentary(ctx context.Context, userID int64, level llm.HumorLevel) *llm.ChatResponse
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

type Forecaster interface {
	Forecast(ctx context.Context, userID int64, category *string, horizon int) (*forecast.Forecast, error)
	PredictCurrentFromLast(ctx context.Context, userID int64) (*forecast.Prediction, error)
}

type Budgets interface {
	ComputeUsage(ctx context.Context, userID int64, month, year int) (*budget.Usage, error)
	CheckOverages(ctx context.Context, userID int64, month, year int) (int, error)
}

type CategoryShare struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
	Share    decimal.Decimal `json:"share"`
}

type Insights struct {
	Period        timeframe.Period `json:"period"`
	Label         string           `json:"label"`
	Total         decimal.Decimal  `json:"total"`
	Count         int64            `json:"count"`
	PreviousTotal decimal.Decimal  `json:"previous_total"`
	ChangePercent *decimal.Decimal `json:"change_percent,omitempty"`
	Categories    []CategoryShare  `json:"categories"`
	TopCategories []CategoryShare  `json:"top_categories"`
	Commentary    string           `json:"commentary"`
	Fallback      bool             `json:"fallback,omitempty"`
}

type QueryAnswer struct {
	Success     bool        `json:"success"`
	Response    string      `json:"response"`
	QueryType   string      `json:"query_type"`
	Data        interface{} `json:"data,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
	Fallback    bool        `json:"fallback,omitempty"`
	Transcript  string      `json:"transcript,omitempty"`
}

type ForecastAnswer struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message,omitempty"`
	Forecast *forecast.Forecast `json:"forecast,omitempty"`
}

type PredictionAnswer struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message,omitempty"`
	Prediction *forecast.Prediction `json:"prediction,omitempty"`
}

type Service struct {
	spending   Spending
	router     Router
	assistant  Assistant
	forecaster Forecaster
	budgets    Budgets
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(spending Spending, router Router, assistant Assistant, forecaster Forecaster, budgets Budgets, logger *slog.Logger) *Service {
	return &Service{
		spending:   spending,
		router:     router,
		assistant:  assistant,
		forecaster: forecaster,
		budgets:    budgets,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Insights gathers the period's totals, its breakdown and the assistant's commentary concurrently.
func (s *Service) Insights(ctx context.Context, actor internal.Actor, userID int64, kind timeframe.Kind) (*Insights, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	ref := s.now()
	current := timeframe.Current(kind, ref)
	previous := timeframe.Previous(kind, ref)
	scope := expense.UserScope(target)

	var (
		total, before expense.Total
		categories    []expense.CategoryTotal
		commentary    *llm.ChatResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = s.spending.AggregateTotal(gctx, scope, &current)
		return err
	})
	g.Go(func() (err error) {
		before, err = s.spending.AggregateTotal(gctx, scope, &previous)
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.spending.AggregateByCategory(gctx, scope, &current)
		return err
	})
	g.Go(func() error {
		commentary = s.assistant.Commentary(gctx, target, "")
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to gather insights", "error", err, "user_id", target)
		return nil, fmt.Errorf("failed to gather insights: %w", err)
	}

	out := &Insights{
		Period:        current,
		Label:         current.Label(),
		Total:         total.Total,
		Count:         total.Count,
		PreviousTotal: before.Total,
		Categories:    shares(categories, total.Total),
		Commentary:    commentary.Response,
		Fallback:      commentary.Fallback,
	}
	out.TopCategories = out.Categories[:min(3, len(out.Categories))]
	if before.Total.IsPositive() {
		pct := total.Total.Sub(before.Total).Div(before.Total).Mul(decimal.NewFromInt(100)).Round(1)
		out.ChangePercent = &pct
	}
	return out, nil
}

func shares(totals []expense.CategoryTotal, sum decimal.Decimal) []CategoryShare {
	out := make([]CategoryShare, len(totals))
	for i, t := range totals {
		out[i] = CategoryShare{Category: t.Category, Total: t.Total, Count: t.Count, Share: decimal.Zero}
		if sum.IsPositive() {
			out[i].Share = t.Total.Div(sum).Mul(decimal.NewFromInt(100)).Round(1)
		}
	}
	return out
}

// Answer routes the utterance to a structured query, or to the assistant when no intent matches.
func (s *Service) Answer(ctx context.Context, actor internal.Actor, userID int64, utterance, humor string) (*QueryAnswer, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	return s.answer(ctx, target, utterance, humor)
}

func (s *Service) answer(ctx context.Context, userID int64, utterance, humor string) (*QueryAnswer, error) {
	utterance = strings.TrimSpace(utterance)
	if err := validateMessage(utterance, "query"); err != nil {
		return nil, err
	}

	ans, err := s.router.Answer(ctx, userID, utterance)
	if err != nil {
		return nil, err
	}
	if ans.Matched {
		return &QueryAnswer{
			Success:   true,
			Response:  ans.Response,
			QueryType: string(ans.Intent),
			Data:      ans.Data,
		}, nil
	}

	chat := s.assistant.Chat(ctx, userID, llm.ChatRequest{Message: utterance, HumorLevel: humor})
	return &QueryAnswer{
		Success:     chat.Success,
		Response:    chat.Response,
		QueryType:   string(query.IntentUnmatched),
		Suggestions: chat.Suggestions,
		Fallback:    chat.Fallback,
	}, nil
}

func (s *Service) Chat(ctx context.Context, actor internal.Actor, userID int64, req llm.ChatRequest) (*llm.ChatResponse, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := validateMessage(req.Message, "message"); err != nil {
		return nil, err
	}
	return s.assistant.Chat(ctx, target, req), nil
}

// VoiceAnswer transcribes the recording and answers it like a typed query.
func (s *Service) VoiceAnswer(ctx context.Context, actor internal.Actor, userID int64, audio io.Reader, filename, humor string) (*QueryAnswer, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	text, err := s.assistant.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, err
	}
	ans, err := s.answer(ctx, target, text, humor)
	if err != nil {
		return nil, err
	}
	ans.Transcript = text
	return ans, nil
}

func (s *Service) Forecast(ctx context.Context, actor internal.Actor, userID int64, category *string, horizon int) (*ForecastAnswer, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	f, err := s.forecaster.Forecast(ctx, target, category, horizon)
	if msg, ok := insufficient(err); ok {
		return &ForecastAnswer{Success: false, Message: msg}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ForecastAnswer{Success: true, Forecast: f}, nil
}

func (s *Service) PredictCurrentFromLast(ctx context.Context, actor internal.Actor, userID int64) (*PredictionAnswer, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.forecaster.PredictCurrentFromLast(ctx, target)
	if msg, ok := insufficient(err); ok {
		return &PredictionAnswer{Success: false, Message: msg}, nil
	}
	if err != nil {
		return nil, err
	}
	return &PredictionAnswer{Success: true, Prediction: p}, nil
}

// BudgetUsage re-checks overages before reporting the current month; other months are read only.
func (s *Service) BudgetUsage(ctx context.Context, actor internal.Actor, userID int64, month, year int) (*budget.Usage, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if year == now.Year() && time.Month(month) == now.Month() {
		if created, err := s.budgets.CheckOverages(ctx, target, month, year); err != nil {
			s.logger.Warn("budget overage check failed", "error", err, "user_id", target)
		} else if created > 0 {
			s.logger.Info("budget alerts raised", "user_id", target, "count", created)
		}
	}
	return s.budgets.ComputeUsage(ctx, target, month, year)
}

func insufficient(err error) (string, bool) {
	appErr, ok := internal.IsAppError(err)
	if !ok || appErr.Type != internal.ErrorTypeInsufficientData {
		return "", false
	}
	return appErr.Message, true
}

func validateMessage(text, field string) error {
	if text == "" {
		return internal.NewValidationFieldError(field, field+" is required", internal.ErrCodeValidationFailed)
	}
	if len(text) > maxMessageLength {
		return internal.NewValidationFieldError(field, fmt.Sprintf("%s must be at most %d characters", field, maxMessageLength), internal.ErrCodeValidationFailed)
	}
	return nil
}
