package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
)

type Options struct {
	Timeout      time.Duration
	DefaultHumor HumorLevel
	// TempDir holds audio uploads while they are transcribed; empty means os.TempDir.
	TempDir string
}

func OptionsFromConfig(cfg internal.LLMConfig) Options {
	return Options{
		Timeout:      cfg.Timeout,
		DefaultHumor: ParseHumorLevel(cfg.DefaultHumor, HumorMedium),
	}
}

type ChatRequest struct {
	Message    string `json:"message"`
	HumorLevel string `json:"humor_level"`
}

type ChatResponse struct {
	Success     bool     `json:"success"`
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions"`
	Fallback    bool     `json:"fallback,omitempty"`
}

type Service struct {
	completer   Completer
	transcriber Transcriber
	snapshots   *SnapshotBuilder
	opts        Options
	logger      *slog.Logger
}

// NewService wires the upstream clients. Either client may be nil, in which case chat always
// falls back and transcription always fails.
func NewService(completer Completer, transcriber Transcriber, snapshots *SnapshotBuilder, opts Options, logger *slog.Logger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.DefaultHumor == "" {
		opts.DefaultHumor = HumorMedium
	}
	return &Service{
		completer:   completer,
		transcriber: transcriber,
		snapshots:   snapshots,
		opts:        opts,
		logger:      logger,
	}
}

// Chat never fails: any upstream problem is answered from the fallback set.
func (s *Service) Chat(ctx context.Context, userID int64, req ChatRequest) *ChatResponse {
	message := strings.TrimSpace(req.Message)
	if s.completer == nil {
		return s.fallback(userID, message, "no completer configured")
	}

	level := ParseHumorLevel(req.HumorLevel, s.opts.DefaultHumor)
	messages := []Message{
		{Role: RoleSystem, Content: SystemPrompt(level, s.snapshotText(ctx, userID))},
		{Role: RoleUser, Content: message},
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	reply, err := s.completer.Complete(callCtx, messages)
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return s.fallback(userID, message, "missing credentials")
	case err != nil && callCtx.Err() != nil:
		return s.fallback(userID, message, fmt.Sprintf("upstream call abandoned: %v", callCtx.Err()))
	case err != nil:
		s.logger.Warn("chat upstream failed", "error", err, "user_id", userID)
		return s.fallback(userID, message, "upstream error")
	case strings.TrimSpace(reply) == "":
		return s.fallback(userID, message, "empty completion")
	}

	return &ChatResponse{
		Success:     true,
		Response:    strings.TrimSpace(reply),
		Suggestions: defaultSuggestions,
	}
}

const commentaryPrompt = "Give me two short observations about my recent spending and one thing to keep an eye on."

// Commentary is a chat about the user's own snapshot, used alongside the insights figures.
func (s *Service) Commentary(ctx context.Context, userID int64, level HumorLevel) *ChatResponse {
	return s.Chat(ctx, userID, ChatRequest{Message: commentaryPrompt, HumorLevel: string(level)})
}

func (s *Service) snapshotText(ctx context.Context, userID int64) string {
	if s.snapshots == nil {
		return ""
	}
	snap, err := s.snapshots.Build(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to build spending snapshot", "error", err, "user_id", userID)
		return ""
	}
	return snap.Render()
}

func (s *Service) fallback(userID int64, message, reason string) *ChatResponse {
	reply := fallback(message)
	s.logger.Info("chat answered from fallback", "user_id", userID, "reason", reason, "source", reply.source)
	return &ChatResponse{
		Success:     true,
		Response:    reply.text,
		Suggestions: reply.suggestions,
		Fallback:    true,
	}
}

// Transcribe spools the audio to a temporary file for the upstream and always removes it.
func (s *Service) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if s.transcriber == nil {
		return "", internal.ErrTranscriptionFailed
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".webm"
	}
	tmp, err := os.CreateTemp(s.opts.TempDir, "voice-*"+ext)
	if err != nil {
		return "", internal.ErrTranscriptionFailed.WithCause(err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	_, err = io.Copy(tmp, audio)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", internal.ErrTranscriptionFailed.WithCause(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	text, err := s.transcriber.Transcribe(callCtx, path)
	if err != nil {
		s.logger.Warn("transcription failed", "error", err)
		return "", internal.ErrTranscriptionFailed.WithCause(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", internal.ErrTranscriptionFailed
	}
	return strings.TrimSpace(text), nil
}
