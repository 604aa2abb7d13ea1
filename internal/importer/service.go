package importer

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
	"github.com/frahmantamala/expense-insights/internal/core/events"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/frahmantamala/expense-insights/internal/importer/source"
	"github.com/google/uuid"
)

const maxRejectionSamples = 5

type RepositoryAPI interface {
	Create(ctx context.Context, b *ImportBatch) error
	GetByID(ctx context.Context, id int64) (*ImportBatch, error)
	ListByUser(ctx context.Context, userID int64) ([]*ImportBatch, error)
	// Claim moves a pending batch to processing. It reports false when the batch was not pending.
	Claim(ctx context.Context, id int64) (bool, error)
	Complete(ctx context.Context, id int64, outcome Outcome, at time.Time) error
	Fail(ctx context.Context, id int64, message string, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// Ledger is the part of the expense service the importer writes through.
type Ledger interface {
	CreateImportedExpenses(ctx context.Context, userID, batchID int64, rows []expense.CreateExpenseDTO) (int, error)
	CountByImportBatch(ctx context.Context, batchID int64) (int64, error)
	DeleteByImportBatch(ctx context.Context, batchID int64) (int64, error)
}

// Dispatcher hands a pending batch to whatever runs Process.
type Dispatcher interface {
	Dispatch(ctx context.Context, batchID int64) error
}

type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	DataSources    map[string]string
	StoredQueries  map[string]internal.StoredQuery
}

func OptionsFromConfig(cfg internal.ImportConfig) Options {
	return Options{
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		DataSources:    cfg.DataSources,
		StoredQueries:  cfg.StoredQueries,
	}
}

type UploadInput struct {
	Filename    string
	Reader      io.Reader
	Description *string
}

type QueryInput struct {
	Query       string  `json:"query"`
	Description *string `json:"description,omitempty"`
}

type TableInput struct {
	DataSource  string  `json:"data_source"`
	Table       string  `json:"table"`
	Description *string `json:"description,omitempty"`
}

type Service struct {
	repo       RepositoryAPI
	ledger     Ledger
	publisher  events.Publisher
	dispatcher Dispatcher
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo RepositoryAPI, ledger Ledger, publisher events.Publisher, opts Options, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SetDispatcher wires the runner after construction; the worker pool itself needs the service.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Upload stores the file under the upload directory, records a pending batch and dispatches it.
func (s *Service) Upload(ctx context.Context, actor internal.Actor, in UploadInput) (*ImportBatch, error) {
	name := filepath.Base(strings.TrimSpace(in.Filename))
	if !source.SupportedFile(name) {
		return nil, internal.NewValidationFieldError("file",
			fmt.Sprintf("unsupported file type, expected one of %s", strings.Join(source.Extensions, ", ")),
			internal.ErrCodeUnsupportedSource)
	}

	path, size, err := s.store(in.Reader, filepath.Ext(name))
	if err != nil {
		return nil, err
	}

	b := &ImportBatch{
		UserID:      actor.UserID,
		Filename:    name,
		Path:        path,
		Size:        size,
		SourceKind:  source.KindFile,
		Description: in.Description,
	}
	if err := s.create(ctx, b); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return b, nil
}

// store streams r to a temp file and renames it into place. Nothing is left behind on error.
func (s *Service) store(r io.Reader, ext string) (string, int64, error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o750); err != nil {
		return "", 0, fmt.Errorf("failed to create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.opts.UploadDir, "upload-*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	limit := s.opts.MaxUploadBytes
	reader := r
	if limit > 0 {
		reader = io.LimitReader(r, limit+1)
	}
	size, err := io.Copy(tmp, reader)
	if err != nil {
		return "", 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if limit > 0 && size > limit {
		return "", 0, internal.NewValidationFieldError("file",
			fmt.Sprintf("file exceeds the %d byte upload limit", limit), internal.ErrCodeUploadTooLarge)
	}
	if size == 0 {
		return "", 0, internal.NewValidationFieldError("file", "file is empty", internal.ErrCodeValidationFailed)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close upload: %w", err)
	}

	final := filepath.Join(s.opts.UploadDir, uuid.NewString()+strings.ToLower(ext))
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", 0, fmt.Errorf("failed to store upload: %w", err)
	}
	committed = true
	return final, size, nil
}

// CreateQueryBatch imports the result of a configured stored query.
func (s *Service) CreateQueryBatch(ctx context.Context, actor internal.Actor, in QueryInput) (*ImportBatch, error) {
	q, ok := s.opts.StoredQueries[in.Query]
	if !ok {
		return nil, internal.NewValidationFieldError("query", fmt.Sprintf("unknown stored query %q", in.Query), internal.ErrCodeUnsupportedSource)
	}
	b := &ImportBatch{
		UserID:      actor.UserID,
		Filename:    in.Query,
		SourceKind:  source.KindQuery,
		SourceRef:   in.Query,
		SourceURL:   source.Redact(s.opts.DataSources[q.Source]),
		Description: in.Description,
	}
	if err := s.create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateTableBatch imports every row of a table in a configured data source.
func (s *Service) CreateTableBatch(ctx context.Context, actor internal.Actor, in TableInput) (*ImportBatch, error) {
	url, ok := s.opts.DataSources[in.DataSource]
	if !ok {
		return nil, internal.NewValidationFieldError("data_source", fmt.Sprintf("unknown data source %q", in.DataSource), internal.ErrCodeUnsupportedSource)
	}
	if err := source.ValidateTableName(in.Table); err != nil {
		return nil, internal.NewValidationFieldError("table", err.Error(), internal.ErrCodeUnsupportedSource)
	}
	b := &ImportBatch{
		UserID:      actor.UserID,
		Filename:    in.Table,
		SourceKind:  source.KindTable,
		SourceRef:   in.DataSource,
		SourceURL:   source.Redact(url),
		Description: in.Description,
	}
	if err := s.create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) create(ctx context.Context, b *ImportBatch) error {
	b.Status = StatusPending
	b.UploadedAt = s.now().UTC()
	if err := s.repo.Create(ctx, b); err != nil {
		s.logger.Error("failed to create import batch", "error", err, "user_id", b.UserID)
		return err
	}
	s.logger.Info("import batch created", "batch_id", b.ID, "user_id", b.UserID, "source_kind", b.SourceKind)

	if s.dispatcher == nil {
		return nil
	}
	// the batch stays pending when dispatch fails and can be processed later
	if err := s.dispatcher.Dispatch(ctx, b.ID); err != nil {
		s.logger.Warn("failed to dispatch import batch", "error", err, "batch_id", b.ID)
	}
	return nil
}

// Process claims a pending batch and runs it to completed or failed.
func (s *Service) Process(ctx context.Context, batchID int64) (*ImportBatch, error) {
	claimed, err := s.repo.Claim(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim import batch: %w", err)
	}
	if !claimed {
		if _, err := s.repo.GetByID(ctx, batchID); err != nil {
			return nil, err
		}
		return nil, internal.ErrBatchNotClaimable
	}

	b, err := s.repo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("processing import batch", "batch_id", b.ID, "user_id", b.UserID)
	return s.finish(ctx, b)
}

// Recover re-runs a batch stuck in processing, discarding the rows a crashed run left behind.
func (s *Service) Recover(ctx context.Context, actor internal.Actor, batchID int64) (*ImportBatch, error) {
	b, err := s.GetBatch(ctx, actor, batchID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusProcessing {
		return nil, internal.NewConflictError("only batches stuck in processing can be recovered", internal.ErrCodeBatchNotClaimable)
	}
	removed, err := s.ledger.DeleteByImportBatch(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recovering import batch", "batch_id", b.ID, "discarded_rows", removed)
	return s.finish(ctx, b)
}

func (s *Service) finish(ctx context.Context, b *ImportBatch) (*ImportBatch, error) {
	outcome, err := s.run(ctx, b)
	at := s.now().UTC()
	if err != nil {
		message := failureMessage(err)
		s.logger.Warn("import batch failed", "batch_id", b.ID, "error", err)
		// rows written before the failure are undone so a failed batch owns nothing
		if _, derr := s.ledger.DeleteByImportBatch(ctx, b.ID); derr != nil {
			s.logger.Error("failed to discard rows of failed batch", "error", derr, "batch_id", b.ID)
		}
		if ferr := s.repo.Fail(ctx, b.ID, message, at); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		b.Status = StatusFailed
		b.ErrorMessage = &message
		b.CompletedAt = &at
		return b, internal.NewImportFailedError(message, failureCode(err))
	}

	if err := s.repo.Complete(ctx, b.ID, outcome, at); err != nil {
		return nil, fmt.Errorf("failed to complete import batch: %w", err)
	}
	b.Status = StatusCompleted
	b.RowCount = outcome.RowCount
	b.ImportedCount = outcome.ImportedCount
	b.RejectedCount = outcome.RejectedCount
	b.CompletedAt = &at
	s.logger.Info("import batch completed", "batch_id", b.ID, "imported", outcome.ImportedCount, "rejected", outcome.RejectedCount)

	if s.publisher != nil {
		if err := s.publisher.PublishSync(ctx, events.NewImportCompletedEvent(b.ID, b.UserID, outcome.ImportedCount)); err != nil {
			s.logger.Warn("event handlers failed", "error", err, "event_type", events.EventTypeImportCompleted)
		}
	}
	return b, nil
}

func (s *Service) run(ctx context.Context, b *ImportBatch) (Outcome, error) {
	src, err := s.sourceFor(b)
	if err != nil {
		return Outcome{}, err
	}
	table, err := src.Load(ctx)
	if err != nil {
		return Outcome{}, err
	}
	result, err := ParseTable(table, s.now())
	if err != nil {
		return Outcome{}, err
	}
	s.logRejections(b.ID, result.Rejected)

	if len(result.Rows) > 0 {
		if _, err := s.ledger.CreateImportedExpenses(ctx, b.UserID, b.ID, result.Rows); err != nil {
			return Outcome{}, err
		}
	}
	imported, err := s.ledger.CountByImportBatch(ctx, b.ID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		RowCount:      len(table.Rows),
		ImportedCount: int(imported),
		RejectedCount: len(result.Rejected),
	}, nil
}

func (s *Service) sourceFor(b *ImportBatch) (source.Source, error) {
	switch b.SourceKind {
	case source.KindFile:
		return source.FileSource{Path: b.Path, Name: b.Filename}, nil
	case source.KindQuery:
		q, ok := s.opts.StoredQueries[b.SourceRef]
		if !ok {
			return nil, fmt.Errorf("stored query %q is no longer configured", b.SourceRef)
		}
		return source.QuerySource{URL: s.opts.DataSources[q.Source], SQL: q.SQL}, nil
	case source.KindTable:
		url, ok := s.opts.DataSources[b.SourceRef]
		if !ok {
			return nil, fmt.Errorf("data source %q is no longer configured", b.SourceRef)
		}
		return source.TableSource{URL: url, Table: b.Filename}, nil
	}
	return nil, fmt.Errorf("%w: %s", source.ErrUnsupported, b.SourceKind)
}

func (s *Service) logRejections(batchID int64, rejected []Rejection) {
	if len(rejected) == 0 {
		return
	}
	sample := rejected
	if len(sample) > maxRejectionSamples {
		sample = sample[:maxRejectionSamples]
	}
	s.logger.Warn("import rows rejected", "batch_id", batchID, "count", len(rejected), "sample", sample)
}

func (s *Service) GetBatch(ctx context.Context, actor internal.Actor, id int64) (*ImportBatch, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(b.UserID) {
		return nil, internal.ErrPermissionDenied
	}
	return b, nil
}

func (s *Service) ListBatches(ctx context.Context, actor internal.Actor, userID int64) ([]*ImportBatch, error) {
	target, err := internal.ResolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, target)
}

// DeleteBatch undoes an import: its expenses, its stored file and the batch itself.
func (s *Service) DeleteBatch(ctx context.Context, actor internal.Actor, id int64) error {
	b, err := s.GetBatch(ctx, actor, id)
	if err != nil {
		return err
	}
	if b.Status == StatusProcessing {
		return internal.NewConflictError("import batch is still processing", internal.ErrCodeBatchNotClaimable)
	}
	removed, err := s.ledger.DeleteByImportBatch(ctx, b.ID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, b.ID); err != nil {
		s.logger.Error("failed to delete import batch", "error", err, "batch_id", b.ID)
		return err
	}
	if b.Path != "" {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove import file", "error", err, "batch_id", b.ID)
		}
	}
	s.logger.Info("import batch deleted", "batch_id", b.ID, "removed_rows", removed)

	if s.publisher != nil {
		if err := s.publisher.PublishSync(ctx, events.NewImportDeletedEvent(b.ID, b.UserID, removed)); err != nil {
			s.logger.Warn("event handlers failed", "error", err, "event_type", events.EventTypeImportDeleted)
		}
	}
	return nil
}

func failureMessage(err error) string {
	var missing *MissingColumnsError
	if errors.As(err, &missing) {
		return missing.Error()
	}
	if errors.Is(err, source.ErrUnsupported) {
		return err.Error()
	}
	return "import failed: " + err.Error()
}

func failureCode(err error) internal.ErrorCode {
	var missing *MissingColumnsError
	switch {
	case errors.As(err, &missing):
		return internal.ErrCodeMissingColumns
	case errors.Is(err, source.ErrUnsupported):
		return internal.ErrCodeUnsupportedSource
	}
	return internal.ErrCodeValidationFailed
}

// Handle adapts Process to ProcessFunc for the worker pool and the queue consumer.
func (s *Service) Handle(ctx context.Context, batchID int64) error {
	_, err := s.Process(ctx, batchID)
	return err
}
