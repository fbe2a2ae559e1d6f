// Package worker turns queued jobs into ledger operations.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/mintbalance/internal/ai"
	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/infra/bigquery"
	"github.com/dvloznov/mintbalance/internal/jobs"
	"github.com/dvloznov/mintbalance/internal/ledger"
	"github.com/dvloznov/mintbalance/internal/logger"
	"github.com/dvloznov/mintbalance/internal/notionsync"
)

// ErrNotConfigured fails jobs whose integration has no credentials.
var ErrNotConfigured = errors.New("integration not configured")

// PredictParams are the parameters of a predict job.
type PredictParams struct {
	Days int `json:"days,omitempty"`
}

// InsightsParams are the parameters of an insights job.
type InsightsParams struct {
	LookbackDays int `json:"lookbackDays,omitempty"`
}

// NotionSyncParams are the parameters of a notion_sync job.
type NotionSyncParams struct {
	DryRun bool `json:"dryRun,omitempty"`
}

// BackupResult is the result of a backup job.
type BackupResult struct {
	URI string `json:"uri"`
}

// Backupper uploads ledger snapshots.
type Backupper interface {
	Backup(ctx context.Context, l domain.Ledger) (string, error)
}

// Notion is the Notion mirror target.
type Notion struct {
	Client     notionsync.NotionService
	DatabaseID string
}

// Handler dispatches jobs by type.
type Handler struct {
	svc    *ledger.Service
	backup Backupper
	export bigquery.TransactionRepository
	notion *Notion
	now    func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithBackup enables backup jobs.
func WithBackup(b Backupper) Option {
	return func(h *Handler) { h.backup = b }
}

// WithExport enables BigQuery export jobs.
func WithExport(repo bigquery.TransactionRepository) Option {
	return func(h *Handler) { h.export = repo }
}

// WithNotion enables Notion sync jobs.
func WithNotion(n Notion) Option {
	return func(h *Handler) { h.notion = &n }
}

// NewHandler creates a Handler for svc.
func NewHandler(svc *ledger.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle implements jobs.JobHandler.
func (h *Handler) Handle(ctx context.Context, job *jobs.Job) (json.RawMessage, error) {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"job_id":   job.ID,
		"job_type": string(job.Type),
	})
	ctx = logger.WithContext(ctx, log)

	log.Info().Int("retry_count", job.RetryCount).Msg("Processing job")

	result, err := h.dispatch(ctx, job)
	if err != nil {
		log.Error().Err(err).Msg("Job execution failed")
		return nil, classify(err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, jobs.Permanent(fmt.Errorf("encode result: %w", err))
	}
	log.Info().Msg("Job execution completed successfully")
	return data, nil
}

func (h *Handler) dispatch(ctx context.Context, job *jobs.Job) (any, error) {
	switch job.Type {
	case jobs.JobTypePredict:
		var p PredictParams
		if err := decodeParams(job.Params, &p); err != nil {
			return nil, err
		}
		return h.svc.Predict(ctx, p.Days)

	case jobs.JobTypeInsights:
		var p InsightsParams
		if err := decodeParams(job.Params, &p); err != nil {
			return nil, err
		}
		return h.svc.Insights(ctx, p.LookbackDays)

	case jobs.JobTypeBackup:
		if h.backup == nil {
			return nil, fmt.Errorf("backup: %w", ErrNotConfigured)
		}
		l, err := h.svc.Repository().Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		uri, err := h.backup.Backup(ctx, l)
		if err != nil {
			return nil, err
		}
		return BackupResult{URI: uri}, nil

	case jobs.JobTypeExport:
		if h.export == nil {
			return nil, fmt.Errorf("bigquery export: %w", ErrNotConfigured)
		}
		l, err := h.svc.Repository().Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return bigquery.ExportLedger(ctx, h.export, l, h.now())

	case jobs.JobTypeNotionSync:
		if h.notion == nil {
			return nil, fmt.Errorf("notion sync: %w", ErrNotConfigured)
		}
		var p NotionSyncParams
		if err := decodeParams(job.Params, &p); err != nil {
			return nil, err
		}
		l, err := h.svc.Repository().Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return notionsync.SyncTransactions(ctx, h.notion.Client, h.notion.DatabaseID, l.Transactions, l.Settings.Currency, p.DryRun)
	}
	return nil, fmt.Errorf("unexpected job type %q: %w", job.Type, domain.ErrInvalid)
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode params: %v: %w", err, domain.ErrInvalid)
	}
	return nil
}

// classify marks errors that a retry cannot fix as permanent.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalid),
		errors.Is(err, ledger.ErrNoData),
		errors.Is(err, ErrNotConfigured),
		errors.Is(err, ai.ErrMissingCredential),
		errors.Is(err, ai.ErrUnknownBackend):
		return jobs.Permanent(err)
	}
	var be *ai.BackendError
	if errors.As(err, &be) && be.Status >= 400 && be.Status < 500 && be.Status != 429 {
		return jobs.Permanent(err)
	}
	return err
}
