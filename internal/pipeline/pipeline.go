package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/inference"
	"server/internal/infra"
	"server/internal/mailer"
	"server/internal/metrics"
	"server/internal/sqlinline"
	"server/internal/storage"
)

// Polling budget for inference jobs: ten attempts three seconds apart.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollAttempts = 10
)

// InferenceClient is the submit/poll/download contract of the external
// inference service.
type InferenceClient interface {
	Submit(ctx context.Context, model string, input map[string]any) (*inference.Job, error)
	Poll(ctx context.Context, jobID string) (*inference.Job, error)
	Download(ctx context.Context, outputURL string) ([]byte, error)
}

// ObjectStore persists artifact bytes under a storage key.
type ObjectStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Mailer delivers completion notifications.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Pipeline runs one generation request through its stages: reserve credits,
// invoke inference, persist the artifact, notify, respond. Any stage failure
// halts the run and refunds the reservation; there is no partial success.
type Pipeline struct {
	SQL                infra.SQLExecutor
	Logger             zerolog.Logger
	Inference          InferenceClient
	Store              ObjectStore
	Mailer             Mailer
	StorageBaseURL     string
	PublicAssetBaseURL string

	// PollInterval and PollAttempts override the defaults in tests.
	PollInterval time.Duration
	PollAttempts int

	// Now is the clock used for storage keys; defaults to time.Now.
	Now func() time.Time
}

// Run executes the pipeline for an already-authenticated caller with
// validated input. It returns the persisted record or a typed error from
// the taxonomy in the domain package.
func (p *Pipeline) Run(ctx context.Context, caller domain.Caller, op domain.Operation, in domain.GenerateInput) (*domain.GenerationRecord, error) {
	cost := op.CreditCost()
	if cost <= 0 {
		return nil, domain.Internal("credit-gate", fmt.Errorf("operation %s has invalid cost %d", op.Kind(), cost))
	}

	if err := p.reserve(ctx, caller.ID, cost); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			metrics.Generations.WithLabelValues(op.Kind(), "refused").Inc()
			return nil, err
		}
		metrics.Generations.WithLabelValues(op.Kind(), "failed").Inc()
		return nil, err
	}

	record, err := p.runReserved(ctx, caller, op, in)
	if err != nil {
		p.refund(ctx, caller.ID, cost)
		var unsafe *domain.UnsafeContentError
		if errors.As(err, &unsafe) {
			metrics.Generations.WithLabelValues(op.Kind(), "rejected").Inc()
		} else {
			metrics.Generations.WithLabelValues(op.Kind(), "failed").Inc()
		}
		return nil, err
	}

	metrics.Generations.WithLabelValues(op.Kind(), "succeeded").Inc()
	return record, nil
}

// reserve atomically debits the caller's balance iff it covers the cost.
func (p *Pipeline) reserve(ctx context.Context, profileID string, cost int) error {
	row := p.SQL.QueryRow(ctx, sqlinline.QReserveCredits, profileID, cost)
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if infra.IsNoRows(err) {
			metrics.CreditReservations.WithLabelValues("refused").Inc()
			return domain.ErrInsufficientCredits
		}
		metrics.CreditReservations.WithLabelValues("error").Inc()
		return domain.Internal("credit-gate", err)
	}
	metrics.CreditReservations.WithLabelValues("reserved").Inc()
	p.Logger.Debug().Str("profile_id", profileID).Int("cost", cost).Int("remaining", remaining).Msg("credits reserved")
	return nil
}

// refund compensates a reservation after a downstream failure. It runs on a
// detached context so a canceled request cannot strand the debit.
func (p *Pipeline) refund(ctx context.Context, profileID string, cost int) {
	row := p.SQL.QueryRow(context.WithoutCancel(ctx), sqlinline.QRefundCredits, profileID, cost)
	var balance int
	if err := row.Scan(&balance); err != nil {
		p.Logger.Error().Err(err).Str("profile_id", profileID).Int("cost", cost).Msg("credit refund failed")
		return
	}
	metrics.CreditReservations.WithLabelValues("refunded").Inc()
}

func (p *Pipeline) runReserved(ctx context.Context, caller domain.Caller, op domain.Operation, in domain.GenerateInput) (*domain.GenerationRecord, error) {
	params, err := op.BuildParameters(in)
	if err != nil {
		return nil, domain.Internal("invoke", err)
	}

	job, err := p.Inference.Submit(ctx, op.Model(), params)
	if err != nil {
		return nil, domain.Internal("invoke", err)
	}

	final, err := p.awaitJob(ctx, job)
	if err != nil {
		return nil, err
	}

	outputRef, err := op.ExtractOutput(final.Output)
	if err != nil {
		return nil, domain.Internal("invoke", err)
	}

	data, err := p.Inference.Download(ctx, outputRef)
	if err != nil {
		return nil, domain.Internal("persist", err)
	}

	key := fmt.Sprintf("generations/%s/%d%s", caller.ID, p.now().UnixNano(), op.FileExt(in))
	savedKey, err := p.Store.Write(ctx, key, data)
	if err != nil {
		return nil, domain.Internal("persist", err)
	}

	internalURL := storage.ResolveURL(p.StorageBaseURL, savedKey)
	publicURL := storage.RewriteBase(internalURL, p.StorageBaseURL, p.PublicAssetBaseURL)

	record := &domain.GenerationRecord{
		OwnerID:             caller.ID,
		PublicURL:           publicURL,
		StorageKey:          savedKey,
		Prompt:              in.Prompt,
		AspectRatio:         in.AspectRatio,
		Kind:                op.Kind(),
		Style:               in.Style,
		SourceImageURL:      in.SourceImageURL,
		SourceImageStrength: in.SourceImageStrength,
		Scale:               in.Scale,
		CreditCost:          op.CreditCost(),
	}
	row := p.SQL.QueryRow(ctx, sqlinline.QInsertGeneration,
		record.OwnerID,
		record.PublicURL,
		record.StorageKey,
		record.Prompt,
		record.AspectRatio,
		record.Kind,
		record.Style,
		record.SourceImageURL,
		record.SourceImageStrength,
		record.Scale,
		record.CreditCost,
	)
	if err := row.Scan(&record.ID, &record.CreatedAt); err != nil {
		// The uploaded object is now orphaned; the reconciliation sweep
		// cleans it up.
		p.Logger.Warn().Str("storage_key", savedKey).Msg("record insert failed, object orphaned")
		return nil, domain.Internal("persist", err)
	}

	p.notify(ctx, caller, record)
	return record, nil
}

// awaitJob polls the job to a terminal status within the fixed budget.
func (p *Pipeline) awaitJob(ctx context.Context, job *inference.Job) (*inference.Job, error) {
	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := p.PollAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollAttempts
	}

	current := job
	attempts := 0
	for !current.Terminal() {
		if attempts >= maxAttempts {
			metrics.PollAttempts.Observe(float64(attempts))
			p.Logger.Error().Str("job_id", job.ID).Str("reason", "poll_budget_exhausted").Msg("inference job did not finish")
			return nil, domain.Internal("invoke", domain.ErrPollBudgetExhausted)
		}
		attempts++
		select {
		case <-ctx.Done():
			return nil, domain.Internal("invoke", ctx.Err())
		case <-time.After(interval):
		}
		next, err := p.Inference.Poll(ctx, job.ID)
		if err != nil {
			return nil, domain.Internal("invoke", err)
		}
		current = next
	}
	metrics.PollAttempts.Observe(float64(attempts))

	if !current.Succeeded() {
		if inference.IsModerationRejection(current.Error) {
			return nil, &domain.UnsafeContentError{Message: current.Error}
		}
		return nil, domain.Internal("invoke", fmt.Errorf("job %s ended %s: %s", current.ID, current.Status, current.Error))
	}
	return current, nil
}

// notify sends the completion email when the caller opted in. A failed send
// is logged and counted, never fatal: the artifact is already persisted and
// paid for.
func (p *Pipeline) notify(ctx context.Context, caller domain.Caller, record *domain.GenerationRecord) {
	if !caller.NotificationsEnabled || p.Mailer == nil {
		return
	}
	msg := mailer.Message{
		ToEmail: caller.Email,
		Subject: "Your image is ready",
		Text:    "Your generated image is ready: " + record.PublicURL,
	}
	if err := p.Mailer.Send(context.WithoutCancel(ctx), msg); err != nil {
		metrics.NotificationFailures.Inc()
		p.Logger.Warn().Err(err).Str("record_id", record.ID).Msg("completion email failed")
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
