// Package worker runs background credential delivery: a queue consumer for
// retry jobs plus a periodic sweep that picks up QR credentials whose email
// never went out.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/waas-labs/backend/internal/email"
	"github.com/waas-labs/backend/internal/events"
	"github.com/waas-labs/backend/internal/models"
	"github.com/waas-labs/backend/internal/registrations"
	"github.com/waas-labs/backend/pkg/queue"
)

// sweepInterval matches the delivery retry cadence.
const sweepInterval = 5 * time.Minute

// jobQueue is the queue surface the worker consumes.
type jobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// DeliveryProcessor processes QR delivery jobs: load registration, send
// email, mark delivered.
type DeliveryProcessor struct {
	regRepo   *registrations.Repository
	eventRepo *events.Repository
	sender    *email.Sender
	queue     jobQueue
	logger    *zap.Logger
}

// NewDeliveryProcessor creates a QR delivery processor.
func NewDeliveryProcessor(regRepo *registrations.Repository, eventRepo *events.Repository, sender *email.Sender, q jobQueue, logger *zap.Logger) *DeliveryProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryProcessor{regRepo: regRepo, eventRepo: eventRepo, sender: sender, queue: q, logger: logger}
}

// Process executes one QR delivery job.
func (p *DeliveryProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeQRDelivery {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.QRDeliveryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return p.deliver(ctx, payload.RegistrationID)
}

// deliver re-reads current state before sending: a registration revoked or
// cancelled since enqueue must not receive a pass.
func (p *DeliveryProcessor) deliver(ctx context.Context, regID uuid.UUID) error {
	reg, err := p.regRepo.GetByID(ctx, regID)
	if err != nil {
		return fmt.Errorf("load registration: %w", err)
	}
	if reg.Status != models.StatusApproved || reg.Credential.Kind != models.CredentialQR {
		p.logger.Info("skipping delivery, registration no longer holds a qr credential",
			zap.String("registration_id", regID.String()),
			zap.String("status", string(reg.Status)))
		return nil
	}
	if reg.Credential.QR.Delivered {
		return nil
	}

	event, err := p.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	if err := p.sender.SendQRCredential(ctx, reg, event); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := p.regRepo.MarkDelivered(ctx, regID); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	p.logger.Info("qr credential delivered", zap.String("registration_id", regID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *DeliveryProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("delivery worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("delivery worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// RunSweep periodically re-attempts every undelivered QR credential. This
// covers approvals whose synchronous send failed before a retry job could be
// enqueued.
func (p *DeliveryProcessor) RunSweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("delivery sweep stopping")
			return
		case <-ticker.C:
		}

		pending, err := p.regRepo.ListUndeliveredQR(ctx)
		if err != nil {
			p.logger.Warn("sweep list failed", zap.Error(err))
			continue
		}
		for _, reg := range pending {
			if err := p.deliver(ctx, reg.ID); err != nil {
				p.logger.Warn("sweep delivery failed",
					zap.Error(err), zap.String("registration_id", reg.ID.String()))
			}
		}
	}
}
