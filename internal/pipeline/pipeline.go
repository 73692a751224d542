package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"prepcal/internal/extract"
	"prepcal/internal/models"
	"prepcal/internal/reconcile"
)

// Mailbox is the capability the pipeline needs from an email backend.
type Mailbox interface {
	// FetchOrderEmails returns the decoded HTML bodies of recent
	// notification emails.
	FetchOrderEmails(ctx context.Context) ([]*models.Email, error)
}

// Pipeline runs one ingestion cycle: fetch notification emails, extract an
// order from each, and reconcile each order against the calendar.
type Pipeline struct {
	logger     *slog.Logger
	mailbox    Mailbox
	extractor  *extract.Extractor
	reconciler *reconcile.Reconciler
}

// New creates a Pipeline.
func New(logger *slog.Logger, mailbox Mailbox, extractor *extract.Extractor, reconciler *reconcile.Reconciler) *Pipeline {
	return &Pipeline{
		logger:     logger,
		mailbox:    mailbox,
		extractor:  extractor,
		reconciler: reconciler,
	}
}

// Run performs a full ingestion cycle. Each email is processed to completion
// on its own; a failure in one email is logged and never aborts the others.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("Starting ingestion cycle.")

	emails, err := p.mailbox.FetchOrderEmails(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch emails: %w", err)
	}

	for _, email := range emails {
		if err := p.processEmail(ctx, email); err != nil {
			p.logger.Error("Failed to process email", "id", email.ID, "subject", email.Subject, "error", err)
		}
	}

	p.logger.Info("Ingestion cycle finished.", "emails", len(emails))
	return nil
}

// processEmail handles the extract-then-reconcile path for a single email.
func (p *Pipeline) processEmail(ctx context.Context, email *models.Email) error {
	order, err := p.extractor.Extract(email.HTML)
	if err != nil {
		return fmt.Errorf("failed to extract order: %w", err)
	}
	if order == nil {
		p.logger.Debug("No order detected in email, skipping.", "id", email.ID, "subject", email.Subject)
		return nil
	}

	p.logger.Info("Extracted order from email.", "id", email.ID, "items", len(order.Items), "start", order.Start)

	if err := p.reconciler.Reconcile(ctx, order); err != nil {
		return fmt.Errorf("failed to reconcile order: %w", err)
	}
	return nil
}
