package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"prepcal/internal/models"
)

// maxLookupResults caps how many candidate events are fetched per order.
const maxLookupResults = 10

// Calendar is the capability the reconciler needs from a calendar backend.
type Calendar interface {
	// ListEvents returns upcoming events matching the summary filter,
	// ordered by start time.
	ListEvents(ctx context.Context, summaryFilter string, timeMin time.Time, maxResults int64) ([]*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error)
	UpdateEvent(ctx context.Context, eventID string, event *models.Event) (*models.Event, error)
}

// Reconciler decides, per extracted order, whether an equivalent calendar
// event already exists and issues the create or update that keeps the
// calendar in sync.
type Reconciler struct {
	logger   *slog.Logger
	calendar Calendar
	timeZone string
	dryRun   bool
	now      func() time.Time
}

// NewReconciler creates a Reconciler writing events in the given timezone.
func NewReconciler(logger *slog.Logger, calendar Calendar, timeZone string, dryRun bool) *Reconciler {
	return &Reconciler{
		logger:   logger,
		calendar: calendar,
		timeZone: timeZone,
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// Reconcile mirrors one order into the calendar. Listing failures are
// returned to the caller; individual create and update failures are logged
// per call and never abort the remaining work for this order.
func (r *Reconciler) Reconcile(ctx context.Context, order *models.Order) error {
	fields := r.eventFields(order)

	existing, err := r.calendar.ListEvents(ctx, order.Summary, r.now(), maxLookupResults)
	if err != nil {
		return fmt.Errorf("failed to list existing events: %w", err)
	}

	if len(existing) == 0 {
		r.create(ctx, fields)
		return nil
	}

	// Every returned event is classified on its own; an event at a
	// different start time triggers a fresh create. This mirrors how the
	// calendar is expected to look when the same summary recurs weekly.
	for _, event := range existing {
		if SameOccurrence(order, event) {
			r.update(ctx, event.ID, fields)
		} else {
			r.create(ctx, fields)
		}
	}
	return nil
}

func (r *Reconciler) create(ctx context.Context, fields *models.Event) {
	if r.dryRun {
		r.logger.Info("[DRY RUN] Would create event", "summary", fields.Summary, "start", fields.Start)
		return
	}
	created, err := r.calendar.CreateEvent(ctx, fields)
	if err != nil {
		r.logger.Error("Failed to create event", "summary", fields.Summary, "error", err)
		return
	}
	r.logger.Info("Created event", "id", created.ID, "summary", created.Summary, "start", fields.Start)
}

func (r *Reconciler) update(ctx context.Context, eventID string, fields *models.Event) {
	if r.dryRun {
		r.logger.Info("[DRY RUN] Would update event", "id", eventID, "summary", fields.Summary)
		return
	}
	updated, err := r.calendar.UpdateEvent(ctx, eventID, fields)
	if err != nil {
		r.logger.Error("Failed to update event", "id", eventID, "error", err)
		return
	}
	r.logger.Info("Updated event", "id", updated.ID, "summary", updated.Summary)
}

// eventFields renders an order as the event payload sent to the calendar.
// Datetimes go out without an offset; the timezone travels separately.
func (r *Reconciler) eventFields(order *models.Order) *models.Event {
	return &models.Event{
		Summary:     order.Summary,
		Description: order.Description,
		Start:       order.Start.Format(naiveLayout),
		End:         order.End.Format(naiveLayout),
		TimeZone:    r.timeZone,
	}
}
