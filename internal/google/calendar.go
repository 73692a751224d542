package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"prepcal/internal/models"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
}

// NewCalendarClient creates a Google Calendar client for one authenticated
// account, scoped to a single calendar.
func NewCalendarClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName, calendarID string) (*CalendarClient, error) {
	ts, err := tokenSource(ctx, clientID, clientSecret, accountName)
	if err != nil {
		return nil, err
	}

	service, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{service: service, logger: logger, calendarID: calendarID}, nil
}

// ListEvents fetches upcoming events whose text matches the summary filter,
// ordered by start time.
func (c *CalendarClient) ListEvents(ctx context.Context, summaryFilter string, timeMin time.Time, maxResults int64) ([]*models.Event, error) {
	c.logger.Debug("Listing events", "filter", summaryFilter, "timeMin", timeMin)

	events, err := c.service.Events.List(c.calendarID).
		Q(summaryFilter).
		TimeMin(timeMin.Format(time.RFC3339)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	return c.toInternalEvents(events.Items), nil
}

// CreateEvent inserts a new event into the calendar.
func (c *CalendarClient) CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	inserted, err := c.service.Events.Insert(c.calendarID, c.toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return c.toInternalEvent(inserted), nil
}

// UpdateEvent replaces an existing event's fields.
func (c *CalendarClient) UpdateEvent(ctx context.Context, eventID string, event *models.Event) (*models.Event, error) {
	updated, err := c.service.Events.Update(c.calendarID, eventID, c.toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
	}
	return c.toInternalEvent(updated), nil
}

// toGoogleEvent renders the internal event as the API payload. The datetime
// strings carry no offset; the timezone name travels alongside them.
func (c *CalendarClient) toGoogleEvent(event *models.Event) *calendar.Event {
	return &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start: &calendar.EventDateTime{
			DateTime: event.Start,
			TimeZone: event.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: event.End,
			TimeZone: event.TimeZone,
		},
	}
}

// toInternalEvents converts Google Calendar events to the internal Event model.
// All-day events without a concrete start datetime are skipped.
func (c *CalendarClient) toInternalEvents(googleEvents []*calendar.Event) []*models.Event {
	var internalEvents []*models.Event
	for _, item := range googleEvents {
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}
		internalEvents = append(internalEvents, c.toInternalEvent(item))
	}
	return internalEvents
}

func (c *CalendarClient) toInternalEvent(item *calendar.Event) *models.Event {
	event := &models.Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
	}
	if item.Start != nil {
		event.Start = item.Start.DateTime
		event.TimeZone = item.Start.TimeZone
	}
	if item.End != nil {
		event.End = item.End.DateTime
	}
	return event
}
