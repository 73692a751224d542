package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"prepcal/internal/extract"
	"prepcal/internal/models"
	"prepcal/internal/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailbox struct {
	emails []*models.Email
	err    error
}

func (f *fakeMailbox) FetchOrderEmails(context.Context) ([]*models.Email, error) {
	return f.emails, f.err
}

// fakeCalendar serves existing events keyed by summary filter and records writes.
type fakeCalendar struct {
	existing      map[string][]*models.Event
	listErrFilter string // filters containing this substring fail to list

	created []*models.Event
	updated map[string][]*models.Event
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		existing: make(map[string][]*models.Event),
		updated:  make(map[string][]*models.Event),
	}
}

func (f *fakeCalendar) ListEvents(_ context.Context, summaryFilter string, _ time.Time, _ int64) ([]*models.Event, error) {
	if f.listErrFilter != "" && strings.Contains(summaryFilter, f.listErrFilter) {
		return nil, errors.New("calendar unreachable")
	}
	return f.existing[summaryFilter], nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, event *models.Event) (*models.Event, error) {
	f.created = append(f.created, event)
	created := *event
	created.ID = fmt.Sprintf("created-%d", len(f.created))
	return &created, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, eventID string, event *models.Event) (*models.Event, error) {
	f.updated[eventID] = append(f.updated[eventID], event)
	updated := *event
	updated.ID = eventID
	return &updated, nil
}

const notificationHTML = `<html><body>
<p><strong>Delivery Date:</strong> Wednesday, April 10</p>
<p>Recipes:</p>
<ul>
  <li>Chicken Tacos</li>
  <li>Veggie Bowl</li>
</ul>
</body></html>`

func newTestPipeline(mailbox Mailbox, cal reconcile.Calendar) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, mailbox, extract.NewExtractor(logger), reconcile.NewReconciler(logger, cal, "America/Vancouver", false))
}

func TestRunCreatesEventForNewOrder(t *testing.T) {
	mailbox := &fakeMailbox{emails: []*models.Email{{ID: "msg-1", HTML: notificationHTML}}}
	cal := newFakeCalendar()

	require.NoError(t, newTestPipeline(mailbox, cal).Run(context.Background()))

	require.Len(t, cal.created, 1)
	assert.Empty(t, cal.updated)

	created := cal.created[0]
	assert.Contains(t, created.Summary, "Chicken Tacos")
	assert.Contains(t, created.Summary, "Veggie Bowl")

	year := time.Now().UTC().Year()
	assert.Equal(t, fmt.Sprintf("%d-04-10T17:00:00", year), created.Start)
	assert.Equal(t, fmt.Sprintf("%d-04-10T18:00:00", year), created.End)
	assert.Equal(t, "America/Vancouver", created.TimeZone)
}

func TestRunUpdatesExistingEventAtSameStart(t *testing.T) {
	year := time.Now().UTC().Year()
	summary := "FreshPrep Order - Chicken Tacos, Veggie Bowl"

	cal := newFakeCalendar()
	cal.existing[summary] = []*models.Event{{
		ID:      "evt-9",
		Summary: summary,
		Start:   fmt.Sprintf("%d-04-10T17:00:00-07:00", year),
	}}
	mailbox := &fakeMailbox{emails: []*models.Email{{ID: "msg-1", HTML: notificationHTML}}}

	require.NoError(t, newTestPipeline(mailbox, cal).Run(context.Background()))

	assert.Empty(t, cal.created)
	require.Len(t, cal.updated["evt-9"], 1)
}

func TestRunSkipsEmailsWithoutOrders(t *testing.T) {
	mailbox := &fakeMailbox{emails: []*models.Email{
		{ID: "msg-1", HTML: `<html><body><p>Your box has shipped!</p></body></html>`},
	}}
	cal := newFakeCalendar()

	require.NoError(t, newTestPipeline(mailbox, cal).Run(context.Background()))

	assert.Empty(t, cal.created)
	assert.Empty(t, cal.updated)
}

func TestRunFailingEmailDoesNotAbortSiblings(t *testing.T) {
	mailbox := &fakeMailbox{emails: []*models.Email{
		{ID: "msg-1", HTML: notificationHTML}, // summary contains "Chicken", listing fails
		{ID: "msg-2", HTML: `<html><body>
<p><strong>Delivery Date:</strong> Thursday, April 11</p>
<p>Recipes:</p>
<ul><li>Miso Salmon</li></ul>
</body></html>`},
	}}
	cal := newFakeCalendar()
	cal.listErrFilter = "Chicken"

	require.NoError(t, newTestPipeline(mailbox, cal).Run(context.Background()))

	require.Len(t, cal.created, 1, "the healthy email is still processed")
	assert.Contains(t, cal.created[0].Summary, "Miso Salmon")
}

func TestRunReturnsMailboxError(t *testing.T) {
	mailbox := &fakeMailbox{err: errors.New("mailbox unreachable")}
	cal := newFakeCalendar()

	err := newTestPipeline(mailbox, cal).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, mailbox.err)
}
