package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"prepcal/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

// naiveLayout matches the offset-less datetimes the reconciler hands us.
const naiveLayout = "2006-01-02T15:04:05"

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "prepcal/1.0")
	return t.Transport.RoundTrip(req)
}

// Client is a calendar backend speaking CalDAV. It satisfies the same
// capability interface as the Google Calendar client, so the reconciler does
// not care which one it writes to.
type Client struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	calendarPath string
}

// NewClient creates and initializes a CalDAV client against the given server
// endpoint, bound to the named calendar.
func NewClient(logger *slog.Logger, endpoint, username, password, calendarName string) (*Client, error) {
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &Client{caldavClient: caldavClient, logger: logger}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := c.findCalendar(context.Background(), calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return c, nil
}

// ListEvents queries the calendar for upcoming events and keeps the ones
// whose summary contains the filter, ordered by start time. CalDAV has no
// server-side text search, so the summary filter is applied client-side.
func (c *Client) ListEvents(ctx context.Context, summaryFilter string, timeMin time.Time, maxResults int64) ([]*models.Event, error) {
	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: timeMin,
				End:   timeMin.AddDate(1, 0, 0),
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	type timedEvent struct {
		event *models.Event
		start time.Time
	}
	var matched []timedEvent
	for _, obj := range objects {
		for _, comp := range obj.Data.Component.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			summary := textProp(comp.Props, ical.PropSummary)
			if !strings.Contains(summary, summaryFilter) {
				continue
			}
			start, err := comp.Props.DateTime(ical.PropDateTimeStart, time.UTC)
			if err != nil {
				continue
			}
			end, _ := comp.Props.DateTime(ical.PropDateTimeEnd, time.UTC)
			matched = append(matched, timedEvent{
				event: &models.Event{
					ID:          textProp(comp.Props, ical.PropUID),
					Summary:     summary,
					Description: textProp(comp.Props, ical.PropDescription),
					Start:       start.Format(time.RFC3339),
					End:         end.Format(time.RFC3339),
				},
				start: start,
			})
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].start.Before(matched[j].start) })

	var events []*models.Event
	for _, te := range matched {
		if int64(len(events)) >= maxResults {
			break
		}
		events = append(events, te.event)
	}
	return events, nil
}

// CreateEvent writes a new event object to the calendar collection.
func (c *Client) CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	uid := uuid.New().String()
	if err := c.putEvent(ctx, uid, event); err != nil {
		return nil, err
	}
	c.logger.Debug("Created CalDAV event", "uid", uid, "summary", event.Summary)
	created := *event
	created.ID = uid
	return &created, nil
}

// UpdateEvent replaces the event object stored under the given UID.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, event *models.Event) (*models.Event, error) {
	if err := c.putEvent(ctx, eventID, event); err != nil {
		return nil, err
	}
	c.logger.Debug("Updated CalDAV event", "uid", eventID, "summary", event.Summary)
	updated := *event
	updated.ID = eventID
	return &updated, nil
}

func (c *Client) putEvent(ctx context.Context, uid string, event *models.Event) error {
	vevent, err := c.toICal(uid, event)
	if err != nil {
		return err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//prepcal//EN")
	cal.Children = append(cal.Children, vevent)

	eventPath := path.Join(c.calendarPath, fmt.Sprintf("%s.ics", uid))
	if _, err := c.caldavClient.PutCalendarObject(ctx, eventPath, cal); err != nil {
		return fmt.Errorf("failed to put calendar object: %w", err)
	}
	return nil
}

// toICal converts the internal event payload to an ical VEVENT component.
// The offset-less datetimes are interpreted in the event's timezone.
func (c *Client) toICal(uid string, event *models.Event) (*ical.Component, error) {
	loc := time.UTC
	if event.TimeZone != "" {
		var err error
		loc, err = time.LoadLocation(event.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid event timezone %q: %w", event.TimeZone, err)
		}
	}
	start, err := time.ParseInLocation(naiveLayout, event.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid event start %q: %w", event.Start, err)
	}
	end, err := time.ParseInLocation(naiveLayout, event.End, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid event end %q: %w", event.End, err)
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, event.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, end)
	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	return ve, nil
}

// findCalendar discovers the user's calendars and returns the path of the one
// with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// textProp reads a text property value, tolerating its absence.
func textProp(props ical.Props, name string) string {
	prop := props.Get(name)
	if prop == nil {
		return ""
	}
	return prop.Value
}
