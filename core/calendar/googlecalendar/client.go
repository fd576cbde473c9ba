package googlecalendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hiyadrive/hiya-core/core/calendar"
)

const defaultCalendarID = "primary"

// Client checks availability against and writes bookings into a Google
// calendar.
type Client struct {
	service    *gcalendar.Service
	calendarID string
}

type ClientOption func(*Client)

// WithCalendarID targets a calendar other than the account's primary one.
func WithCalendarID(calendarID string) ClientOption {
	return func(c *Client) { c.calendarID = calendarID }
}

func NewClient(ctx context.Context, credentialsFile string, opts ...ClientOption) (*Client, error) {
	service, err := gcalendar.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcalendar.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	client := &Client{service: service, calendarID: defaultCalendarID}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// IsFree reports whether the calendar has no events overlapping the slot.
func (c *Client) IsFree(ctx context.Context, start time.Time, duration time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "check availability")
	defer span.End()
	span.SetAttributes(
		attribute.String("calendar.id", c.calendarID),
		attribute.String("slot.start", start.Format(time.RFC3339)),
	)

	response, err := c.service.Freebusy.Query(&gcalendar.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: start.Add(duration).Format(time.RFC3339),
		Items:   []*gcalendar.FreeBusyRequestItem{{Id: c.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		err = wrapAPIError("freebusy query failed", err)
		span.RecordError(err)
		return false, err
	}

	busy, ok := response.Calendars[c.calendarID]
	if !ok {
		err := fmt.Errorf("freebusy response missing calendar %q", c.calendarID)
		span.RecordError(err)
		return false, err
	}

	span.SetAttributes(attribute.Int("slot.conflicts", len(busy.Busy)))
	return len(busy.Busy) == 0, nil
}

// SaveEvent writes a confirmed booking into the calendar.
func (c *Client) SaveEvent(ctx context.Context, event calendar.Event) error {
	ctx, span := tracer.Start(ctx, "save event")
	defer span.End()
	span.SetAttributes(attribute.String("calendar.id", c.calendarID))

	description := event.Notes
	if event.ConfirmationNumber != "" {
		if description != "" {
			description += "\n"
		}
		description += "Confirmation number: " + event.ConfirmationNumber
	}

	inserted, err := c.service.Events.Insert(c.calendarID, &gcalendar.Event{
		Summary:     event.Title,
		Location:    event.Location,
		Description: description,
		Start:       &gcalendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &gcalendar.EventDateTime{DateTime: event.Start.Add(event.Duration).Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		err = wrapAPIError("event insert failed", err)
		span.RecordError(err)
		return err
	}

	logger.InfoContext(ctx, "booking saved to calendar",
		"calendar_id", c.calendarID, "event_id", inserted.Id)
	return nil
}

// wrapAPIError folds authorization failures into calendar.ErrUnavailable;
// retrying those without operator intervention is pointless.
func wrapAPIError(msg string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) &&
		(apiErr.Code == 401 || apiErr.Code == 403 || apiErr.Code == 404) {
		return fmt.Errorf("%s: %w: %v", msg, calendar.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
