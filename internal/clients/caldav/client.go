package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"github.com/tazhate/weekping/internal/domain"
	"github.com/tazhate/weekping/internal/ics"
)

// Client mirrors events into one CalDAV calendar.
type Client struct {
	baseURL  string
	username string
	password string
	calendar string // path or display name, resolved on first use
	now      func() time.Time

	mu           sync.Mutex
	client       *caldav.Client
	calendarPath string
}

func NewClient(baseURL, username, password, calendar string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		calendar: calendar,
		now:      time.Now,
	}
}

// SetClock sets the time source for occurrence dates and DTSTAMP.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// IsConfigured returns true if the client has an endpoint and credentials
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

// connect establishes connection to CalDAV server
func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendars for the user
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	c.mu.Lock()
	client, err := c.connect()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			DisplayName: cal.Name,
		})
	}
	return result, nil
}

// resolve returns the calendar path. A configured value starting with "/" is
// used as is, anything else is matched against the display names; an empty
// value selects the first calendar.
func (c *Client) resolve(ctx context.Context) (string, error) {
	c.mu.Lock()
	path := c.calendarPath
	c.mu.Unlock()
	if path != "" {
		return path, nil
	}

	if strings.HasPrefix(c.calendar, "/") {
		path = c.calendar
	} else {
		cals, err := c.DiscoverCalendars(ctx)
		if err != nil {
			return "", err
		}
		cal, ok := pickCalendar(cals, c.calendar)
		if !ok {
			return "", fmt.Errorf("calendar %q: %w", c.calendar, domain.ErrNotFound)
		}
		path = cal.Path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	c.mu.Lock()
	c.calendarPath = path
	c.mu.Unlock()
	return path, nil
}

func pickCalendar(cals []Calendar, name string) (Calendar, bool) {
	for _, cal := range cals {
		if name == "" || strings.EqualFold(cal.DisplayName, name) {
			return cal, true
		}
	}
	return Calendar{}, false
}

func (c *Client) target(ctx context.Context) (*caldav.Client, string, error) {
	c.mu.Lock()
	client, err := c.connect()
	c.mu.Unlock()
	if err != nil {
		return nil, "", err
	}
	path, err := c.resolve(ctx)
	if err != nil {
		return nil, "", err
	}
	return client, path, nil
}

func objectPath(calendarPath, eventID string) string {
	return calendarPath + "weekping-" + eventID + ".ics"
}

// PutEvent creates or replaces the calendar object of e.
func (c *Client) PutEvent(ctx context.Context, e *domain.Event) error {
	client, path, err := c.target(ctx)
	if err != nil {
		return err
	}

	cal := ics.Calendar([]*domain.Event{e}, c.now())
	if _, err := client.PutCalendarObject(ctx, objectPath(path, e.ID), cal); err != nil {
		return fmt.Errorf("put event %s: %w", e.ID, err)
	}
	return nil
}

// DeleteEvent removes the calendar object of the event.
func (c *Client) DeleteEvent(ctx context.Context, _ int64, eventID string) error {
	client, path, err := c.target(ctx)
	if err != nil {
		return err
	}

	if err := client.RemoveAll(ctx, objectPath(path, eventID)); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}
