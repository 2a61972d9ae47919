package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thermostat_away"
)

const (
	defaultEventsURL = "https://www.googleapis.com/calendar/v3/calendars/primary/events"
	defaultTokenURL  = "https://oauth2.googleapis.com/token"

	requestTimeout = 15 * time.Second
)

// GoogleConfig carries the OAuth material for the read-only calendar scope.
// The access token is short-lived and exchanged from the refresh token on
// every listing; no token state is kept between calls.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	EventsURL    string // override for tests
	TokenURL     string // override for tests
}

// GoogleClient implements EventsAPI against the Google Calendar REST API.
type GoogleClient struct {
	cfg   GoogleConfig
	httpc *http.Client
}

var _ EventsAPI = (*GoogleClient)(nil)

func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.EventsURL == "" {
		cfg.EventsURL = defaultEventsURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	return &GoogleClient{
		cfg:   cfg,
		httpc: &http.Client{Timeout: requestTimeout},
	}
}

type googleEventTime struct {
	DateTime string `json:"dateTime"`
}

type googleEvent struct {
	Summary        string          `json:"summary"`
	Location       string          `json:"location"`
	Description    string          `json:"description"`
	Start          googleEventTime `json:"start"`
	End            googleEventTime `json:"end"`
	HangoutLink    string          `json:"hangoutLink"`
	ConferenceData *struct {
		EntryPoints []json.RawMessage `json:"entryPoints"`
	} `json:"conferenceData"`
}

// ListEvents lists the primary calendar's events in [from, to), ordered by
// start time. All-day events carry no dateTime and are skipped.
func (c *GoogleClient) ListEvents(ctx context.Context, accountID int, from, to time.Time) ([]thermostat_away.CalendarEvent, error) {
	token, err := c.refreshAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("timeMin", from.UTC().Format(time.RFC3339))
	q.Set("timeMax", to.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.EventsURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list events: calendar API status %d", resp.StatusCode)
	}

	var body struct {
		Items []googleEvent `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}

	out := make([]thermostat_away.CalendarEvent, 0, len(body.Items))
	for _, item := range body.Items {
		start, err1 := time.Parse(time.RFC3339, item.Start.DateTime)
		end, err2 := time.Parse(time.RFC3339, item.End.DateTime)
		if err1 != nil || err2 != nil {
			continue // all-day or malformed event
		}
		hasConference := item.HangoutLink != "" ||
			(item.ConferenceData != nil && len(item.ConferenceData.EntryPoints) > 0)
		out = append(out, thermostat_away.CalendarEvent{
			Start:             start.UTC(),
			End:               end.UTC(),
			Summary:           item.Summary,
			Location:          item.Location,
			Description:       item.Description,
			HasConferenceLink: hasConference,
		})
	}
	return out, nil
}

func (c *GoogleClient) refreshAccessToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("refresh_token", c.cfg.RefreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh access token: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("refresh access token: empty token in response")
	}
	return body.AccessToken, nil
}
