// Package calendar – Google Calendar adapter.
//
// OAuth flows go through golang.org/x/oauth2 (Google endpoint); data-plane
// calls (free/busy, events) hit the Calendar v3 REST API directly. The API
// base and OAuth endpoint are overridable so tests can point the adapter at
// a local server.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleAPIBase = "https://www.googleapis.com"

var googleScopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/userinfo.email",
}

// GoogleClient implements Client against Google Calendar v3.
type GoogleClient struct {
	http *http.Client

	// Endpoint and APIBase default to Google's production endpoints and are
	// overridable in tests.
	Endpoint oauth2.Endpoint
	APIBase  string
}

// NewGoogleClient returns a Google adapter with a bounded-timeout HTTP client.
func NewGoogleClient(timeout time.Duration) *GoogleClient {
	return &GoogleClient{
		http:     newHTTPClient(timeout),
		Endpoint: google.Endpoint,
		APIBase:  googleAPIBase,
	}
}

func (g *GoogleClient) oauthConfig(cfg Config, redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = cfg.RedirectURI
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       googleScopes,
		Endpoint:     g.Endpoint,
	}
}

// AuthURL builds the consent URL requesting offline access so a refresh
// token is issued.
func (g *GoogleClient) AuthURL(cfg Config, state string) string {
	return g.oauthConfig(cfg, "").AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeCode swaps an authorization code for tokens.
func (g *GoogleClient) ExchangeCode(ctx context.Context, cfg Config, code, redirectURI string) (*Tokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.http)
	tok, err := g.oauthConfig(cfg, redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, mapOAuthErr(err)
	}
	return fromOAuthToken(tok), nil
}

// RefreshAccessToken obtains a fresh access token from a refresh token.
// Google may omit the refresh token in the response; callers keep the old one.
func (g *GoogleClient) RefreshAccessToken(ctx context.Context, cfg Config, refreshToken string) (*Tokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.http)
	src := g.oauthConfig(cfg, "").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mapOAuthErr(err)
	}
	return fromOAuthToken(tok), nil
}

// UserEmail resolves the account email behind an access token.
func (g *GoogleClient) UserEmail(ctx context.Context, accessToken string) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	err := doWithRetry(ctx, func() error {
		return g.getJSON(ctx, accessToken, g.APIBase+"/oauth2/v2/userinfo", &out)
	})
	if err != nil {
		return "", err
	}
	return out.Email, nil
}

// PrimaryCalendarID returns the ID of the account's primary calendar.
func (g *GoogleClient) PrimaryCalendarID(ctx context.Context, accessToken string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := doWithRetry(ctx, func() error {
		return g.getJSON(ctx, accessToken, g.APIBase+"/calendar/v3/calendars/primary", &out)
	})
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

// FreeBusy queries the v3 freeBusy endpoint for one account.
func (g *GoogleClient) FreeBusy(ctx context.Context, accessToken, email string, start, end time.Time) ([]BusyInterval, error) {
	body := map[string]any{
		"timeMin": start.Format(time.RFC3339),
		"timeMax": end.Format(time.RFC3339),
		"items":   []map[string]string{{"id": email}},
	}
	var out struct {
		Calendars map[string]struct {
			Busy []struct {
				Start time.Time `json:"start"`
				End   time.Time `json:"end"`
			} `json:"busy"`
		} `json:"calendars"`
	}
	err := doWithRetry(ctx, func() error {
		return g.postJSON(ctx, accessToken, g.APIBase+"/calendar/v3/freeBusy", body, &out)
	})
	if err != nil {
		return nil, err
	}

	var busy []BusyInterval
	for _, cal := range out.Calendars {
		for _, b := range cal.Busy {
			busy = append(busy, BusyInterval{Start: b.Start, End: b.End})
		}
	}
	return busy, nil
}

// googleEvent is the wire shape of a Calendar v3 event.
type googleEvent struct {
	ID          string `json:"id,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       *struct {
		DateTime string `json:"dateTime"`
	} `json:"start,omitempty"`
	End *struct {
		DateTime string `json:"dateTime"`
	} `json:"end,omitempty"`
	Attendees []struct {
		Email string `json:"email"`
	} `json:"attendees,omitempty"`
	HangoutLink string `json:"hangoutLink,omitempty"`
}

func toGoogleEvent(ev Event) map[string]any {
	body := map[string]any{
		"summary": ev.Title,
		"start":   map[string]string{"dateTime": ev.Start.Format(time.RFC3339)},
		"end":     map[string]string{"dateTime": ev.End.Format(time.RFC3339)},
	}
	if ev.Description != "" {
		body["description"] = ev.Description
	}
	if ev.Location != "" {
		body["location"] = ev.Location
	}
	if len(ev.Attendees) > 0 {
		attendees := make([]map[string]string, 0, len(ev.Attendees))
		for _, a := range ev.Attendees {
			attendees = append(attendees, map[string]string{"email": a})
		}
		body["attendees"] = attendees
	}
	return body
}

// CreateEvent mirrors an event to the provider calendar.
func (g *GoogleClient) CreateEvent(ctx context.Context, accessToken, calendarID string, ev Event) (*Event, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	u := fmt.Sprintf("%s/calendar/v3/calendars/%s/events?conferenceDataVersion=1",
		g.APIBase, url.PathEscape(calendarID))

	var out googleEvent
	err := doWithRetry(ctx, func() error {
		return g.postJSON(ctx, accessToken, u, toGoogleEvent(ev), &out)
	})
	if err != nil {
		return nil, err
	}

	created := ev
	created.ID = out.ID
	if created.MeetingLink == "" {
		created.MeetingLink = out.HangoutLink
	}
	return &created, nil
}

// UpdateEvent patches an existing provider event.
func (g *GoogleClient) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, ev Event) error {
	if calendarID == "" {
		calendarID = "primary"
	}
	u := fmt.Sprintf("%s/calendar/v3/calendars/%s/events/%s",
		g.APIBase, url.PathEscape(calendarID), url.PathEscape(eventID))
	return doWithRetry(ctx, func() error {
		return g.request(ctx, http.MethodPatch, accessToken, u, toGoogleEvent(ev), nil, nil)
	})
}

// DeleteEvent removes a provider event; a 404 counts as success.
func (g *GoogleClient) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	if calendarID == "" {
		calendarID = "primary"
	}
	u := fmt.Sprintf("%s/calendar/v3/calendars/%s/events/%s",
		g.APIBase, url.PathEscape(calendarID), url.PathEscape(eventID))
	return doWithRetry(ctx, func() error {
		return g.request(ctx, http.MethodDelete, accessToken, u, nil, nil, []int{http.StatusNotFound})
	})
}

// ---- HTTP plumbing ----

func (g *GoogleClient) getJSON(ctx context.Context, accessToken, u string, out any) error {
	return g.request(ctx, http.MethodGet, accessToken, u, nil, out, nil)
}

func (g *GoogleClient) postJSON(ctx context.Context, accessToken, u string, body, out any) error {
	return g.request(ctx, http.MethodPost, accessToken, u, body, out, nil)
}

// request performs one authenticated REST call. okStatuses lists extra status
// codes treated as success besides 2xx.
func (g *GoogleClient) request(ctx context.Context, method, accessToken, u string, body, out any, okStatuses []int) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			return json.NewDecoder(resp.Body).Decode(out)
		}
		return nil
	}
	for _, s := range okStatuses {
		if resp.StatusCode == s {
			return nil
		}
	}
	return statusError(resp)
}

// statusError maps an error response to the adapter error taxonomy.
func statusError(resp *http.Response) error {
	text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrReauthRequired, string(text))
	}
	return &apiError{Status: resp.StatusCode, Body: string(text)}
}

// mapOAuthErr translates x/oauth2 retrieval failures: 4xx token endpoint
// responses (invalid_grant, bad code) require re-authorization, everything
// else is surfaced as-is.
func mapOAuthErr(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
		return fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	return err
}

func fromOAuthToken(tok *oauth2.Token) *Tokens {
	expiresIn := int64(time.Until(tok.Expiry).Seconds())
	if tok.Expiry.IsZero() {
		expiresIn = 3600
	}
	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}
