package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	microsoftLoginBase = "https://login.microsoftonline.com"
	graphAPIBase       = "https://graph.microsoft.com/v1.0"
)

var outlookScopes = []string{
	"offline_access",
	"User.Read",
	"Calendars.ReadWrite",
}

// OutlookClient implements Client against Microsoft Graph v1.0. OAuth uses
// the Microsoft identity platform v2.0 endpoints, scoped to the directory
// tenant from Config.AuthTenant ("common" for multi-tenant registrations).
type OutlookClient struct {
	http *http.Client

	// LoginBase and APIBase default to Microsoft's production endpoints and
	// are overridable in tests.
	LoginBase string
	APIBase   string
}

// NewOutlookClient returns an Outlook adapter with a bounded-timeout HTTP
// client.
func NewOutlookClient(timeout time.Duration) *OutlookClient {
	return &OutlookClient{
		http:      newHTTPClient(timeout),
		LoginBase: microsoftLoginBase,
		APIBase:   graphAPIBase,
	}
}

func (o *OutlookClient) endpoint(cfg Config) oauth2.Endpoint {
	tenant := cfg.AuthTenant
	if tenant == "" {
		tenant = "common"
	}
	return oauth2.Endpoint{
		AuthURL:  fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", o.LoginBase, tenant),
		TokenURL: fmt.Sprintf("%s/%s/oauth2/v2.0/token", o.LoginBase, tenant),
	}
}

func (o *OutlookClient) oauthConfig(cfg Config, redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = cfg.RedirectURI
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       outlookScopes,
		Endpoint:     o.endpoint(cfg),
	}
}

// AuthURL builds the consent URL. offline_access is in the scope list so a
// refresh token is issued.
func (o *OutlookClient) AuthURL(cfg Config, state string) string {
	return o.oauthConfig(cfg, "").AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_mode", "query"),
	)
}

// ExchangeCode swaps an authorization code for tokens.
func (o *OutlookClient) ExchangeCode(ctx context.Context, cfg Config, code, redirectURI string) (*Tokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.http)
	tok, err := o.oauthConfig(cfg, redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, mapOAuthErr(err)
	}
	return fromOAuthToken(tok), nil
}

// RefreshAccessToken obtains a fresh access token. Microsoft rotates refresh
// tokens, so the response usually carries a new one.
func (o *OutlookClient) RefreshAccessToken(ctx context.Context, cfg Config, refreshToken string) (*Tokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.http)
	src := o.oauthConfig(cfg, "").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mapOAuthErr(err)
	}
	return fromOAuthToken(tok), nil
}

// UserEmail resolves the account email behind an access token. Graph reports
// "mail" for mailbox-backed accounts and falls back to userPrincipalName.
func (o *OutlookClient) UserEmail(ctx context.Context, accessToken string) (string, error) {
	var out struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	err := doWithRetry(ctx, func() error {
		return o.request(ctx, http.MethodGet, accessToken, o.APIBase+"/me", nil, &out, nil)
	})
	if err != nil {
		return "", err
	}
	if out.Mail != "" {
		return out.Mail, nil
	}
	return out.UserPrincipalName, nil
}

// FreeBusy queries /me/calendar/getSchedule for one account. Graph reports
// per-slice status; everything that is not "free" counts as busy.
func (o *OutlookClient) FreeBusy(ctx context.Context, accessToken, email string, start, end time.Time) ([]BusyInterval, error) {
	body := map[string]any{
		"schedules": []string{email},
		"startTime": map[string]string{
			"dateTime": start.UTC().Format("2006-01-02T15:04:05"),
			"timeZone": "UTC",
		},
		"endTime": map[string]string{
			"dateTime": end.UTC().Format("2006-01-02T15:04:05"),
			"timeZone": "UTC",
		},
		"availabilityViewInterval": 30,
	}
	var out struct {
		Value []struct {
			ScheduleItems []struct {
				Status string `json:"status"`
				Start  struct {
					DateTime string `json:"dateTime"`
				} `json:"start"`
				End struct {
					DateTime string `json:"dateTime"`
				} `json:"end"`
			} `json:"scheduleItems"`
		} `json:"value"`
	}
	err := doWithRetry(ctx, func() error {
		return o.request(ctx, http.MethodPost, accessToken, o.APIBase+"/me/calendar/getSchedule", body, &out, nil)
	})
	if err != nil {
		return nil, err
	}

	var busy []BusyInterval
	for _, sched := range out.Value {
		for _, item := range sched.ScheduleItems {
			if strings.EqualFold(item.Status, "free") {
				continue
			}
			s, err := parseGraphTime(item.Start.DateTime)
			if err != nil {
				continue
			}
			e, err := parseGraphTime(item.End.DateTime)
			if err != nil {
				continue
			}
			busy = append(busy, BusyInterval{Start: s, End: e})
		}
	}
	return busy, nil
}

// parseGraphTime handles Graph's zone-less timestamps, which getSchedule
// returns in the requested time zone (UTC here) with fractional seconds.
func parseGraphTime(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
		time.RFC3339,
	} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("calendar: unparseable graph timestamp %q", s)
}

func toGraphEvent(ev Event) map[string]any {
	body := map[string]any{
		"subject": ev.Title,
		"start": map[string]string{
			"dateTime": ev.Start.UTC().Format("2006-01-02T15:04:05"),
			"timeZone": "UTC",
		},
		"end": map[string]string{
			"dateTime": ev.End.UTC().Format("2006-01-02T15:04:05"),
			"timeZone": "UTC",
		},
		"isOnlineMeeting": true,
	}
	if ev.Description != "" {
		body["body"] = map[string]string{"contentType": "HTML", "content": ev.Description}
	}
	if ev.Location != "" {
		body["location"] = map[string]string{"displayName": ev.Location}
	}
	if len(ev.Attendees) > 0 {
		attendees := make([]map[string]any, 0, len(ev.Attendees))
		for _, a := range ev.Attendees {
			attendees = append(attendees, map[string]any{
				"emailAddress": map[string]string{"address": a},
				"type":         "required",
			})
		}
		body["attendees"] = attendees
	}
	return body
}

// CreateEvent mirrors an event to the account's default calendar and returns
// it with the Graph event ID and Teams join link filled in.
func (o *OutlookClient) CreateEvent(ctx context.Context, accessToken, calendarID string, ev Event) (*Event, error) {
	u := o.APIBase + "/me/events"
	if calendarID != "" {
		u = fmt.Sprintf("%s/me/calendars/%s/events", o.APIBase, url.PathEscape(calendarID))
	}

	var out struct {
		ID            string `json:"id"`
		OnlineMeeting *struct {
			JoinURL string `json:"joinUrl"`
		} `json:"onlineMeeting"`
	}
	err := doWithRetry(ctx, func() error {
		return o.request(ctx, http.MethodPost, accessToken, u, toGraphEvent(ev), &out, nil)
	})
	if err != nil {
		return nil, err
	}

	created := ev
	created.ID = out.ID
	if created.MeetingLink == "" && out.OnlineMeeting != nil {
		created.MeetingLink = out.OnlineMeeting.JoinURL
	}
	return &created, nil
}

// UpdateEvent patches an existing Graph event.
func (o *OutlookClient) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, ev Event) error {
	u := fmt.Sprintf("%s/me/events/%s", o.APIBase, url.PathEscape(eventID))
	return doWithRetry(ctx, func() error {
		return o.request(ctx, http.MethodPatch, accessToken, u, toGraphEvent(ev), nil, nil)
	})
}

// DeleteEvent removes a Graph event; a 404 counts as success.
func (o *OutlookClient) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	u := fmt.Sprintf("%s/me/events/%s", o.APIBase, url.PathEscape(eventID))
	return doWithRetry(ctx, func() error {
		return o.request(ctx, http.MethodDelete, accessToken, u, nil, nil, []int{http.StatusNotFound})
	})
}

// request performs one authenticated Graph call. okStatuses lists extra
// status codes treated as success besides 2xx.
func (o *OutlookClient) request(ctx context.Context, method, accessToken, u string, body, out any, okStatuses []int) error {
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

	resp, err := o.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && resp.StatusCode != http.StatusNoContent {
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
