package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func testGoogle(srv *httptest.Server) *GoogleClient {
	g := NewGoogleClient(2 * time.Second)
	g.APIBase = srv.URL
	g.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/auth",
		TokenURL: srv.URL + "/token",
	}
	return g
}

func testOutlook(srv *httptest.Server) *OutlookClient {
	o := NewOutlookClient(2 * time.Second)
	o.APIBase = srv.URL
	o.LoginBase = srv.URL
	return o
}

func TestGoogleAuthURL(t *testing.T) {
	g := NewGoogleClient(0)
	u := g.AuthURL(Config{ClientID: "cid", RedirectURI: "https://app/cb"}, "state-1")

	for _, want := range []string{
		"client_id=cid",
		"access_type=offline",
		"prompt=consent",
		"state=state-1",
	} {
		if !strings.Contains(u, want) {
			t.Fatalf("auth URL missing %q: %s", want, u)
		}
	}
}

func TestOutlookAuthURL_TenantScoped(t *testing.T) {
	o := NewOutlookClient(0)

	u := o.AuthURL(Config{ClientID: "cid", AuthTenant: "contoso"}, "s")
	if !strings.Contains(u, "/contoso/oauth2/v2.0/authorize") {
		t.Fatalf("auth URL not tenant scoped: %s", u)
	}

	u = o.AuthURL(Config{ClientID: "cid"}, "s")
	if !strings.Contains(u, "/common/oauth2/v2.0/authorize") {
		t.Fatalf("empty tenant should fall back to common: %s", u)
	}
	if !strings.Contains(u, "offline_access") {
		t.Fatalf("auth URL missing offline_access scope: %s", u)
	}
}

func TestGoogleFreeBusy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendar/v3/freeBusy" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"calendars":{"a@x.com":{"busy":[
			{"start":"2030-06-03T10:00:00Z","end":"2030-06-03T11:00:00Z"},
			{"start":"2030-06-03T14:00:00Z","end":"2030-06-03T15:30:00Z"}
		]}}}`))
	}))
	defer srv.Close()

	g := testGoogle(srv)
	busy, err := g.FreeBusy(context.Background(), "tok", "a@x.com",
		time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 6, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FreeBusy: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("expected 2 busy intervals, got %d", len(busy))
	}
	if busy[0].Start.Hour() != 10 || busy[1].End.Minute() != 30 {
		t.Fatalf("busy intervals parsed wrong: %+v", busy)
	}
}

func TestGoogleCreateEvent_ReturnsIDAndMeetingLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/calendar/v3/calendars/primary/events") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"ev-123","hangoutLink":"https://meet.google.com/abc"}`))
	}))
	defer srv.Close()

	g := testGoogle(srv)
	ev, err := g.CreateEvent(context.Background(), "tok", "", Event{
		Title: "Interview",
		Start: time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2030, 6, 3, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.ID != "ev-123" {
		t.Fatalf("event ID = %q, want ev-123", ev.ID)
	}
	if ev.MeetingLink != "https://meet.google.com/abc" {
		t.Fatalf("meeting link = %q", ev.MeetingLink)
	}
}

func TestGoogleDeleteEvent_Tolerates404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := testGoogle(srv)
	if err := g.DeleteEvent(context.Background(), "tok", "primary", "gone"); err != nil {
		t.Fatalf("deleting an already-gone event should succeed, got %v", err)
	}
}

func TestUnauthorizedMapsToReauth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer srv.Close()

	g := testGoogle(srv)
	_, err := g.UserEmail(context.Background(), "expired")
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("401 should map to ErrReauthRequired, got %v", err)
	}
	if IsTransient(err) {
		t.Fatal("credential failures must not be classified transient")
	}
}

func TestTransientFailureRetriedOnce(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"email":"a@x.com"}`))
	}))
	defer srv.Close()

	g := testGoogle(srv)
	email, err := g.UserEmail(context.Background(), "tok")
	if err != nil {
		t.Fatalf("retry should have recovered the call: %v", err)
	}
	if email != "a@x.com" {
		t.Fatalf("email = %q", email)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls)
	}
}

func TestOutlookFreeBusy_SkipsFreeSlices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/calendar/getSchedule" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[{"scheduleItems":[
			{"status":"busy","start":{"dateTime":"2030-06-03T10:00:00.0000000"},"end":{"dateTime":"2030-06-03T11:00:00.0000000"}},
			{"status":"free","start":{"dateTime":"2030-06-03T11:00:00.0000000"},"end":{"dateTime":"2030-06-03T12:00:00.0000000"}},
			{"status":"tentative","start":{"dateTime":"2030-06-03T13:00:00.0000000"},"end":{"dateTime":"2030-06-03T14:00:00.0000000"}}
		]}]}`))
	}))
	defer srv.Close()

	o := testOutlook(srv)
	busy, err := o.FreeBusy(context.Background(), "tok", "a@x.com",
		time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 6, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FreeBusy: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("expected busy+tentative to count, got %d intervals", len(busy))
	}
	if busy[0].Start.Hour() != 10 || busy[1].Start.Hour() != 13 {
		t.Fatalf("busy intervals parsed wrong: %+v", busy)
	}
}

func TestOutlookUserEmail_FallsBackToUPN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"mail":"","userPrincipalName":"user@contoso.com"}`))
	}))
	defer srv.Close()

	o := testOutlook(srv)
	email, err := o.UserEmail(context.Background(), "tok")
	if err != nil {
		t.Fatalf("UserEmail: %v", err)
	}
	if email != "user@contoso.com" {
		t.Fatalf("email = %q, want userPrincipalName fallback", email)
	}
}

func TestOutlookCreateEvent_TeamsLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"graph-1","onlineMeeting":{"joinUrl":"https://teams.microsoft.com/l/x"}}`))
	}))
	defer srv.Close()

	o := testOutlook(srv)
	ev, err := o.CreateEvent(context.Background(), "tok", "", Event{
		Title: "Interview",
		Start: time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2030, 6, 3, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.ID != "graph-1" || ev.MeetingLink != "https://teams.microsoft.com/l/x" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestTokensExpiresAt(t *testing.T) {
	now := time.Date(2030, 6, 3, 12, 0, 0, 0, time.UTC)
	tok := Tokens{ExpiresIn: 3600}
	if got := tok.ExpiresAt(now); !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v", got)
	}
}
