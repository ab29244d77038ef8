// Package calendar wraps the external calendar backends (Google Calendar v3,
// Microsoft Graph v1.0) behind one Client capability: OAuth authorization,
// token exchange/refresh, free/busy queries, and event CRUD.
//
// Adapters are thin REST wrappers. They classify failures into re-auth
// (invalid/expired credentials) versus transient (5xx, network), retry the
// transient class once, and never retry the re-auth class: a 401 means the
// caller must refresh or reconnect, not call again.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Config is a tenant's OAuth client registration for one provider.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// AuthTenant is the Microsoft directory tenant ("common" when empty).
	// Ignored by the Google adapter.
	AuthTenant string
}

// Tokens is the uniform shape of an OAuth token grant.
type Tokens struct {
	AccessToken  string
	RefreshToken string // may be empty on refresh responses
	ExpiresIn    int64  // seconds until access token expiry
}

// ExpiresAt converts the relative ExpiresIn into an absolute instant.
func (t Tokens) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// BusyInterval is one opaque busy range from a free/busy query.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Event is the provider-neutral event shape.
type Event struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	Attendees   []string
	MeetingLink string
}

// Client is the capability every provider adapter implements.
type Client interface {
	// AuthURL builds the user-facing OAuth consent URL.
	AuthURL(cfg Config, state string) string

	// ExchangeCode swaps an authorization code for tokens.
	ExchangeCode(ctx context.Context, cfg Config, code, redirectURI string) (*Tokens, error)

	// RefreshAccessToken obtains a fresh access token from a refresh token.
	RefreshAccessToken(ctx context.Context, cfg Config, refreshToken string) (*Tokens, error)

	// UserEmail resolves the account email behind an access token.
	UserEmail(ctx context.Context, accessToken string) (string, error)

	// FreeBusy returns the busy ranges for one account within [start, end).
	FreeBusy(ctx context.Context, accessToken, email string, start, end time.Time) ([]BusyInterval, error)

	// CreateEvent mirrors an event to the provider and returns it with the
	// provider-assigned ID and meeting link filled in.
	CreateEvent(ctx context.Context, accessToken, calendarID string, ev Event) (*Event, error)

	// UpdateEvent patches an existing provider event.
	UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, ev Event) error

	// DeleteEvent removes a provider event. Deleting an already-gone event
	// is not an error.
	DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
}

// ErrReauthRequired marks credential failures (401/invalid_grant). The stored
// connection needs a token refresh or a full re-authorization; retrying the
// same call is pointless.
var ErrReauthRequired = errors.New("calendar: provider rejected credentials")

// apiError carries the provider's status and response text for wrapped REST
// failures.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("calendar: provider returned %d: %s", e.Status, e.Body)
}

// IsTransient reports whether err looks like a retriable provider failure
// (5xx or transport-level) rather than a permanent rejection.
func IsTransient(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status >= 500
	}
	// Transport errors (timeouts, refused connections) are transient.
	return err != nil && !errors.Is(err, ErrReauthRequired)
}

const defaultHTTPTimeout = 10 * time.Second

// newHTTPClient builds the bounded-timeout client shared by both adapters.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// doWithRetry performs the request via fn, retrying once after a short pause
// when the failure is transient. fn must be idempotent for the call sites
// that use it (reads and token grants).
func doWithRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !IsTransient(err) {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}
	return fn()
}
