// Package services – CalendarService
//
// This file implements the CalendarService, which owns the OAuth lifecycle of
// per-user calendar connections (connect, list, disconnect), keeps access
// tokens fresh, and exposes free/busy and common-availability queries on top
// of the provider adapters. Token refresh is deduplicated per connection with
// singleflight so concurrent requests against an expiring connection trigger
// exactly one round-trip to the provider.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/rav4353/ayphen-scheduling/internal/availability"
	"github.com/rav4353/ayphen-scheduling/internal/calendar"
	"github.com/rav4353/ayphen-scheduling/internal/domain"
	"github.com/rav4353/ayphen-scheduling/internal/repo"
)

// refreshBuffer is how close to expiry an access token may get before the
// service refreshes it ahead of use.
const refreshBuffer = 5 * time.Minute

// CalendarService implements the use-cases around external calendar
// integration. All provider traffic goes through the injected adapters, which
// makes the service fully testable against httptest-backed clients.
type CalendarService struct {
	// DB is the database handle used for connection and event records.
	DB *gorm.DB

	// Google and Outlook are the provider adapters.
	Google  calendar.Client
	Outlook calendar.Client

	// refresh deduplicates concurrent token refreshes per connection ID.
	refresh singleflight.Group
}

// clientFor maps a provider value to its adapter.
func (s *CalendarService) clientFor(provider domain.CalendarProvider) (calendar.Client, error) {
	switch provider {
	case domain.ProviderGoogle:
		if s.Google != nil {
			return s.Google, nil
		}
	case domain.ProviderOutlook:
		if s.Outlook != nil {
			return s.Outlook, nil
		}
	default:
		return nil, ErrUnsupportedProvider
	}
	return nil, ErrUnsupportedProvider
}

// providerConfig loads the tenant's OAuth client registration.
func (s *CalendarService) providerConfig(ctx context.Context, tenantID string, provider domain.CalendarProvider) (calendar.Config, error) {
	cfg, err := repo.GetProviderConfig(ctx, s.DB, tenantID, provider)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return calendar.Config{}, ErrProviderNotConfigured
		}
		return calendar.Config{}, err
	}
	return calendar.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		AuthTenant:   cfg.AuthTenant,
	}, nil
}

// AuthURL builds the OAuth consent URL for the tenant's registration.
// state is caller-provided and round-trips through the provider unchanged.
func (s *CalendarService) AuthURL(ctx context.Context, tenantID string, provider domain.CalendarProvider, state string) (string, error) {
	client, err := s.clientFor(provider)
	if err != nil {
		return "", err
	}
	cfg, err := s.providerConfig(ctx, tenantID, provider)
	if err != nil {
		return "", err
	}
	return client.AuthURL(cfg, state), nil
}

// Connect completes the OAuth flow: exchanges the authorization code,
// resolves the account email, and upserts the (user, provider) connection.
// Reconnecting an existing pairing replaces its tokens in place.
func (s *CalendarService) Connect(ctx context.Context, tenantID, userID string, provider domain.CalendarProvider, code, redirectURI string) (*domain.CalendarConnection, error) {
	client, err := s.clientFor(provider)
	if err != nil {
		return nil, err
	}
	cfg, err := s.providerConfig(ctx, tenantID, provider)
	if err != nil {
		return nil, err
	}

	tokens, err := client.ExchangeCode(ctx, cfg, code, redirectURI)
	if err != nil {
		if errors.Is(err, calendar.ErrReauthRequired) {
			return nil, ErrReauthRequired
		}
		return nil, err
	}

	email, err := client.UserEmail(ctx, tokens.AccessToken)
	if err != nil {
		// The connection is still usable without the email label.
		log.Warn().Err(err).Str("provider", string(provider)).Msg("could not resolve calendar account email")
	}

	conn := &domain.CalendarConnection{
		UserID:         userID,
		Provider:       provider,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: tokens.ExpiresAt(time.Now().UTC()),
		Email:          email,
	}
	if err := repo.UpsertConnection(ctx, s.DB, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Connections lists every connection the user holds.
func (s *CalendarService) Connections(ctx context.Context, userID string) ([]domain.CalendarConnection, error) {
	return repo.ListConnections(ctx, s.DB, userID)
}

// Disconnect deactivates the (user, provider) connection and clears its
// stored tokens.
func (s *CalendarService) Disconnect(ctx context.Context, userID string, provider domain.CalendarProvider) error {
	if _, err := s.clientFor(provider); err != nil {
		return err
	}
	err := repo.DeactivateConnection(ctx, s.DB, userID, provider)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrConnectionNotFound
	}
	return err
}

// validAccessToken returns a usable access token for the connection,
// refreshing it first when expiry is within refreshBuffer. Concurrent callers
// for the same connection share one refresh.
func (s *CalendarService) validAccessToken(ctx context.Context, tenantID string, conn *domain.CalendarConnection) (string, error) {
	if time.Now().UTC().Add(refreshBuffer).Before(conn.TokenExpiresAt) {
		return conn.AccessToken, nil
	}
	if conn.RefreshToken == "" {
		return "", ErrReauthRequired
	}

	v, err, _ := s.refresh.Do(conn.ID, func() (any, error) {
		client, err := s.clientFor(conn.Provider)
		if err != nil {
			return nil, err
		}
		cfg, err := s.providerConfig(ctx, tenantID, conn.Provider)
		if err != nil {
			return nil, err
		}
		tokens, err := client.RefreshAccessToken(ctx, cfg, conn.RefreshToken)
		if err != nil {
			if errors.Is(err, calendar.ErrReauthRequired) {
				return nil, ErrReauthRequired
			}
			return nil, err
		}
		expiresAt := tokens.ExpiresAt(time.Now().UTC())
		if err := repo.UpdateConnectionTokens(ctx, s.DB, conn.ID, tokens.AccessToken, tokens.RefreshToken, expiresAt); err != nil {
			return nil, err
		}
		conn.AccessToken = tokens.AccessToken
		conn.TokenExpiresAt = expiresAt
		return tokens.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// BusyIntervals returns the provider busy ranges for one user. Returns
// ErrConnectionNotFound when the user has no active connection for the
// provider.
func (s *CalendarService) BusyIntervals(ctx context.Context, tenantID, userID string, provider domain.CalendarProvider, from, to time.Time) ([]calendar.BusyInterval, error) {
	conn, err := repo.GetActiveConnection(ctx, s.DB, userID, provider)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}
	client, err := s.clientFor(provider)
	if err != nil {
		return nil, err
	}
	token, err := s.validAccessToken(ctx, tenantID, conn)
	if err != nil {
		return nil, err
	}
	busy, err := client.FreeBusy(ctx, token, conn.Email, from, to)
	if err != nil {
		if errors.Is(err, calendar.ErrReauthRequired) {
			return nil, ErrReauthRequired
		}
		return nil, err
	}
	_ = repo.TouchConnectionSync(ctx, s.DB, conn.ID)
	return busy, nil
}

// busyBestEffort collects provider busy ranges from every active connection
// the user holds. Provider failures and missing connections degrade to local
// data only; local state is the source of truth for availability.
func (s *CalendarService) busyBestEffort(ctx context.Context, tenantID, userID string, from, to time.Time) []availability.Interval {
	conns, err := repo.ListConnections(ctx, s.DB, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("listing calendar connections failed")
		return nil
	}
	var out []availability.Interval
	for i := range conns {
		if !conns[i].IsActive {
			continue
		}
		busy, err := s.BusyIntervals(ctx, tenantID, userID, conns[i].Provider, from, to)
		if err != nil {
			log.Warn().Err(err).
				Str("user_id", userID).
				Str("provider", string(conns[i].Provider)).
				Msg("provider free/busy unavailable, using local data only")
			continue
		}
		for _, b := range busy {
			out = append(out, availability.Interval{Start: b.Start, End: b.End})
		}
	}
	return out
}

// AvailableSlots generates one user's free slots in [from, to), combining
// local interviews with best-effort provider busy data.
func (s *CalendarService) AvailableSlots(ctx context.Context, tenantID, userID string, from, to time.Time, duration time.Duration) ([]availability.Slot, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}
	interviews, err := repo.ListInterviewsInRange(ctx, s.DB, []string{userID}, from, to)
	if err != nil {
		return nil, err
	}
	busy := s.busyBestEffort(ctx, tenantID, userID, from, to)
	for _, iv := range interviews {
		busy = append(busy, availability.Interval{Start: iv.ScheduledAt, End: iv.EndsAt()})
	}
	return availability.Generate(from, to, busy, duration, time.Now().UTC()), nil
}

// CommonAvailability intersects the free slots of every listed user. An empty
// user list yields an empty result.
func (s *CalendarService) CommonAvailability(ctx context.Context, tenantID string, userIDs []string, from, to time.Time, duration time.Duration) ([]availability.Slot, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}
	sets := make([][]availability.Slot, 0, len(userIDs))
	for _, uid := range userIDs {
		slots, err := s.AvailableSlots(ctx, tenantID, uid, from, to, duration)
		if err != nil {
			return nil, err
		}
		sets = append(sets, availability.Free(slots))
	}
	return availability.Intersect(sets...), nil
}

// SyncInterviewEvent mirrors a booked interview to the interviewer's external
// calendar, records the local event row, and backfills the provider meeting
// link onto the interview. Best effort: the interview stands regardless of
// the outcome, and every failure path only logs.
func (s *CalendarService) SyncInterviewEvent(ctx context.Context, tenantID string, iv *domain.Interview, title, description string, attendees []string) {
	conns, err := repo.ListConnections(ctx, s.DB, iv.InterviewerID)
	if err != nil || len(conns) == 0 {
		return
	}
	for i := range conns {
		if !conns[i].IsActive {
			continue
		}
		conn := &conns[i]
		client, err := s.clientFor(conn.Provider)
		if err != nil {
			continue
		}
		token, err := s.validAccessToken(ctx, tenantID, conn)
		if err != nil {
			log.Warn().Err(err).Str("interview_id", iv.ID).Msg("calendar sync skipped, token unavailable")
			continue
		}

		created, err := client.CreateEvent(ctx, token, conn.CalendarID, calendar.Event{
			Title:       title,
			Description: description,
			Start:       iv.ScheduledAt,
			End:         iv.EndsAt(),
			Location:    iv.Location,
			Attendees:   attendees,
		})
		if err != nil {
			log.Warn().Err(err).
				Str("interview_id", iv.ID).
				Str("provider", string(conn.Provider)).
				Msg("external calendar event creation failed")
			continue
		}

		rec := &domain.CalendarEvent{
			ExternalID:  created.ID,
			Provider:    conn.Provider,
			Title:       title,
			Description: description,
			StartTime:   iv.ScheduledAt,
			EndTime:     iv.EndsAt(),
			Location:    iv.Location,
			MeetingLink: created.MeetingLink,
			UserID:      iv.InterviewerID,
			InterviewID: &iv.ID,
		}
		if err := repo.CreateCalendarEvent(ctx, s.DB, rec); err != nil {
			log.Warn().Err(err).Str("interview_id", iv.ID).Msg("recording mirrored calendar event failed")
		}
		if created.MeetingLink != "" && iv.MeetingLink == "" {
			if err := repo.UpdateInterviewMeetingLink(ctx, s.DB, iv.ID, created.MeetingLink); err == nil {
				iv.MeetingLink = created.MeetingLink
			}
		}
		return
	}
}
