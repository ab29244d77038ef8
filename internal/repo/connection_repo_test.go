package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
)

func testConn(userID string, provider domain.CalendarProvider) *domain.CalendarConnection {
	return &domain.CalendarConnection{
		UserID:         userID,
		Provider:       provider,
		AccessToken:    "at-1",
		RefreshToken:   "rt-1",
		TokenExpiresAt: time.Now().UTC().Add(time.Hour),
		Email:          "user@x.com",
	}
}

func TestUpsertConnection_InsertThenReplace(t *testing.T) {
	db := newRepoDB(t, &domain.CalendarConnection{})
	ctx := context.Background()

	c1 := testConn("u1", domain.ProviderGoogle)
	if err := UpsertConnection(ctx, db, c1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if c1.ID == "" {
		t.Fatal("expected generated ID")
	}

	// Reconnect: same (user, provider) with new tokens must replace in place.
	c2 := testConn("u1", domain.ProviderGoogle)
	c2.AccessToken = "at-2"
	c2.Email = "new@x.com"
	if err := UpsertConnection(ctx, db, c2); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := GetActiveConnection(ctx, db, "u1", domain.ProviderGoogle)
	if err != nil {
		t.Fatalf("GetActiveConnection: %v", err)
	}
	if got.AccessToken != "at-2" || got.Email != "new@x.com" {
		t.Fatalf("upsert did not replace tokens: %+v", got)
	}

	var count int64
	db.Model(&domain.CalendarConnection{}).Where("user_id = ?", "u1").Count(&count)
	if count != 1 {
		t.Fatalf("expected single row per (user, provider), got %d", count)
	}
}

func TestUpsertConnection_DistinctProvidersCoexist(t *testing.T) {
	db := newRepoDB(t, &domain.CalendarConnection{})
	ctx := context.Background()

	if err := UpsertConnection(ctx, db, testConn("u1", domain.ProviderGoogle)); err != nil {
		t.Fatalf("google: %v", err)
	}
	if err := UpsertConnection(ctx, db, testConn("u1", domain.ProviderOutlook)); err != nil {
		t.Fatalf("outlook: %v", err)
	}

	conns, err := ListConnections(ctx, db, "u1")
	if err != nil || len(conns) != 2 {
		t.Fatalf("expected 2 connections, got %d, %v", len(conns), err)
	}
}

func TestDeactivateConnection(t *testing.T) {
	db := newRepoDB(t, &domain.CalendarConnection{})
	ctx := context.Background()

	if err := UpsertConnection(ctx, db, testConn("u1", domain.ProviderGoogle)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := DeactivateConnection(ctx, db, "u1", domain.ProviderGoogle); err != nil {
		t.Fatalf("DeactivateConnection: %v", err)
	}
	if _, err := GetActiveConnection(ctx, db, "u1", domain.ProviderGoogle); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deactivated connection should be invisible to active lookup, got %v", err)
	}

	// Row survives for audit with tokens cleared.
	conns, _ := ListConnections(ctx, db, "u1")
	if len(conns) != 1 || conns[0].AccessToken != "" || conns[0].IsActive {
		t.Fatalf("expected surviving inactive row with cleared tokens: %+v", conns)
	}

	if err := DeactivateConnection(ctx, db, "u1", domain.ProviderOutlook); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing connection, got %v", err)
	}
}

func TestUpdateConnectionTokens_EmptyRefreshKeepsOld(t *testing.T) {
	db := newRepoDB(t, &domain.CalendarConnection{})
	ctx := context.Background()

	c := testConn("u1", domain.ProviderGoogle)
	if err := UpsertConnection(ctx, db, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	exp := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
	if err := UpdateConnectionTokens(ctx, db, c.ID, "at-new", "", exp); err != nil {
		t.Fatalf("UpdateConnectionTokens: %v", err)
	}
	got, err := GetActiveConnection(ctx, db, "u1", domain.ProviderGoogle)
	if err != nil {
		t.Fatalf("GetActiveConnection: %v", err)
	}
	if got.AccessToken != "at-new" {
		t.Fatalf("access token not rotated: %q", got.AccessToken)
	}
	if got.RefreshToken != "rt-1" {
		t.Fatalf("empty refresh token must keep the stored one, got %q", got.RefreshToken)
	}

	if err := UpdateConnectionTokens(ctx, db, "missing", "x", "y", exp); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCalendarEvents_LocalMirror(t *testing.T) {
	db := newRepoDB(t, &domain.CalendarEvent{})
	ctx := context.Background()

	ivID := "iv-1"
	ev := &domain.CalendarEvent{
		Provider: domain.ProviderGoogle, Title: "Interview",
		StartTime: time.Date(2030, 6, 3, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2030, 6, 3, 11, 0, 0, 0, time.UTC),
		UserID:    "u1", InterviewID: &ivID, ExternalID: "ext-1",
	}
	if err := CreateCalendarEvent(ctx, db, ev); err != nil {
		t.Fatalf("CreateCalendarEvent: %v", err)
	}
	if ev.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := ListCalendarEventsForInterview(ctx, db, "iv-1")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected 1 mirrored event, got %d, %v", len(got), err)
	}
	if got[0].ExternalID != "ext-1" {
		t.Fatalf("round-trip mismatch: %+v", got[0])
	}
}
