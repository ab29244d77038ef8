// Package services defines the business logic for scheduling links, slot
// availability, bookings, calendar connections, and interview reminders.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Scheduling-link errors.
var (
	// ErrApplicationNotFound indicates the referenced application does not
	// exist or belongs to another tenant.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrInterviewerNotFound indicates one or more referenced interviewers do
	// not exist in the tenant.
	ErrInterviewerNotFound = errors.New("interviewer not found")

	// ErrLinkNotFound indicates the scheduling link does not exist or is not
	// visible to the caller.
	ErrLinkNotFound = errors.New("scheduling link not found")

	// ErrLinkNotActive is returned when an operation requires an ACTIVE link
	// but the link has already been booked or cancelled.
	ErrLinkNotActive = errors.New("scheduling link is no longer active")

	// ErrLinkExpired is returned when the link's expiry has passed.
	ErrLinkExpired = errors.New("scheduling link has expired")

	// ErrInvalidDuration is returned when the requested interview duration is
	// outside the accepted range.
	ErrInvalidDuration = errors.New("invalid interview duration")

	// ErrInvalidRange is returned when a date range is empty, inverted, or
	// wider than the service allows.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrSlotUnavailable is returned when the requested slot is outside
	// business hours, in the past, or no eligible interviewer is free.
	ErrSlotUnavailable = errors.New("requested slot is not available")

	// ErrInterviewerNotOnLink is returned when a booking names an interviewer
	// who is not part of the link's interviewer set.
	ErrInterviewerNotOnLink = errors.New("interviewer is not eligible for this link")
)

// Calendar integration errors.
var (
	// ErrUnsupportedProvider is returned for provider values other than
	// GOOGLE or OUTLOOK.
	ErrUnsupportedProvider = errors.New("unsupported calendar provider")

	// ErrProviderNotConfigured indicates the tenant has no OAuth client
	// registration for the requested provider.
	ErrProviderNotConfigured = errors.New("calendar provider not configured for tenant")

	// ErrConnectionNotFound indicates the user has no active connection for
	// the requested provider.
	ErrConnectionNotFound = errors.New("calendar connection not found")

	// ErrReauthRequired indicates stored credentials were rejected and the
	// user must reconnect the calendar.
	ErrReauthRequired = errors.New("calendar connection requires re-authorization")
)
