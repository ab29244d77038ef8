// Public booking HTTP handlers (candidate-facing, token-authorized).
//
// This file exposes the unauthenticated endpoints behind a scheduling link:
//   - GET  /schedule/{token}        (link details for the booking page)
//   - GET  /schedule/{token}/slots  (bookable slots in a date range)
//   - POST /schedule/{token}/book   (book one slot)
//
// Possession of the token is the authorization; responses never leak tenant
// or interviewer identifiers beyond what the booking page needs.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rav4353/ayphen-scheduling/internal/availability"
	"github.com/rav4353/ayphen-scheduling/internal/domain"
	"github.com/rav4353/ayphen-scheduling/internal/services"
)

// PublicLinkResponse is the candidate-facing view of a scheduling link.
type PublicLinkResponse struct {
	CandidateName   string    `json:"candidate_name"`
	JobTitle        string    `json:"job_title"`
	DurationMinutes int       `json:"duration_minutes"`
	InterviewType   string    `json:"interview_type"`
	Instructions    string    `json:"instructions,omitempty"`
	Status          string    `json:"status"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func publicView(l *domain.SchedulingLink) PublicLinkResponse {
	return PublicLinkResponse{
		CandidateName:   l.CandidateName,
		JobTitle:        l.JobTitle,
		DurationMinutes: l.DurationMinutes,
		InterviewType:   l.InterviewType,
		Instructions:    l.Instructions,
		Status:          string(l.Status),
		ExpiresAt:       l.ExpiresAt,
	}
}

// SlotsResponse wraps a slot grid for JSON responses.
type SlotsResponse struct {
	Slots []availability.Slot `json:"slots"`
}

// BookRequest is the JSON payload for booking a slot.
type BookRequest struct {
	// Start is the chosen slot start, RFC 3339.
	Start time.Time `json:"start" binding:"required" example:"2030-06-03T10:00:00Z"`
	// InterviewerID optionally pins a specific interviewer from the link.
	InterviewerID string `json:"interviewer_id,omitempty"`
}

// BookResponse confirms a booking to the candidate.
type BookResponse struct {
	InterviewID     string    `json:"interview_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	MeetingLink     string    `json:"meeting_link,omitempty"`
}

// GetPublicLink godoc
// @ID          getPublicLink
// @Summary     Resolve a booking link
// @Description Returns the booking page details for a link token. Expired, booked, and cancelled links all return 410; the message names the cause.
// @Tags        PublicBooking
// @Produce     json
//
// @Param       token  path  string  true  "Link token"
//
// @Success     200  {object} handlers.PublicLinkResponse
// @Failure     404  {object} handlers.ErrorResponse "Unknown token"
// @Failure     410  {object} handlers.ErrorResponse "Link no longer usable"
// @Router      /schedule/{token} [get]
func (h *Handlers) GetPublicLink(c *gin.Context) {
	link, err := h.schedSvc.PublicLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusOK, publicView(link))
}

// GetPublicSlots godoc
// @ID          getPublicSlots
// @Summary     List bookable slots for a link
// @Description Returns the slot grid for a date range (defaults to the next 7 days). A slot is available when at least one of the link's interviewers is free.
// @Tags        PublicBooking
// @Produce     json
//
// @Param       token       path   string  true  "Link token"
// @Param       start_date  query  string  false "Range start, YYYY-MM-DD (default today)"
// @Param       end_date    query  string  false "Range end, YYYY-MM-DD inclusive"
//
// @Success     200  {object} handlers.SlotsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad date range"
// @Failure     404  {object} handlers.ErrorResponse "Unknown token"
// @Failure     410  {object} handlers.ErrorResponse "Link no longer usable"
// @Router      /schedule/{token}/slots [get]
func (h *Handlers) GetPublicSlots(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	slots, err := h.schedSvc.AvailableSlots(c.Request.Context(), c.Param("token"), from, to)
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusOK, SlotsResponse{Slots: slots})
}

// BookSlot godoc
// @ID          bookSlot
// @Summary     Book a slot
// @Description Books the chosen slot, consuming the link. Concurrent bookings lose with 409.
// @Tags        PublicBooking
// @Accept      json
// @Produce     json
//
// @Param       token  path  string  true  "Link token"
// @Param       body   body  handlers.BookRequest  true  "Chosen slot"
//
// @Success     201  {object} handlers.BookResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Unknown token"
// @Failure     409  {object} handlers.ErrorResponse "Slot taken"
// @Failure     410  {object} handlers.ErrorResponse "Link no longer usable"
// @Router      /schedule/{token}/book [post]
func (h *Handlers) BookSlot(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	iv, err := h.schedSvc.Book(c.Request.Context(), c.Param("token"), services.BookInput{
		Start:         req.Start,
		InterviewerID: req.InterviewerID,
	})
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusCreated, BookResponse{
		InterviewID:     iv.ID,
		ScheduledAt:     iv.ScheduledAt,
		DurationMinutes: iv.DurationMinutes,
		MeetingLink:     iv.MeetingLink,
	})
}
