// Calendar integration HTTP handlers (recruiter-facing).
//
// This file exposes REST endpoints for calendar connections and availability:
//   - GET    /calendar/auth-url             (OAuth consent URL)
//   - POST   /calendar/connect              (complete OAuth, store connection)
//   - GET    /calendar/connections          (list own connections)
//   - DELETE /calendar/connections/{provider} (disconnect)
//   - GET    /calendar/free-busy            (own slot grid)
//   - POST   /calendar/common-availability  (panel intersection)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
)

// parseProvider normalizes a provider query/path value.
func parseProvider(v string) (domain.CalendarProvider, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case string(domain.ProviderGoogle):
		return domain.ProviderGoogle, true
	case string(domain.ProviderOutlook):
		return domain.ProviderOutlook, true
	}
	return "", false
}

// ConnectRequest is the JSON payload completing an OAuth flow.
type ConnectRequest struct {
	Provider string `json:"provider" binding:"required" example:"GOOGLE"`
	Code     string `json:"code" binding:"required"`
	// RedirectURI must match the one used for the consent URL when the
	// tenant registration does not pin one.
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// AuthURLResponse carries the consent URL for the client to open.
type AuthURLResponse struct {
	URL string `json:"url"`
}

// CommonAvailabilityRequest is the JSON payload for panel intersection.
type CommonAvailabilityRequest struct {
	UserIDs         []string `json:"user_ids" binding:"required,min=1"`
	DurationMinutes int      `json:"duration_minutes" binding:"required"`
	StartDate       string   `json:"start_date" binding:"required" example:"2030-06-03"`
	EndDate         string   `json:"end_date" binding:"required" example:"2030-06-07"`
}

// GetAuthURL godoc
// @ID          getCalendarAuthURL
// @Summary     Build the OAuth consent URL for a provider
// @Tags        Calendar
// @Produce     json
//
// @Param       provider  query  string  true   "Calendar provider"  Enums(GOOGLE, OUTLOOK)
// @Param       state     query  string  false  "Opaque state round-tripped through the provider"
//
// @Success     200  {object} handlers.AuthURLResponse
// @Failure     400  {object} handlers.ErrorResponse "Unknown provider"
// @Failure     409  {object} handlers.ErrorResponse "Provider not configured for tenant"
// @Router      /calendar/auth-url [get]
func (h *Handlers) GetAuthURL(c *gin.Context) {
	provider, okp := parseProvider(c.Query("provider"))
	if !okp {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider must be GOOGLE or OUTLOOK")
		return
	}

	url, err := h.calSvc.AuthURL(c.Request.Context(), tenantID(c), provider, c.Query("state"))
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusOK, AuthURLResponse{URL: url})
}

// Connect godoc
// @ID          connectCalendar
// @Summary     Complete an OAuth flow and store the connection
// @Tags        Calendar
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ConnectRequest  true  "OAuth completion payload"
//
// @Success     201  {object} domain.CalendarConnection
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Provider rejected the code"
// @Failure     409  {object} handlers.ErrorResponse "Provider not configured for tenant"
// @Router      /calendar/connect [post]
func (h *Handlers) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	provider, okp := parseProvider(req.Provider)
	if !okp {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider must be GOOGLE or OUTLOOK")
		return
	}

	conn, err := h.calSvc.Connect(c.Request.Context(), tenantID(c), userID(c), provider, req.Code, req.RedirectURI)
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusCreated, conn)
}

// ListConnections godoc
// @ID          listCalendarConnections
// @Summary     List the caller's calendar connections
// @Tags        Calendar
// @Produce     json
//
// @Success     200  {array}  domain.CalendarConnection
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /calendar/connections [get]
func (h *Handlers) ListConnections(c *gin.Context) {
	conns, err := h.calSvc.Connections(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, conns)
}

// Disconnect godoc
// @ID          disconnectCalendar
// @Summary     Disconnect a calendar provider
// @Tags        Calendar
// @Produce     json
//
// @Param       provider  path  string  true  "Calendar provider"  Enums(GOOGLE, OUTLOOK)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Unknown provider"
// @Failure     404  {object} handlers.ErrorResponse "No connection for provider"
// @Router      /calendar/connections/{provider} [delete]
func (h *Handlers) Disconnect(c *gin.Context) {
	provider, okp := parseProvider(c.Param("provider"))
	if !okp {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider must be GOOGLE or OUTLOOK")
		return
	}
	if err := h.calSvc.Disconnect(c.Request.Context(), userID(c), provider); err != nil {
		failScheduling(c, err)
		return
	}
	noContent(c)
}

// GetFreeBusy godoc
// @ID          getFreeBusy
// @Summary     Get the caller's slot grid
// @Description Generates business-hour slots for a date range, marking conflicts from local interviews and connected provider calendars.
// @Tags        Calendar
// @Produce     json
//
// @Param       start_date        query  string  false "Range start, YYYY-MM-DD (default today)"
// @Param       end_date          query  string  false "Range end, YYYY-MM-DD inclusive"
// @Param       duration_minutes  query  int     false "Slot length" default(60)
//
// @Success     200  {object} handlers.SlotsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Connection requires re-authorization"
// @Router      /calendar/free-busy [get]
func (h *Handlers) GetFreeBusy(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	durMin := 60
	if v := c.Query("duration_minutes"); v != "" {
		durMin = atoiClamped(v, 60, 15, 480)
	}

	slots, err := h.calSvc.AvailableSlots(c.Request.Context(), tenantID(c), userID(c),
		from, to, time.Duration(durMin)*time.Minute)
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusOK, SlotsResponse{Slots: slots})
}

// CommonAvailability godoc
// @ID          getCommonAvailability
// @Summary     Intersect the free slots of several users
// @Tags        Calendar
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CommonAvailabilityRequest  true  "Panel and range"
//
// @Success     200  {object} handlers.SlotsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /calendar/common-availability [post]
func (h *Handlers) CommonAvailability(c *gin.Context) {
	var req CommonAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	from, err := parseDate(req.StartDate)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(req.EndDate)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end_date must be YYYY-MM-DD")
		return
	}
	if req.DurationMinutes < 15 || req.DurationMinutes > 480 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "duration_minutes must be 15-480")
		return
	}

	slots, err := h.calSvc.CommonAvailability(c.Request.Context(), tenantID(c), req.UserIDs,
		from, to.AddDate(0, 0, 1), time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusOK, SlotsResponse{Slots: slots})
}
