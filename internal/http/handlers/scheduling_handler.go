// Scheduling link HTTP handlers (recruiter-facing).
//
// This file exposes REST endpoints for scheduling link resources:
//   - POST   /interview-scheduling/links                (create)
//   - GET    /interview-scheduling/links                (list, paginated, ETag support)
//   - GET    /interview-scheduling/links/{token}        (detail with history)
//   - DELETE /interview-scheduling/links/{token}        (cancel)
//   - POST   /interview-scheduling/suggest-slots        (ranked panel slots)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rav4353/ayphen-scheduling/internal/availability"
	"github.com/rav4353/ayphen-scheduling/internal/domain"
	"github.com/rav4353/ayphen-scheduling/internal/repo"
	"github.com/rav4353/ayphen-scheduling/internal/services"
	"github.com/rav4353/ayphen-scheduling/internal/utils"
)

//
// Service contracts (context-aware)
//

// SchedulingService defines the link lifecycle and booking operations
// consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SchedulingService interface {
	// CreateLink mints a new self-scheduling link for an application.
	CreateLink(ctx context.Context, tenantID, userID string, in services.CreateLinkInput) (*domain.SchedulingLink, error)
	// GetLink returns a link and its full history, tenant-scoped.
	GetLink(ctx context.Context, tenantID, token string) (*domain.SchedulingLink, []domain.LinkEvent, error)
	// ListLinks returns a page of the tenant's links and the total count.
	ListLinks(ctx context.Context, tenantID string, status domain.LinkStatus, offset, limit int) ([]domain.SchedulingLink, int64, error)
	// CancelLink transitions an ACTIVE link to CANCELLED.
	CancelLink(ctx context.Context, tenantID, userID, token string) error
	// PublicLink resolves a candidate-facing token.
	PublicLink(ctx context.Context, token string) (*domain.SchedulingLink, error)
	// AvailableSlots generates the candidate's bookable slots.
	AvailableSlots(ctx context.Context, token string, from, to time.Time) ([]availability.Slot, error)
	// Book books a slot against a link.
	Book(ctx context.Context, token string, in services.BookInput) (*domain.Interview, error)
	// SuggestSlots ranks a panel's common free slots.
	SuggestSlots(ctx context.Context, tenantID string, in services.SuggestInput) ([]services.SuggestedSlot, error)
}

// CalendarService defines the calendar integration operations consumed by
// HTTP handlers.
type CalendarService interface {
	// AuthURL builds the OAuth consent URL for a provider.
	AuthURL(ctx context.Context, tenantID string, provider domain.CalendarProvider, state string) (string, error)
	// Connect completes the OAuth flow and stores the connection.
	Connect(ctx context.Context, tenantID, userID string, provider domain.CalendarProvider, code, redirectURI string) (*domain.CalendarConnection, error)
	// Connections lists the user's calendar connections.
	Connections(ctx context.Context, userID string) ([]domain.CalendarConnection, error)
	// Disconnect deactivates a connection.
	Disconnect(ctx context.Context, userID string, provider domain.CalendarProvider) error
	// AvailableSlots generates one user's free/busy slot grid.
	AvailableSlots(ctx context.Context, tenantID, userID string, from, to time.Time, duration time.Duration) ([]availability.Slot, error)
	// CommonAvailability intersects the free slots of several users.
	CommonAvailability(ctx context.Context, tenantID string, userIDs []string, from, to time.Time, duration time.Duration) ([]availability.Slot, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for scheduling links, public booking, and
// calendar integration. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	schedSvc SchedulingService
	calSvc   CalendarService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(schedSvc SchedulingService, calSvc CalendarService) *Handlers {
	return &Handlers{schedSvc: schedSvc, calSvc: calSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// tenantID extracts the tenant id set by the auth middleware, with the same
// header and default fallbacks as userID.
func tenantID(c *gin.Context) string {
	if v, ok := c.Get("tenantID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Tenant-ID")); h != "" {
			return h
		}
	}
	return "demo-tenant"
}

//
// DTOs
//

// CreateLinkRequest is the JSON payload for creating a scheduling link.
type CreateLinkRequest struct {
	// ApplicationID references the candidate's application.
	ApplicationID string `json:"application_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// InterviewerIDs lists the users eligible to host the interview.
	InterviewerIDs []string `json:"interviewer_ids" binding:"required,min=1"`
	// DurationMinutes is the slot length (15–480).
	DurationMinutes int `json:"duration_minutes" binding:"required" example:"60"`
	// InterviewType labels the interview (e.g. VIDEO, PHONE, ONSITE).
	InterviewType string `json:"interview_type" binding:"required" example:"VIDEO"`
	// Instructions are shown to the candidate on the booking page.
	Instructions string `json:"instructions,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListLinksResponse wraps a page of links and pagination information.
type ListLinksResponse struct {
	Links      []domain.SchedulingLink `json:"links"`
	Pagination Pagination              `json:"pagination"`
}

// LinkDetailResponse wraps a link with its append-only history.
type LinkDetailResponse struct {
	Link   *domain.SchedulingLink `json:"link"`
	Events []domain.LinkEvent     `json:"events"`
}

// SuggestSlotsRequest is the JSON payload for ranked slot suggestions.
type SuggestSlotsRequest struct {
	InterviewerIDs  []string `json:"interviewer_ids" binding:"required,min=1"`
	DurationMinutes int      `json:"duration_minutes" binding:"required"`
	// StartDate/EndDate bound the search range, "2006-01-02".
	StartDate string `json:"start_date" binding:"required" example:"2030-06-03"`
	EndDate   string `json:"end_date" binding:"required" example:"2030-06-17"`
	// PreferredDates earn a ranking bonus, "2006-01-02".
	PreferredDates []string `json:"preferred_dates,omitempty"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// atoiClamped parses an integer query value and clamps it into [min, max].
func atoiClamped(v string, def, min, max int) int {
	n := utils.AtoiDefault(v, def)
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n
}

// parseDate parses a "2006-01-02" query value, treating it as midnight UTC.
func parseDate(v string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", v, time.UTC)
}

// dateRange reads the start_date/end_date query params, defaulting to today
// and today+7d. The startDate/endDate and from/to spellings are accepted as
// aliases.
func dateRange(c *gin.Context) (from, to time.Time, err error) {
	now := time.Now().UTC()
	from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to = from.AddDate(0, 0, 7)

	if v := firstQuery(c, "start_date", "startDate", "from"); v != "" {
		if from, err = parseDate(v); err != nil {
			return from, to, fmt.Errorf("start_date: %w", err)
		}
		to = from.AddDate(0, 0, 7)
	}
	if v := firstQuery(c, "end_date", "endDate", "to"); v != "" {
		// The end date is inclusive; slots may start on it.
		t, perr := parseDate(v)
		if perr != nil {
			return from, to, fmt.Errorf("end_date: %w", perr)
		}
		to = t.AddDate(0, 0, 1)
	}
	return from, to, nil
}

// firstQuery returns the first non-empty value among the named query params.
func firstQuery(c *gin.Context, names ...string) string {
	for _, n := range names {
		if v := c.Query(n); v != "" {
			return v
		}
	}
	return ""
}

// failScheduling maps service sentinels to HTTP responses. Unknown errors
// become a 500 with the generic internal code.
func failScheduling(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrLinkNotFound),
		errors.Is(err, services.ErrApplicationNotFound),
		errors.Is(err, services.ErrInterviewerNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrLinkNotActive),
		errors.Is(err, services.ErrLinkExpired):
		// Consumed, cancelled, and expired links all read the same to the
		// caller; only the message names the cause.
		fail(c, http.StatusGone, ErrCodeLinkNotUsable, err.Error())
	case errors.Is(err, services.ErrSlotUnavailable):
		fail(c, http.StatusConflict, ErrCodeSlotUnavailable, err.Error())
	case errors.Is(err, services.ErrInterviewerNotOnLink),
		errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrInvalidRange):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUnsupportedProvider):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrProviderNotConfigured):
		fail(c, http.StatusConflict, ErrCodeProviderError, err.Error())
	case errors.Is(err, services.ErrConnectionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrReauthRequired):
		fail(c, http.StatusUnauthorized, ErrCodeReauthRequired, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// CreateLink godoc
// @ID          createSchedulingLink
// @Summary     Create a self-scheduling link
// @Description Mints a tokenized booking link for an application and emails it to the candidate.
// @Tags        SchedulingLinks
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateLinkRequest  true  "Create link payload"
//
// @Success     201  {object}  domain.SchedulingLink
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Application or interviewer not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /interview-scheduling/links [post]
func (h *Handlers) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	link, err := h.schedSvc.CreateLink(c.Request.Context(), tenantID(c), userID(c), services.CreateLinkInput{
		ApplicationID:   req.ApplicationID,
		InterviewerIDs:  req.InterviewerIDs,
		DurationMinutes: req.DurationMinutes,
		InterviewType:   strings.TrimSpace(req.InterviewType),
		Instructions:    strings.TrimSpace(req.Instructions),
	})
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusCreated, link)
}

// ListLinks godoc
// @ID          listSchedulingLinks
// @Summary     List scheduling links (paginated)
// @Description Returns a page of the tenant's links. Supports weak ETag via If-None-Match and may return 304.
// @Tags        SchedulingLinks
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       status         query   string  false "Filter by status"            Enums(ACTIVE, BOOKED, CANCELLED)
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListLinksResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /interview-scheduling/links [get]
func (h *Handlers) ListLinks(c *gin.Context) {
	ctx := c.Request.Context()
	tid := tenantID(c)
	page, pageSize := clampPagination(c)

	status := domain.LinkStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	switch status {
	case "", domain.LinkStatusActive, domain.LinkStatusBooked, domain.LinkStatusCancelled:
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status filter")
		return
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.schedSvc.(*services.SchedulingService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.LinksStats(ctx, db, tid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"links:%s:%d:%d"`, tid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.schedSvc.ListLinks(ctx, tid, status, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListLinksResponse{
		Links: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetLink godoc
// @ID          getSchedulingLink
// @Summary     Get a scheduling link with history
// @Tags        SchedulingLinks
// @Produce     json
//
// @Param       token  path  string  true  "Link token"
//
// @Success     200  {object} handlers.LinkDetailResponse
// @Failure     404  {object} handlers.ErrorResponse "Link not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /interview-scheduling/links/{token} [get]
func (h *Handlers) GetLink(c *gin.Context) {
	link, events, err := h.schedSvc.GetLink(c.Request.Context(), tenantID(c), c.Param("token"))
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusOK, LinkDetailResponse{Link: link, Events: events})
}

// CancelLink godoc
// @ID          cancelSchedulingLink
// @Summary     Cancel a scheduling link
// @Description Transitions an ACTIVE link to CANCELLED. Terminal links return 410.
// @Tags        SchedulingLinks
// @Produce     json
//
// @Param       token  path  string  true  "Link token"
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Link not found"
// @Failure     410  {object} handlers.ErrorResponse "Link already terminal"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /interview-scheduling/links/{token} [delete]
func (h *Handlers) CancelLink(c *gin.Context) {
	if err := h.schedSvc.CancelLink(c.Request.Context(), tenantID(c), userID(c), c.Param("token")); err != nil {
		failScheduling(c, err)
		return
	}
	noContent(c)
}

// SuggestSlots godoc
// @ID          suggestSlots
// @Summary     Rank a panel's common free slots
// @Tags        SchedulingLinks
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SuggestSlotsRequest  true  "Suggestion parameters"
//
// @Success     200  {array}  services.SuggestedSlot
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /interview-scheduling/suggest-slots [post]
func (h *Handlers) SuggestSlots(c *gin.Context) {
	var req SuggestSlotsRequest
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

	slots, err := h.schedSvc.SuggestSlots(c.Request.Context(), tenantID(c), services.SuggestInput{
		InterviewerIDs:  req.InterviewerIDs,
		DurationMinutes: req.DurationMinutes,
		From:            from,
		To:              to.AddDate(0, 0, 1), // inclusive end date
		PreferredDates:  req.PreferredDates,
	})
	if err != nil {
		failScheduling(c, err)
		return
	}
	ok(c, http.StatusOK, slots)
}
