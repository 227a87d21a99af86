package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/cards"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/circulation"
	"github.com/mrlokans/librarian/internal/tasks"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (import reports, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// domainErrors maps service sentinels to HTTP status and error code.
// Order matters where sentinels alias each other.
var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{catalog.ErrBookNotFound, http.StatusNotFound, "book_not_found"},
	{cards.ErrCardNotFound, http.StatusNotFound, "card_not_found"},
	{circulation.ErrNoHistory, http.StatusNotFound, "no_history"},

	{catalog.ErrBookExists, http.StatusConflict, "book_exists"},
	{cards.ErrCardExists, http.StatusConflict, "card_exists"},
	{circulation.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{circulation.ErrAlreadyBorrowed, http.StatusConflict, "already_borrowed"},
	{circulation.ErrNoOpenLoan, http.StatusConflict, "no_open_loan"},
	{circulation.ErrStockInvariant, http.StatusConflict, "stock_invariant"},

	{catalog.ErrBookNoRequired, http.StatusBadRequest, "invalid_request"},
	{catalog.ErrTitleRequired, http.StatusBadRequest, "invalid_request"},
	{catalog.ErrInvalidQuantity, http.StatusBadRequest, "invalid_request"},
	{catalog.ErrInvalidYear, http.StatusBadRequest, "invalid_request"},
	{catalog.ErrInvalidPrice, http.StatusBadRequest, "invalid_request"},
	{cards.ErrCardNoRequired, http.StatusBadRequest, "invalid_request"},
	{cards.ErrNameRequired, http.StatusBadRequest, "invalid_request"},
	{cards.ErrInvalidCardType, http.StatusBadRequest, "invalid_request"},
	{circulation.ErrCardRequired, http.StatusBadRequest, "invalid_request"},
	{circulation.ErrBookRequired, http.StatusBadRequest, "invalid_request"},
	{tasks.ErrInvalidTaskArgs, http.StatusBadRequest, "invalid_request"},
	{tasks.ErrUnknownTaskType, http.StatusNotFound, "unknown_task_type"},
}

// respondDomainError maps a service error to its status code. Errors that
// are not domain sentinels are logged and reported as a bare 500.
func respondDomainError(c *gin.Context, err error, context string) {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			c.JSON(de.status, ErrorResponse{Error: de.err.Error(), Code: de.code})
			return
		}
	}
	respondInternalError(c, err, context)
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid_request"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal"})
}

// respondError sends an error response with the given status code.
func respondError(c *gin.Context, status int, message, code string) {
	c.JSON(status, ErrorResponse{Error: message, Code: code})
}

// --- Success Response Helpers ---

// respondSuccess sends a 200 OK response with a message.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// respondCreated sends a 201 Created response with data.
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// respondAccepted sends a 202 Accepted response (for async operations).
func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// --- Parameter Parsing ---

// parseLimitQuery reads an optional positive "limit" query parameter.
// Missing means 0, which services treat as their configured default.
func parseLimitQuery(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		respondBadRequest(c, "invalid limit")
		return 0, false
	}
	return limit, true
}
