// Package dto provides Data Transfer Objects for API requests/responses.
// Quantities travel as decimal strings; dates as YYYY-MM-DD.
package dto

import (
	"time"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/core/id"
	"bakehouse/internal/core/types"
)

// DateLayout is the wire format of ledger dates.
const DateLayout = time.DateOnly

// --- Pagination ---

// PaginationRequest contains pagination parameters.
type PaginationRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Defaults sets default pagination values.
func (p *PaginationRequest) Defaults() {
	if p.Limit == 0 {
		p.Limit = 100
	}
}

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// FromAppError converts a domain error into its wire shape.
func FromAppError(e *apperror.AppError) *ErrorResponse {
	if e == nil {
		return nil
	}
	return &ErrorResponse{Code: e.Code, Message: e.Message, Details: e.Details}
}

// --- Parsing helpers ---

// ParseID parses a UUID field, reporting failures against field.
func ParseID(field, value string) (id.ID, error) {
	v, err := id.Parse(value)
	if err != nil {
		return id.ID{}, apperror.NewValidation("invalid id format").WithDetail("field", field)
	}
	return v, nil
}

// CheckQuantity reports a decoded quantity outside the accepted range against field.
func CheckQuantity(field string, q types.Quantity) error {
	if err := types.CheckQuantity(q); err != nil {
		return apperror.NewValidation(err.Error()).WithDetail("field", field)
	}
	return nil
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(field, value string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperror.NewValidation("invalid date, expected YYYY-MM-DD").WithDetail("field", field)
}

// FormatDate renders a ledger date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatDate(*t)
}
