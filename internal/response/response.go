// Package response holds the shared HTTP response helpers and the mapping
// from domain error codes to HTTP statuses.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trailpaws/service-reservation/internal/domain"
)

// Envelope is the standard success payload wrapper.
type Envelope struct {
	Data interface{} `json:"data"`
}

// PaginatedEnvelope wraps a page of results with pagination metadata.
type PaginatedEnvelope struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// ErrorBody is the standard error payload with a machine-readable code.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes a 200 with the data envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Data: data})
}

// Created writes a 201 with the data envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Data: data})
}

// Paginated writes a 200 with pagination metadata.
func Paginated(c *gin.Context, data interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, PaginatedEnvelope{Data: data, Total: total, Page: page, Limit: limit})
}

// BadRequest writes a 400 with a VALIDATION error body.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Code: domain.CodeValidation, Message: message})
}

// Error maps a domain error to its HTTP status; anything else is a 500 with
// the details withheld from the client.
func Error(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		c.JSON(http.StatusInternalServerError, ErrorBody{Code: "INTERNAL", Message: "internal server error"})
		return
	}
	c.JSON(statusFor(de.Code), ErrorBody{Code: de.Code, Message: de.Message})
}

func statusFor(code string) int {
	switch code {
	case domain.CodeValidation, domain.CodeInvalidSlot:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict, domain.CodeSlotFull, domain.CodeInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
