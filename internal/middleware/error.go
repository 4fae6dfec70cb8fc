package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/internal/service"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusClientClosedRequest is returned when the caller went away.
const statusClientClosedRequest = 499

// ErrorHandler renders the last error pushed with c.Error as JSON.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		ginErr := c.Errors.Last()
		status, resp := renderError(c, ginErr)

		log := logging.Ctx(c.Request.Context())
		if status >= http.StatusInternalServerError {
			log.Error().Err(ginErr.Err).Int("status", status).Str("path", c.Request.URL.Path).Msg("request failed")
		} else {
			log.Debug().Err(ginErr.Err).Int("status", status).Msg("request rejected")
		}

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(status, resp)
	}
}

func renderError(c *gin.Context, ginErr *gin.Error) (int, ErrorResponse) {
	err := ginErr.Err

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fieldErrors(verrs)}
	}

	var fieldErr *service.ValidationError
	if errors.As(err, &fieldErr) {
		resp := ErrorResponse{Error: fieldErr.Error()}
		if fieldErr.Field != "" {
			resp.Fields = map[string]string{fieldErr.Field: fieldErr.Message}
		}
		return http.StatusBadRequest, resp
	}

	var rlErr *service.RateLimitError
	if errors.As(err, &rlErr) {
		seconds := int(math.Ceil(rlErr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		return http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		}
	}

	switch {
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenMalformed):
		// Token failures are never told apart to the client.
		return http.StatusUnauthorized, ErrorResponse{Error: service.ErrUnauthenticated.Error()}
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrDuplicateIdentity):
		return http.StatusConflict, ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrInferenceCircuitOpen),
		errors.Is(err, service.ErrLimiterUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "inference temporarily unavailable"}
	case errors.Is(err, service.ErrInferenceUnavailable):
		return http.StatusBadGateway, ErrorResponse{Error: "inference engine unavailable"}
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, ErrorResponse{Error: "request cancelled"}
	case ginErr.IsType(gin.ErrorTypeBind):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[jsonFieldName(fe)] = describe(fe)
	}
	return fields
}

// jsonFieldName converts the struct field name to the snake_case name used
// in request bodies.
func jsonFieldName(fe validator.FieldError) string {
	var b strings.Builder
	prevLower := false
	for _, r := range fe.Field() {
		if unicode.IsUpper(r) {
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			continue
		}
		b.WriteRune(r)
		prevLower = true
	}
	return b.String()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}
