package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/macrolog/internal/auth/oauth"
	backupdomain "github.com/smallbiznis/macrolog/internal/backup/domain"
	catalogdomain "github.com/smallbiznis/macrolog/internal/catalog/domain"
	"github.com/smallbiznis/macrolog/internal/ledger"
	"github.com/smallbiznis/macrolog/internal/session"
	"github.com/smallbiznis/macrolog/internal/tracker"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type             string            `json:"type"`
	Message          string            `json:"message"`
	AuthorizationURL string            `json:"authorization_url,omitempty"`
	Errors           []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if url, ok := oauth.PendingURL(err); ok {
		return http.StatusUnauthorized, errorPayload{
			Type:             "authorization_pending",
			Message:          "autoriza el acceso al almacenamiento y vuelve a intentarlo",
			AuthorizationURL: url,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, oauth.ErrAuthorizationFailure):
		return http.StatusBadRequest, errorPayload{
			Type:    "authorization_failure",
			Message: err.Error(),
		}
	case errors.Is(err, catalogdomain.ErrFoodNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "food_not_found",
			Message: "el alimento no existe en el catálogo",
		}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, tracker.ErrEmptyLedger):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, backupdomain.ErrRemoteWrite):
		return http.StatusBadGateway, errorPayload{
			Type:    "remote_write_failed",
			Message: "no se pudo guardar el registro en el almacenamiento remoto",
		}
	case errors.Is(err, backupdomain.ErrRemoteRead):
		return http.StatusBadGateway, errorPayload{
			Type:    "remote_read_failed",
			Message: "no se pudo leer el registro del almacenamiento remoto",
		}
	case errors.Is(err, catalogdomain.ErrDataUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "data_unavailable",
			Message: "el catálogo de alimentos no está disponible",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, oauth.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func classifyErrorForLog(err error) string {
	_, payload := mapError(err)
	return payload.Type
}

func conflictMessage(err error) string {
	if errors.Is(err, tracker.ErrEmptyLedger) {
		return "no hay registros para cerrar el día"
	}
	return "conflict"
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidFood),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, session.ErrInvalidEmail):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return ledger.ErrInvalidQuantity.Error()
	case errors.Is(err, ledger.ErrInvalidFood):
		return ledger.ErrInvalidFood.Error()
	case errors.Is(err, catalogdomain.ErrInvalidName):
		return catalogdomain.ErrInvalidName.Error()
	case errors.Is(err, session.ErrInvalidEmail):
		return session.ErrInvalidEmail.Error()
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case ledger.ErrInvalidQuantity.Error():
		return "la cantidad debe ser mayor que cero"
	case session.ErrInvalidEmail.Error():
		return "correo electrónico no válido"
	default:
		return "invalid value"
	}
}
