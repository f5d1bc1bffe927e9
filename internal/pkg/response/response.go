package response

import (
	"errors"

	"csx-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const statusSuccess = "success"
const statusError = "error"

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusOK).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

// Unauthorized sends 401 with the same shape as other errors (status "error", error.message).
// Use this for auth middleware so all errors are consistent.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

// StatusOf maps a domain error kind to its HTTP status. Unclassified errors are 500.
func StatusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		return fiber.StatusBadRequest
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindForbidden:
		return fiber.StatusForbidden
	case domain.KindInvalidState:
		return fiber.StatusConflict
	case domain.KindInsufficientBalance, domain.KindInsufficientAvailableBalance,
		domain.KindInsufficientSellerBalance, domain.KindAmountExceedsListing, domain.KindNotEligible:
		return fiber.StatusUnprocessableEntity
	case domain.KindContention:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// FromError writes err in the standard error format. Domain errors expose their message and kind;
// anything else is reported as "Internal Server Error".
func FromError(c *fiber.Ctx, err error) error {
	status := StatusOf(err)
	if status == fiber.StatusInternalServerError {
		return Error(c, "Internal Server Error", status, nil)
	}
	details := map[string]interface{}{"kind": domain.KindOf(err).String()}
	if domain.IsRetryable(err) {
		c.Set(fiber.HeaderRetryAfter, "1")
		details["retryable"] = true
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindContention {
		return Error(c, de.Message, status, details)
	}
	return Error(c, err.Error(), status, details)
}
