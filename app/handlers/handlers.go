// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirphl/detailing-pricing/app/dto"
	businessflow "github.com/amirphl/detailing-pricing/business_flow"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "uuid":
		return err.Field() + " must be a valid UUID"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

func validationDetails(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(fieldErrors))
	for _, e := range fieldErrors {
		out = append(out, getValidationErrorMessage(e))
	}
	return out
}

func errorResponse(c fiber.Ctx, status int, message, code string, details any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

func successResponse(c fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// createRequestContext builds the context passed to the flows.
// The caller must invoke the returned cancel func.
func createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return createRequestContextWithTimeout(c, endpoint, utils.RequestTimeout)
}

func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

// flowErrorResponse maps a flow error to its HTTP status by kind.
// Unexpected errors are logged and answered with a generic message.
func flowErrorResponse(c fiber.Ctx, logger *slog.Logger, operation, serviceID string, err error) error {
	code := businessflow.ErrorCode(err)
	message := err.Error()
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		message = be.Message
	}

	switch {
	case businessflow.IsValidation(err):
		return errorResponse(c, fiber.StatusBadRequest, message, orDefault(code, "VALIDATION_ERROR"), err.Error())
	case businessflow.IsNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, message, orDefault(code, "NOT_FOUND"), nil)
	case businessflow.IsConflict(err):
		return errorResponse(c, fiber.StatusConflict, message, orDefault(code, "CONFLICT"), nil)
	}

	logger.Error("request failed",
		"operation", operation,
		"service_id", serviceID,
		"request_id", requestid.FromContext(c),
		"error", err,
	)
	return errorResponse(c, fiber.StatusInternalServerError, "An internal server error occurred", orDefault(code, "INTERNAL_ERROR"), nil)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
