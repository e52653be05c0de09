package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`  // bad_request, not_found, upstream_timeout, ...
	Error     string `json:"error"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Error:     message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromDomain maps a usecase error to its HTTP status.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrRouteNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrStationNotFound):
		return errNotFound(c, "station not found")
	case errors.Is(err, domain.ErrUpstreamTimeout):
		logging.FromContext(c.UserContext()).Warn("upstream timeout", "path", c.Path(), "error", err)
		return newError(c, fiber.StatusGatewayTimeout, "upstream_timeout", "upstream service timed out")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		logging.FromContext(c.UserContext()).Warn("upstream failure", "path", c.Path(), "error", err)
		return newError(c, fiber.StatusBadGateway, "upstream_unavailable", "upstream service unavailable")
	default:
		logging.FromContext(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
}
