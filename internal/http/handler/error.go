package handler

import (
	"github.com/gofiber/fiber/v2"
)

// errorPayload is the wire shape every error response carries.
type errorPayload struct {
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// writeError writes a standardized JSON error response.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_DATA", "DOUBLE_REPORT")
// - description: human-readable message
func writeError(c *fiber.Ctx, status int, code, description string) error {
	return c.Status(status).JSON(errorPayload{
		ErrorCode:        code,
		ErrorDescription: description,
	})
}

// ErrorHandler returns a Fiber global error handler that standardizes error
// responses for failures that never reached an endpoint handler (unknown
// routes, wrong methods, body-size limits).
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "INVALID_DATA", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "SERVER_ERROR", "internal server error")
		}
	}
}
