package handler

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"meterapi/internal/extraction"
	"meterapi/internal/service"
)

type uploadRequest struct {
	Image           string `json:"image"`
	CustomerCode    string `json:"customer_code"`
	MeasureDatetime string `json:"measure_datetime"`
	MeasureType     string `json:"measure_type"`
}

type confirmRequest struct {
	MeasureUUID    string   `json:"measure_uuid"`
	ConfirmedValue *float64 `json:"confirmed_value"`
}

// UploadMeasure accepts a base64 data-URI meter photo, runs the extraction
// flow and returns the stored reading.
func UploadMeasure(svc service.MeasurementService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req uploadRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATA", "malformed request body")
		}
		if req.Image == "" || req.CustomerCode == "" || req.MeasureDatetime == "" || req.MeasureType == "" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATA", "missing or invalid parameters")
		}

		at, err := time.Parse(time.RFC3339, req.MeasureDatetime)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATA", "measure_datetime must be RFC3339")
		}

		res, err := svc.Upload(c.UserContext(), service.UploadInput{
			Image:           req.Image,
			CustomerCode:    req.CustomerCode,
			MeasureDatetime: at,
			MeasureType:     req.MeasureType,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidType), errors.Is(err, service.ErrInvalidImage):
				return writeError(c, fiber.StatusBadRequest, "INVALID_DATA", err.Error())
			case errors.Is(err, service.ErrDuplicateReading):
				return writeError(c, fiber.StatusConflict, "DOUBLE_REPORT", "monthly reading already recorded")
			case errors.Is(err, extraction.ErrNoValueFound):
				return writeError(c, fiber.StatusBadRequest, "NO_MEASUREMENT_FOUND", "no measurement value found in extraction text")
			case errors.Is(err, extraction.ErrValueInvalid):
				return writeError(c, fiber.StatusBadRequest, "NO_MEASUREMENT_VALUE", "measurement value could not be determined")
			case errors.Is(err, extraction.ErrEmptyResponse):
				return writeError(c, fiber.StatusInternalServerError, "INVALID_RESPONSE", "invalid or incomplete data received from the extraction service")
			default:
				return writeError(c, fiber.StatusInternalServerError, "SERVER_ERROR", "internal server error: "+err.Error())
			}
		}
		return c.Status(fiber.StatusOK).JSON(res)
	}
}

// ConfirmMeasure sets the human-verified value on an unconfirmed reading.
func ConfirmMeasure(svc service.MeasurementService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req confirmRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATA", "malformed request body")
		}
		if req.MeasureUUID == "" || req.ConfirmedValue == nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATA", "missing or invalid parameters")
		}

		if err := svc.Confirm(c.UserContext(), req.MeasureUUID, *req.ConfirmedValue); err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "MEASURE_NOT_FOUND", "measurement not found")
			case errors.Is(err, service.ErrAlreadyConfirmed):
				return writeError(c, fiber.StatusConflict, "CONFIRMATION_DUPLICATE", "measurement already confirmed")
			default:
				return writeError(c, fiber.StatusInternalServerError, "DB_ERROR", "database error: "+err.Error())
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
	}
}

// ListMeasures returns a customer's reading history, optionally filtered
// by measure_type.
func ListMeasures(svc service.MeasurementService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerCode := c.Params("customerCode")
		measureType := c.Query("measure_type")

		res, err := svc.List(c.UserContext(), customerCode, measureType)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidType):
				return writeError(c, fiber.StatusBadRequest, "INVALID_TYPE", "measure type not allowed")
			case errors.Is(err, service.ErrNoMeasurements):
				return writeError(c, fiber.StatusNotFound, "MEASURES_NOT_FOUND", "no measurements found")
			default:
				return writeError(c, fiber.StatusInternalServerError, "DB_ERROR", "database error: "+err.Error())
			}
		}
		return c.Status(fiber.StatusOK).JSON(res)
	}
}

// GetMeasureImage redirects to a time-limited download link for the photo
// behind a stored reading.
func GetMeasureImage(svc service.MeasurementService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("uuid")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DATA", "invalid uuid format")
		}

		url, err := svc.ImageURL(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "MEASURE_NOT_FOUND", "measurement not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "SERVER_ERROR", "internal server error: "+err.Error())
		}
		return c.Redirect(url, fiber.StatusTemporaryRedirect)
	}
}

// HealthCheck reports readiness by pinging the database.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness check with no dependencies.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
