package repository

import (
	"context"
	"errors"
	"time"

	"meterapi/internal/model"
)

// ErrDuplicateMonth is returned by Create when the unique index on
// (customer_code, measure_type, measure_year, measure_month) rejects the
// insert. This is the storage-level close for two concurrent uploads both
// passing the ExistsInMonth check.
var ErrDuplicateMonth = errors.New("measurement already exists for this month")

// MeasurementRepository defines data access for measurements using SQL queries only.
// No business logic here — strictly persistence operations.
type MeasurementRepository interface {
	// Create inserts a new measurement record and returns the stored row.
	Create(ctx context.Context, m *model.Measurement) (*model.Measurement, error)

	// FindByUUID returns a measurement by its UUID.
	FindByUUID(ctx context.Context, uuid string) (*model.Measurement, error)

	// ExistsInMonth reports whether a measurement already exists for the
	// customer, type and calendar month.
	ExistsInMonth(ctx context.Context, customerCode string, mt model.MeasureType, year int, month time.Month) (bool, error)

	// Confirm sets measure_value and confirmed=true in a single statement,
	// guarded by "AND NOT confirmed". Returns false when no row was updated,
	// i.e. the record is missing or was already confirmed.
	Confirm(ctx context.Context, uuid string, value float64) (bool, error)

	// ListByCustomer returns all measurements for a customer, optionally
	// filtered by type, newest first.
	ListByCustomer(ctx context.Context, customerCode string, mt *model.MeasureType) ([]model.Measurement, error)
}
