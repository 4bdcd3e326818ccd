package model

import (
	"errors"
	"strings"
	"time"
)

// MeasureType is the kind of utility meter a reading was taken from.
type MeasureType string

const (
	MeasureTypeWater MeasureType = "WATER"
	MeasureTypeGas   MeasureType = "GAS"
)

// ErrInvalidMeasureType is returned when a string does not name a known meter type.
var ErrInvalidMeasureType = errors.New("invalid measure type")

// ParseMeasureType normalizes a raw type string to its canonical upper-case form.
func ParseMeasureType(s string) (MeasureType, error) {
	switch MeasureType(strings.ToUpper(s)) {
	case MeasureTypeWater:
		return MeasureTypeWater, nil
	case MeasureTypeGas:
		return MeasureTypeGas, nil
	default:
		return "", ErrInvalidMeasureType
	}
}

// Measurement represents one meter reading taken from a photographed meter.
// This is a pure domain model with no database-specific dependencies or tags.
// MeasureDatetime is when the reading was taken (caller-supplied), not when
// it was recorded; at most one unconfirmed-or-confirmed measurement may exist
// per customer, type and calendar month of MeasureDatetime.
type Measurement struct {
	UUID            string      `json:"measure_uuid"`
	CustomerCode    string      `json:"customer_code"`
	MeasureDatetime time.Time   `json:"measure_datetime"`
	MeasureType     MeasureType `json:"measure_type"`
	MeasureValue    float64     `json:"measure_value"`
	ImageURL        string      `json:"image_url"`
	Confirmed       bool        `json:"confirmed"`
	CreatedAt       time.Time   `json:"created_at"`
}
