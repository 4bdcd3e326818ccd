package extraction

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyResponse means the model produced no text at all.
	ErrEmptyResponse = errors.New("extraction response contains no text")
	// ErrNoValueFound means the model produced text but no decimal value was in it.
	ErrNoValueFound = errors.New("no measurement value found in extraction text")
	// ErrValueInvalid means a decimal was matched but is not a usable positive number.
	ErrValueInvalid = errors.New("measurement value is not a positive number")
)

// ValueParser extracts a numeric meter reading from free-form model output.
type ValueParser interface {
	Parse(text string) (float64, error)
}

// Integers without a fractional part are deliberately not matched; a bare
// "123" in the model output is treated as no reading.
var decimalPattern = regexp.MustCompile(`\d+\.\d+`)

// RegexValueParser is a best-effort parser that takes the first decimal
// number (digits, a point, digits) found in the text.
type RegexValueParser struct{}

var _ ValueParser = RegexValueParser{}

func (RegexValueParser) Parse(text string) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyResponse
	}

	match := decimalPattern.FindString(text)
	if match == "" {
		return 0, ErrNoValueFound
	}

	v, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrValueInvalid
	}
	return v, nil
}
