package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"meterapi/internal/extraction"
	"meterapi/internal/imaging"
	"meterapi/internal/model"
	"meterapi/internal/repository"
	"meterapi/internal/storage"
)

var (
	ErrInvalidType      = errors.New("measure type must be WATER or GAS")
	ErrInvalidImage     = errors.New("image is not a valid base64 data URI")
	ErrDuplicateReading = errors.New("a reading for this month already exists")
	ErrNotFound         = errors.New("measurement not found")
	ErrAlreadyConfirmed = errors.New("measurement already confirmed")
	ErrNoMeasurements   = errors.New("no measurements found")
)

// The external contract reports an empty list as a not-found condition
// rather than an empty 200. Flip this to return empty lists instead.
const emptyListIsError = true

// Prompt sent to the extraction model alongside every meter photo.
const extractionPrompt = "Extract measure value"

// How long redirect links to stored meter photos stay valid.
const imageLinkExpiry = 15 * time.Minute

// UploadInput carries a validated upload request into the lifecycle.
type UploadInput struct {
	Image           string
	CustomerCode    string
	MeasureDatetime time.Time
	MeasureType     string
}

// UploadResult is the service-level DTO for a stored reading.
type UploadResult struct {
	ImageURL     string  `json:"image_url"`
	MeasureValue float64 `json:"measure_value"`
	MeasureUUID  string  `json:"measure_uuid"`
}

// MeasureListItem is one entry of a customer's reading history.
type MeasureListItem struct {
	MeasureUUID     string            `json:"measure_uuid"`
	MeasureDatetime time.Time         `json:"measure_datetime"`
	MeasureType     model.MeasureType `json:"measure_type"`
	HasConfirmed    bool              `json:"has_confirmed"`
	ImageURL        string            `json:"image_url"`
}

// ListResult is the service-level DTO for a customer's reading history.
type ListResult struct {
	CustomerCode string            `json:"customer_code"`
	Measures     []MeasureListItem `json:"measures"`
}

// MeasurementService defines the use cases of the measurement lifecycle.
type MeasurementService interface {
	// Upload stores the submitted meter photo, extracts a reading from it
	// and persists a new unconfirmed measurement. The duplicate-month check
	// runs before the extraction call so a duplicate costs no upstream call.
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)

	// Confirm sets the human-verified value on an unconfirmed measurement.
	// The confirmed flag only ever transitions false -> true.
	Confirm(ctx context.Context, measureUUID string, value float64) error

	// List returns a customer's readings, optionally filtered by type.
	List(ctx context.Context, customerCode, rawType string) (*ListResult, error)

	// ImageURL returns a time-limited download link for a reading's photo.
	ImageURL(ctx context.Context, measureUUID string) (string, error)
}

// measurementService is a concrete implementation of MeasurementService.
type measurementService struct {
	store     storage.Storage
	repo      repository.MeasurementRepository
	extractor extraction.Extractor
	parser    extraction.ValueParser
}

// NewMeasurementService constructs a new MeasurementService.
func NewMeasurementService(store storage.Storage, repo repository.MeasurementRepository, ex extraction.Extractor, parser extraction.ValueParser) MeasurementService {
	return &measurementService{store: store, repo: repo, extractor: ex, parser: parser}
}

func (s *measurementService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	mt, err := model.ParseMeasureType(in.MeasureType)
	if err != nil {
		return nil, ErrInvalidType
	}

	at := in.MeasureDatetime.UTC()
	exists, err := s.repo.ExistsInMonth(ctx, in.CustomerCode, mt, at.Year(), at.Month())
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if exists {
		return nil, ErrDuplicateReading
	}

	data, mimeType, err := imaging.DecodeDataURI(in.Image)
	if err != nil {
		return nil, ErrInvalidImage
	}

	// The measurement UUID doubles as the image object name, so keys are
	// collision-free without any shared counter state.
	id := uuid.New().String()
	key := path.Join("measurements", id+imaging.ExtensionForMIME(mimeType))

	if _, err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: mimeType,
	}); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	text, err := s.extractor.Extract(ctx, data, mimeType, extractionPrompt)
	if err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, fmt.Errorf("extract reading: %w", err)
	}
	value, err := s.parser.Parse(text)
	if err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}

	m := &model.Measurement{
		UUID:            id,
		CustomerCode:    in.CustomerCode,
		MeasureDatetime: in.MeasureDatetime,
		MeasureType:     mt,
		MeasureValue:    value,
		ImageURL:        key,
		CreatedAt:       time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, m)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateMonth) {
			// A concurrent upload won the race between the exists check
			// and this insert.
			_ = s.store.Delete(ctx, key)
			return nil, ErrDuplicateReading
		}
		// Rollback: delete the stored image so no orphan object remains.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	return &UploadResult{
		ImageURL:     stored.ImageURL,
		MeasureValue: stored.MeasureValue,
		MeasureUUID:  stored.UUID,
	}, nil
}

func (s *measurementService) Confirm(ctx context.Context, measureUUID string, value float64) error {
	m, err := s.repo.FindByUUID(ctx, measureUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if m.Confirmed {
		return ErrAlreadyConfirmed
	}

	updated, err := s.repo.Confirm(ctx, measureUUID, value)
	if err != nil {
		return err
	}
	if !updated {
		// Confirmed by a concurrent request between the read and the update.
		return ErrAlreadyConfirmed
	}
	return nil
}

func (s *measurementService) List(ctx context.Context, customerCode, rawType string) (*ListResult, error) {
	var mt *model.MeasureType
	if rawType != "" {
		t, err := model.ParseMeasureType(rawType)
		if err != nil {
			return nil, ErrInvalidType
		}
		mt = &t
	}

	items, err := s.repo.ListByCustomer(ctx, customerCode, mt)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && emptyListIsError {
		return nil, ErrNoMeasurements
	}

	measures := make([]MeasureListItem, 0, len(items))
	for _, m := range items {
		measures = append(measures, MeasureListItem{
			MeasureUUID:     m.UUID,
			MeasureDatetime: m.MeasureDatetime,
			MeasureType:     m.MeasureType,
			HasConfirmed:    m.Confirmed,
			ImageURL:        m.ImageURL,
		})
	}
	return &ListResult{CustomerCode: customerCode, Measures: measures}, nil
}

func (s *measurementService) ImageURL(ctx context.Context, measureUUID string) (string, error) {
	m, err := s.repo.FindByUUID(ctx, measureUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return s.store.PresignGet(ctx, m.ImageURL, imageLinkExpiry)
}
