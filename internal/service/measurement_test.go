package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"meterapi/internal/extraction"
	extractionMocks "meterapi/internal/extraction/mocks"
	"meterapi/internal/model"
	"meterapi/internal/repository"
	repoMocks "meterapi/internal/repository/mocks"
	"meterapi/internal/storage"
	storeMocks "meterapi/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testDataURI() string {
	payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
}

func newTestService(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) MeasurementService {
	return NewMeasurementService(mStore, mRepo, mEx, extraction.RegexValueParser{})
}

func TestMeasurementService_Upload(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, time.August, 20, 10, 0, 0, 0, time.UTC)

	baseInput := UploadInput{
		Image:           testDataURI(),
		CustomerCode:    "cust-1",
		MeasureDatetime: at,
		MeasureType:     "water",
	}

	tests := []struct {
		name       string
		input      UploadInput
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor)
		wantErr    error
		wantErrMsg string
		wantValue  float64
	}{
		{
			name:  "happy path with lower-case type",
			input: baseInput,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeWater, 2024, time.August).Return(false, nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mEx.On("Extract", ctx, mock.Anything, "image/png", "Extract measure value").Return("Value: 45.30", nil)
				mRepo.On("Create", ctx, mock.MatchedBy(func(m *model.Measurement) bool {
					return m.MeasureType == model.MeasureTypeWater &&
						m.MeasureValue == 45.30 &&
						!m.Confirmed &&
						m.UUID != "" &&
						m.ImageURL != ""
				})).Return(func(ctx context.Context, m *model.Measurement) *model.Measurement {
					return m
				}, nil)
			},
			wantValue: 45.30,
		},
		{
			name: "invalid measure type",
			input: UploadInput{
				Image:           testDataURI(),
				CustomerCode:    "cust-1",
				MeasureDatetime: at,
				MeasureType:     "ELECTRICITY",
			},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {},
			wantErr:    ErrInvalidType,
		},
		{
			name:  "duplicate reading detected before extraction",
			input: baseInput,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeWater, 2024, time.August).Return(true, nil)
				// No Put, Extract or Create expectations: the duplicate
				// must short-circuit before any of them.
			},
			wantErr: ErrDuplicateReading,
		},
		{
			name: "invalid image data uri",
			input: UploadInput{
				Image:           "not-a-data-uri",
				CustomerCode:    "cust-1",
				MeasureDatetime: at,
				MeasureType:     "GAS",
			},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeGas, 2024, time.August).Return(false, nil)
			},
			wantErr: ErrInvalidImage,
		},
		{
			name:  "storage error",
			input: baseInput,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeWater, 2024, time.August).Return(false, nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
			},
			wantErrMsg: "store image: storage fail",
		},
		{
			name:  "extraction failure discards stored image",
			input: baseInput,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeWater, 2024, time.August).Return(false, nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mEx.On("Extract", ctx, mock.Anything, "image/png", "Extract measure value").
					Return("", errors.New("gemini 500: boom"))
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
			},
			wantErrMsg: "extract reading: gemini 500: boom",
		},
		{
			name:  "no decimal in extraction text",
			input: baseInput,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeWater, 2024, time.August).Return(false, nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mEx.On("Extract", ctx, mock.Anything, "image/png", "Extract measure value").Return("123", nil)
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
			},
			wantErr: extraction.ErrNoValueFound,
		},
		{
			name:  "empty extraction response",
			input: baseInput,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeWater, 2024, time.August).Return(false, nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mEx.On("Extract", ctx, mock.Anything, "image/png", "Extract measure value").Return("", nil)
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
			},
			wantErr: extraction.ErrEmptyResponse,
		},
		{
			name:  "insert loses race to concurrent upload",
			input: baseInput,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeWater, 2024, time.August).Return(false, nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mEx.On("Extract", ctx, mock.Anything, "image/png", "Extract measure value").Return("Value: 45.30", nil)
				mRepo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicateMonth)
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
			},
			wantErr: ErrDuplicateReading,
		},
		{
			name:  "db save failure with successful rollback",
			input: baseInput,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeWater, 2024, time.August).Return(false, nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mEx.On("Extract", ctx, mock.Anything, "image/png", "Extract measure value").Return("Value: 45.30", nil)
				mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
			},
			wantErrMsg: "db save failed: db fail",
		},
		{
			name:  "db save failure with failed rollback",
			input: baseInput,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockMeasurementRepository, mEx *extractionMocks.MockExtractor) {
				mRepo.On("ExistsInMonth", ctx, "cust-1", model.MeasureTypeWater, 2024, time.August).Return(false, nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mEx.On("Extract", ctx, mock.Anything, "image/png", "Extract measure value").Return("Value: 45.30", nil)
				mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(errors.New("delete fail"))
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockMeasurementRepository)
			mEx := new(extractionMocks.MockExtractor)
			svc := newTestService(mStore, mRepo, mEx)

			tt.setupMocks(mStore, mRepo, mEx)

			res, err := svc.Upload(ctx, tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				assert.Nil(t, res)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, res)
				assert.Equal(t, tt.wantValue, res.MeasureValue)
				assert.NotEmpty(t, res.MeasureUUID)
				assert.NotEmpty(t, res.ImageURL)
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
			mEx.AssertExpectations(t)
		})
	}
}

func TestMeasurementService_Confirm(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		mRepo.On("FindByUUID", ctx, "id-1").Return(&model.Measurement{UUID: "id-1", Confirmed: false}, nil)
		mRepo.On("Confirm", ctx, "id-1", 100.5).Return(true, nil)

		err := svc.Confirm(ctx, "id-1", 100.5)
		assert.NoError(t, err)
		mRepo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		mRepo.On("FindByUUID", ctx, "missing").Return(nil, sql.ErrNoRows)

		err := svc.Confirm(ctx, "missing", 100.5)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("already confirmed", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		mRepo.On("FindByUUID", ctx, "id-1").Return(&model.Measurement{UUID: "id-1", Confirmed: true}, nil)

		err := svc.Confirm(ctx, "id-1", 100.5)
		assert.ErrorIs(t, err, ErrAlreadyConfirmed)
		mRepo.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("confirmed concurrently after read", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		mRepo.On("FindByUUID", ctx, "id-1").Return(&model.Measurement{UUID: "id-1", Confirmed: false}, nil)
		mRepo.On("Confirm", ctx, "id-1", 100.5).Return(false, nil)

		err := svc.Confirm(ctx, "id-1", 100.5)
		assert.ErrorIs(t, err, ErrAlreadyConfirmed)
	})

	t.Run("db error", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		mRepo.On("FindByUUID", ctx, "id-1").Return(nil, errors.New("db down"))

		err := svc.Confirm(ctx, "id-1", 100.5)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestMeasurementService_List(t *testing.T) {
	ctx := context.Background()

	sample := []model.Measurement{
		{UUID: "id-1", CustomerCode: "cust-1", MeasureType: model.MeasureTypeWater, MeasureValue: 45.30, ImageURL: "measurements/id-1.png", Confirmed: true},
		{UUID: "id-2", CustomerCode: "cust-1", MeasureType: model.MeasureTypeGas, MeasureValue: 12.00, ImageURL: "measurements/id-2.png"},
	}

	t.Run("all types", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		mRepo.On("ListByCustomer", ctx, "cust-1", (*model.MeasureType)(nil)).Return(sample, nil)

		res, err := svc.List(ctx, "cust-1", "")
		assert.NoError(t, err)
		assert.Equal(t, "cust-1", res.CustomerCode)
		assert.Len(t, res.Measures, 2)
		assert.True(t, res.Measures[0].HasConfirmed)
		assert.False(t, res.Measures[1].HasConfirmed)
	})

	t.Run("filter normalizes type case", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		mt := model.MeasureTypeWater
		mRepo.On("ListByCustomer", ctx, "cust-1", &mt).Return(sample[:1], nil)

		res, err := svc.List(ctx, "cust-1", "water")
		assert.NoError(t, err)
		assert.Len(t, res.Measures, 1)
		assert.Equal(t, model.MeasureTypeWater, res.Measures[0].MeasureType)
	})

	t.Run("invalid type fails before querying", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		res, err := svc.List(ctx, "cust-1", "ELECTRICITY")
		assert.ErrorIs(t, err, ErrInvalidType)
		assert.Nil(t, res)
		mRepo.AssertNotCalled(t, "ListByCustomer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty result is reported as not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		mRepo.On("ListByCustomer", ctx, "nobody", (*model.MeasureType)(nil)).Return([]model.Measurement{}, nil)

		res, err := svc.List(ctx, "nobody", "")
		assert.ErrorIs(t, err, ErrNoMeasurements)
		assert.Nil(t, res)
	})
}

func TestMeasurementService_ImageURL(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(mStore, mRepo, new(extractionMocks.MockExtractor))

		mRepo.On("FindByUUID", ctx, "id-1").Return(&model.Measurement{UUID: "id-1", ImageURL: "measurements/id-1.png"}, nil)
		mStore.On("PresignGet", ctx, "measurements/id-1.png", imageLinkExpiry).Return("https://storage.example/signed", nil)

		url, err := svc.ImageURL(ctx, "id-1")
		assert.NoError(t, err)
		assert.Equal(t, "https://storage.example/signed", url)
	})

	t.Run("not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockMeasurementRepository)
		svc := newTestService(new(storeMocks.MockStorage), mRepo, new(extractionMocks.MockExtractor))

		mRepo.On("FindByUUID", ctx, "missing").Return(nil, sql.ErrNoRows)

		url, err := svc.ImageURL(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, url)
	})
}
