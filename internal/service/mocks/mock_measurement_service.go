package mocks

import (
	"context"

	"meterapi/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockMeasurementService struct {
	mock.Mock
}

func (m *MockMeasurementService) Upload(ctx context.Context, in service.UploadInput) (*service.UploadResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockMeasurementService) Confirm(ctx context.Context, measureUUID string, value float64) error {
	args := m.Called(ctx, measureUUID, value)
	return args.Error(0)
}

func (m *MockMeasurementService) List(ctx context.Context, customerCode, rawType string) (*service.ListResult, error) {
	args := m.Called(ctx, customerCode, rawType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult), args.Error(1)
}

func (m *MockMeasurementService) ImageURL(ctx context.Context, measureUUID string) (string, error) {
	args := m.Called(ctx, measureUUID)
	return args.String(0), args.Error(1)
}
