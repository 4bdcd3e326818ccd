package mocks

import (
	"context"
	"time"

	"meterapi/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockMeasurementRepository struct {
	mock.Mock
}

func (m *MockMeasurementRepository) Create(ctx context.Context, mm *model.Measurement) (*model.Measurement, error) {
	args := m.Called(ctx, mm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if f, ok := args.Get(0).(func(context.Context, *model.Measurement) *model.Measurement); ok {
		return f(ctx, mm), args.Error(1)
	}
	return args.Get(0).(*model.Measurement), args.Error(1)
}

func (m *MockMeasurementRepository) FindByUUID(ctx context.Context, uuid string) (*model.Measurement, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Measurement), args.Error(1)
}

func (m *MockMeasurementRepository) ExistsInMonth(ctx context.Context, customerCode string, mt model.MeasureType, year int, month time.Month) (bool, error) {
	args := m.Called(ctx, customerCode, mt, year, month)
	return args.Bool(0), args.Error(1)
}

func (m *MockMeasurementRepository) Confirm(ctx context.Context, uuid string, value float64) (bool, error) {
	args := m.Called(ctx, uuid, value)
	return args.Bool(0), args.Error(1)
}

func (m *MockMeasurementRepository) ListByCustomer(ctx context.Context, customerCode string, mt *model.MeasureType) ([]model.Measurement, error) {
	args := m.Called(ctx, customerCode, mt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}
