package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"meterapi/internal/model"
	"meterapi/internal/repository"
)

// Postgres error code for unique_violation.
const uniqueViolation = "23505"

// MeasurementPostgres is a PostgreSQL implementation of repository.MeasurementRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type MeasurementPostgres struct {
	db *sql.DB
}

// NewMeasurementPostgres creates a new MeasurementPostgres repository.
func NewMeasurementPostgres(db *sql.DB) *MeasurementPostgres {
	return &MeasurementPostgres{db: db}
}

var _ repository.MeasurementRepository = (*MeasurementPostgres)(nil)

// Create inserts a new measurement row and returns the stored record.
// The year/month columns backing the unique month index are derived here
// from measure_datetime in UTC.
func (r *MeasurementPostgres) Create(ctx context.Context, m *model.Measurement) (*model.Measurement, error) {
	const q = `
		INSERT INTO measurements
			(measure_uuid, customer_code, measure_datetime, measure_type, measure_value,
			 measure_year, measure_month, image_url, confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
		RETURNING measure_uuid, customer_code, measure_datetime, measure_type, measure_value, image_url, confirmed, created_at
	`
	at := m.MeasureDatetime.UTC()
	row := r.db.QueryRowContext(ctx, q,
		m.UUID,
		m.CustomerCode,
		m.MeasureDatetime,
		m.MeasureType,
		m.MeasureValue,
		at.Year(),
		int(at.Month()),
		m.ImageURL,
		m.CreatedAt,
	)
	var out model.Measurement
	if err := row.Scan(
		&out.UUID,
		&out.CustomerCode,
		&out.MeasureDatetime,
		&out.MeasureType,
		&out.MeasureValue,
		&out.ImageURL,
		&out.Confirmed,
		&out.CreatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, repository.ErrDuplicateMonth
		}
		return nil, err
	}
	return &out, nil
}

// FindByUUID fetches a single measurement by its UUID.
func (r *MeasurementPostgres) FindByUUID(ctx context.Context, uuid string) (*model.Measurement, error) {
	const q = `
		SELECT measure_uuid, customer_code, measure_datetime, measure_type, measure_value, image_url, confirmed, created_at
		FROM measurements
		WHERE measure_uuid = $1
	`
	row := r.db.QueryRowContext(ctx, q, uuid)
	var m model.Measurement
	if err := row.Scan(
		&m.UUID,
		&m.CustomerCode,
		&m.MeasureDatetime,
		&m.MeasureType,
		&m.MeasureValue,
		&m.ImageURL,
		&m.Confirmed,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// ExistsInMonth checks for an existing reading in the given calendar month.
func (r *MeasurementPostgres) ExistsInMonth(ctx context.Context, customerCode string, mt model.MeasureType, year int, month time.Month) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM measurements
			WHERE customer_code = $1 AND measure_type = $2 AND measure_year = $3 AND measure_month = $4
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, customerCode, mt, year, int(month)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Confirm updates value and confirmed flag together; the NOT confirmed guard
// makes the false->true transition atomic even under concurrent confirms.
func (r *MeasurementPostgres) Confirm(ctx context.Context, uuid string, value float64) (bool, error) {
	const q = `
		UPDATE measurements
		SET measure_value = $2, confirmed = TRUE
		WHERE measure_uuid = $1 AND NOT confirmed
	`
	res, err := r.db.ExecContext(ctx, q, uuid, value)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByCustomer returns a customer's measurements, optionally filtered by type.
func (r *MeasurementPostgres) ListByCustomer(ctx context.Context, customerCode string, mt *model.MeasureType) ([]model.Measurement, error) {
	q := `
		SELECT measure_uuid, customer_code, measure_datetime, measure_type, measure_value, image_url, confirmed, created_at
		FROM measurements
		WHERE customer_code = $1
	`
	args := []any{customerCode}
	if mt != nil {
		q += ` AND measure_type = $2`
		args = append(args, *mt)
	}
	q += ` ORDER BY measure_datetime DESC, measure_uuid DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Measurement, 0)
	for rows.Next() {
		var m model.Measurement
		if err := rows.Scan(
			&m.UUID,
			&m.CustomerCode,
			&m.MeasureDatetime,
			&m.MeasureType,
			&m.MeasureValue,
			&m.ImageURL,
			&m.Confirmed,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
