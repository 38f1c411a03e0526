package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RMahshie/flowrig/internal/repository"
	"github.com/RMahshie/flowrig/pkg/models"
)

// SweepRepository implements repository.SweepRepository on database/sql
type SweepRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSweepRepository creates a sweep repository for an open database
func NewSweepRepository(db *sql.DB, dialect Dialect) repository.SweepRepository {
	return &SweepRepository{db: db, dialect: dialect}
}

const sweepColumns = `id, min_frequency, max_frequency, step, state, progress, error_message, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSweep(row rowScanner) (*models.Sweep, error) {
	var sweep models.Sweep
	var errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&sweep.ID,
		&sweep.MinFrequency,
		&sweep.MaxFrequency,
		&sweep.Step,
		&sweep.State,
		&sweep.Progress,
		&errorMsg,
		&sweep.CreatedAt,
		&sweep.UpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	if errorMsg.Valid {
		sweep.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		sweep.CompletedAt = &completedAt.Time
	}
	return &sweep, nil
}

// Create inserts a new sweep record, assigning an ID and timestamps if unset
func (r *SweepRepository) Create(ctx context.Context, sweep *models.Sweep) error {
	if sweep.ID == "" {
		sweep.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sweep.CreatedAt.IsZero() {
		sweep.CreatedAt = now
	}
	if sweep.UpdatedAt.IsZero() {
		sweep.UpdatedAt = sweep.CreatedAt
	}
	if sweep.State == "" {
		sweep.State = models.SweepRunning
	}

	query := r.dialect.rebind(`
		INSERT INTO sweeps (id, min_frequency, max_frequency, step, state, progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		sweep.ID,
		sweep.MinFrequency,
		sweep.MaxFrequency,
		sweep.Step,
		string(sweep.State),
		sweep.Progress,
		sweep.CreatedAt.UTC(),
		sweep.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert sweep: %w", err)
	}
	return nil
}

// GetByID retrieves a sweep by ID
func (r *SweepRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Sweep, error) {
	query := r.dialect.rebind(`SELECT ` + sweepColumns + ` FROM sweeps WHERE id = ?`)

	sweep, err := scanSweep(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep: %w", err)
	}
	return sweep, nil
}

// List returns the most recent sweeps, newest first
func (r *SweepRepository) List(ctx context.Context, limit int) ([]*models.Sweep, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.dialect.rebind(`SELECT ` + sweepColumns + ` FROM sweeps ORDER BY created_at DESC LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}
	defer rows.Close()

	sweeps := []*models.Sweep{}
	for rows.Next() {
		sweep, err := scanSweep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		sweeps = append(sweeps, sweep)
	}
	return sweeps, rows.Err()
}

// UpdateStatus updates the state and progress of a sweep. Leaving the
// running state stamps completed_at.
func (r *SweepRepository) UpdateStatus(ctx context.Context, id uuid.UUID, state models.SweepState, progress int) error {
	now := time.Now().UTC()
	var completedAt *time.Time
	if state != models.SweepRunning {
		completedAt = &now
	}

	query := r.dialect.rebind(`
		UPDATE sweeps
		SET state = ?, progress = ?, updated_at = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query, string(state), progress, now, completedAt, id.String())
	if err != nil {
		return fmt.Errorf("failed to update sweep status: %w", err)
	}
	return requireRow(res)
}

// UpdateError marks a sweep failed with the given message
func (r *SweepRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	now := time.Now().UTC()
	query := r.dialect.rebind(`
		UPDATE sweeps
		SET state = ?, error_message = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query, string(models.SweepError), errorMsg, now, now, id.String())
	if err != nil {
		return fmt.Errorf("failed to update sweep error: %w", err)
	}
	return requireRow(res)
}

// AddDataPoint stores a measurement, replacing any earlier one at the same frequency
func (r *SweepRepository) AddDataPoint(ctx context.Context, id uuid.UUID, point models.DataPoint) error {
	query := r.dialect.rebind(`
		INSERT INTO sweep_points (sweep_id, frequency, flow_rate, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (sweep_id, frequency) DO UPDATE
		SET flow_rate = excluded.flow_rate, recorded_at = excluded.recorded_at`)

	_, err := r.db.ExecContext(ctx, query, id.String(), point.Frequency, point.FlowRate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store data point: %w", err)
	}
	return nil
}

// GetDataPoints returns a sweep's measurements ordered by frequency
func (r *SweepRepository) GetDataPoints(ctx context.Context, id uuid.UUID) ([]models.DataPoint, error) {
	query := r.dialect.rebind(`
		SELECT frequency, flow_rate
		FROM sweep_points
		WHERE sweep_id = ?
		ORDER BY frequency`)

	rows, err := r.db.QueryContext(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get data points: %w", err)
	}
	defer rows.Close()

	points := []models.DataPoint{}
	for rows.Next() {
		var p models.DataPoint
		if err := rows.Scan(&p.Frequency, &p.FlowRate); err != nil {
			return nil, fmt.Errorf("failed to scan data point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
