package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type AttemptRepository struct {
	db *sql.DB
}

func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// InitDB applies the embedded schema migrations.
func (r *AttemptRepository) InitDB() error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "checkout_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// InsertAttempt stores a fresh attempt in NOT_STARTED; the first transition
// moves it forward like every later one.
func (r *AttemptRepository) InsertAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_attempts (attempt_id, session_id, method, state, previous_state)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (attempt_id) DO NOTHING
	`, attempt.ID, attempt.SessionID, attempt.Method, models.StatusNotStarted, "")
	return err
}

func (r *AttemptRepository) TransitionState(ctx context.Context, attemptID string, from, to models.AttemptStatus, reason string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payment_attempts
		SET state = $1, previous_state = $2, failure_reason = NULLIF($3, ''), updated_at = NOW()
		WHERE attempt_id = $4 AND state = $5
	`, to, from, reason, attemptID, from)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *AttemptRepository) SetOrder(ctx context.Context, attemptID, orderID string, amount decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payment_attempts SET order_id = $1, amount = $2, updated_at = NOW() WHERE attempt_id = $3`,
		orderID, amount.StringFixed(2), attemptID)
	return err
}

func (r *AttemptRepository) SetCorrelation(ctx context.Context, attemptID, correlationID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payment_attempts SET correlation_id = $1, updated_at = NOW() WHERE attempt_id = $2`,
		correlationID, attemptID)
	return err
}

func (r *AttemptRepository) GetByAttemptID(ctx context.Context, attemptID string) (*models.AttemptStateInfo, error) {
	var (
		info                                         models.AttemptStateInfo
		orderID, correlationID, amount, prev, reason sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT attempt_id, session_id, order_id, correlation_id, method, amount::text,
		       state, previous_state, failure_reason, created_at, updated_at
		FROM payment_attempts WHERE attempt_id = $1
	`, attemptID).Scan(
		&info.AttemptID, &info.SessionID, &orderID, &correlationID, &info.Method, &amount,
		&info.State, &prev, &reason, &info.CreatedAt, &info.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}

	info.OrderID = orderID.String
	info.CorrelationID = correlationID.String
	info.Amount = amount.String
	info.PreviousState = prev.String
	info.FailureReason = reason.String
	return &info, nil
}
