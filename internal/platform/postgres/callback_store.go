package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jonesleonard/upscaler/internal/domain"
	"github.com/jonesleonard/upscaler/internal/platform/logger"
	"github.com/jonesleonard/upscaler/internal/store"
)

// uniqueViolationCode is the Postgres error code for unique constraint violations.
const uniqueViolationCode = "23505"

// CallbackStore implements the store.CallbackStore interface using PostgreSQL.
type CallbackStore struct {
	db store.DBTX
}

// NewCallbackStore creates a new CallbackStore.
func NewCallbackStore(db store.DBTX) *CallbackStore {
	return &CallbackStore{
		db: db,
	}
}

// Ensure the interface is satisfied.
var _ store.CallbackStore = (*CallbackStore)(nil)

// Create persists a new callback record.
func (s *CallbackStore) Create(ctx context.Context, record *domain.CallbackRecord) error {
	log := logger.FromContext(ctx)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	resultJSON, err := marshalResult(record.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO callback_records
			(callback_token, task_token, job_id, exec_id, segment_filename,
			 status, created_at, completed_at, result, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.db.ExecContext(ctx, query,
		record.CallbackToken,
		record.TaskToken,
		record.JobID,
		record.ExecID,
		record.SegmentFilename,
		record.Status,
		record.CreatedAt,
		record.CompletedAt,
		resultJSON,
		record.ExpiresAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return store.ErrDuplicateToken
		}
		log.Error("failed to create callback record",
			"job_id", record.JobID,
			"exec_id", record.ExecID,
			"error", err)
		return fmt.Errorf("failed to create callback record: %w", err)
	}

	return nil
}

// GetByToken retrieves the live record for the given callback token.
// Rows past their expiry are treated as absent, so a record the sweeper has
// not yet removed still behaves like a TTL-expired item.
func (s *CallbackStore) GetByToken(
	ctx context.Context,
	callbackToken string,
) (*domain.CallbackRecord, error) {
	query := `
		SELECT callback_token, task_token, job_id, exec_id, segment_filename,
		       status, created_at, completed_at, result, expires_at
		FROM callback_records
		WHERE callback_token = $1 AND expires_at > $2
	`

	row := s.db.QueryRowContext(ctx, query, callbackToken, time.Now().UTC())
	return scanCallbackRecord(row)
}

// Complete transitions a PENDING record to a terminal status. The WHERE
// clause on the current status makes the write conditional: under duplicate
// concurrent deliveries only one update succeeds, the other observes
// ErrAlreadyTerminal.
func (s *CallbackStore) Complete(
	ctx context.Context,
	callbackToken string,
	status domain.CallbackStatus,
	result map[string]any,
) error {
	log := logger.FromContext(ctx)

	if !status.IsTerminal() {
		return fmt.Errorf("%w: status %q is not terminal", store.ErrInvalidEntity, status)
	}

	resultJSON, err := marshalResult(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		UPDATE callback_records
		SET status = $1, completed_at = $2, result = $3
		WHERE callback_token = $4 AND status = $5
	`

	res, err := s.db.ExecContext(ctx, query,
		status,
		time.Now().UTC(),
		resultJSON,
		callbackToken,
		domain.CallbackStatusPending,
	)
	if err != nil {
		log.Error("failed to complete callback record",
			"status", status,
			"error", err)
		return fmt.Errorf("failed to complete callback record: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either the token is unknown or another delivery already moved the
		// record out of PENDING. Distinguish so the handler can respond
		// idempotently rather than with 404.
		exists, err := s.tokenExists(ctx, callbackToken)
		if err != nil {
			return err
		}
		if !exists {
			return store.ErrCallbackNotFound
		}
		return store.ErrAlreadyTerminal
	}

	return nil
}

// DeleteExpired removes records whose expiry precedes the cutoff.
func (s *CallbackStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	log := logger.FromContext(ctx)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM callback_records WHERE expires_at <= $1`, cutoff)
	if err != nil {
		log.Error("failed to delete expired callback records", "error", err)
		return 0, fmt.Errorf("failed to delete expired callback records: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// ListExpiredPending returns expired records still in PENDING state.
func (s *CallbackStore) ListExpiredPending(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*domain.CallbackRecord, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT callback_token, task_token, job_id, exec_id, segment_filename,
		       status, created_at, completed_at, result, expires_at
		FROM callback_records
		WHERE expires_at <= $1 AND status = $2
		ORDER BY expires_at ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, cutoff, domain.CallbackStatusPending, limit)
	if err != nil {
		log.Error("failed to query expired pending records", "error", err)
		return nil, fmt.Errorf("failed to query expired pending records: %w", err)
	}
	defer rows.Close()

	var records []*domain.CallbackRecord
	for rows.Next() {
		record, err := scanCallbackRecordFromRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating callback record rows: %w", err)
	}

	return records, nil
}

// tokenExists reports whether any row (live or expired) has the given token.
func (s *CallbackStore) tokenExists(ctx context.Context, callbackToken string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM callback_records WHERE callback_token = $1)`,
		callbackToken,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check callback token existence: %w", err)
	}
	return exists, nil
}

// rowScanner is the subset of *sql.Row / *sql.Rows used by the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCallbackRecord(row *sql.Row) (*domain.CallbackRecord, error) {
	record, err := scanFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCallbackNotFound
		}
		return nil, err
	}
	return record, nil
}

func scanCallbackRecordFromRows(rows *sql.Rows) (*domain.CallbackRecord, error) {
	return scanFrom(rows)
}

func scanFrom(scanner rowScanner) (*domain.CallbackRecord, error) {
	var record domain.CallbackRecord
	var jobID sql.NullString
	var completedAt sql.NullTime
	var resultJSON []byte

	err := scanner.Scan(
		&record.CallbackToken,
		&record.TaskToken,
		&jobID,
		&record.ExecID,
		&record.SegmentFilename,
		&record.Status,
		&record.CreatedAt,
		&completedAt,
		&resultJSON,
		&record.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan callback record: %w", err)
	}

	record.JobID = jobID.String
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &record.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	return &record, nil
}

// marshalResult converts the result map to JSONB-compatible bytes,
// preserving NULL for an absent result.
func marshalResult(result map[string]any) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	return json.Marshal(result)
}
