package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vaultpay/payment-core/internal/domain/payroll"
	"github.com/vaultpay/payment-core/internal/platform/persistence"
)

// PayrollRepository implements the payroll.Repository interface for PostgreSQL.
// Recipient details are stored as a jsonb column since they vary by rail.
type PayrollRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPayrollRepository creates a new PostgreSQL payroll repository
func NewPayrollRepository(logger *slog.Logger, db *persistence.PostgresDB) payroll.Repository {
	return &PayrollRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *PayrollRepository) WithTx(tx pgx.Tx) payroll.Repository {
	return &PayrollRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new payroll entry
func (r *PayrollRepository) Create(ctx context.Context, entry *payroll.Entry) error {
	recipient, err := json.Marshal(entry.Recipient)
	if err != nil {
		return fmt.Errorf("failed to marshal recipient details: %w", err)
	}

	query := `
		INSERT INTO payroll_entries (id, employee_id, employee_name, wallet_id, salary, bonus, deductions,
			net_pay, currency, recipient, status, transaction_id, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.querier.Exec(ctx, query,
		entry.ID,
		entry.EmployeeID,
		entry.EmployeeName,
		entry.WalletID,
		entry.Salary,
		entry.Bonus,
		entry.Deductions,
		entry.NetPay,
		entry.Currency,
		recipient,
		entry.Status,
		entry.TransactionID,
		entry.FailureReason,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payroll entry", "id", entry.ID.String(), "error", err)
		return fmt.Errorf("failed to create payroll entry: %w", err)
	}

	return nil
}

// GetByID retrieves a payroll entry by its ID
func (r *PayrollRepository) GetByID(ctx context.Context, id uuid.UUID) (*payroll.Entry, error) {
	query := `
		SELECT id, employee_id, employee_name, wallet_id, salary, bonus, deductions,
			net_pay, currency, recipient, status, transaction_id, failure_reason, created_at, updated_at
		FROM payroll_entries
		WHERE id = $1
	`

	entry, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payroll.ErrEntryNotFound{EntryID: id}
		}
		r.logger.Error("Failed to get payroll entry", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payroll entry: %w", err)
	}

	return entry, nil
}

// Update persists the mutable fields of a payroll entry
func (r *PayrollRepository) Update(ctx context.Context, entry *payroll.Entry) error {
	recipient, err := json.Marshal(entry.Recipient)
	if err != nil {
		return fmt.Errorf("failed to marshal recipient details: %w", err)
	}

	query := `
		UPDATE payroll_entries
		SET salary = $1, bonus = $2, deductions = $3, net_pay = $4, recipient = $5,
			status = $6, transaction_id = $7, failure_reason = $8, updated_at = $9
		WHERE id = $10
	`

	result, err := r.querier.Exec(ctx, query,
		entry.Salary,
		entry.Bonus,
		entry.Deductions,
		entry.NetPay,
		recipient,
		entry.Status,
		entry.TransactionID,
		entry.FailureReason,
		entry.UpdatedAt,
		entry.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update payroll entry", "id", entry.ID.String(), "error", err)
		return fmt.Errorf("failed to update payroll entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payroll.ErrEntryNotFound{EntryID: entry.ID}
	}

	return nil
}

// List retrieves payroll entries with pagination, newest first
func (r *PayrollRepository) List(ctx context.Context, limit, offset int) ([]*payroll.Entry, error) {
	query := `
		SELECT id, employee_id, employee_name, wallet_id, salary, bonus, deductions,
			net_pay, currency, recipient, status, transaction_id, failure_reason, created_at, updated_at
		FROM payroll_entries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list payroll entries", "error", err)
		return nil, fmt.Errorf("failed to list payroll entries: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListByStatus retrieves entries in a given status in creation order, which
// gives the batch runner a deterministic processing sequence
func (r *PayrollRepository) ListByStatus(ctx context.Context, status payroll.EntryStatus, limit int) ([]*payroll.Entry, error) {
	query := `
		SELECT id, employee_id, employee_name, wallet_id, salary, bonus, deductions,
			net_pay, currency, recipient, status, transaction_id, failure_reason, created_at, updated_at
		FROM payroll_entries
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, status, limit)
	if err != nil {
		r.logger.Error("Failed to list payroll entries by status", "status", string(status), "error", err)
		return nil, fmt.Errorf("failed to list payroll entries by status: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *PayrollRepository) collect(rows pgx.Rows) ([]*payroll.Entry, error) {
	var entries []*payroll.Entry
	for rows.Next() {
		entry, err := r.scanOne(rows)
		if err != nil {
			r.logger.Error("Failed to scan payroll entry", "error", err)
			return nil, fmt.Errorf("failed to scan payroll entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over payroll entries", "error", err)
		return nil, fmt.Errorf("error iterating over payroll entries: %w", err)
	}

	return entries, nil
}

func (r *PayrollRepository) scanOne(row pgx.Row) (*payroll.Entry, error) {
	var entry payroll.Entry
	var recipient []byte
	err := row.Scan(
		&entry.ID,
		&entry.EmployeeID,
		&entry.EmployeeName,
		&entry.WalletID,
		&entry.Salary,
		&entry.Bonus,
		&entry.Deductions,
		&entry.NetPay,
		&entry.Currency,
		&recipient,
		&entry.Status,
		&entry.TransactionID,
		&entry.FailureReason,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(recipient, &entry.Recipient); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipient details: %w", err)
	}

	return &entry, nil
}
