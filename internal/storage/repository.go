package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ricorrenze/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable implementation of the rule store,
// reminder store and ledger. Timestamps are stored as Unix
// milliseconds in UTC.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const ruleColumns = `id, title, amount_cents, kind, category, frequency,
	start_date, next_occurrence, estimated_monthly_cents, active,
	reminder_enabled, reminder_days_before, created_at, updated_at`

// LoadActiveRules returns every active rule ordered by next occurrence.
func (r *SQLiteRepository) LoadActiveRules(ctx context.Context) ([]core.Rule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE active = 1 ORDER BY next_occurrence, id`)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *SQLiteRepository) ListRules(ctx context.Context) ([]core.Rule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id int64) (*core.Rule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %d: %w", id, err)
	}
	return rule, nil
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule *core.Rule) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO rules (title, amount_cents, kind, category, frequency,
			start_date, next_occurrence, estimated_monthly_cents, active,
			reminder_enabled, reminder_days_before, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Title, rule.Amount.Cents, string(rule.Kind), rule.Category,
		string(rule.Frequency), toMillis(rule.StartDate), toMillis(rule.NextOccurrence),
		rule.EstimatedMonthly.Cents, rule.Active,
		rule.ReminderEnabled, rule.ReminderDaysBefore,
		toMillis(rule.CreatedAt), toMillis(rule.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("rule id: %w", err)
	}
	rule.ID = id

	slog.InfoContext(ctx, "rule saved",
		"id", rule.ID,
		"title", rule.Title,
		"frequency", string(rule.Frequency),
		"amount_cents", rule.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule *core.Rule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE rules SET title = ?, amount_cents = ?, kind = ?, category = ?,
			frequency = ?, start_date = ?, next_occurrence = ?,
			estimated_monthly_cents = ?, active = ?, reminder_enabled = ?,
			reminder_days_before = ?, updated_at = ?
		WHERE id = ?`,
		rule.Title, rule.Amount.Cents, string(rule.Kind), rule.Category,
		string(rule.Frequency), toMillis(rule.StartDate), toMillis(rule.NextOccurrence),
		rule.EstimatedMonthly.Cents, rule.Active,
		rule.ReminderEnabled, rule.ReminderDaysBefore,
		toMillis(rule.UpdatedAt), rule.ID)
	if err != nil {
		return fmt.Errorf("update rule %d: %w", rule.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule %d: %w", rule.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d not found", rule.ID)
	}
	return nil
}

// DeleteRule removes the rule and its outstanding reminder marker.
func (r *SQLiteRepository) DeleteRule(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE rule_id = ?`, id); err != nil {
		return fmt.Errorf("delete reminder marker: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "rule deleted", "id", id)
	return nil
}

// MarkReminderRaised records an outstanding reminder for the rule.
// Returns false when one is already outstanding.
func (r *SQLiteRepository) MarkReminderRaised(ctx context.Context, ruleID int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reminders (rule_id, raised_at) VALUES (?, ?)`,
		ruleID, toMillis(at))
	if err != nil {
		return false, fmt.Errorf("mark reminder raised: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reminder raised: %w", err)
	}
	return n > 0, nil
}

// ClearReminder removes the outstanding marker; clearing an absent
// marker is a no-op.
func (r *SQLiteRepository) ClearReminder(ctx context.Context, ruleID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE rule_id = ?`, ruleID); err != nil {
		return fmt.Errorf("clear reminder: %w", err)
	}
	return nil
}

// RecordTransaction appends a materialized transaction to the ledger.
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("validate transaction: %w", err)
	}
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (rule_id, kind, amount_cents, category,
			description, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.RuleID, string(tx.Kind), tx.Amount.Cents, tx.Category,
		tx.Description, toMillis(tx.OccurredAt), toMillis(createdAt))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "transaction recorded",
		"id", id,
		"rule_id", tx.RuleID,
		"amount_cents", tx.Amount.Cents,
		"occurred_at", tx.OccurredAt.Format(time.RFC3339))
	return id, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	var (
		tx                   core.Transaction
		kind                 string
		occurred, created    int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, rule_id, kind, amount_cents, category, description,
			occurred_at, created_at
		FROM transactions WHERE id = ?`, id).
		Scan(&tx.ID, &tx.RuleID, &kind, &tx.Amount.Cents, &tx.Category,
			&tx.Description, &occurred, &created)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	tx.Kind = core.Kind(kind)
	tx.OccurredAt = fromMillis(occurred)
	tx.CreatedAt = fromMillis(created)
	return &tx, nil
}

// ListTransactionsByRule returns a rule's materialized transactions,
// newest occurrence first.
func (r *SQLiteRepository) ListTransactionsByRule(ctx context.Context, ruleID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, rule_id, kind, amount_cents, category, description,
			occurred_at, created_at
		FROM transactions WHERE rule_id = ? ORDER BY occurred_at DESC, id DESC`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("query transactions for rule %d: %w", ruleID, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx                core.Transaction
			kind              string
			occurred, created int64
		)
		if err := rows.Scan(&tx.ID, &tx.RuleID, &kind, &tx.Amount.Cents,
			&tx.Category, &tx.Description, &occurred, &created); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.Kind(kind)
		tx.OccurredAt = fromMillis(occurred)
		tx.CreatedAt = fromMillis(created)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ListPendingMirror returns transactions not yet mirrored to the
// external ledger sheet, oldest first. Used as a backup sweep in case
// mirror messages are lost.
func (r *SQLiteRepository) ListPendingMirror(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, rule_id, kind, amount_cents, category, description,
			occurred_at, created_at
		FROM transactions WHERE mirror_status = 'pending'
		ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending mirror transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx                core.Transaction
			kind              string
			occurred, created int64
		)
		if err := rows.Scan(&tx.ID, &tx.RuleID, &kind, &tx.Amount.Cents,
			&tx.Category, &tx.Description, &occurred, &created); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.Kind(kind)
		tx.OccurredAt = fromMillis(occurred)
		tx.CreatedAt = fromMillis(created)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// MarkMirrored marks a transaction as successfully mirrored to the
// external ledger sheet.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET mirror_status = 'mirrored' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction mirrored: %w", err)
	}
	slog.InfoContext(ctx, "transaction marked as mirrored", "id", id)
	return nil
}

// MarkMirrorError marks a transaction as having failed to mirror.
func (r *SQLiteRepository) MarkMirrorError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET mirror_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction mirror error: %w", err)
	}
	slog.WarnContext(ctx, "transaction marked with mirror error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*core.Rule, error) {
	var (
		rule                             core.Rule
		kind, frequency                  string
		start, next, createdAt, updatedAt int64
	)
	err := row.Scan(&rule.ID, &rule.Title, &rule.Amount.Cents, &kind,
		&rule.Category, &frequency, &start, &next, &rule.EstimatedMonthly.Cents,
		&rule.Active, &rule.ReminderEnabled, &rule.ReminderDaysBefore,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	// Tokens are case-folded here, the single external boundary; domain
	// code downstream never re-parses.
	rule.Kind = core.ParseKind(kind)
	rule.Frequency = core.ParseFrequency(frequency)
	rule.StartDate = fromMillis(start)
	rule.NextOccurrence = fromMillis(next)
	rule.CreatedAt = fromMillis(createdAt)
	rule.UpdatedAt = fromMillis(updatedAt)
	return &rule, nil
}

func scanRules(rows *sql.Rows) ([]core.Rule, error) {
	var out []core.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
