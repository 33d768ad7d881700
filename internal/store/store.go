package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DB wraps the database connection and provides durable collection access
// for seniors, visits, fund entries and roadmap actions.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS seniors (
			senior_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL,
			address TEXT NOT NULL,
			caregiver TEXT NOT NULL,
			caregiver_phone TEXT NOT NULL,
			risk_tier TEXT NOT NULL,
			welfare_points INTEGER NOT NULL,
			pin TEXT NOT NULL,
			last_visit_date TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS visits (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			senior_id TEXT NOT NULL,
			name TEXT NOT NULL,
			store TEXT NOT NULL,
			systolic INTEGER NOT NULL,
			diastolic INTEGER NOT NULL,
			weight_kg REAL NOT NULL,
			notes TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_senior_id ON visits(senior_id)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_ts ON visits(ts)`,
		`CREATE TABLE IF NOT EXISTS fund_entries (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			type TEXT NOT NULL,
			amount INTEGER NOT NULL,
			store TEXT NOT NULL,
			memo TEXT NOT NULL,
			donation_rate INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fund_entries_ts ON fund_entries(ts)`,
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			task TEXT NOT NULL,
			owner TEXT NOT NULL,
			cost_krw INTEGER NOT NULL,
			due_date TEXT NOT NULL,
			status TEXT NOT NULL,
			segment TEXT NOT NULL,
			impact_score INTEGER NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// InsertSenior stores a new registry entry.
func (db *DB) InsertSenior(ctx context.Context, s models.Senior) error {
	query := `INSERT INTO seniors (
		senior_id, name, phone, address, caregiver, caregiver_phone,
		risk_tier, welfare_points, pin, last_visit_date
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		s.SeniorID,
		s.Name,
		s.Phone,
		s.Address,
		s.Caregiver,
		s.CaregiverPhone,
		string(s.RiskTier),
		s.WelfarePoints,
		s.PIN,
		s.LastVisitDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert senior: %w", err)
	}

	return nil
}

const seniorColumns = `senior_id, name, phone, address, caregiver,
	caregiver_phone, risk_tier, welfare_points, pin, last_visit_date`

func scanSenior(row interface{ Scan(...interface{}) error }) (models.Senior, error) {
	var s models.Senior
	var tier string
	err := row.Scan(
		&s.SeniorID,
		&s.Name,
		&s.Phone,
		&s.Address,
		&s.Caregiver,
		&s.CaregiverPhone,
		&tier,
		&s.WelfarePoints,
		&s.PIN,
		&s.LastVisitDate,
	)
	if err != nil {
		return models.Senior{}, err
	}
	s.RiskTier = models.RiskTier(tier)
	return s, nil
}

// GetSenior looks up a registry entry by id. Returns ErrNotFound when the
// id does not resolve.
func (db *DB) GetSenior(ctx context.Context, seniorID string) (models.Senior, error) {
	query := `SELECT ` + seniorColumns + ` FROM seniors WHERE senior_id = ?`

	s, err := scanSenior(db.conn.QueryRowContext(ctx, query, seniorID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Senior{}, ErrNotFound
	}
	if err != nil {
		return models.Senior{}, fmt.Errorf("failed to get senior: %w", err)
	}

	return s, nil
}

// ListSeniors returns the full registry in registration order.
func (db *DB) ListSeniors(ctx context.Context) ([]models.Senior, error) {
	query := `SELECT ` + seniorColumns + ` FROM seniors ORDER BY created_at, senior_id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query seniors: %w", err)
	}
	defer rows.Close()

	var seniors []models.Senior
	for rows.Next() {
		s, err := scanSenior(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan senior: %w", err)
		}
		seniors = append(seniors, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seniors: %w", err)
	}

	return seniors, nil
}

// RecordCheckin appends a visit record and updates the senior's
// last_visit_date and welfare_points inside a single SQL transaction:
// either all three effects land or none are visible.
func (db *DB) RecordCheckin(ctx context.Context, visit models.VisitRecord, earnedPoints int64, visitDate string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO visits (
		id, ts, senior_id, name, store, systolic, diastolic, weight_kg, notes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		visit.ID,
		visit.Timestamp.Format(time.RFC3339),
		visit.SeniorID,
		visit.Name,
		visit.Store,
		visit.Systolic,
		visit.Diastolic,
		visit.WeightKg,
		visit.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE seniors SET last_visit_date = ?, welfare_points = welfare_points + ? WHERE senior_id = ?`,
		visitDate, earnedPoints, visit.SeniorID,
	)
	if err != nil {
		return fmt.Errorf("failed to update senior: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check senior update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit check-in: %w", err)
	}

	return nil
}

// ListVisits returns visit records, newest first. limit <= 0 means all.
func (db *DB) ListVisits(ctx context.Context, limit int) ([]models.VisitRecord, error) {
	query := `SELECT id, ts, senior_id, name, store, systolic, diastolic, weight_kg, notes
		FROM visits ORDER BY ts DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []models.VisitRecord
	for rows.Next() {
		var v models.VisitRecord
		var ts string
		err := rows.Scan(&v.ID, &ts, &v.SeniorID, &v.Name, &v.Store, &v.Systolic, &v.Diastolic, &v.WeightKg, &v.Notes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		v.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse visit timestamp: %w", err)
		}
		visits = append(visits, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visits: %w", err)
	}

	return visits, nil
}

// CountVisits returns the total number of visit records.
func (db *DB) CountVisits(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

// AppendFundEntry stores a fund ledger entry. The ledger is append-only:
// there is no update or delete path for fund entries.
func (db *DB) AppendFundEntry(ctx context.Context, e models.FundEntry) error {
	query := `INSERT INTO fund_entries (
		id, ts, type, amount, store, memo, donation_rate
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		e.ID,
		e.Timestamp.Format(time.RFC3339),
		string(e.Type),
		e.Amount,
		e.Store,
		e.Memo,
		e.DonationRate,
	)
	if err != nil {
		return fmt.Errorf("failed to append fund entry: %w", err)
	}

	return nil
}

// ListFundEntries returns fund ledger entries, newest first.
func (db *DB) ListFundEntries(ctx context.Context) ([]models.FundEntry, error) {
	query := `SELECT id, ts, type, amount, store, memo, donation_rate
		FROM fund_entries ORDER BY ts DESC, id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fund entries: %w", err)
	}
	defer rows.Close()

	var entries []models.FundEntry
	for rows.Next() {
		var e models.FundEntry
		var ts, typ string
		err := rows.Scan(&e.ID, &ts, &typ, &e.Amount, &e.Store, &e.Memo, &e.DonationRate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund entry: %w", err)
		}
		e.Type = models.EntryType(typ)
		e.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fund entry timestamp: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fund entries: %w", err)
	}

	return entries, nil
}

// FundBalance recomputes the balance over the full entry sequence:
// sum of "in" amounts minus sum of "out" amounts. Never cached.
func (db *DB) FundBalance(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(SUM(CASE WHEN type = 'in' THEN amount ELSE -amount END), 0)
		FROM fund_entries`

	var balance int64
	if err := db.conn.QueryRowContext(ctx, query).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to compute fund balance: %w", err)
	}

	return balance, nil
}

// CountFundEntries returns the total number of ledger entries.
func (db *DB) CountFundEntries(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM fund_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count fund entries: %w", err)
	}
	return count, nil
}

// InsertAction stores a roadmap action.
func (db *DB) InsertAction(ctx context.Context, a models.Action) error {
	query := `INSERT INTO actions (
		id, phase, task, owner, cost_krw, due_date, status, segment, impact_score
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		a.ID,
		a.Phase,
		a.Task,
		a.Owner,
		a.CostKRW,
		a.DueDate,
		a.Status,
		a.Segment,
		a.ImpactScore,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}

	return nil
}

// ListActions returns all roadmap actions in insertion order; filtering and
// sorting is the roadmap service's concern.
func (db *DB) ListActions(ctx context.Context) ([]models.Action, error) {
	query := `SELECT id, phase, task, owner, cost_krw, due_date, status, segment, impact_score
		FROM actions`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		var a models.Action
		err := rows.Scan(&a.ID, &a.Phase, &a.Task, &a.Owner, &a.CostKRW, &a.DueDate, &a.Status, &a.Segment, &a.ImpactScore)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return actions, nil
}
