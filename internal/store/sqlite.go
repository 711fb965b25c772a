package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/getjobwire/jobwire/internal/model"
)

// Ensure SQLiteStore satisfies both store interfaces.
var (
	_ model.JobStore   = (*SQLiteStore)(nil)
	_ model.QueueStore = (*SQLiteStore)(nil)
)

// SQLiteStore persists canonical postings and the scheduled queue.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// modernc sqlite DSN: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// sqlite wants a single writer.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			title                TEXT NOT NULL,
			company              TEXT NOT NULL,
			location             TEXT,
			salary               TEXT,
			min_salary           INTEGER DEFAULT 0,
			description          TEXT,
			roles_responsibility TEXT,
			requirements         TEXT,
			apply_url            TEXT NOT NULL,
			apply_url_norm       TEXT NOT NULL UNIQUE,
			company_logo         TEXT,
			batch                TEXT NOT NULL DEFAULT '[]',
			tags                 TEXT NOT NULL DEFAULT '[]',
			job_type             TEXT,
			role_type            TEXT,
			is_remote            INTEGER DEFAULT 0,
			is_active            INTEGER DEFAULT 1,
			views                INTEGER DEFAULT 0,
			clicks               INTEGER DEFAULT 0,
			report_count         INTEGER DEFAULT 0,
			telegram_message_id  INTEGER,
			created_at           DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_title_company
			ON jobs (LOWER(title), LOWER(company))`,
		`CREATE TABLE IF NOT EXISTS queue (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			original_url  TEXT NOT NULL,
			url_norm      TEXT NOT NULL,
			source        TEXT NOT NULL,
			scheduled_for DATETIME NOT NULL,
			status        TEXT NOT NULL DEFAULT 'pending',
			raw_payload   TEXT NOT NULL DEFAULT '',
			last_error    TEXT NOT NULL DEFAULT '',
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_status_sched
			ON queue (status, scheduled_for)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// InsertJob persists a new canonical posting and returns its id.
func (s *SQLiteStore) InsertJob(ctx context.Context, job *model.JobPosting) (int64, error) {
	batchJSON, err := json.Marshal(job.Batch)
	if err != nil {
		return 0, fmt.Errorf("marshal batch: %w", err)
	}
	tagsJSON, err := json.Marshal(job.Tags)
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			title, company, location, salary, min_salary, description,
			roles_responsibility, requirements, apply_url, apply_url_norm,
			company_logo, batch, tags, job_type, role_type, is_remote, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		job.Title, job.Company, job.Location, job.Salary, job.MinSalary,
		job.Description, job.RolesResponsibility, job.Requirements,
		job.ApplyURL, model.NormalizeURL(job.ApplyURL), job.CompanyLogo,
		string(batchJSON), string(tagsJSON), job.JobType, job.RoleType,
		boolToInt(job.IsRemote),
	)
	if err != nil {
		return 0, fmt.Errorf("insert job %q: %w", job.Title, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert job %q: last insert id: %w", job.Title, err)
	}
	job.ID = id
	job.IsActive = true
	return id, nil
}

// HasApplyURL reports whether a posting with the given normalized apply URL
// exists, active or not.
func (s *SQLiteStore) HasApplyURL(ctx context.Context, normalizedURL string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM jobs WHERE apply_url_norm = ? LIMIT 1", normalizedURL).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking apply url %s: %w", normalizedURL, err)
	}
	return true, nil
}

// HasTitleCompany reports whether a posting matches both title and company,
// case-insensitively. Both fields must match; either alone is not a duplicate.
func (s *SQLiteStore) HasTitleCompany(ctx context.Context, title, company string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM jobs
		WHERE LOWER(title) = LOWER(?) AND LOWER(company) = LOWER(?)
		LIMIT 1`, title, company).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking title/company %q/%q: %w", title, company, err)
	}
	return true, nil
}

// SetTelegramMessageID records the channel message id after a successful post.
func (s *SQLiteStore) SetTelegramMessageID(ctx context.Context, jobID, messageID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET telegram_message_id = ? WHERE id = ?", messageID, jobID)
	if err != nil {
		return fmt.Errorf("setting message id for job %d: %w", jobID, err)
	}
	return nil
}

// ListRecent returns up to limit postings, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]model.JobPosting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, company, location, salary, min_salary, description,
		       roles_responsibility, requirements, apply_url, company_logo,
		       batch, tags, job_type, role_type, is_remote, is_active,
		       views, clicks, report_count, telegram_message_id, created_at
		FROM jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.JobPosting
	for rows.Next() {
		var (
			j                   model.JobPosting
			batchJSON, tagsJSON string
			isRemote, isActive  int
			msgID               sql.NullInt64
		)
		if err := rows.Scan(
			&j.ID, &j.Title, &j.Company, &j.Location, &j.Salary, &j.MinSalary,
			&j.Description, &j.RolesResponsibility, &j.Requirements,
			&j.ApplyURL, &j.CompanyLogo, &batchJSON, &tagsJSON,
			&j.JobType, &j.RoleType, &isRemote, &isActive,
			&j.Views, &j.Clicks, &j.ReportCount, &msgID, &j.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		j.IsRemote = isRemote != 0
		j.IsActive = isActive != 0
		if msgID.Valid {
			v := msgID.Int64
			j.TelegramMessageID = &v
		}
		if err := json.Unmarshal([]byte(batchJSON), &j.Batch); err != nil {
			return nil, fmt.Errorf("unmarshal batch for job %d: %w", j.ID, err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &j.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags for job %d: %w", j.ID, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// SetActive toggles a posting's visibility. Used by the moderation layer.
func (s *SQLiteStore) SetActive(ctx context.Context, jobID int64, active bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET is_active = ? WHERE id = ?", boolToInt(active), jobID)
	if err != nil {
		return fmt.Errorf("setting active=%v for job %d: %w", active, jobID, err)
	}
	return nil
}

func (s *SQLiteStore) IncrementViews(ctx context.Context, jobID int64) error {
	return s.increment(ctx, "views", jobID)
}

func (s *SQLiteStore) IncrementClicks(ctx context.Context, jobID int64) error {
	return s.increment(ctx, "clicks", jobID)
}

func (s *SQLiteStore) IncrementReportCount(ctx context.Context, jobID int64) error {
	return s.increment(ctx, "report_count", jobID)
}

func (s *SQLiteStore) increment(ctx context.Context, column string, jobID int64) error {
	// column is one of a fixed set of counter names, never user input.
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE jobs SET %s = %s + 1 WHERE id = ?", column, column), jobID)
	if err != nil {
		return fmt.Errorf("incrementing %s for job %d: %w", column, jobID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
