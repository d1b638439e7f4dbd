// Package storage persists metrics tables to SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/panbanda/refmine/pkg/models"
)

// ErrNotFound is returned when a project has no stored table.
var ErrNotFound = errors.New("not found")

// SQLiteStore writes metrics tables into a SQLite database.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metrics_tables (
		project TEXT PRIMARY KEY,
		generated_at DATETIME NOT NULL,
		fingerprint TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metrics_records (
		project TEXT NOT NULL,
		seq INTEGER NOT NULL,
		commit_hash TEXT NOT NULL,
		file TEXT NOT NULL,
		add_lines INTEGER, del_lines INTEGER,
		comm INTEGER, adev INTEGER, ddev INTEGER, own REAL, minor INTEGER, oexp REAL, exp REAL,
		nadev INTEGER, nddev INTEGER, ncomm INTEGER,
		nom INTEGER, nopm INTEGER, nof INTEGER, nosf INTEGER, nopf INTEGER, dit INTEGER, noc INTEGER,
		rfc INTEGER, eloc INTEGER, wmc INTEGER, cbo INTEGER, hslcom REAL, c3 REAL, comread REAL,
		nosm INTEGER, nosi INTEGER, sexp REAL,
		nd INTEGER, ns INTEGER, age REAL, fix BOOLEAN, nuc INTEGER, cexp INTEGER, rexp INTEGER,
		unsupported TEXT,
		PRIMARY KEY (project, seq),
		FOREIGN KEY (project) REFERENCES metrics_tables(project) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS diagnostics (
		project TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		commit_hash TEXT,
		file TEXT,
		message TEXT,
		PRIMARY KEY (project, seq),
		FOREIGN KEY (project) REFERENCES metrics_tables(project) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_records_commit ON metrics_records(project, commit_hash);
	`
	_, err := s.db.Exec(schema)
	return err
}

// recordRow is the flat row layout of metrics_records.
type recordRow struct {
	Project    string `db:"project"`
	Seq        int    `db:"seq"`
	CommitHash string `db:"commit_hash"`
	File       string `db:"file"`
	ADD        int    `db:"add_lines"`
	DEL        int    `db:"del_lines"`
	models.OwnershipMetrics
	models.CouplingMetrics
	models.StructuralMetrics
	models.ContextMetrics
	Unsupported string `db:"unsupported"`
}

func toRow(project string, seq int, r models.MetricsRecord) recordRow {
	return recordRow{
		Project:           project,
		Seq:               seq,
		CommitHash:        r.CommitHash,
		File:              r.File,
		ADD:               r.ADD,
		DEL:               r.DEL,
		OwnershipMetrics:  r.Ownership,
		CouplingMetrics:   r.Coupling,
		StructuralMetrics: r.Structural,
		ContextMetrics:    r.Context,
		Unsupported:       strings.Join(r.Unsupported, ","),
	}
}

func (row recordRow) record() models.MetricsRecord {
	r := models.MetricsRecord{
		CommitHash: row.CommitHash,
		File:       row.File,
		ADD:        row.ADD,
		DEL:        row.DEL,
		Ownership:  row.OwnershipMetrics,
		Coupling:   row.CouplingMetrics,
		Structural: row.StructuralMetrics,
		Context:    row.ContextMetrics,
	}
	if row.Unsupported != "" {
		r.Unsupported = strings.Split(row.Unsupported, ",")
	}
	return r
}

type diagnosticRow struct {
	Project    string `db:"project"`
	Seq        int    `db:"seq"`
	Kind       string `db:"kind"`
	CommitHash string `db:"commit_hash"`
	File       string `db:"file"`
	Message    string `db:"message"`
}

const insertRecord = `
	INSERT INTO metrics_records (
		project, seq, commit_hash, file, add_lines, del_lines,
		comm, adev, ddev, own, minor, oexp, exp,
		nadev, nddev, ncomm,
		nom, nopm, nof, nosf, nopf, dit, noc, rfc, eloc, wmc, cbo, hslcom, c3, comread, nosm, nosi, sexp,
		nd, ns, age, fix, nuc, cexp, rexp,
		unsupported
	) VALUES (
		:project, :seq, :commit_hash, :file, :add_lines, :del_lines,
		:comm, :adev, :ddev, :own, :minor, :oexp, :exp,
		:nadev, :nddev, :ncomm,
		:nom, :nopm, :nof, :nosf, :nopf, :dit, :noc, :rfc, :eloc, :wmc, :cbo, :hslcom, :c3, :comread, :nosm, :nosi, :sexp,
		:nd, :ns, :age, :fix, :nuc, :cexp, :rexp,
		:unsupported
	)`

// SaveTable replaces the stored table of table.Project.
func (s *SQLiteStore) SaveTable(ctx context.Context, table *models.MetricsTable) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM metrics_records WHERE project = ?`,
		`DELETE FROM diagnostics WHERE project = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, table.Project); err != nil {
			return fmt.Errorf("clear project %s: %w", table.Project, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO metrics_tables (project, generated_at, fingerprint)
		VALUES (?, ?, ?)`,
		table.Project, table.GeneratedAt.UTC(), table.Fingerprint)
	if err != nil {
		return fmt.Errorf("insert table: %w", err)
	}

	for i, r := range table.Records {
		if _, err := tx.NamedExecContext(ctx, insertRecord, toRow(table.Project, i, r)); err != nil {
			return fmt.Errorf("insert record %s:%s: %w", r.CommitHash, r.File, err)
		}
	}

	for i, d := range table.Diagnostics {
		row := diagnosticRow{
			Project:    table.Project,
			Seq:        i,
			Kind:       string(d.Kind),
			CommitHash: d.Commit,
			File:       d.File,
			Message:    d.Message,
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO diagnostics (project, seq, kind, commit_hash, file, message)
			VALUES (:project, :seq, :kind, :commit_hash, :file, :message)`, row)
		if err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"project":     table.Project,
		"records":     len(table.Records),
		"diagnostics": len(table.Diagnostics),
	}).Debug("stored metrics table")
	return nil
}

// LoadTable reads back the stored table of project.
func (s *SQLiteStore) LoadTable(ctx context.Context, project string) (*models.MetricsTable, error) {
	var head struct {
		Project     string    `db:"project"`
		GeneratedAt time.Time `db:"generated_at"`
		Fingerprint string    `db:"fingerprint"`
	}
	err := s.db.GetContext(ctx, &head,
		`SELECT project, generated_at, fingerprint FROM metrics_tables WHERE project = ?`, project)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", project, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query table: %w", err)
	}

	records, err := s.Records(ctx, project)
	if err != nil {
		return nil, err
	}

	var diags []diagnosticRow
	err = s.db.SelectContext(ctx, &diags,
		`SELECT project, seq, kind, commit_hash, file, message FROM diagnostics WHERE project = ? ORDER BY seq`, project)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}

	table := &models.MetricsTable{
		Project:     head.Project,
		GeneratedAt: head.GeneratedAt,
		Records:     records,
		Fingerprint: head.Fingerprint,
	}
	for _, d := range diags {
		table.Diagnostics = append(table.Diagnostics, models.Diagnostic{
			Kind:    models.DiagnosticKind(d.Kind),
			Project: d.Project,
			Commit:  d.CommitHash,
			File:    d.File,
			Message: d.Message,
		})
	}
	return table, nil
}

// Records returns the stored records of project in table order.
func (s *SQLiteStore) Records(ctx context.Context, project string) ([]models.MetricsRecord, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM metrics_records WHERE project = ? ORDER BY seq`, project)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	records := make([]models.MetricsRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// Projects lists the stored project names.
func (s *SQLiteStore) Projects(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT project FROM metrics_tables ORDER BY project`); err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	return names, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
