/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  receivables.Store / receivables.TxStore: Engine records and run transactions
  insurance.RateTable:                     Annual rate lookup
  insurance.ObjectRegistry:                Insured objects per participant

KEY TABLES:
  projects:             Owning scope for fields and participants
  field_descriptors:    Receivable types and their generator configuration
  receivable_instances: Materialized occurrences (stable option keys)
  participants:         Project members with membership windows
  participant_data:     Amount owed per (participant, instance) pair
  insured_objects:      Insurance reference data
  insurance_rates:      Annual rate fraction per scope

UNIQUENESS:
  - UNIQUE(field_id, option_key) on receivable_instances: option keys are
    never reused within a field
  - PRIMARY KEY(participant_id, instance_id) on participant_data: at most one
    datum per pair; a race between concurrent runs on the same field becomes
    a constraint violation instead of silent corruption

TRANSACTIONS:
  WithTx wraps one run in a database transaction. Any error from the closure
  rolls everything back; partial run results are never visible.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/receivables.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/camerata/receivables-engine/insurance"
	"github.com/camerata/receivables-engine/receivables"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	queries
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	// Reference-data lookups during a run use a second pooled connection, so a
	// plain ":memory:" database (one DB per connection) would fall apart. A
	// named shared-cache memory DB gives every connection the same database.
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	if dbPath == ":memory:" {
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Keep an idle connection alive; a shared-cache memory DB is dropped when
	// its last connection closes.
	db.SetMaxIdleConns(2)

	store := &Store{db: db, queries: queries{db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(receivables.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txStore{queries{db: tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore exposes the Store interface inside one transaction.
type txStore struct {
	queries
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS field_descriptors (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		multiplicity TEXT NOT NULL,
		generator TEXT NOT NULL,
		schedule_frequency TEXT,
		schedule_start TEXT,
		label_format TEXT,
		baseline_value TEXT NOT NULL DEFAULT '0',
		baseline_currency TEXT NOT NULL DEFAULT 'EUR',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fields_project
		ON field_descriptors(project_id);

	-- Option keys are assigned once and never reused within a field
	CREATE TABLE IF NOT EXISTS receivable_instances (
		id TEXT PRIMARY KEY,
		field_id TEXT NOT NULL,
		option_key TEXT NOT NULL,
		label TEXT NOT NULL,
		baseline_value TEXT NOT NULL,
		baseline_currency TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(field_id, option_key)
	);

	CREATE INDEX IF NOT EXISTS idx_instances_field
		ON receivable_instances(field_id, period_start);

	CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		joined_at TEXT NOT NULL,
		left_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_participants_project
		ON participants(project_id, display_name);

	-- CRITICAL: at most one datum per (participant, instance) pair
	CREATE TABLE IF NOT EXISTS participant_data (
		participant_id TEXT NOT NULL,
		instance_id TEXT NOT NULL,
		amount_value TEXT NOT NULL,
		amount_currency TEXT NOT NULL,
		document_ref TEXT NOT NULL DEFAULT '',
		overridden INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (participant_id, instance_id)
	);

	CREATE INDEX IF NOT EXISTS idx_data_instance
		ON participant_data(instance_id);

	CREATE TABLE IF NOT EXISTS insured_objects (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL,
		label TEXT NOT NULL,
		scope TEXT NOT NULL,
		insured_value TEXT NOT NULL,
		insured_currency TEXT NOT NULL,
		covered_from TEXT NOT NULL,
		covered_until TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_insured_participant
		ON insured_objects(participant_id);

	CREATE TABLE IF NOT EXISTS insurance_rates (
		scope TEXT PRIMARY KEY,
		annual_rate TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIES - Shared between Store and txStore
// =============================================================================

// dbtx is the subset of *sql.DB and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

const dayFormat = "2006-01-02"

func formatDay(tp receivables.TimePoint) string { return tp.Time.Format(dayFormat) }

func parseDay(s string) (receivables.TimePoint, error) {
	t, err := time.Parse(dayFormat, s)
	if err != nil {
		return receivables.TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return receivables.NewTimePoint(t.Year(), t.Month(), t.Day()), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// ---- Projects ----

func (q queries) CreateProject(ctx context.Context, p receivables.Project) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)`,
		string(p.ID), p.Name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (q queries) GetProject(ctx context.Context, id receivables.ProjectID) (receivables.Project, error) {
	var p receivables.Project
	var rawID string
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name FROM projects WHERE id = ?`, string(id)).Scan(&rawID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return receivables.Project{}, receivables.ErrProjectNotFound
	}
	if err != nil {
		return receivables.Project{}, fmt.Errorf("select project: %w", err)
	}
	p.ID = receivables.ProjectID(rawID)
	return p, nil
}

// ---- Field descriptors ----

func (q queries) CreateField(ctx context.Context, fd receivables.FieldDescriptor) error {
	var scheduleStart any
	if !fd.Schedule.Start.IsZero() {
		scheduleStart = formatDay(fd.Schedule.Start)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO field_descriptors
			(id, project_id, name, kind, multiplicity, generator,
			 schedule_frequency, schedule_start, label_format,
			 baseline_value, baseline_currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(fd.ID), string(fd.ProjectID), fd.Name, string(fd.Kind),
		string(fd.Multiplicity), string(fd.Generator),
		string(fd.Schedule.Frequency), scheduleStart, fd.Schedule.LabelFormat,
		fd.Baseline.Value.String(), string(fd.Baseline.Currency),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert field descriptor: %w", err)
	}
	return nil
}

const fieldColumns = `id, project_id, name, kind, multiplicity, generator,
	COALESCE(schedule_frequency, ''), COALESCE(schedule_start, ''), COALESCE(label_format, ''),
	baseline_value, baseline_currency`

func scanField(scan func(...any) error) (receivables.FieldDescriptor, error) {
	var fd receivables.FieldDescriptor
	var id, projectID, kind, multiplicity, generator string
	var frequency, start, labelFormat, baselineValue, baselineCurrency string
	if err := scan(&id, &projectID, &fd.Name, &kind, &multiplicity, &generator,
		&frequency, &start, &labelFormat, &baselineValue, &baselineCurrency); err != nil {
		return receivables.FieldDescriptor{}, err
	}

	fd.ID = receivables.FieldID(id)
	fd.ProjectID = receivables.ProjectID(projectID)
	fd.Kind = receivables.Kind(kind)
	fd.Multiplicity = receivables.Multiplicity(multiplicity)
	fd.Generator = receivables.GeneratorTag(generator)
	fd.Baseline = receivables.Amount{
		Value:    receivables.MustParseDecimal(baselineValue),
		Currency: receivables.Currency(baselineCurrency),
	}
	fd.Schedule = receivables.Schedule{
		Frequency:   receivables.Frequency(frequency),
		LabelFormat: labelFormat,
	}
	if start != "" {
		tp, err := parseDay(start)
		if err != nil {
			return receivables.FieldDescriptor{}, err
		}
		fd.Schedule.Start = tp
	}
	return fd, nil
}

func (q queries) GetField(ctx context.Context, id receivables.FieldID) (receivables.FieldDescriptor, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+fieldColumns+` FROM field_descriptors WHERE id = ?`, string(id))
	fd, err := scanField(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return receivables.FieldDescriptor{}, receivables.ErrFieldNotFound
	}
	if err != nil {
		return receivables.FieldDescriptor{}, fmt.Errorf("select field descriptor: %w", err)
	}
	return fd, nil
}

func (q queries) ListFields(ctx context.Context, projectID receivables.ProjectID) ([]receivables.FieldDescriptor, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+fieldColumns+` FROM field_descriptors WHERE project_id = ? ORDER BY name, id`,
		string(projectID))
	if err != nil {
		return nil, fmt.Errorf("select field descriptors: %w", err)
	}
	defer rows.Close()

	var fields []receivables.FieldDescriptor
	for rows.Next() {
		fd, err := scanField(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan field descriptor: %w", err)
		}
		fields = append(fields, fd)
	}
	return fields, rows.Err()
}

// ---- Receivable instances ----

func (q queries) CreateInstance(ctx context.Context, inst receivables.ReceivableInstance) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO receivable_instances
			(id, field_id, option_key, label, baseline_value, baseline_currency,
			 period_start, period_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(inst.ID), string(inst.FieldID), string(inst.Key), inst.Label,
		inst.Baseline.Value.String(), string(inst.Baseline.Currency),
		formatDay(inst.Period.Start), formatDay(inst.Period.End),
		time.Now().UTC().Format(time.RFC3339))
	if isUniqueViolation(err) {
		return receivables.ErrDuplicateOptionKey
	}
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

func (q queries) ListInstances(ctx context.Context, fieldID receivables.FieldID) ([]receivables.ReceivableInstance, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, field_id, option_key, label, baseline_value, baseline_currency,
		       period_start, period_end
		FROM receivable_instances
		WHERE field_id = ?
		ORDER BY period_start, label, id`, string(fieldID))
	if err != nil {
		return nil, fmt.Errorf("select instances: %w", err)
	}
	defer rows.Close()

	var instances []receivables.ReceivableInstance
	for rows.Next() {
		var inst receivables.ReceivableInstance
		var id, fid, key, baselineValue, baselineCurrency, start, end string
		if err := rows.Scan(&id, &fid, &key, &inst.Label,
			&baselineValue, &baselineCurrency, &start, &end); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		inst.ID = receivables.InstanceID(id)
		inst.FieldID = receivables.FieldID(fid)
		inst.Key = receivables.OptionKey(key)
		inst.Baseline = receivables.Amount{
			Value:    receivables.MustParseDecimal(baselineValue),
			Currency: receivables.Currency(baselineCurrency),
		}
		if inst.Period.Start, err = parseDay(start); err != nil {
			return nil, err
		}
		if inst.Period.End, err = parseDay(end); err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// ---- Participants ----

func (q queries) CreateParticipant(ctx context.Context, p receivables.Participant) error {
	var leftAt any
	if p.LeftAt != nil {
		leftAt = formatDay(*p.LeftAt)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO participants (id, project_id, display_name, joined_at, left_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.ProjectID), p.DisplayName,
		formatDay(p.JoinedAt), leftAt, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func scanParticipant(scan func(...any) error) (receivables.Participant, error) {
	var p receivables.Participant
	var id, projectID, joined string
	var left sql.NullString
	if err := scan(&id, &projectID, &p.DisplayName, &joined, &left); err != nil {
		return receivables.Participant{}, err
	}
	p.ID = receivables.ParticipantID(id)
	p.ProjectID = receivables.ProjectID(projectID)
	joinedAt, err := parseDay(joined)
	if err != nil {
		return receivables.Participant{}, err
	}
	p.JoinedAt = joinedAt
	if left.Valid {
		leftAt, err := parseDay(left.String)
		if err != nil {
			return receivables.Participant{}, err
		}
		p.LeftAt = &leftAt
	}
	return p, nil
}

func (q queries) GetParticipant(ctx context.Context, id receivables.ParticipantID) (receivables.Participant, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, project_id, display_name, joined_at, left_at
		FROM participants WHERE id = ?`, string(id))
	p, err := scanParticipant(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return receivables.Participant{}, receivables.ErrParticipantNotFound
	}
	if err != nil {
		return receivables.Participant{}, fmt.Errorf("select participant: %w", err)
	}
	return p, nil
}

func (q queries) ListParticipants(ctx context.Context, projectID receivables.ProjectID) ([]receivables.Participant, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, project_id, display_name, joined_at, left_at
		FROM participants
		WHERE project_id = ?
		ORDER BY display_name, id`, string(projectID))
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	var participants []receivables.Participant
	for rows.Next() {
		p, err := scanParticipant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ---- Participant data ----

func scanDatum(scan func(...any) error) (receivables.ParticipantDatum, error) {
	var d receivables.ParticipantDatum
	var participantID, instanceID, amountValue, amountCurrency, updatedAt string
	var overridden int
	if err := scan(&participantID, &instanceID, &amountValue, &amountCurrency,
		&d.DocumentRef, &overridden, &updatedAt); err != nil {
		return receivables.ParticipantDatum{}, err
	}
	d.ParticipantID = receivables.ParticipantID(participantID)
	d.InstanceID = receivables.InstanceID(instanceID)
	d.Amount = receivables.Amount{
		Value:    receivables.MustParseDecimal(amountValue),
		Currency: receivables.Currency(amountCurrency),
	}
	d.Overridden = overridden != 0
	tp, err := parseDay(updatedAt)
	if err != nil {
		return receivables.ParticipantDatum{}, err
	}
	d.UpdatedAt = tp
	return d, nil
}

func (q queries) GetDatum(ctx context.Context, participantID receivables.ParticipantID, instanceID receivables.InstanceID) (*receivables.ParticipantDatum, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT participant_id, instance_id, amount_value, amount_currency,
		       document_ref, overridden, updated_at
		FROM participant_data
		WHERE participant_id = ? AND instance_id = ?`,
		string(participantID), string(instanceID))
	d, err := scanDatum(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select datum: %w", err)
	}
	return &d, nil
}

func (q queries) ListData(ctx context.Context, instanceID receivables.InstanceID) ([]receivables.ParticipantDatum, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT participant_id, instance_id, amount_value, amount_currency,
		       document_ref, overridden, updated_at
		FROM participant_data
		WHERE instance_id = ?
		ORDER BY participant_id`, string(instanceID))
	if err != nil {
		return nil, fmt.Errorf("select data: %w", err)
	}
	defer rows.Close()

	var data []receivables.ParticipantDatum
	for rows.Next() {
		d, err := scanDatum(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan datum: %w", err)
		}
		data = append(data, d)
	}
	return data, rows.Err()
}

func (q queries) CreateDatum(ctx context.Context, d receivables.ParticipantDatum) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO participant_data
			(participant_id, instance_id, amount_value, amount_currency,
			 document_ref, overridden, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(d.ParticipantID), string(d.InstanceID),
		d.Amount.Value.String(), string(d.Amount.Currency),
		d.DocumentRef, boolToInt(d.Overridden), formatDay(d.UpdatedAt))
	if isUniqueViolation(err) {
		return receivables.ErrDuplicateDatum
	}
	if err != nil {
		return fmt.Errorf("insert datum: %w", err)
	}
	return nil
}

func (q queries) UpdateDatum(ctx context.Context, d receivables.ParticipantDatum) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE participant_data
		SET amount_value = ?, amount_currency = ?, document_ref = ?,
		    overridden = ?, updated_at = ?
		WHERE participant_id = ? AND instance_id = ?`,
		d.Amount.Value.String(), string(d.Amount.Currency), d.DocumentRef,
		boolToInt(d.Overridden), formatDay(d.UpdatedAt),
		string(d.ParticipantID), string(d.InstanceID))
	if err != nil {
		return fmt.Errorf("update datum: %w", err)
	}
	return nil
}

func (q queries) DeleteDatum(ctx context.Context, participantID receivables.ParticipantID, instanceID receivables.InstanceID) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM participant_data
		WHERE participant_id = ? AND instance_id = ?`,
		string(participantID), string(instanceID))
	if err != nil {
		return fmt.Errorf("delete datum: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// INSURANCE REFERENCE DATA
// =============================================================================

// SetRate upserts the annual rate for a scope.
func (s *Store) SetRate(ctx context.Context, scope insurance.Scope, rate decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insurance_rates (scope, annual_rate) VALUES (?, ?)
		ON CONFLICT(scope) DO UPDATE SET annual_rate = excluded.annual_rate`,
		string(scope), rate.String())
	if err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}
	return nil
}

// RateFor implements insurance.RateTable.
func (s *Store) RateFor(ctx context.Context, scope insurance.Scope) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT annual_rate FROM insurance_rates WHERE scope = ?`, string(scope)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", insurance.ErrUnknownScope, scope)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("select rate: %w", err)
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate %q for scope %s: %w", raw, scope, err)
	}
	return rate, nil
}

// AddInsuredObject registers an insured instrument or accessory.
func (s *Store) AddInsuredObject(ctx context.Context, obj insurance.InsuredObject) error {
	var until any
	if obj.Until != nil {
		until = formatDay(*obj.Until)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insured_objects
			(id, participant_id, label, scope, insured_value, insured_currency,
			 covered_from, covered_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obj.ID, string(obj.ParticipantID), obj.Label, string(obj.Scope),
		obj.InsuredValue.Value.String(), string(obj.InsuredValue.Currency),
		formatDay(obj.From), until, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert insured object: %w", err)
	}
	return nil
}

// ObjectsFor implements insurance.ObjectRegistry.
func (s *Store) ObjectsFor(ctx context.Context, participantID receivables.ParticipantID) ([]insurance.InsuredObject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, label, scope, insured_value, insured_currency,
		       covered_from, covered_until
		FROM insured_objects
		WHERE participant_id = ?
		ORDER BY label, id`, string(participantID))
	if err != nil {
		return nil, fmt.Errorf("select insured objects: %w", err)
	}
	defer rows.Close()

	var objects []insurance.InsuredObject
	for rows.Next() {
		var obj insurance.InsuredObject
		var pid, scope, value, currency, from string
		var until sql.NullString
		if err := rows.Scan(&obj.ID, &pid, &obj.Label, &scope,
			&value, &currency, &from, &until); err != nil {
			return nil, fmt.Errorf("scan insured object: %w", err)
		}
		obj.ParticipantID = receivables.ParticipantID(pid)
		obj.Scope = insurance.Scope(scope)
		obj.InsuredValue = receivables.Amount{
			Value:    receivables.MustParseDecimal(value),
			Currency: receivables.Currency(currency),
		}
		if obj.From, err = parseDay(from); err != nil {
			return nil, err
		}
		if until.Valid {
			u, err := parseDay(until.String)
			if err != nil {
				return nil, err
			}
			obj.Until = &u
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}
