package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/telecheck/zonewatch/internal/models"
)

// upsertChunkSize bounds the transaction size of a single upsert chunk. A
// chunk failure reports the count committed by earlier chunks; it does not
// roll them back.
const upsertChunkSize = 50

const dateLayout = "2006-01-02"

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// sqlite allows one writer; a single pooled connection avoids lock
	// contention and keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}
	if err := s.seedReferenceData(); err != nil {
		return nil, fmt.Errorf("error seeding reference data: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS declarations (
			pipeline_id TEXT NOT NULL,
			area_code TEXT NOT NULL,
			disaster_type TEXT NOT NULL,
			declaration_date TEXT NOT NULL,
			state_code TEXT NOT NULL,
			raw_end_date TEXT,
			end_date TEXT,
			is_active INTEGER NOT NULL,
			severity_level INTEGER NOT NULL,
			authority TEXT,
			description TEXT,
			source_system TEXT NOT NULL,
			source_url TEXT,
			review_reason TEXT,
			first_seen_at DATETIME NOT NULL,
			last_synced_at DATETIME NOT NULL,
			PRIMARY KEY (pipeline_id, area_code, disaster_type, declaration_date)
		);

		CREATE TABLE IF NOT EXISTS administrative_areas (
			area_code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			state_code TEXT NOT NULL,
			parent_region_id TEXT
		);

		CREATE TABLE IF NOT EXISTS postcode_mappings (
			postcode TEXT PRIMARY KEY,
			suburb_name TEXT,
			area_code TEXT NOT NULL,
			FOREIGN KEY (area_code) REFERENCES administrative_areas(area_code)
		);

		CREATE TABLE IF NOT EXISTS validation_runs (
			run_id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			is_valid INTEGER NOT NULL DEFAULT 0,
			confidence INTEGER NOT NULL DEFAULT 0,
			primary_count INTEGER NOT NULL DEFAULT 0,
			secondary_count INTEGER NOT NULL DEFAULT 0,
			mismatches TEXT,
			errors TEXT,
			primary_elapsed_ms INTEGER NOT NULL DEFAULT 0,
			secondary_elapsed_ms INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS verification_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			postcode TEXT NOT NULL,
			area_code TEXT,
			in_zone INTEGER NOT NULL,
			disaster_count INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS critical_alerts (
			id TEXT PRIMARY KEY,
			alert_type TEXT NOT NULL,
			message TEXT NOT NULL,
			severity TEXT NOT NULL,
			details TEXT,
			created_at DATETIME NOT NULL,
			acknowledged INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_declarations_active ON declarations(pipeline_id, is_active, area_code);
		CREATE INDEX IF NOT EXISTS idx_validation_runs_completed ON validation_runs(completed_at);
		CREATE INDEX IF NOT EXISTS idx_alerts_unacknowledged ON critical_alerts(acknowledged, created_at);
		CREATE INDEX IF NOT EXISTS idx_audit_postcode ON verification_audit(postcode);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Upsert writes declarations into the pipeline's partition in chunks.
func (s *SQLiteDB) Upsert(ctx context.Context, pipeline models.PipelineID, decls []models.DisasterDeclaration) (int, error) {
	committed := 0
	for start := 0; start < len(decls); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(decls) {
			end = len(decls)
		}
		if err := s.upsertChunk(ctx, pipeline, decls[start:end]); err != nil {
			return committed, fmt.Errorf("error upserting chunk at offset %d: %w", start, err)
		}
		committed += end - start
	}
	return committed, nil
}

func (s *SQLiteDB) upsertChunk(ctx context.Context, pipeline models.PipelineID, decls []models.DisasterDeclaration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO declarations (
			pipeline_id, area_code, disaster_type, declaration_date, state_code,
			raw_end_date, end_date, is_active, severity_level, authority,
			description, source_system, source_url, review_reason,
			first_seen_at, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pipeline_id, area_code, disaster_type, declaration_date) DO UPDATE SET
			raw_end_date = excluded.raw_end_date,
			end_date = excluded.end_date,
			is_active = excluded.is_active,
			severity_level = excluded.severity_level,
			authority = excluded.authority,
			description = excluded.description,
			source_url = excluded.source_url,
			review_reason = excluded.review_reason,
			last_synced_at = excluded.last_synced_at
	`)
	if err != nil {
		return fmt.Errorf("error preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range decls {
		var endDate sql.NullString
		if d.EndDate != nil {
			endDate = sql.NullString{String: d.EndDate.Format(dateLayout), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			string(pipeline), d.AreaCode, string(d.Type), d.DeclarationDate.Format(dateLayout), d.State,
			d.RawEndDate, endDate, d.IsActive, d.SeverityLevel, d.Authority,
			d.Description, d.SourceSystem, d.SourceURL, d.ReviewReason,
			d.FirstSeenAt, d.LastSyncedAt,
		)
		if err != nil {
			return fmt.Errorf("error upserting declaration %s: %w", d.NaturalKey(), err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteDB) CountActive(ctx context.Context, pipeline models.PipelineID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM declarations WHERE pipeline_id = ? AND is_active = 1`,
		string(pipeline),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting active declarations: %w", err)
	}
	return count, nil
}

func (s *SQLiteDB) ActiveByArea(ctx context.Context, pipeline models.PipelineID, areaCode string) ([]models.DisasterDeclaration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT area_code, disaster_type, declaration_date, state_code, raw_end_date,
		       end_date, is_active, severity_level, authority, description,
		       source_system, source_url, review_reason, first_seen_at, last_synced_at
		FROM declarations
		WHERE pipeline_id = ? AND area_code = ? AND is_active = 1
		ORDER BY declaration_date DESC`,
		string(pipeline), areaCode,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying active declarations: %w", err)
	}
	defer rows.Close()

	return scanDeclarations(rows)
}

func (s *SQLiteDB) ActiveKeys(ctx context.Context, pipeline models.PipelineID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT area_code, disaster_type, declaration_date
		FROM declarations
		WHERE pipeline_id = ? AND is_active = 1
		ORDER BY area_code, disaster_type, declaration_date`,
		string(pipeline),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying active keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var area, dtype, date string
		if err := rows.Scan(&area, &dtype, &date); err != nil {
			return nil, fmt.Errorf("error scanning active key: %w", err)
		}
		keys = append(keys, fmt.Sprintf("%s|%s|%s", area, dtype, date))
	}
	return keys, rows.Err()
}

func (s *SQLiteDB) ActiveStateBreakdown(ctx context.Context, pipeline models.PipelineID) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state_code, COUNT(*)
		FROM declarations
		WHERE pipeline_id = ? AND is_active = 1
		GROUP BY state_code`,
		string(pipeline),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying state breakdown: %w", err)
	}
	defer rows.Close()

	breakdown := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("error scanning state breakdown: %w", err)
		}
		breakdown[state] = count
	}
	return breakdown, rows.Err()
}

func scanDeclarations(rows *sql.Rows) ([]models.DisasterDeclaration, error) {
	var decls []models.DisasterDeclaration
	for rows.Next() {
		var d models.DisasterDeclaration
		var dtype, declDate string
		var endDate, authority, description, sourceURL, reviewReason sql.NullString
		err := rows.Scan(&d.AreaCode, &dtype, &declDate, &d.State, &d.RawEndDate,
			&endDate, &d.IsActive, &d.SeverityLevel, &authority, &description,
			&d.SourceSystem, &sourceURL, &reviewReason, &d.FirstSeenAt, &d.LastSyncedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning declaration: %w", err)
		}

		d.Type = models.DisasterType(dtype)
		if t, err := time.Parse(dateLayout, declDate); err == nil {
			d.DeclarationDate = t
		}
		if endDate.Valid {
			if t, err := time.Parse(dateLayout, endDate.String); err == nil {
				d.EndDate = &t
			}
		}
		d.Authority = authority.String
		d.Description = description.String
		d.SourceURL = sourceURL.String
		d.ReviewReason = reviewReason.String
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

func (s *SQLiteDB) CreateRun(ctx context.Context, run *models.ValidationRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO validation_runs (run_id, started_at) VALUES (?, ?)`,
		run.ID, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating validation run: %w", err)
	}
	return nil
}

func (s *SQLiteDB) FinalizeRun(ctx context.Context, run *models.ValidationRun) error {
	mismatches, err := json.Marshal(run.Mismatches)
	if err != nil {
		return fmt.Errorf("error marshaling mismatches: %w", err)
	}
	runErrors, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("error marshaling run errors: %w", err)
	}

	// Guard against rewriting history: only an incomplete start marker can be
	// finalized.
	res, err := s.db.ExecContext(ctx, `
		UPDATE validation_runs SET
			completed_at = ?, is_valid = ?, confidence = ?,
			primary_count = ?, secondary_count = ?,
			mismatches = ?, errors = ?,
			primary_elapsed_ms = ?, secondary_elapsed_ms = ?
		WHERE run_id = ? AND completed_at IS NULL`,
		run.CompletedAt, run.IsValid, run.Confidence,
		run.PrimaryCount, run.SecondaryCount,
		string(mismatches), string(runErrors),
		run.PrimaryElapsed.Milliseconds(), run.SecondaryElapsed.Milliseconds(),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("error finalizing validation run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading finalize result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("validation run %s is already finalized or unknown", run.ID)
	}
	return nil
}

func (s *SQLiteDB) LatestCompleted(ctx context.Context) (*models.ValidationRun, error) {
	runs, err := s.queryRuns(ctx, `
		SELECT run_id, started_at, completed_at, is_valid, confidence,
		       primary_count, secondary_count, mismatches, errors,
		       primary_elapsed_ms, secondary_elapsed_ms
		FROM validation_runs
		WHERE completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (s *SQLiteDB) RecentRuns(ctx context.Context, limit int) ([]models.ValidationRun, error) {
	return s.queryRuns(ctx, `
		SELECT run_id, started_at, completed_at, is_valid, confidence,
		       primary_count, secondary_count, mismatches, errors,
		       primary_elapsed_ms, secondary_elapsed_ms
		FROM validation_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
}

func (s *SQLiteDB) queryRuns(ctx context.Context, query string, args ...any) ([]models.ValidationRun, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying validation runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ValidationRun
	for rows.Next() {
		var r models.ValidationRun
		var completed sql.NullTime
		var mismatches, runErrors sql.NullString
		var primaryMS, secondaryMS int64
		err := rows.Scan(&r.ID, &r.StartedAt, &completed, &r.IsValid, &r.Confidence,
			&r.PrimaryCount, &r.SecondaryCount, &mismatches, &runErrors,
			&primaryMS, &secondaryMS)
		if err != nil {
			return nil, fmt.Errorf("error scanning validation run: %w", err)
		}

		if completed.Valid {
			r.CompletedAt = completed.Time
		}
		if mismatches.Valid && mismatches.String != "" {
			if err := json.Unmarshal([]byte(mismatches.String), &r.Mismatches); err != nil {
				return nil, fmt.Errorf("error unmarshaling mismatches: %w", err)
			}
		}
		if runErrors.Valid && runErrors.String != "" {
			if err := json.Unmarshal([]byte(runErrors.String), &r.Errors); err != nil {
				return nil, fmt.Errorf("error unmarshaling run errors: %w", err)
			}
		}
		r.PrimaryElapsed = time.Duration(primaryMS) * time.Millisecond
		r.SecondaryElapsed = time.Duration(secondaryMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteDB) AddAlert(ctx context.Context, a *models.CriticalAlert) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("error marshaling alert details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO critical_alerts (id, alert_type, message, severity, details, created_at, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Type), a.Message, string(a.Severity), string(details), a.CreatedAt, a.Acknowledged,
	)
	if err != nil {
		return fmt.Errorf("error adding alert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) UnacknowledgedAlerts(ctx context.Context, limit int) ([]models.CriticalAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_type, message, severity, details, created_at, acknowledged
		FROM critical_alerts
		WHERE acknowledged = 0
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.CriticalAlert
	for rows.Next() {
		var a models.CriticalAlert
		var atype, severity string
		var details sql.NullString
		if err := rows.Scan(&a.ID, &atype, &a.Message, &severity, &details, &a.CreatedAt, &a.Acknowledged); err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		a.Type = models.AlertType(atype)
		a.Severity = models.AlertSeverity(severity)
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &a.Details); err != nil {
				return nil, fmt.Errorf("error unmarshaling alert details: %w", err)
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteDB) HasUnacknowledgedSince(ctx context.Context, alertType models.AlertType, since time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM critical_alerts
		WHERE alert_type = ? AND acknowledged = 0 AND created_at > ?`,
		string(alertType), since,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking for alerts: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteDB) AcknowledgeAlert(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE critical_alerts SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error acknowledging alert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) AppendAudit(ctx context.Context, rec *models.VerificationAuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_audit (postcode, area_code, in_zone, disaster_count, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Postcode, rec.AreaCode, rec.InZone, rec.DisasterCount, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error appending audit record: %w", err)
	}
	return nil
}

func (s *SQLiteDB) RecentAudits(ctx context.Context, limit int) ([]models.VerificationAuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT postcode, area_code, in_zone, disaster_count, created_at
		FROM verification_audit
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying audit records: %w", err)
	}
	defer rows.Close()

	var records []models.VerificationAuditRecord
	for rows.Next() {
		var r models.VerificationAuditRecord
		var areaCode sql.NullString
		if err := rows.Scan(&r.Postcode, &areaCode, &r.InZone, &r.DisasterCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning audit record: %w", err)
		}
		r.AreaCode = areaCode.String
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteDB) ListAreas(ctx context.Context) ([]models.AdministrativeArea, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT area_code, name, state_code, parent_region_id FROM administrative_areas`)
	if err != nil {
		return nil, fmt.Errorf("error querying areas: %w", err)
	}
	defer rows.Close()

	var areas []models.AdministrativeArea
	for rows.Next() {
		var a models.AdministrativeArea
		var parent sql.NullString
		if err := rows.Scan(&a.AreaCode, &a.Name, &a.State, &parent); err != nil {
			return nil, fmt.Errorf("error scanning area: %w", err)
		}
		a.ParentRegionID = parent.String
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

func (s *SQLiteDB) ListPostcodeMappings(ctx context.Context) ([]models.PostcodeMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT postcode, suburb_name, area_code FROM postcode_mappings`)
	if err != nil {
		return nil, fmt.Errorf("error querying postcode mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.PostcodeMapping
	for rows.Next() {
		var m models.PostcodeMapping
		var suburb sql.NullString
		if err := rows.Scan(&m.Postcode, &suburb, &m.PrimaryAreaCode); err != nil {
			return nil, fmt.Errorf("error scanning postcode mapping: %w", err)
		}
		m.SuburbName = suburb.String
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
