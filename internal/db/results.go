package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gaze.report/internal/batch"
	"github.com/banshee-data/gaze.report/internal/features"
	"github.com/banshee-data/gaze.report/internal/gaze"
)

// Run is one invocation of the batch analysis.
type Run struct {
	RunID       string          `json:"run_id"`
	Version     string          `json:"version"`
	GitSHA      string          `json:"git_sha"`
	ConfigJSON  json.RawMessage `json:"config_json,omitempty"`
	CreatedAt   int64           `json:"created_at"`
	FinishedAt  *int64          `json:"finished_at,omitempty"`
	FilesTotal  int             `json:"files_total"`
	FilesFailed int             `json:"files_failed"`
}

// SessionRecord is the stored outcome of one file.
type SessionRecord struct {
	RunID      string  `json:"run_id"`
	Path       string  `json:"path"`
	Status     string  `json:"status"`
	ErrorKind  string  `json:"error_kind,omitempty"`
	Error      string  `json:"error,omitempty"`
	SampleRate float64 `json:"sample_rate"`
	StartedAt  int64   `json:"started_at"`
	DurationMs float64 `json:"duration_ms"`
}

// Session statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// PhaseRecord is one stored feature set.
type PhaseRecord struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
	features.FeatureSet
}

// FailureRecord is a stored session- or phase-level failure. Phase is empty
// for failures that concern the whole session.
type FailureRecord struct {
	RunID  string `json:"run_id"`
	Path   string `json:"path"`
	Phase  string `json:"phase,omitempty"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// WindowRecord is a stored phase window with its aligned sample range.
type WindowRecord struct {
	Phase      string  `json:"phase"`
	StartTS    float64 `json:"start_ts"`
	EndTS      float64 `json:"end_ts"`
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
}

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("analysis run not found")

// StartRun inserts a new analysis run and returns it with a fresh UUID.
func (db *DB) StartRun(version, gitSHA string, configJSON json.RawMessage, at time.Time) (*Run, error) {
	run := &Run{
		RunID:      uuid.New().String(),
		Version:    version,
		GitSHA:     gitSHA,
		ConfigJSON: configJSON,
		CreatedAt:  at.UnixNano(),
	}
	var cfg interface{}
	if len(configJSON) > 0 {
		cfg = string(configJSON)
	}
	_, err := db.Exec(`
		INSERT INTO analysis_runs (run_id, version, git_sha, config_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Version, run.GitSHA, cfg, run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert analysis run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run with its completion time and file counts.
func (db *DB) FinishRun(runID string, summary batch.Summary, at time.Time) error {
	res, err := db.Exec(`
		UPDATE analysis_runs
		SET finished_at = ?, files_total = ?, files_failed = ?
		WHERE run_id = ?`,
		at.UnixNano(), summary.Total, summary.Failed, runID,
	)
	if err != nil {
		return fmt.Errorf("finish analysis run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// RecordFileResult stores one file's outcome, its phase windows, feature
// sets and failures in a single transaction.
func (db *DB) RecordFileResult(runID string, fr batch.FileResult) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	status, errText, rate := StatusOK, "", 0.0
	if !fr.OK() {
		status = StatusFailed
		if fr.Err != nil {
			errText = fr.Err.Error()
		}
	} else {
		rate = fr.Result.SampleRate
	}
	if _, err = tx.Exec(`
		INSERT INTO session_results (run_id, path, status, error_kind, error, sample_rate, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, fr.Path, status, fr.Kind, errText, rate,
		fr.Started.UnixNano(), float64(fr.Duration)/float64(time.Millisecond),
	); err != nil {
		return fmt.Errorf("insert session result %s: %w", fr.Path, err)
	}

	for _, f := range failureRecords(runID, fr) {
		if _, err = tx.Exec(`
			INSERT INTO session_failures (run_id, path, phase, kind, detail)
			VALUES (?, ?, ?, ?, ?)`,
			f.RunID, f.Path, f.Phase, f.Kind, f.Detail,
		); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}

	if fr.OK() {
		res := fr.Result
		for i, w := range res.Windows {
			var seg gaze.Segment
			if i < len(res.Segments) {
				seg = res.Segments[i]
			}
			if _, err = tx.Exec(`
				INSERT OR IGNORE INTO phase_windows (run_id, path, phase, start_ts, end_ts, start_index, end_index)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID, fr.Path, w.Phase, w.Start(), w.End(), seg.StartIndex, seg.EndIndex,
			); err != nil {
				return fmt.Errorf("insert phase window: %w", err)
			}
		}
		for _, name := range res.Order {
			if err = insertFeatureSet(tx, runID, fr.Path, res.Phases[name]); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func insertFeatureSet(tx *sql.Tx, runID, path string, fs features.FeatureSet) error {
	velocity, err := json.Marshal(fs.Velocity)
	if err != nil {
		return err
	}
	specX, err := json.Marshal(fs.SpectrumX)
	if err != nil {
		return err
	}
	specY, err := json.Marshal(fs.SpectrumY)
	if err != nil {
		return err
	}
	computed := make([]string, len(fs.Computed))
	for i, k := range fs.Computed {
		computed[i] = string(k)
	}
	_, err = tx.Exec(`
		INSERT INTO phase_features (
			run_id, path, phase, samples, total_distance, mean_x, mean_y, std_x, std_y,
			velocity_json, spectrum_x_json, spectrum_y_json, computed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, path, fs.Phase, fs.Samples, fs.TotalDistance,
		fs.MeanPosition[0], fs.MeanPosition[1], fs.StdDev[0], fs.StdDev[1],
		string(velocity), string(specX), string(specY), strings.Join(computed, ","),
	)
	if err != nil {
		return fmt.Errorf("insert features for %s/%s: %w", path, fs.Phase, err)
	}
	return nil
}

// failureRecords flattens a file result into stored failures: one row per
// integrity failure, one row for any other session error, and one per
// feature that could not be computed.
func failureRecords(runID string, fr batch.FileResult) []FailureRecord {
	var out []FailureRecord
	var ie *gaze.IntegrityError
	switch {
	case fr.Err != nil && errors.As(fr.Err, &ie):
		for _, f := range ie.Failures {
			detail := string(f.Check)
			if f.Cause != nil {
				detail += ": " + f.Cause.Error()
			}
			out = append(out, FailureRecord{RunID: runID, Path: fr.Path, Phase: f.Phase, Kind: fr.Kind, Detail: detail})
		}
	case fr.Err != nil:
		out = append(out, FailureRecord{RunID: runID, Path: fr.Path, Kind: fr.Kind, Detail: fr.Err.Error()})
	case fr.Result != nil:
		for _, pf := range fr.Result.Failures {
			out = append(out, FailureRecord{
				RunID: runID, Path: fr.Path, Phase: pf.Phase,
				Kind: batch.ErrorKind(pf.Err), Detail: pf.Error(),
			})
		}
	}
	return out
}

// GetRun returns a run by ID.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, version, git_sha, config_json, created_at, finished_at, files_total, files_failed
		FROM analysis_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns() ([]*Run, error) {
	rows, err := db.Query(`
		SELECT run_id, version, git_sha, config_json, created_at, finished_at, files_total, files_failed
		FROM analysis_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var cfg sql.NullString
	var finished sql.NullInt64
	if err := s.Scan(&r.RunID, &r.Version, &r.GitSHA, &cfg, &r.CreatedAt, &finished, &r.FilesTotal, &r.FilesFailed); err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Int64
	}
	return &r, nil
}

// ListSessions returns the per-file outcomes of a run ordered by path.
func (db *DB) ListSessions(runID string) ([]SessionRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, path, status, error_kind, error, COALESCE(sample_rate, 0), started_at, duration_ms
		FROM session_results WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var s SessionRecord
		if err := rows.Scan(&s.RunID, &s.Path, &s.Status, &s.ErrorKind, &s.Error, &s.SampleRate, &s.StartedAt, &s.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListPhaseFeatures returns the feature sets stored for one file of a run.
func (db *DB) ListPhaseFeatures(runID, path string) ([]PhaseRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, path, phase, samples, total_distance, mean_x, mean_y, std_x, std_y,
		       velocity_json, spectrum_x_json, spectrum_y_json, computed
		FROM phase_features WHERE run_id = ? AND path = ? ORDER BY rowid`, runID, path)
	if err != nil {
		return nil, fmt.Errorf("query phase features: %w", err)
	}
	defer rows.Close()

	var out []PhaseRecord
	for rows.Next() {
		var p PhaseRecord
		var velocity, specX, specY, computed string
		if err := rows.Scan(&p.RunID, &p.Path, &p.Phase, &p.Samples, &p.TotalDistance,
			&p.MeanPosition[0], &p.MeanPosition[1], &p.StdDev[0], &p.StdDev[1],
			&velocity, &specX, &specY, &computed); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(velocity), &p.Velocity); err != nil {
			return nil, fmt.Errorf("decode velocity: %w", err)
		}
		if err := json.Unmarshal([]byte(specX), &p.SpectrumX); err != nil {
			return nil, fmt.Errorf("decode spectrum_x: %w", err)
		}
		if err := json.Unmarshal([]byte(specY), &p.SpectrumY); err != nil {
			return nil, fmt.Errorf("decode spectrum_y: %w", err)
		}
		if computed != "" {
			for _, k := range strings.Split(computed, ",") {
				p.Computed = append(p.Computed, features.Kind(k))
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListWindows returns the phase windows stored for one file of a run.
func (db *DB) ListWindows(runID, path string) ([]WindowRecord, error) {
	rows, err := db.Query(`
		SELECT phase, start_ts, end_ts, start_index, end_index
		FROM phase_windows WHERE run_id = ? AND path = ? ORDER BY start_ts`, runID, path)
	if err != nil {
		return nil, fmt.Errorf("query phase windows: %w", err)
	}
	defer rows.Close()

	var out []WindowRecord
	for rows.Next() {
		var w WindowRecord
		if err := rows.Scan(&w.Phase, &w.StartTS, &w.EndTS, &w.StartIndex, &w.EndIndex); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListFailures returns every failure recorded for a run.
func (db *DB) ListFailures(runID string) ([]FailureRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, path, phase, kind, detail
		FROM session_failures WHERE run_id = ? ORDER BY failure_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []FailureRecord
	for rows.Next() {
		var f FailureRecord
		if err := rows.Scan(&f.RunID, &f.Path, &f.Phase, &f.Kind, &f.Detail); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
