package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"triage-kiosk/internal/models"
)

const timeFormat = "2006-01-02 15:04:05.000"

// Repository is the kiosk station registry. It holds operational state
// only; vitals and verdicts are never written here.
type Repository struct {
	db     *sql.DB
	loc    *time.Location
	logger *zap.Logger
}

func NewRepository(dbPath string, loc *time.Location, logger *zap.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	repo, err := NewRepositoryFromDB(db, loc, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepositoryFromDB wraps an open handle and creates the schema. A nil loc
// means UTC and a nil logger discards output.
func NewRepositoryFromDB(db *sql.DB, loc *time.Location, logger *zap.Logger) (*Repository, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	repo := &Repository{db: db, loc: loc, logger: logger}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return repo, nil
}

func (r *Repository) initSchema() error {
	createStationsTable := `
    CREATE TABLE IF NOT EXISTS kiosk_stations (
        station_id TEXT PRIMARY KEY,
        location TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        start_time TEXT NOT NULL,
        end_time TEXT,
        last_classified_time TEXT
    );`
	_, err := r.db.Exec(createStationsTable)
	return err
}

func (r *Repository) StartStation(stationID, location string) error {
	nowStr := r.format(time.Now())
	query := `INSERT OR REPLACE INTO kiosk_stations (station_id, location, status, start_time, end_time, last_classified_time) VALUES (?, ?, ?, ?, NULL, NULL)`
	_, err := r.db.Exec(query, stationID, location, models.StationRunning, nowStr)
	return err
}

func (r *Repository) StopStation(stationID string) error {
	nowStr := r.format(time.Now())
	query := `UPDATE kiosk_stations SET status = ?, end_time = ? WHERE station_id = ?`
	_, err := r.db.Exec(query, models.StationStopped, nowStr, stationID)
	return err
}

// BatchUpdateLastClassifiedTime writes unix-second timestamps per station in
// one transaction. Any failure rolls the whole batch back.
func (r *Repository) BatchUpdateLastClassifiedTime(updates map[string]int64) error {
	return r.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`UPDATE kiosk_stations SET last_classified_time = ? WHERE station_id = ?`)
		if err != nil {
			return fmt.Errorf("prepare last classified update: %w", err)
		}
		defer stmt.Close()

		for stationID, ts := range updates {
			if _, err := stmt.Exec(r.format(time.Unix(ts, 0)), stationID); err != nil {
				return fmt.Errorf("update last classified time for %s: %w", stationID, err)
			}
		}
		return nil
	})
}

// withTx commits when fn succeeds and rolls back otherwise.
func (r *Repository) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		r.logger.Warn("Transaction rolled back", zap.Error(err))
		return err
	}
	return tx.Commit()
}

// GetActiveStations lists running stations. Rows whose start time cannot be
// parsed are skipped with a warning.
func (r *Repository) GetActiveStations() ([]models.Station, error) {
	rows, err := r.db.Query(`SELECT station_id, location, status, start_time, end_time, last_classified_time
		FROM kiosk_stations WHERE status = ?`, models.StationRunning)
	if err != nil {
		return nil, fmt.Errorf("query active stations: %w", err)
	}
	defer rows.Close()

	var active []models.Station
	for rows.Next() {
		station, err := r.scanStation(rows)
		if errors.Is(err, errBadTimestamp) {
			r.logger.Warn("Skipping station with unreadable start time", zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		active = append(active, station)
	}
	return active, rows.Err()
}

var errBadTimestamp = errors.New("unreadable timestamp")

func (r *Repository) scanStation(rows *sql.Rows) (models.Station, error) {
	var (
		station        models.Station
		started        string
		ended, lastRun sql.NullString
	)
	if err := rows.Scan(&station.StationID, &station.Location, &station.Status, &started, &ended, &lastRun); err != nil {
		return models.Station{}, fmt.Errorf("scan station: %w", err)
	}
	t, err := time.ParseInLocation(timeFormat, started, r.loc)
	if err != nil {
		return models.Station{}, fmt.Errorf("%w: station %s start_time %q", errBadTimestamp, station.StationID, started)
	}
	station.StartTime = t.Unix()
	station.EndTime = r.parseNullable(ended)
	station.LastClassifiedTime = r.parseNullable(lastRun)
	return station, nil
}

func (r *Repository) format(t time.Time) string {
	return t.In(r.loc).Format(timeFormat)
}

func (r *Repository) parseNullable(s sql.NullString) *int64 {
	if !s.Valid {
		return nil
	}
	t, err := time.ParseInLocation(timeFormat, s.String, r.loc)
	if err != nil {
		return nil
	}
	unix := t.Unix()
	return &unix
}

func (r *Repository) Close() {
	r.db.Close()
}
