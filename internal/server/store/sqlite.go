package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"hostpulse/pkg/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	device_id      TEXT PRIMARY KEY,
	first_seen     TIMESTAMP NOT NULL,
	last_seen      TIMESTAMP NOT NULL,
	uptime_seconds REAL NOT NULL,
	cpu_percent    REAL,
	memory_percent REAL NOT NULL,
	memory_kb      INTEGER NOT NULL,
	disk_percent   REAL NOT NULL,
	disk_kb        INTEGER NOT NULL,
	load_1         REAL NOT NULL,
	load_5         REAL NOT NULL,
	load_15        REAL NOT NULL,
	interfaces     TEXT NOT NULL
)`

// deviceRow is the flat table shape; interface metrics are stored as a
// JSON column the same way variable-size measurement parts usually are.
type deviceRow struct {
	DeviceID      string          `db:"device_id"`
	FirstSeen     time.Time       `db:"first_seen"`
	LastSeen      time.Time       `db:"last_seen"`
	UptimeSeconds float64         `db:"uptime_seconds"`
	CPUPercent    sql.NullFloat64 `db:"cpu_percent"`
	MemoryPercent float64         `db:"memory_percent"`
	MemoryKB      uint64          `db:"memory_kb"`
	DiskPercent   float64         `db:"disk_percent"`
	DiskKB        uint64          `db:"disk_kb"`
	Load1         float64         `db:"load_1"`
	Load5         float64         `db:"load_5"`
	Load15        float64         `db:"load_15"`
	Interfaces    string          `db:"interfaces"`
}

// SqliteProvider implements Provider on a local sqlite database.
type SqliteProvider struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSqliteProvider opens (and if needed creates) the database at dbPath.
// Use ":memory:" for an ephemeral store.
func NewSqliteProvider(dbPath string, logger *zap.Logger) (*SqliteProvider, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device database: %w", err)
	}

	// One connection: sqlite serializes writers anyway, and a pool of
	// :memory: connections would each see their own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply device schema: %w", err)
	}

	logger.Info("Initialized device database", zap.String("path", dbPath))

	return &SqliteProvider{db: db, logger: logger}, nil
}

// Upsert writes the sample as the device's latest state. The timestamp
// guard makes it a compare-and-swap: an incoming sample older than the
// stored one changes nothing (applied=false), so duplicates and reordered
// retries can never regress last_seen or clobber newer state. Re-applying
// an identical sample is idempotent since equal timestamps pass the guard
// and rewrite the same values.
func (p *SqliteProvider) Upsert(ctx context.Context, sample wire.Sample) (bool, error) {
	interfaces, err := json.Marshal(sample.Network)
	if err != nil {
		return false, fmt.Errorf("failed to marshal interface metrics: %w", err)
	}

	row := deviceRow{
		DeviceID:      sample.DeviceID,
		FirstSeen:     sample.Timestamp.UTC(),
		LastSeen:      sample.Timestamp.UTC(),
		UptimeSeconds: sample.System.UptimeSeconds,
		MemoryPercent: sample.System.MemoryPercent,
		MemoryKB:      sample.System.MemoryUsedKB,
		DiskPercent:   sample.System.DiskPercent,
		DiskKB:        sample.System.DiskUsedKB,
		Load1:         sample.System.Load1,
		Load5:         sample.System.Load5,
		Load15:        sample.System.Load15,
		Interfaces:    string(interfaces),
	}
	if sample.System.CPUUsagePercent != nil {
		row.CPUPercent = sql.NullFloat64{Float64: *sample.System.CPUUsagePercent, Valid: true}
	}

	result, err := p.db.NamedExecContext(ctx, `
		INSERT INTO devices (
			device_id, first_seen, last_seen, uptime_seconds, cpu_percent,
			memory_percent, memory_kb, disk_percent, disk_kb,
			load_1, load_5, load_15, interfaces
		) VALUES (
			:device_id, :first_seen, :last_seen, :uptime_seconds, :cpu_percent,
			:memory_percent, :memory_kb, :disk_percent, :disk_kb,
			:load_1, :load_5, :load_15, :interfaces
		)
		ON CONFLICT(device_id) DO UPDATE SET
			last_seen      = excluded.last_seen,
			uptime_seconds = excluded.uptime_seconds,
			cpu_percent    = excluded.cpu_percent,
			memory_percent = excluded.memory_percent,
			memory_kb      = excluded.memory_kb,
			disk_percent   = excluded.disk_percent,
			disk_kb        = excluded.disk_kb,
			load_1         = excluded.load_1,
			load_5         = excluded.load_5,
			load_15        = excluded.load_15,
			interfaces     = excluded.interfaces
		WHERE excluded.last_seen >= devices.last_seen`,
		row,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (p *SqliteProvider) Exists(ctx context.Context, deviceID string) (bool, error) {
	var count int
	err := p.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM devices WHERE device_id = ?", deviceID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *SqliteProvider) Get(ctx context.Context, deviceID string) (*wire.DeviceState, error) {
	var row deviceRow
	err := p.db.GetContext(ctx, &row, "SELECT * FROM devices WHERE device_id = ?", deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toState()
}

func (p *SqliteProvider) List(ctx context.Context) ([]wire.DeviceState, error) {
	var rows []deviceRow
	err := p.db.SelectContext(ctx, &rows, "SELECT * FROM devices ORDER BY device_id")
	if err != nil {
		return nil, err
	}

	states := make([]wire.DeviceState, 0, len(rows))
	for _, row := range rows {
		state, err := row.toState()
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}
	return states, nil
}

func (p *SqliteProvider) Close() error {
	return p.db.Close()
}

func (r deviceRow) toState() (*wire.DeviceState, error) {
	var interfaces []wire.InterfaceMetrics
	if r.Interfaces != "" {
		if err := json.Unmarshal([]byte(r.Interfaces), &interfaces); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interface metrics: %w", err)
		}
	}

	sample := wire.Sample{
		DeviceID:  r.DeviceID,
		Timestamp: r.LastSeen,
		System: wire.SystemMetrics{
			UptimeSeconds: r.UptimeSeconds,
			MemoryPercent: r.MemoryPercent,
			MemoryUsedKB:  r.MemoryKB,
			DiskPercent:   r.DiskPercent,
			DiskUsedKB:    r.DiskKB,
			Load1:         r.Load1,
			Load5:         r.Load5,
			Load15:        r.Load15,
		},
		Network: interfaces,
	}
	if r.CPUPercent.Valid {
		cpu := r.CPUPercent.Float64
		sample.System.CPUUsagePercent = &cpu
	}

	return &wire.DeviceState{
		DeviceID:  r.DeviceID,
		FirstSeen: r.FirstSeen,
		LastSeen:  r.LastSeen,
		Sample:    sample,
	}, nil
}
