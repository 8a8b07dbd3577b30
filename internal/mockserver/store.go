// Package mockserver is a local stand-in for the classification service. It
// persists sessions in SQLite, classifies uploads by colour and pushes the
// active session to WebSocket subscribers.
package mockserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
)

var (
	// ErrSessionActive is returned when starting while a session runs.
	ErrSessionActive = errors.New("a session is already active")
	// ErrNoActiveSession is returned when no session is running.
	ErrNoActiveSession = errors.New("no active session")
)

const schema = `
CREATE TABLE IF NOT EXISTS operaciones (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	fecha_inicio TIMESTAMP NOT NULL,
	fecha_fin    TIMESTAMP,
	completada   INTEGER NOT NULL DEFAULT 0,
	descripcion  TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_operaciones_single_active
	ON operaciones(completada) WHERE completada = 0;
CREATE TABLE IF NOT EXISTS clasificaciones (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	operacion_id  INTEGER NOT NULL REFERENCES operaciones(id),
	tipo_material TEXT NOT NULL,
	confianza     REAL NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clasificaciones_operacion
	ON clasificaciones(operacion_id);
`

// Store persists sessions and their classification events.
type Store struct {
	conn *sql.DB
	path string
}

// OpenStore opens or creates the database at path. ":memory:" keeps
// everything in memory.
func OpenStore(path string) (*Store, error) {
	dsn := ":memory:?_foreign_keys=on"
	if path != ":memory:" && path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_foreign_keys=on"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives only on the connection that created it.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{conn: conn, path: path}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// execTx runs fn within a transaction.
func (s *Store) execTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

type rowQuerier interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func activeID(ctx context.Context, q rowQuerier) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM operaciones WHERE completada = 0`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoActiveSession
	}
	return id, err
}

// Start opens a new session. Only one session may be active at a time.
func (s *Store) Start(ctx context.Context, at time.Time, descripcion string) (int64, error) {
	var id int64
	err := s.execTx(ctx, func(tx *sql.Tx) error {
		if _, err := activeID(ctx, tx); err == nil {
			return ErrSessionActive
		} else if !errors.Is(err, ErrNoActiveSession) {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO operaciones (fecha_inicio, descripcion) VALUES (?, ?)`, at, descripcion)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// Stop completes the active session and returns its final statistics.
func (s *Store) Stop(ctx context.Context, at time.Time) (client.Estadisticas, error) {
	var stats client.Estadisticas
	err := s.execTx(ctx, func(tx *sql.Tx) error {
		id, err := activeID(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE operaciones SET completada = 1, fecha_fin = ? WHERE id = ?`, at, id); err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}
		stats.PorTipo, stats.TotalClasificaciones, err = countByType(ctx, tx, id)
		return err
	})
	return stats, err
}

// Record appends a classification to the active session.
func (s *Store) Record(ctx context.Context, label string, confidence float64, at time.Time) (client.Clasificacion, error) {
	var ev client.Clasificacion
	err := s.execTx(ctx, func(tx *sql.Tx) error {
		opID, err := activeID(ctx, tx)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO clasificaciones (operacion_id, tipo_material, confianza, created_at) VALUES (?, ?, ?, ?)`,
			opID, label, confidence, at)
		if err != nil {
			return fmt.Errorf("failed to insert classification: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		ev = client.Clasificacion{ID: int(id), TipoMaterial: label, Confianza: client.Confidence(confidence), CreatedAt: at}
		return nil
	})
	return ev, err
}

// Active returns the running session with its events in insertion order.
func (s *Store) Active(ctx context.Context) (*client.Operacion, error) {
	var (
		op  client.Operacion
		fin sql.NullTime
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, fecha_inicio, fecha_fin, descripcion FROM operaciones WHERE completada = 0`).
		Scan(&op.ID, &op.FechaInicio, &fin, &op.Descripcion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	if fin.Valid {
		op.FechaFin = &fin.Time
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, tipo_material, confianza, created_at FROM clasificaciones WHERE operacion_id = ? ORDER BY id`, op.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	op.Clasificaciones = []client.Clasificacion{}
	for rows.Next() {
		var (
			ev   client.Clasificacion
			conf float64
		)
		if err := rows.Scan(&ev.ID, &ev.TipoMaterial, &conf, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Confianza = client.Confidence(conf)
		op.Clasificaciones = append(op.Clasificaciones, ev)
	}
	return &op, rows.Err()
}

// Completed lists finished sessions, most recent first.
func (s *Store) Completed(ctx context.Context) ([]client.OperacionCompletada, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, fecha_inicio, fecha_fin, descripcion
		FROM operaciones WHERE completada = 1
		ORDER BY fecha_fin DESC, id DESC`)
	if err != nil {
		return nil, err
	}

	out := []client.OperacionCompletada{}
	for rows.Next() {
		var (
			op  client.OperacionCompletada
			fin sql.NullTime
		)
		if err := rows.Scan(&op.ID, &op.FechaInicio, &fin, &op.Descripcion); err != nil {
			rows.Close()
			return nil, err
		}
		if fin.Valid {
			op.FechaFin = &fin.Time
		}
		out = append(out, op)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The single connection is free again once rows is closed.
	for i := range out {
		out[i].PorTipo, out[i].TotalClasificaciones, err = countByType(ctx, s.conn, int64(out[i].ID))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type querier interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

func countByType(ctx context.Context, q querier, opID int64) (map[string]int, int, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tipo_material, COUNT(*) FROM clasificaciones WHERE operacion_id = ? GROUP BY tipo_material`, opID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	counts := map[string]int{}
	total := 0
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, 0, err
		}
		counts[label] = n
		total += n
	}
	return counts, total, rows.Err()
}
