package trace

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/rv32sim/timing/core"
)

// DefaultBatchSize is the number of buffered rows that triggers a flush.
const DefaultBatchSize = 10000

// RetireRecord is one row of the retire table.
type RetireRecord struct {
	Hart    uint32
	Cycle   uint64
	PC      uint32
	Word    uint32
	Op      string
	NextPC  uint32
	Rd      int // -1 when no register was written
	RdValue uint32
}

// TrapRecord is one row of the trap table.
type TrapRecord struct {
	Hart      uint32
	Cycle     uint64
	PC        uint32
	Cause     uint32
	Interrupt bool
	Value     uint32
	Target    uint32
	Name      string
}

// SQLiteTracer is a hook that writes retirements and traps to a SQLite
// database. Rows are buffered and written in batches inside a transaction.
type SQLiteTracer struct {
	*sql.DB

	path      string
	batchSize int

	retireStmt *sql.Stmt
	trapStmt   *sql.Stmt

	retires []RetireRecord
	traps   []TrapRecord
}

// NewSQLiteTracer creates the database at path. An empty path picks a
// unique name in the working directory. The tracer flushes itself when the
// program exits through atexit.
func NewSQLiteTracer(path string) (*SQLiteTracer, error) {
	if path == "" {
		path = "rv32sim_trace_" + xid.New().String() + ".sqlite3"
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("failed to create trace: file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}

	t := &SQLiteTracer{
		DB:        db,
		path:      path,
		batchSize: DefaultBatchSize,
	}

	if err := t.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := t.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, err
	}

	atexit.Register(func() { _ = t.Flush() })

	return t, nil
}

// Path returns the database file name.
func (t *SQLiteTracer) Path() string {
	return t.path
}

// SetBatchSize sets the number of buffered rows that triggers a flush.
func (t *SQLiteTracer) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	t.batchSize = n
}

func (t *SQLiteTracer) createTables() error {
	statements := []string{
		`create table retire
		(
			hart     integer not null,
			cycle    integer not null,
			pc       integer not null,
			word     integer not null,
			op       varchar(16) not null,
			next_pc  integer not null,
			rd       integer not null default -1,
			rd_value integer not null default 0
		);`,
		`create index retire_hart_cycle_index on retire (hart, cycle);`,
		`create index retire_pc_index on retire (pc);`,
		`create table trap
		(
			hart      integer not null,
			cycle     integer not null,
			pc        integer not null,
			cause     integer not null,
			interrupt boolean not null,
			tval      integer not null,
			target    integer not null,
			name      varchar(64) not null
		);`,
		`create index trap_hart_cycle_index on trap (hart, cycle);`,
	}

	for _, stmt := range statements {
		if _, err := t.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create trace tables: %w", err)
		}
	}
	return nil
}

func (t *SQLiteTracer) prepareStatements() error {
	var err error

	t.retireStmt, err = t.Prepare(`INSERT INTO retire VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare retire statement: %w", err)
	}

	t.trapStmt, err = t.Prepare(`INSERT INTO trap VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trap statement: %w", err)
	}

	return nil
}

// Func implements sim.Hook.
func (t *SQLiteTracer) Func(ctx sim.HookCtx) {
	switch info := ctx.Item.(type) {
	case core.RetireInfo:
		rd := -1
		if info.RdWritten {
			rd = int(info.Rd)
		}
		t.retires = append(t.retires, RetireRecord{
			Hart:    info.HartID,
			Cycle:   info.Cycle,
			PC:      info.PC,
			Word:    info.Word,
			Op:      info.Op.String(),
			NextPC:  info.NextPC,
			Rd:      rd,
			RdValue: info.RdValue,
		})
	case core.TrapInfo:
		t.traps = append(t.traps, TrapRecord{
			Hart:      info.HartID,
			Cycle:     info.Cycle,
			PC:        info.PC,
			Cause:     uint32(info.Cause),
			Interrupt: info.Interrupt,
			Value:     info.Value,
			Target:    info.Target,
			Name:      info.Describe(),
		})
	default:
		return
	}

	if len(t.retires)+len(t.traps) >= t.batchSize {
		// A failed batch is retried on the next flush.
		_ = t.Flush()
	}
}

// Flush writes all the buffered rows to the database.
func (t *SQLiteTracer) Flush() error {
	if len(t.retires) == 0 && len(t.traps) == 0 {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trace transaction: %w", err)
	}

	for _, r := range t.retires {
		_, err := tx.Stmt(t.retireStmt).Exec(
			r.Hart, r.Cycle, r.PC, r.Word, r.Op, r.NextPC, r.Rd, r.RdValue)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert retirement: %w", err)
		}
	}

	for _, r := range t.traps {
		_, err := tx.Stmt(t.trapStmt).Exec(
			r.Hart, r.Cycle, r.PC, r.Cause, r.Interrupt, r.Value, r.Target, r.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert trap: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace transaction: %w", err)
	}

	t.retires = nil
	t.traps = nil
	return nil
}

// Close flushes the buffered rows and closes the database.
func (t *SQLiteTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	return t.DB.Close()
}

// SQLiteTraceReader reads a trace written by SQLiteTracer.
type SQLiteTraceReader struct {
	*sql.DB
}

// OpenSQLiteTrace opens an existing trace database.
func OpenSQLiteTrace(path string) (*SQLiteTraceReader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}

	return &SQLiteTraceReader{DB: db}, nil
}

// ListRetired returns the retirements of a hart in cycle order.
func (r *SQLiteTraceReader) ListRetired(hart uint32) ([]RetireRecord, error) {
	rows, err := r.Query(`
		SELECT hart, cycle, pc, word, op, next_pc, rd, rd_value
		FROM retire
		WHERE hart = ?
		ORDER BY cycle`, hart)
	if err != nil {
		return nil, fmt.Errorf("failed to query retirements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []RetireRecord{}
	for rows.Next() {
		var rec RetireRecord
		err := rows.Scan(&rec.Hart, &rec.Cycle, &rec.PC, &rec.Word,
			&rec.Op, &rec.NextPC, &rec.Rd, &rec.RdValue)
		if err != nil {
			return nil, fmt.Errorf("failed to read retirement: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListTraps returns every trap in cycle order.
func (r *SQLiteTraceReader) ListTraps() ([]TrapRecord, error) {
	rows, err := r.Query(`
		SELECT hart, cycle, pc, cause, interrupt, tval, target, name
		FROM trap
		ORDER BY cycle, hart`)
	if err != nil {
		return nil, fmt.Errorf("failed to query traps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []TrapRecord{}
	for rows.Next() {
		var rec TrapRecord
		err := rows.Scan(&rec.Hart, &rec.Cycle, &rec.PC, &rec.Cause,
			&rec.Interrupt, &rec.Value, &rec.Target, &rec.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read trap: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
