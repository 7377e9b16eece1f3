package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists bot activity into a local SQLite database. Writes are
// staged on a channel and applied by a single goroutine so the tick loop
// never blocks on disk.
type Store struct {
	db    *sql.DB
	runID string

	ch     chan entry
	wg     sync.WaitGroup
	once   sync.Once
	policy *Policy

	closed   atomic.Bool
	degraded atomic.Bool
	drops    atomic.Int64
}

type entryKind int

const (
	entryRepair entryKind = iota + 1
	entrySupply
	entrySession
)

type entry struct {
	kind    entryKind
	repair  RepairRow
	supply  SupplyRow
	session SessionRow
}

// RepairRow records one completed repair increment.
type RepairRow struct {
	Tick        uint64
	BotID       string
	StructureID string
	Kind        string
	Amount      float64
	HealthAfter float64
	recordedAt  string
}

// SupplyRow records a pool refill or an exhaustion notice.
type SupplyRow struct {
	Tick           uint64
	BotID          string
	Event          string
	ContainerID    string
	ContainerPacks int
	InventoryPacks int
	CapacityAfter  float64
	Requested      float64
	recordedAt     string
}

// SessionRow records a bot deployment or recall.
type SessionRow struct {
	Tick       uint64
	OwnerID    string
	BotID      string
	Event      string
	Reason     string
	recordedAt string
}

// Counts reports per-table row totals across all runs.
type Counts struct {
	RepairEvents int64 `json:"repairEvents"`
	SupplyEvents int64 `json:"supplyEvents"`
	BotSessions  int64 `json:"botSessions"`
}

// Open creates or reopens the journal database at path. Every Open gets a
// fresh run id so rows from separate server runs stay distinguishable.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: empty db path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}

	s := &Store{
		db:     db,
		runID:  uuid.NewString(),
		ch:     make(chan entry, 4096),
		policy: NewPolicy(),
	}
	if err := s.recordRunStart(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS repair_events (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			bot_id TEXT NOT NULL,
			structure_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			amount REAL NOT NULL,
			health_after REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_repair_events_structure ON repair_events(structure_id, tick);`,
		`CREATE TABLE IF NOT EXISTS supply_events (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			bot_id TEXT NOT NULL,
			event TEXT NOT NULL,
			container_id TEXT,
			container_packs INTEGER NOT NULL,
			inventory_packs INTEGER NOT NULL,
			capacity_after REAL NOT NULL,
			requested REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_supply_events_bot ON supply_events(bot_id, tick);`,
		`CREATE TABLE IF NOT EXISTS bot_sessions (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			owner_id TEXT NOT NULL,
			bot_id TEXT NOT NULL,
			event TEXT NOT NULL,
			reason TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bot_sessions_owner ON bot_sessions(owner_id, tick);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) recordRunStart() error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	rows := [][2]string{
		{"schema_version", "1"},
		{"last_run_id", s.runID},
		{"last_run_started_at", now},
	}
	for _, kv := range rows {
		if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("journal: record run: %w", err)
		}
	}
	return nil
}

// RunID identifies the rows written by this process.
func (s *Store) RunID() string {
	if s == nil {
		return ""
	}
	return s.runID
}

// Drops reports how many rows were discarded because the writer fell
// behind or degraded itself.
func (s *Store) Drops() int64 {
	if s == nil {
		return 0
	}
	return s.drops.Load()
}

// noteFailure feeds the degrade policy. Once it trips, the store stops
// attempting inserts for the rest of the run.
func (s *Store) noteFailure(op string, err error) {
	s.policy.NoteFailure(op, err)
	if signal, tripped := s.policy.Consume(); tripped {
		s.degraded.Store(true)
		log.Printf("journal: degraded after repeated write failures: %s", signal.Summary())
	}
}

// Degraded reports whether the writer shut itself off after sustained
// insert failures.
func (s *Store) Degraded() bool {
	if s == nil {
		return false
	}
	return s.degraded.Load()
}

// RecordRepair stages a repair row. It never blocks; rows are dropped when
// the writer cannot keep up.
func (s *Store) RecordRepair(row RepairRow) {
	if s == nil || s.closed.Load() {
		return
	}
	if s.degraded.Load() {
		s.drops.Add(1)
		return
	}
	row.recordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	select {
	case s.ch <- entry{kind: entryRepair, repair: row}:
	default:
		s.drops.Add(1)
	}
}

// RecordSupply stages a supply row.
func (s *Store) RecordSupply(row SupplyRow) {
	if s == nil || s.closed.Load() {
		return
	}
	if s.degraded.Load() {
		s.drops.Add(1)
		return
	}
	row.recordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	select {
	case s.ch <- entry{kind: entrySupply, supply: row}:
	default:
		s.drops.Add(1)
	}
}

// RecordSession stages a deployment or recall row.
func (s *Store) RecordSession(row SessionRow) {
	if s == nil || s.closed.Load() {
		return
	}
	if s.degraded.Load() {
		s.drops.Add(1)
		return
	}
	row.recordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	select {
	case s.ch <- entry{kind: entrySession, session: row}:
	default:
		s.drops.Add(1)
	}
}

// Counts tallies rows across every run in the database.
func (s *Store) Counts() (Counts, error) {
	var counts Counts
	if s == nil {
		return counts, fmt.Errorf("journal: store is nil")
	}
	queries := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM repair_events`, &counts.RepairEvents},
		{`SELECT COUNT(*) FROM supply_events`, &counts.SupplyEvents},
		{`SELECT COUNT(*) FROM bot_sessions`, &counts.BotSessions},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			return counts, fmt.Errorf("journal: count: %w", err)
		}
	}
	return counts, nil
}

// Close stops the writer, flushes pending rows, and closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Store) loop() {
	ctx := context.Background()

	insertRepair, _ := s.db.Prepare(`INSERT INTO repair_events(run_id,tick,bot_id,structure_id,kind,amount,health_after,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	insertSupply, _ := s.db.Prepare(`INSERT INTO supply_events(run_id,tick,bot_id,event,container_id,container_packs,inventory_packs,capacity_after,requested,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSession, _ := s.db.Prepare(`INSERT INTO bot_sessions(run_id,tick,owner_id,bot_id,event,reason,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertRepair != nil {
			_ = insertRepair.Close()
		}
		if insertSupply != nil {
			_ = insertSupply.Close()
		}
		if insertSession != nil {
			_ = insertSession.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for e := range s.ch {
		if s.degraded.Load() {
			s.drops.Add(1)
			continue
		}
		s.policy.NoteWrite()
		begin()
		if tx == nil {
			continue
		}
		switch e.kind {
		case entryRepair:
			r := e.repair
			if insertRepair == nil {
				continue
			}
			if _, err := tx.Stmt(insertRepair).Exec(
				s.runID,
				int64(r.Tick),
				r.BotID,
				r.StructureID,
				r.Kind,
				r.Amount,
				r.HealthAfter,
				r.recordedAt,
			); err != nil {
				rollback()
				s.noteFailure("repair_events", err)
				continue
			}
			opCount++

		case entrySupply:
			r := e.supply
			if insertSupply == nil {
				continue
			}
			if _, err := tx.Stmt(insertSupply).Exec(
				s.runID,
				int64(r.Tick),
				r.BotID,
				r.Event,
				r.ContainerID,
				r.ContainerPacks,
				r.InventoryPacks,
				r.CapacityAfter,
				r.Requested,
				r.recordedAt,
			); err != nil {
				rollback()
				s.noteFailure("supply_events", err)
				continue
			}
			opCount++

		case entrySession:
			r := e.session
			if insertSession == nil {
				continue
			}
			if _, err := tx.Stmt(insertSession).Exec(
				s.runID,
				int64(r.Tick),
				r.OwnerID,
				r.BotID,
				r.Event,
				r.Reason,
				r.recordedAt,
			); err != nil {
				rollback()
				s.noteFailure("bot_sessions", err)
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
