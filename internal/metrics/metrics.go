// Package metrics provides a lightweight persistent metrics manager for the
// peek client. It batches in-memory counter and duration observations and
// periodically flushes them to a local SQLite file. Only operational tallies
// live here; secret content, keys, and passphrases never touch this store.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Counter names used by the application.
const (
	CounterSecretsCreated = "secrets_created_total"
	CounterCreateFailures = "secret_create_failures_total"
)

// Summary names.
const (
	SummaryRetrievalDurationMS = "retrieval_duration_ms"
)

// outcomeCounterPrefix namespaces the per-outcome retrieval counters; the
// classifier's kind names complete them (e.g. retrieval_outcome_revealed_total).
const outcomeCounterPrefix = "retrieval_outcome_"

// Config controls flush cadence and logging.
type Config struct {
	FlushInterval time.Duration
	Logger        *slog.Logger
}

type updateKind int

const (
	updateInc updateKind = iota + 1
	updateObserve
)

type update struct {
	kind updateKind
	name string
	v    int64
}

type durationAgg struct {
	count int64
	sum   int64
	min   int64
	max   int64
}

func (a *durationAgg) observe(v int64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.count++
	a.sum += v
}

// Manager aggregates metric updates and flushes them. Construct with New,
// then Start; updates submitted before Start accumulate in the channel.
type Manager struct {
	cfg     Config
	db      *sql.DB
	updates chan update
	stop    chan struct{}
	done    chan struct{}
	started bool

	// in-memory deltas since last flush (protected by mu)
	mu        sync.Mutex
	counters  map[string]int64
	durations map[string]*durationAgg
}

// New creates a Manager. Call Start to begin background flushing.
func New(db *sql.DB, cfg Config) *Manager {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		db:        db,
		updates:   make(chan update, 1024),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		counters:  make(map[string]int64),
		durations: make(map[string]*durationAgg),
	}
}

// InitSchema ensures the metrics tables exist.
func (m *Manager) InitSchema(ctx context.Context) error {
	const ddlCounters = `CREATE TABLE IF NOT EXISTS metrics_counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);`
	const ddlDurations = `CREATE TABLE IF NOT EXISTS metrics_durations (
		name TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		sum INTEGER NOT NULL,
		min INTEGER NOT NULL,
		max INTEGER NOT NULL
	);`
	if _, err := m.db.ExecContext(ctx, ddlCounters); err != nil {
		return err
	}
	_, err := m.db.ExecContext(ctx, ddlDurations)
	return err
}

// Start launches the background flush loop.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	go m.loop(ctx)
}

// Stop signals the flush loop to exit and performs a final flush.
func (m *Manager) Stop(ctx context.Context) {
	if !m.started {
		m.drain()
		_ = m.flush(ctx)
		return
	}
	close(m.stop)
	<-m.done
	m.drain()
	_ = m.flush(ctx)
}

// Inc increments a counter by delta (>= 1). Best-effort: when the update
// channel is full the increment is dropped rather than blocking a request.
func (m *Manager) Inc(name string, delta int64) {
	if delta <= 0 {
		return
	}
	select {
	case m.updates <- update{kind: updateInc, name: name, v: delta}:
	default:
	}
}

// Observe records a duration observation in milliseconds.
func (m *Manager) Observe(name string, value int64) {
	select {
	case m.updates <- update{kind: updateObserve, name: name, v: value}:
	default:
	}
}

// RecordOutcome counts one classified retrieval outcome. Satisfies the
// retrieval flow's Recorder port.
func (m *Manager) RecordOutcome(kind string) {
	m.Inc(outcomeCounterPrefix+kind+"_total", 1)
}

func (m *Manager) loop(ctx context.Context) {
	log := m.cfg.Logger.With("domain", "metrics")
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer func() {
		ticker.Stop()
		close(m.done)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("metrics stop", "reason", "context_cancel")
			return
		case <-m.stop:
			log.Info("metrics stop", "reason", "stop_signal")
			return
		case u := <-m.updates:
			m.apply(u)
		case <-ticker.C:
			if err := m.flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("flush", "error", err)
			}
		}
	}
}

// drain applies any updates still queued in the channel.
func (m *Manager) drain() {
	for {
		select {
		case u := <-m.updates:
			m.apply(u)
		default:
			return
		}
	}
}

func (m *Manager) apply(u update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch u.kind {
	case updateInc:
		m.counters[u.name] += u.v
	case updateObserve:
		agg := m.durations[u.name]
		if agg == nil {
			agg = &durationAgg{}
			m.durations[u.name] = agg
		}
		agg.observe(u.v)
	}
}

// Snapshot returns persisted state layered with in-memory deltas.
func (m *Manager) Snapshot(ctx context.Context) (map[string]int64, map[string]durationAgg, error) {
	counters := make(map[string]int64)
	durations := make(map[string]durationAgg)

	rows, err := m.db.QueryContext(ctx, `SELECT name, value FROM metrics_counters`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n string
		var v int64
		if err := rows.Scan(&n, &v); err != nil {
			return nil, nil, err
		}
		counters[n] = v
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	drows, err := m.db.QueryContext(ctx, `SELECT name, count, sum, min, max FROM metrics_durations`)
	if err != nil {
		return nil, nil, err
	}
	defer drows.Close()
	for drows.Next() {
		var n string
		var agg durationAgg
		if err := drows.Scan(&n, &agg.count, &agg.sum, &agg.min, &agg.max); err != nil {
			return nil, nil, err
		}
		durations[n] = agg
	}
	if err := drows.Err(); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for n, v := range m.counters {
		counters[n] += v
	}
	for n, agg := range m.durations {
		cur, ok := durations[n]
		if !ok {
			durations[n] = *agg
			continue
		}
		cur.sum += agg.sum
		cur.count += agg.count
		if agg.min < cur.min {
			cur.min = agg.min
		}
		if agg.max > cur.max {
			cur.max = agg.max
		}
		durations[n] = cur
	}
	return counters, durations, nil
}

// flush writes in-memory deltas to SQLite in one transaction and resets them.
func (m *Manager) flush(ctx context.Context) error {
	m.mu.Lock()
	if len(m.counters) == 0 && len(m.durations) == 0 {
		m.mu.Unlock()
		return nil
	}
	pendingCounters := m.counters
	pendingDurations := m.durations
	m.counters = make(map[string]int64)
	m.durations = make(map[string]*durationAgg)
	m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for name, delta := range pendingCounters {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO metrics_counters(name,value) VALUES(?,?)
			 ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`,
			name, delta); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	for name, agg := range pendingDurations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO metrics_durations(name,count,sum,min,max) VALUES(?,?,?,?,?)
			 ON CONFLICT(name) DO UPDATE SET
				count = metrics_durations.count + excluded.count,
				sum = metrics_durations.sum + excluded.sum,
				min = MIN(metrics_durations.min, excluded.min),
				max = MAX(metrics_durations.max, excluded.max)`,
			name, agg.count, agg.sum, agg.min, agg.max); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
