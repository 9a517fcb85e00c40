// internal/journal/store.go
//
// Prompt journal.
//
// Context
// -------
// Operators want a durable record of every popup the runtime raised (the
// classic HMI alarm log).  The journal hooks the native side of the popup
// bridge (OnAccepted), so every accepted request is recorded whether or
// not a view is bound.  The hook only queues; Run writes the queue to MySQL
// through sqlx with at most `writers` inserts in flight, so neither the
// requesting goroutine nor the connection pool is swamped by a burst.
//
// Workflow
// --------
//
//	db, err := journal.Open(ctx, cfg.Journal.DSN, password)
//	st := journal.New(db, log)
//	_ = st.Migrate(ctx)
//	bridge.OnAccepted(st.Observer())
//	go st.Run(ctx)
//
// Notes
// -----
//   - The password is injected into the DSN at Open time so it never lives
//     in YAML (see internal/vault).
//   - A full queue drops the row and logs a warning; the request itself
//     is never failed or delayed by the journal.
//   - Oxford commas, two spaces after periods.
package journal

import (
	"context"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/hmi/extensions/hmi"
)

// WriteTimeout bounds a single journal insert.
const WriteTimeout = 5 * time.Second

const (
	queueSize = 128
	writers   = 2
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS prompt_journal (
	id               BIGINT AUTO_INCREMENT PRIMARY KEY,
	prompt_id        BIGINT UNSIGNED NOT NULL,
	kind             VARCHAR(16) NOT NULL,
	text             VARCHAR(1024) NOT NULL,
	informative_text TEXT,
	buttons          VARCHAR(255) NOT NULL,
	requested_at     DATETIME(3) NOT NULL
)`

const insertSQL = `INSERT INTO prompt_journal (prompt_id, kind, text, informative_text, buttons, requested_at) VALUES (?, ?, ?, ?, ?, ?)`

const recentSQL = `SELECT id, prompt_id, kind, text, informative_text, buttons, requested_at FROM prompt_journal ORDER BY id DESC LIMIT ?`

// Entry is one journal row.
type Entry struct {
	ID              int64     `db:"id"               json:"id"`
	PromptID        uint64    `db:"prompt_id"        json:"promptId"`
	Kind            string    `db:"kind"             json:"kind"`
	Text            string    `db:"text"             json:"text"`
	InformativeText string    `db:"informative_text" json:"informativeText,omitempty"`
	Buttons         string    `db:"buttons"          json:"buttons"`
	RequestedAt     time.Time `db:"requested_at"     json:"requestedAt"`
}

// Open connects with conservative pool sizes and pings before returning.
// A non-empty password replaces the one in dsn.
func Open(ctx context.Context, dsn, password string) (*sqlx.DB, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if password != "" {
		mc.Passwd = password
	}
	mc.ParseTime = true

	db, err := sqlx.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store reads and writes journal rows.
type Store struct {
	db    *sqlx.DB
	log   *zap.SugaredLogger
	now   func() time.Time
	queue chan queued
}

type queued struct {
	p  *hmi.Prompt
	at time.Time
}

// New wraps db.  A nil log means zap.S().
func New(db *sqlx.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.S()
	}
	return &Store{db: db, log: log, now: time.Now, queue: make(chan queued, queueSize)}
}

// Migrate creates the journal table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// Record inserts p, stamped with the current time.
func (s *Store) Record(ctx context.Context, p *hmi.Prompt) error {
	return s.insert(ctx, p, s.now())
}

func (s *Store) insert(ctx context.Context, p *hmi.Prompt, at time.Time) error {
	buttons := make([]string, len(p.Buttons))
	for i, b := range p.Buttons {
		buttons[i] = string(b)
	}
	_, err := s.db.ExecContext(ctx, insertSQL,
		p.ID, string(p.Kind), p.Text, p.InformativeText,
		strings.Join(buttons, ","), at.UTC(),
	)
	return err
}

// Recent returns the newest n rows, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	var out []Entry
	if err := s.db.SelectContext(ctx, &out, recentSQL, n); err != nil {
		return nil, err
	}
	return out, nil
}

// Observer returns a hook for PopupBridge.OnAccepted.  It stamps and
// queues p without blocking.
func (s *Store) Observer() hmi.Observer {
	return func(p *hmi.Prompt) {
		select {
		case s.queue <- queued{p: p, at: s.now()}:
		default:
			s.log.Warnw("journal queue full; prompt not recorded", "prompt", p.ID)
		}
	}
}

// Run writes queued prompts until ctx is done, then flushes what is
// already queued and waits for the writes in flight.  Write failures are
// logged, not returned.
func (s *Store) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(writers)
	for {
		select {
		case q := <-s.queue:
			g.Go(func() error { s.write(q); return nil })
		case <-ctx.Done():
			for {
				select {
				case q := <-s.queue:
					g.Go(func() error { s.write(q); return nil })
				default:
					return g.Wait()
				}
			}
		}
	}
}

func (s *Store) write(q queued) {
	ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
	defer cancel()
	if err := s.insert(ctx, q.p, q.at); err != nil {
		s.log.Errorw("journal write failed", "prompt", q.p.ID, "err", err)
	}
}

// Close closes the underlying pool.
func (s *Store) Close() error { return s.db.Close() }
