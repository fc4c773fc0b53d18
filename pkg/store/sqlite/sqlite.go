package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mpatwa/resolute/pkg/domain"
	"github.com/mpatwa/resolute/pkg/store"
)

// Store implements store.ThreadStore using SQLite.
type Store struct {
	db          *sql.DB
	subscribers []chan string
	mu          sync.RWMutex
}

// Verify interface compliance at compile time.
var _ store.ThreadStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		summary TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'text',
		content TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		seq INTEGER NOT NULL,
		FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread_seq ON messages(thread_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- Threads ---

func (s *Store) CreateThread(ctx context.Context, th *domain.Thread) error {
	now := time.Now().UTC()
	th.CreatedAt = now
	th.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, summary, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		th.ID, th.Summary, th.CreatedAt, th.UpdatedAt,
	)
	return err
}

func (s *Store) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	th := &domain.Thread{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, summary, created_at, updated_at FROM threads WHERE id = ?`, id,
	).Scan(&th.ID, &th.Summary, &th.CreatedAt, &th.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("thread %s: %w", id, store.ErrNotFound)
	}
	return th, err
}

func (s *Store) ListThreads(ctx context.Context) ([]domain.Thread, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, summary, created_at, updated_at FROM threads ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		var th domain.Thread
		if err := rows.Scan(&th.ID, &th.Summary, &th.CreatedAt, &th.UpdatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, th)
	}
	return threads, rows.Err()
}

func (s *Store) DeleteThread(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("thread %s: %w", id, store.ErrNotFound)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM messages WHERE thread_id=?`, id)
	return err
}

// --- Messages ---

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	// Get next sequence number.
	var maxSeq int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE thread_id=?`,
		msg.ThreadID,
	).Scan(&maxSeq)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, role, content_type, content, timestamp, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, msg.Role, msg.ContentType, msg.Content, msg.Timestamp, maxSeq+1,
	)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE threads SET updated_at=? WHERE id=?`, time.Now().UTC(), msg.ThreadID)
	if err != nil {
		return err
	}

	// Notify subscribers.
	s.notifySubscribers(msg.ThreadID)
	return nil
}

func (s *Store) GetMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, role, content_type, content, timestamp
		 FROM messages WHERE thread_id=? ORDER BY seq ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.ContentType, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) SetSummary(ctx context.Context, threadID, summary string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE threads SET summary=?, updated_at=? WHERE id=?`,
		summary, time.Now().UTC(), threadID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("thread %s: %w", threadID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) TruncateMessages(ctx context.Context, threadID string, keep int) error {
	if keep <= 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE thread_id=?`, threadID)
		return err
	}

	// Find the seq cutoff: everything below the keep'th newest message goes.
	var cutoff sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(seq) FROM (
			SELECT seq FROM messages WHERE thread_id=? ORDER BY seq DESC LIMIT ?
		)`, threadID, keep,
	).Scan(&cutoff)
	if err != nil {
		return err
	}
	if !cutoff.Valid {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE thread_id=? AND seq < ?`, threadID, cutoff.Int64)
	return err
}

// --- Subscriptions ---

func (s *Store) Subscribe() <-chan string {
	ch := make(chan string, 64)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) Unsubscribe(ch <-chan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

func (s *Store) notifySubscribers(threadID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- threadID:
		default:
			// Drop if subscriber is not consuming fast enough.
		}
	}
}
