package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aimbrill/supportchat/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers; foreign keys enforced so a message
	// referencing a missing session fails loudly instead of dropping.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		handed_off INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		last_active_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active_at);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_key TEXT NOT NULL REFERENCES sessions(session_key),
		sender TEXT NOT NULL,
		body TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_key, timestamp);

	CREATE TABLE IF NOT EXISTS assistant_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		enabled INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		system_prompt TEXT NOT NULL,
		temperature REAL NOT NULL,
		max_tokens INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isConflictErr reports whether err is a SQLite concurrency error
// (SQLITE_BUSY or "database is locked") that warrants a retry.
func isConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY") ||
		strings.Contains(err.Error(), "database is locked")
}

// CreateOrTouchSession creates the session if absent, else touches its
// last-active timestamp. The upsert never overwrites identity, origin
// metadata, or the handed-off flag of an existing row, so a concurrent
// duplicate join degrades to a touch rather than an error.
func (s *SQLiteStore) CreateOrTouchSession(ctx context.Context, sessionKey string, origin *domain.OriginMetadata) (*domain.Session, error) {
	var ip, ua string
	if origin != nil {
		ip = origin.IPAddress
		ua = origin.UserAgent
	}

	now := time.Now().Unix()
	query := `
	INSERT INTO sessions (session_key, ip_address, user_agent, created_at, last_active_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_key) DO UPDATE SET
		last_active_at = excluded.last_active_at`

	const maxAttempts = 3
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err = s.db.ExecContext(ctx, query, sessionKey, ip, ua, now, now)
		if err == nil {
			break
		}
		if !isConflictErr(err) {
			return nil, fmt.Errorf("upsert session: %w", err)
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert session after %d attempts: %w", maxAttempts, err)
	}

	sess, err := s.GetSession(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %q missing after upsert", sessionKey)
	}
	return sess, nil
}

// GetSession retrieves a session by key. Returns nil, nil when absent.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionKey string) (*domain.Session, error) {
	query := `
		SELECT session_key, ip_address, user_agent, handed_off, created_at, last_active_at
		FROM sessions WHERE session_key = ?`

	row := s.db.QueryRowContext(ctx, query, sessionKey)

	var sess domain.Session
	var handedOff int
	var createdAt, lastActiveAt int64

	err := row.Scan(&sess.SessionKey, &sess.IPAddress, &sess.UserAgent, &handedOff, &createdAt, &lastActiveAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.HandedOff = handedOff != 0
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.LastActiveAt = time.Unix(lastActiveAt, 0)

	return &sess, nil
}

// SetHandedOff marks a session as handed off. Idempotent.
func (s *SQLiteStore) SetHandedOff(ctx context.Context, sessionKey string) error {
	query := `UPDATE sessions SET handed_off = 1 WHERE session_key = ?`
	result, err := s.db.ExecContext(ctx, query, sessionKey)
	if err != nil {
		return fmt.Errorf("set handed_off: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %q not found", sessionKey)
	}
	return nil
}

// AppendMessage appends a message to the conversation log. The foreign key
// on session_key surfaces a referential-integrity failure when the session
// does not exist.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	query := `
	INSERT INTO messages (id, session_key, sender, body, timestamp, is_read)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.SessionKey, string(msg.Sender), msg.Body,
		msg.Timestamp.UnixMilli(), boolToInt(msg.IsRead),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns a session's messages in timestamp order, insertion
// order (rowid) breaking ties.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionKey string) ([]*domain.Message, error) {
	query := `
		SELECT id, session_key, sender, body, timestamp, is_read
		FROM messages WHERE session_key = ?
		ORDER BY timestamp ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListRecentMessages returns the most recent limit messages, oldest-first.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, sessionKey string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, session_key, sender, body, timestamp, is_read
		FROM messages WHERE session_key = ?
		ORDER BY timestamp DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sessionKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Fetched newest-first; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	var msgs []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var sender string
	var ts int64
	var isRead int

	if err := row.Scan(&msg.ID, &msg.SessionKey, &sender, &msg.Body, &ts, &isRead); err != nil {
		return nil, fmt.Errorf("scan message row: %w", err)
	}

	msg.Sender = domain.SenderType(sender)
	msg.Timestamp = time.UnixMilli(ts)
	msg.IsRead = isRead != 0
	return &msg, nil
}

// MarkMessageRead flags a message as read and returns the updated row.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id string) (*domain.Message, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("mark message read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_key, sender, body, timestamp, is_read
		FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

// ListSessionSummaries returns all sessions newest-active first, each with
// its most recent message for the operator dashboard.
func (s *SQLiteStore) ListSessionSummaries(ctx context.Context) ([]*domain.SessionSummary, error) {
	query := `
		SELECT s.session_key, s.ip_address, s.user_agent, s.handed_off,
		       s.created_at, s.last_active_at,
		       m.id, m.sender, m.body, m.timestamp, m.is_read
		FROM sessions s
		LEFT JOIN messages m ON m.rowid = (
			SELECT m2.rowid FROM messages m2
			WHERE m2.session_key = s.session_key
			ORDER BY m2.timestamp DESC, m2.rowid DESC LIMIT 1
		)
		ORDER BY s.last_active_at DESC, s.session_key ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query session summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.SessionSummary
	for rows.Next() {
		var sum domain.SessionSummary
		var handedOff int
		var createdAt, lastActiveAt int64
		var msgID, sender, body sql.NullString
		var ts sql.NullInt64
		var isRead sql.NullInt64

		if err := rows.Scan(
			&sum.SessionKey, &sum.IPAddress, &sum.UserAgent, &handedOff,
			&createdAt, &lastActiveAt,
			&msgID, &sender, &body, &ts, &isRead,
		); err != nil {
			return nil, fmt.Errorf("scan session summary row: %w", err)
		}

		sum.HandedOff = handedOff != 0
		sum.CreatedAt = time.Unix(createdAt, 0)
		sum.LastActiveAt = time.Unix(lastActiveAt, 0)

		if msgID.Valid {
			sum.LastMessage = &domain.Message{
				ID:         msgID.String,
				SessionKey: sum.SessionKey,
				Sender:     domain.SenderType(sender.String),
				Body:       body.String,
				Timestamp:  time.UnixMilli(ts.Int64),
				IsRead:     isRead.Int64 != 0,
			}
		}
		summaries = append(summaries, &sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session summaries: %w", err)
	}
	return summaries, nil
}

// AssistantConfig returns the singleton assistant configuration, creating
// the default row on first read. Callers re-read before every invocation so
// config changes apply to the next message without a restart.
func (s *SQLiteStore) AssistantConfig(ctx context.Context) (*domain.AssistantConfig, error) {
	cfg, err := s.readAssistantConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}

	def := domain.DefaultAssistantConfig()
	insert := `
	INSERT INTO assistant_config (id, enabled, provider, model, system_prompt, temperature, max_tokens, updated_at)
	VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`
	_, err = s.db.ExecContext(ctx, insert,
		boolToInt(def.Enabled), def.Provider, def.Model, def.SystemPrompt,
		def.Temperature, def.MaxTokens, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert default assistant config: %w", err)
	}

	cfg, err = s.readAssistantConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("assistant config missing after insert")
	}
	return cfg, nil
}

func (s *SQLiteStore) readAssistantConfig(ctx context.Context) (*domain.AssistantConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT enabled, provider, model, system_prompt, temperature, max_tokens, updated_at
		FROM assistant_config WHERE id = 1`)

	var cfg domain.AssistantConfig
	var enabled int
	var updatedAt int64

	err := row.Scan(&enabled, &cfg.Provider, &cfg.Model, &cfg.SystemPrompt, &cfg.Temperature, &cfg.MaxTokens, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan assistant config: %w", err)
	}

	cfg.Enabled = enabled != 0
	cfg.UpdatedAt = time.Unix(updatedAt, 0)
	return &cfg, nil
}

// UpdateAssistantConfig applies a partial update and returns the result.
func (s *SQLiteStore) UpdateAssistantConfig(ctx context.Context, upd domain.AssistantConfigUpdate) (*domain.AssistantConfig, error) {
	cfg, err := s.AssistantConfig(ctx)
	if err != nil {
		return nil, err
	}

	if upd.Enabled != nil {
		cfg.Enabled = *upd.Enabled
	}
	if upd.Provider != nil {
		cfg.Provider = *upd.Provider
	}
	if upd.Model != nil {
		cfg.Model = *upd.Model
	}
	if upd.SystemPrompt != nil {
		cfg.SystemPrompt = *upd.SystemPrompt
	}
	if upd.Temperature != nil {
		cfg.Temperature = *upd.Temperature
	}
	if upd.MaxTokens != nil {
		cfg.MaxTokens = *upd.MaxTokens
	}

	query := `
	UPDATE assistant_config SET
		enabled = ?, provider = ?, model = ?, system_prompt = ?,
		temperature = ?, max_tokens = ?, updated_at = ?
	WHERE id = 1`

	now := time.Now()
	_, err = s.db.ExecContext(ctx, query,
		boolToInt(cfg.Enabled), cfg.Provider, cfg.Model, cfg.SystemPrompt,
		cfg.Temperature, cfg.MaxTokens, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("update assistant config: %w", err)
	}

	cfg.UpdatedAt = time.Unix(now.Unix(), 0)
	return cfg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
