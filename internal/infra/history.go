package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the sqlite3 (SQLCipher) database/sql driver.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

const (
	historyDBName = "history.db"

	// historyKeep bounds the table; older launches are pruned on insert.
	historyKeep = 1000
)

// EncryptedHistory implements domain.LaunchHistory using a SQLCipher
// encrypted SQLite database. Launched command lines may carry arguments the
// user would rather not leave in plaintext.
type EncryptedHistory struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedHistory opens (or creates) the history database in dataDir.
// The key is used as the raw SQLCipher key via PRAGMA key.
func NewEncryptedHistory(dataDir string, key []byte) (*EncryptedHistory, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, historyDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only shows up on the first real query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	h := &EncryptedHistory{db: db, dbPath: dbPath}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// OpenHistory opens the history in dataDir, generating its key on first use.
func OpenHistory(dataDir string) (*EncryptedHistory, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load history key: %w", err)
	}
	return NewEncryptedHistory(dataDir, key)
}

func (h *EncryptedHistory) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS launches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		command TEXT NOT NULL,
		pid INTEGER NOT NULL,
		launched_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_launches_launched_at ON launches (launched_at);
	`
	_, err := h.db.Exec(schema)
	return err
}

// Record appends a launch and prunes everything but the newest historyKeep rows.
func (h *EncryptedHistory) Record(rec domain.LaunchRecord) error {
	tx, err := h.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO launches (session_id, command, pid, launched_at) VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.Command, rec.PID, rec.LaunchedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record launch: %w", err)
	}

	_, err = tx.Exec(`DELETE FROM launches WHERE id NOT IN (
		SELECT id FROM launches ORDER BY launched_at DESC, id DESC LIMIT ?)`, historyKeep)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	return tx.Commit()
}

// Recent returns up to limit launches, newest first.
func (h *EncryptedHistory) Recent(limit int) ([]domain.LaunchRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := h.db.Query(`SELECT session_id, command, pid, launched_at FROM launches
		ORDER BY launched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LaunchRecord
	for rows.Next() {
		var rec domain.LaunchRecord
		var launchedAt int64
		if err := rows.Scan(&rec.SessionID, &rec.Command, &rec.PID, &launchedAt); err != nil {
			return nil, err
		}
		rec.LaunchedAt = time.Unix(0, launchedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Path returns the database file path.
func (h *EncryptedHistory) Path() string {
	return h.dbPath
}

// Close releases the database connection.
func (h *EncryptedHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Ensure EncryptedHistory implements domain.LaunchHistory.
var _ domain.LaunchHistory = (*EncryptedHistory)(nil)
