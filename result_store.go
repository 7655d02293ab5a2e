package visionworker

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS ocr_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL,
	source TEXT,
	result TEXT NOT NULL,
	min_confidence REAL NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	accessed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(fingerprint, min_confidence)
);
CREATE INDEX IF NOT EXISTS idx_fingerprint ON ocr_cache(fingerprint);
`

// ResultStore is the persistent recognition cache. Entries are keyed by
// (fingerprint, min_confidence): the same image decoded with two thresholds
// yields two independent entries. The store owns its rows exclusively, callers
// only ever receive the stored text.
type ResultStore struct {
	db     *sql.DB
	dbPath string
}

// NewResultStore opens the cache database, creating the file and its schema if
// needed. An error here is fatal for the process owner; once the store is up,
// per-operation failures degrade to cache misses instead.
func NewResultStore(dbPath string) (*ResultStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating cache directory")
		}
	}

	// The pragmas ride on the DSN so that every connection in the
	// database/sql pool gets them, not just the one that would run a
	// PRAGMA statement. WAL lets page workers read while another writes;
	// busy_timeout makes same-key writers queue up instead of failing
	// with SQLITE_BUSY.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening cache database")
	}

	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initializing cache schema")
	}

	log.Info().Str("component", "OCR_CACHE").Str("dbPath", dbPath).
		Msg("result cache initialized")
	return &ResultStore{db: db, dbPath: dbPath}, nil
}

// Get returns the cached text for (source, minConfidence) and bumps the access
// timestamp. Absence and storage errors both come back as a miss, recognition
// must never be blocked by the cache.
func (s *ResultStore) Get(source string, minConfidence float64) (string, bool) {
	fingerprint, ok := Fingerprint(source)
	if !ok {
		return "", false
	}

	var result string
	err := s.db.QueryRow(
		`SELECT result FROM ocr_cache WHERE fingerprint = ? AND min_confidence = ?`,
		fingerprint, minConfidence,
	).Scan(&result)
	if err == sql.ErrNoRows {
		cacheMisses.Inc()
		log.Debug().Str("component", "OCR_CACHE").Str("source", source).Msg("cache miss")
		return "", false
	}
	if err != nil {
		cacheMisses.Inc()
		log.Error().Err(err).Str("component", "OCR_CACHE").Str("source", source).
			Msg("error reading from cache, treating as miss")
		return "", false
	}

	if _, err := s.db.Exec(
		`UPDATE ocr_cache SET accessed_at = CURRENT_TIMESTAMP WHERE fingerprint = ? AND min_confidence = ?`,
		fingerprint, minConfidence,
	); err != nil {
		log.Warn().Err(err).Str("component", "OCR_CACHE").Str("source", source).
			Msg("could not update access time")
	}

	cacheHits.Inc()
	log.Info().Str("component", "OCR_CACHE").Str("source", source).Msg("cache hit")
	return result, true
}

// Put stores the text for (source, minConfidence), replacing any previous
// entry with fresh timestamps. A source without a fingerprint is a logged
// no-op.
func (s *ResultStore) Put(source, result string, minConfidence float64) {
	fingerprint, ok := Fingerprint(source)
	if !ok {
		log.Warn().Str("component", "OCR_CACHE").Str("source", source).
			Msg("cannot cache result, no fingerprint for source")
		return
	}

	// INSERT OR REPLACE writes a whole new row, so the timestamp defaults
	// apply again on overwrite.
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO ocr_cache (fingerprint, source, result, min_confidence) VALUES (?, ?, ?, ?)`,
		fingerprint, source, result, minConfidence,
	); err != nil {
		log.Error().Err(err).Str("component", "OCR_CACHE").Str("source", source).
			Msg("error storing in cache")
		return
	}
	log.Info().Str("component", "OCR_CACHE").Str("source", source).Msg("cached recognition result")
}

// Stats reports the entry count and the database size in megabytes.
func (s *ResultStore) Stats() (int, float64) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ocr_cache`).Scan(&count); err != nil {
		log.Error().Err(err).Str("component", "OCR_CACHE").Msg("error counting cache entries")
		return 0, 0
	}
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return count, 0
	}
	return count, float64(info.Size()) / (1024 * 1024)
}

// Clear removes all entries unconditionally.
func (s *ResultStore) Clear() {
	if _, err := s.db.Exec(`DELETE FROM ocr_cache`); err != nil {
		log.Error().Err(err).Str("component", "OCR_CACHE").Msg("error clearing cache")
		return
	}
	log.Info().Str("component", "OCR_CACHE").Msg("cache cleared")
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}
