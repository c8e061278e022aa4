package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// RawPayload is a stored upstream response, kept so a feature-group schema
// change can be replayed through the normalizer after the fact.
type RawPayload struct {
	ID                int64
	FetchedAt         time.Time
	Source            string
	Endpoint          string
	LocationCode      sql.NullString
	PayloadCompressed []byte
	PayloadHash       string
	SchemaVersion     int
}

// StoreRawPayload stores a compressed copy of an upstream response.
// Returns the payload ID, or 0 if the payload was a duplicate (same hash).
func (s *Store) StoreRawPayload(source, endpoint, locationCode string, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)
	hashHex := hex.EncodeToString(hash[:])

	var locationNull sql.NullString
	if locationCode != "" {
		locationNull = sql.NullString{String: locationCode, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO raw_payloads (fetched_at, source, endpoint, location_code, payload_compressed, payload_hash, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(payload_hash) DO NOTHING
	`, time.Now().UTC(), source, endpoint, locationNull, buf.Bytes(), hashHex)
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// GetRawPayload retrieves and decompresses a stored payload by ID.
func (s *Store) GetRawPayload(id int64) (*RawPayload, []byte, error) {
	row := s.db.QueryRow(`
		SELECT id, fetched_at, source, endpoint, location_code, payload_compressed, payload_hash, schema_version
		FROM raw_payloads
		WHERE id = ?
	`, id)

	var p RawPayload
	err := row.Scan(&p.ID, &p.FetchedAt, &p.Source, &p.Endpoint, &p.LocationCode,
		&p.PayloadCompressed, &p.PayloadHash, &p.SchemaVersion)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(p.PayloadCompressed))
	if err != nil {
		return nil, nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	payload, err := io.ReadAll(gz)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress payload: %w", err)
	}
	return &p, payload, nil
}
