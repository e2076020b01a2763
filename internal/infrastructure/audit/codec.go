// Package audit encodes ledger audit records. Large change sets are stored zstd-compressed.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"bakehouse/internal/core/id"
	"bakehouse/internal/domain/ingredient"
)

// DefaultCompressThreshold is the payload size above which changes are compressed.
const DefaultCompressThreshold = 10 * 1024

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// Entry is a stored audit record.
type Entry struct {
	ID                id.ID           `db:"id" json:"id"`
	IngredientID      id.ID           `db:"ingredient_id" json:"ingredientId"`
	Operation         string          `db:"operation" json:"operation"`
	EntryID           id.ID           `db:"entry_id" json:"entryId"`
	BalanceBefore     string          `db:"balance_before" json:"balanceBefore"`
	BalanceAfter      string          `db:"balance_after" json:"balanceAfter"`
	Changes           json.RawMessage `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"-"`
	RequestID         string          `db:"request_id" json:"requestId,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// Codec turns domain audit records into stored entries and back.
type Codec struct {
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewCodec creates a codec. A non-positive threshold selects DefaultCompressThreshold.
func NewCodec(compressThreshold int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if compressThreshold <= 0 {
		compressThreshold = DefaultCompressThreshold
	}
	return &Codec{
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: compressThreshold,
	}, nil
}

// Encode builds a stored entry from a domain record.
func (c *Codec) Encode(rec ingredient.AuditRecord, requestID string) (Entry, error) {
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal changes: %w", err)
	}

	entry := Entry{
		ID:              id.New(),
		IngredientID:    rec.IngredientID,
		Operation:       rec.Operation,
		EntryID:         rec.EntryID,
		BalanceBefore:   rec.Before.String(),
		BalanceAfter:    rec.After.String(),
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		RequestID:       requestID,
		CreatedAt:       rec.RecordedAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	// Compress large changes
	if len(changes) > c.compressThreshold {
		entry.ChangesCompressed = c.encoder.EncodeAll(changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry, nil
}

// Decode restores the plain JSON changes of a stored entry.
func (c *Codec) Decode(e Entry) (Entry, error) {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return e, nil
	}
	decompressed, err := c.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = decompressed
	e.ChangesCompressed = nil
	e.CompressionAlgo = CompressionNone
	return e, nil
}
