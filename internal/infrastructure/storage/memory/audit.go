package memory

import (
	"context"
	"fmt"
	"slices"

	appctx "bakehouse/internal/core/context"
	"bakehouse/internal/core/id"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/infrastructure/audit"
)

// AuditLog keeps encoded audit entries in the store. Entries written inside a
// rolled back transaction are discarded with it.
type AuditLog struct {
	store *Store
	codec *audit.Codec
}

// NewAuditLog creates an audit log over the store.
func NewAuditLog(store *Store, codec *audit.Codec) *AuditLog {
	return &AuditLog{store: store, codec: codec}
}

// Record encodes and appends a record.
func (l *AuditLog) Record(ctx context.Context, rec ingredient.AuditRecord) error {
	entry, err := l.codec.Encode(rec, appctx.GetRequestID(ctx))
	if err != nil {
		return err
	}
	return l.store.write(ctx, func() error {
		l.store.audit = append(l.store.audit, entry)
		return nil
	})
}

// History returns the newest entries of one ingredient first.
func (l *AuditLog) History(ctx context.Context, ingredientID id.ID, limit int) ([]audit.Entry, error) {
	var entries []audit.Entry
	l.store.read(ctx, func() {
		for _, e := range slices.Backward(l.store.audit) {
			if e.IngredientID != ingredientID {
				continue
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) == limit {
				break
			}
		}
	})

	for i, e := range entries {
		decoded, err := l.codec.Decode(e)
		if err != nil {
			return nil, fmt.Errorf("decode audit entry %s: %w", e.ID, err)
		}
		entries[i] = decoded
	}
	return entries, nil
}
