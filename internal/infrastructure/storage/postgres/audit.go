package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	appctx "bakehouse/internal/core/context"
	"bakehouse/internal/core/id"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/infrastructure/audit"
)

// Compile-time check that AuditLog implements ingredient.AuditLog.
var _ ingredient.AuditLog = (*AuditLog)(nil)

var auditColumns = Columns[audit.Entry]()

// AuditLog stores ledger audit entries in ledger_audit.
// Records written inside a transaction roll back with it.
type AuditLog struct {
	txManager *TxManager
	codec     *audit.Codec
	builder   squirrel.StatementBuilderType
}

// NewAuditLog creates a new audit log.
func NewAuditLog(txManager *TxManager, codec *audit.Codec) *AuditLog {
	return &AuditLog{
		txManager: txManager,
		codec:     codec,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Record encodes and inserts a record.
func (l *AuditLog) Record(ctx context.Context, rec ingredient.AuditRecord) error {
	entry, err := l.codec.Encode(rec, appctx.GetRequestID(ctx))
	if err != nil {
		return err
	}

	sql, args, err := l.builder.
		Insert(TableLedgerAudit).
		SetMap(ColumnMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := l.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries of one ingredient first.
func (l *AuditLog) History(ctx context.Context, ingredientID id.ID, limit int) ([]audit.Entry, error) {
	q := l.builder.
		Select(auditColumns...).
		From(TableLedgerAudit).
		Where(squirrel.Eq{"ingredient_id": ingredientID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []audit.Entry
	if err := pgxscan.Select(ctx, l.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	for i, e := range entries {
		decoded, err := l.codec.Decode(e)
		if err != nil {
			return nil, fmt.Errorf("decode audit entry %s: %w", e.ID, err)
		}
		entries[i] = decoded
	}
	return entries, nil
}
