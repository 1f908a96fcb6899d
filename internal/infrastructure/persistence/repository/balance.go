package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
)

const maxBalanceAttempts = 3

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// adjustBalance adds delta to the balance column of table/id. Balances are
// stored as decimal text, so the write is a compare-and-swap on the text read.
// When delta is negative and the balance cannot cover it, it reports false.
func adjustBalance(ctx context.Context, exec sqlite.Executor, table, resource string, id int64, delta decimal.Decimal) (bool, error) {
	selectQuery := fmt.Sprintf("SELECT balance FROM %s WHERE id = ?", table)
	updateQuery := fmt.Sprintf("UPDATE %s SET balance = ?, updated_at = ? WHERE id = ? AND balance = ?", table)

	for attempt := 0; attempt < maxBalanceAttempts; attempt++ {
		var raw string
		err := exec.QueryRowContext(ctx, selectQuery, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return false, apperr.NewNotFound(resource, id)
		}
		if err != nil {
			return false, fmt.Errorf("failed to read balance: %w", err)
		}

		current, err := decimal.NewFromString(raw)
		if err != nil {
			return false, apperr.NewIntegrity(resource, id, fmt.Sprintf("unparseable balance %q", raw))
		}

		next := current.Add(delta)
		if next.IsNegative() {
			return false, nil
		}

		result, err := exec.ExecContext(ctx, updateQuery, next.String(), time.Now().UTC(), id, raw)
		if err != nil {
			return false, fmt.Errorf("failed to update balance: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 1 {
			return true, nil
		}
	}

	return false, fmt.Errorf("balance of %s %d changed concurrently", resource, id)
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func int64PtrArg(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
