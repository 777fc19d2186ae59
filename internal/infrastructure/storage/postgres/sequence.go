package postgres

import (
	"context"
	"fmt"
	"time"
)

// NextDocumentNumber bumps the (prefix, period) counter and formats a
// PREFIX-YYYYMM-NNNN document number. The per-month counter lives in
// document_sequences and is bumped atomically, so numbers are gapless
// within a committed sequence of allocations.
func NextDocumentNumber(ctx context.Context, txm *TxManager, prefix string) (string, error) {
	period := time.Now().UTC().Format("200601")
	sql := `
		INSERT INTO document_sequences (prefix, period, counter)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, period)
		DO UPDATE SET counter = document_sequences.counter + 1
		RETURNING counter
	`
	var counter int
	querier := txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, prefix, period).Scan(&counter); err != nil {
		return "", TranslateError(err, "document sequence", prefix)
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, period, counter), nil
}
