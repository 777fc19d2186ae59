// Package tx defines the transaction management contract used by services.
package tx

import "context"

// Manager runs functions inside database transactions. Implementations
// carry the active transaction in the context so repositories can pick
// it up transparently; nested calls reuse the outer transaction.
type Manager interface {
	// RunInTransaction executes fn in a transaction. Commits on nil
	// error, rolls back otherwise. If the context already carries a
	// transaction, fn runs inside it and commit is left to the owner.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunWithSavepoint executes fn inside a savepoint of the current
	// transaction. Requires an active transaction in the context.
	RunWithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error

	// InTransaction reports whether the context already carries an
	// active transaction.
	InTransaction(ctx context.Context) bool
}
