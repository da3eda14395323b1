package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	wrap := func(code string) error {
		return fmt.Errorf("query: %w", &pgconn.PgError{Code: code})
	}

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		assert.True(t, pg.IsNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
		assert.False(t, pg.IsNotFoundError(errors.New("other")))
		assert.False(t, pg.IsNotFoundError(nil))
	})

	t.Run("tx closed", func(t *testing.T) {
		t.Parallel()
		assert.True(t, pg.IsTxClosedError(pgx.ErrTxClosed))
		assert.False(t, pg.IsTxClosedError(nil))
	})

	t.Run("constraint violations", func(t *testing.T) {
		t.Parallel()
		assert.True(t, pg.IsDuplicateKeyError(wrap("23505")))
		assert.False(t, pg.IsDuplicateKeyError(wrap("23503")))
		assert.True(t, pg.IsForeignKeyViolationError(wrap("23503")))
		assert.False(t, pg.IsForeignKeyViolationError(nil))
	})

	t.Run("serialization", func(t *testing.T) {
		t.Parallel()
		assert.True(t, pg.IsSerializationError(wrap("40001")))
		assert.True(t, pg.IsSerializationError(wrap("40P01")))
		assert.False(t, pg.IsSerializationError(wrap("23505")))
	})
}
