package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDB captures statements and answers every row lookup with no rows.
type recordingDB struct {
	statements []string
}

func (d *recordingDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.statements = append(d.statements, sql)
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func (d *recordingDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	d.statements = append(d.statements, sql)
	return nil, pgx.ErrNoRows
}

func (d *recordingDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	d.statements = append(d.statements, sql)
	return emptyRow{}
}

type emptyRow struct{}

func (emptyRow) Scan(...any) error { return pgx.ErrNoRows }

const validID = "5b3f0a52-8f0e-4c44-9a57-2f0a4c1b9d11"

func TestMalformedIDsNeverReachTheDatabase(t *testing.T) {
	ctx := context.Background()
	db := &recordingDB{}
	tickets := NewTicketRepository(db)
	types := NewRequestTypeRepository(db)

	for _, id := range []string{"", "ticket-1", "1 OR 1=1", "5b3f0a52-8f0e-4c44-9a57"} {
		_, err := tickets.GetByID(ctx, id)
		assert.ErrorIs(t, err, pgx.ErrNoRows, "id %q", id)
		_, err = tickets.GetForUpdate(ctx, id)
		assert.ErrorIs(t, err, pgx.ErrNoRows, "id %q", id)
		_, err = types.GetByID(ctx, id)
		assert.ErrorIs(t, err, pgx.ErrNoRows, "id %q", id)
		assert.ErrorIs(t, types.Delete(ctx, id), pgx.ErrNoRows, "id %q", id)

		n, err := types.CountActiveChildren(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Empty(t, db.statements)
}

func TestLookupsCompareTheUUIDColumn(t *testing.T) {
	ctx := context.Background()
	db := &recordingDB{}

	_, err := NewTicketRepository(db).GetByID(ctx, validID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = NewTicketRepository(db).GetForUpdate(ctx, validID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = NewRequestTypeRepository(db).GetByID(ctx, validID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	require.Len(t, db.statements, 3)
	assert.Contains(t, db.statements[0], "WHERE t.id=$1::uuid")
	assert.Contains(t, db.statements[1], "FOR UPDATE OF t")
	assert.Contains(t, db.statements[2], "WHERE id=$1::uuid")
	for _, sql := range db.statements {
		assert.NotContains(t, sql, "id::text=$")
	}
}
