package storages

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"),
		`CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)`,
	)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := WithTx(ctx, db, func(tx Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "foo", "bar")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	errFoo := errors.New("foo")
	if err := WithTx(ctx, db, func(tx Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "baz", "qux"); err != nil {
			return err
		}
		return errFoo
	}); !errors.Is(err, errFoo) {
		t.Fatalf("got %v", err)
	}

	var n int
	if err := WithTx(ctx, db, func(tx Tx) error {
		row, err := tx.QueryRow(ctx, `SELECT count(*) FROM kv`)
		if err != nil {
			return err
		}
		return row.Scan(&n)
	}); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("got %d", n)
	}
}
