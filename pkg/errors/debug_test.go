package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpCollectsChainAndPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_stock_units_variation_size", TableName: "stock_units", Message: "duplicate key value"}
	err := Wrap(CodeConflict, fmt.Errorf("insert stock unit: %w", pgErr), "create stock unit")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", d.Code)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if d.PGCode != "23505" || d.PGConstraint != "ux_stock_units_variation_size" {
		t.Fatalf("unexpected pg details %+v", d)
	}

	fields := d.Fields()
	if fields["pg_table"] != "stock_units" {
		t.Fatalf("expected pg_table field, got %v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty pg values should be skipped")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
