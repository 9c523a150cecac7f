package gormsqlite

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBuildDSNIncludesPerConnectionPragmas(t *testing.T) {
	reader := buildDSN("./db.sqlite", true)
	writer := buildDSN("./db.sqlite", false)

	checks := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_pragma=trusted_schema(OFF)",
	}
	for _, c := range checks {
		if !strings.Contains(reader, c) {
			t.Fatalf("reader dsn missing %q: %s", c, reader)
		}
		if !strings.Contains(writer, c) {
			t.Fatalf("writer dsn missing %q: %s", c, writer)
		}
	}

	if !strings.Contains(reader, "_pragma=query_only(1)") {
		t.Fatalf("reader dsn missing query_only(1): %s", reader)
	}
	if !strings.Contains(writer, "_pragma=query_only(0)") {
		t.Fatalf("writer dsn missing query_only(0): %s", writer)
	}
	if strings.Contains(reader, "_txlock") {
		t.Fatalf("reader dsn must not request immediate transactions: %s", reader)
	}
	if !strings.Contains(writer, "_txlock=immediate") {
		t.Fatalf("writer dsn missing _txlock=immediate: %s", writer)
	}
}

func TestBuildDSNKeepsExistingQuery(t *testing.T) {
	dsn := buildDSN("file:keys.sqlite?mode=rwc", false)
	if !strings.HasPrefix(dsn, "file:keys.sqlite?mode=rwc&_pragma=") {
		t.Fatalf("unexpected dsn: %s", dsn)
	}
}

func TestReaderRejectsWrites(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ro.sqlite"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := db.WriteTX(ctx, func(tx *Tx) error {
		return tx.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)").Error
	}); err != nil {
		t.Fatalf("writer create table: %v", err)
	}

	err = db.ReadTX(ctx, func(tx *Tx) error {
		return tx.Exec("INSERT INTO widgets (id) VALUES (1)").Error
	})
	if err == nil {
		t.Fatal("expected reader insert to fail")
	}
}

func TestGORMWarningsGoToZerolog(t *testing.T) {
	var buf bytes.Buffer
	db, err := Open(filepath.Join(t.TempDir(), "keys.sqlite"), zerolog.New(&buf))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	db.W.Logger.Warn(context.Background(), "slow query on %s", "api_keys")

	out := buf.String()
	if !strings.Contains(out, `"component":"gorm"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("expected gorm warning in zerolog output, got %s", out)
	}
	if !strings.Contains(out, "slow query on api_keys") {
		t.Fatalf("expected warning message, got %s", out)
	}
}
