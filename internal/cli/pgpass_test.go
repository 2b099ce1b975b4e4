package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/tabload/pkg/tabload"
)

func TestPgpassPath_EnvOverride(t *testing.T) {
	t.Setenv("PGPASSFILE", "/custom/pgpass")
	assert.Equal(t, "/custom/pgpass", pgpassPath())
}

func TestSplitPgpassLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"localhost:5432:db:user:secret", []string{"localhost", "5432", "db", "user", "secret"}},
		{`*:*:*:user:pa\:ss`, []string{"*", "*", "*", "user", "pa:ss"}},
		{`h:1:d:u:back\\slash`, []string{"h", "1", "d", "u", `back\slash`}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitPgpassLine(tt.line), tt.line)
	}
}

func TestPgpassHasEntry(t *testing.T) {
	cfg := &tabload.ConnectionConfig{Host: "db.internal", Port: 5432, Database: "warehouse", Username: "loader"}
	data := []byte("# comment\nother:5432:warehouse:loader:x\n*:5432:*:loader:secret\n")

	assert.True(t, pgpassHasEntry(data, cfg))
	assert.False(t, pgpassHasEntry([]byte("db.internal:6432:warehouse:loader:x\n"), cfg))
	assert.False(t, pgpassHasEntry([]byte("malformed line\n"), cfg))
}

func TestPasswordSource(t *testing.T) {
	dir := t.TempDir()
	pgpass := filepath.Join(dir, "pgpass")
	require.NoError(t, os.WriteFile(pgpass, []byte("localhost:5432:*:loader:secret\n"), 0o600))
	t.Setenv("PGPASSFILE", pgpass)
	t.Setenv("PGPASSWORD", "from-env")

	cfg := &tabload.ConnectionConfig{Host: "localhost", Port: 5432, Database: "warehouse", Username: "loader"}
	assert.Equal(t, pgpass, passwordSource(cfg))

	cfg.Password = "from-env"
	assert.Equal(t, "$PGPASSWORD", passwordSource(cfg))

	cfg.Password = "inline"
	assert.Equal(t, "connection string", passwordSource(cfg))

	cfg.Password = ""
	cfg.Username = "someone-else"
	assert.Contains(t, passwordSource(cfg), "no matching entry")
}
