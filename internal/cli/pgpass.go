package cli

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/vvka-141/tabload/pkg/tabload"
)

// pgpassPath returns the platform-appropriate .pgpass file path.
func pgpassPath() string {
	if custom := os.Getenv("PGPASSFILE"); custom != "" {
		return custom
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "postgresql", "pgpass.conf")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pgpass")
}

// passwordSource describes where the password for cfg will come from.
// The password itself is never printed.
func passwordSource(cfg *tabload.ConnectionConfig) string {
	if cfg.Password != "" {
		if cfg.Password == os.Getenv("PGPASSWORD") {
			return "$PGPASSWORD"
		}
		return "connection string"
	}
	path := pgpassPath()
	if path == "" {
		return "none"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "none"
	}
	if pgpassHasEntry(data, cfg) {
		return path
	}
	return "none (no matching entry in " + path + ")"
}

// pgpassHasEntry reports whether a .pgpass line matches cfg.
// Fields may be "*"; colons and backslashes are escaped with a backslash.
func pgpassHasEntry(data []byte, cfg *tabload.ConnectionConfig) bool {
	want := []string{cfg.Host, strconv.Itoa(cfg.Port), cfg.Database, cfg.Username}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := splitPgpassLine(line)
		if len(fields) != 5 {
			continue
		}
		match := true
		for i, w := range want {
			if fields[i] != "*" && fields[i] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func splitPgpassLine(line string) []string {
	var (
		fields []string
		cur    strings.Builder
	)
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}
