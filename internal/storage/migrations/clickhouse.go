package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

// ClickhouseExecer is the slice of the ClickHouse driver API the
// migration runner needs.
type ClickhouseExecer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// RunClickhouse applies all embedded SQL files in lexical order.
// The driver does not support multiple statements per Exec, so each
// file is split by semicolon; migration files must not put semicolons
// inside string literals.
func RunClickhouse(ctx context.Context, db ClickhouseExecer) error {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		return fmt.Errorf("read embedded clickhouse migrations: %w", err)
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			return fmt.Errorf("validate migration %s: %w", file, err)
		}
		for _, stmt := range splitStatements(string(data)) {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}
	return nil
}

// splitStatements splits SQL content into individual statements by
// semicolon, dropping blank lines and -- comments first.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects SQL with semicolons inside
// single-quoted strings, which would break the statement splitter.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon found inside string literal")
		}
	}
	return nil
}
