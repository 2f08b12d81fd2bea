package ddl

import (
	"strings"

	"github.com/kartikbazzad/sharddb/internal/errors"
)

// SplitStatements splits DDL text into individual statements on semicolons.
// Blank statements are dropped.
func SplitStatements(text string) []string {
	parts := strings.Split(text, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseStatement splits one CREATE PROCEDURE statement into the procedure
// name and the clause text that follows it. The clause text may be empty.
func ParseStatement(stmt string) (name, clauses string, err error) {
	fields := strings.Fields(stmt)
	if len(fields) < 3 ||
		!strings.EqualFold(fields[0], "CREATE") ||
		!strings.EqualFold(fields[1], "PROCEDURE") {
		return "", "", errors.Compilef("", "expected CREATE PROCEDURE <name> [clauses]")
	}
	return fields[2], strings.Join(fields[3:], " "), nil
}
