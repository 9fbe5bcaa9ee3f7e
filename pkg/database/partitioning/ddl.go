// Package partitioning creates time-range child partitions ahead of need for
// the append-only tables (outbox, event_store) that grow without bound.
// Operators run CreateRangePartition from a scheduled task to pre-create the
// next period's partition; it is not on the process_work_batch hot path.
package partitioning

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// CreateRangePartition creates a PostgreSQL declarative range partition of
// table covering [rangeStart, rangeEnd) on the partition key column. Bounds
// are caller-supplied date/timestamp literals, never end-user input in
// normal operation, but are escaped regardless: single quotes are doubled so
// a bound containing one cannot close the string literal early.
func CreateRangePartition(db *gorm.DB, table, column, rangeStart, rangeEnd string) error {
	partitionName := fmt.Sprintf("%s_%s", table, sanitizeIdentifierSuffix(rangeStart))

	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
		quoteIdentifier(partitionName),
		quoteIdentifier(table),
		escapeLiteral(rangeStart),
		escapeLiteral(rangeEnd),
	)

	return db.Exec(stmt).Error
}

// escapeLiteral doubles single quotes per the SQL standard string-literal
// escaping rule, matching what a parameterized driver would do for a value
// interpolated into DDL (which cannot itself be parameterized).
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// sanitizeIdentifierSuffix derives a safe partition-name suffix from a bound
// value, keeping only characters valid in an unquoted identifier segment.
func sanitizeIdentifierSuffix(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
