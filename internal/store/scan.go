package store

import (
	"strings"
	"time"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const dayLayout = "2006-01-02"

// dayString renders t with day precision; zero-padded so lexical comparison
// in SQL matches chronological order.
func dayString(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

func parseDay(s string) (time.Time, error) {
	return time.Parse(dayLayout, s)
}

// escapeLike escapes LIKE metacharacters so user input only ever matches
// literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
