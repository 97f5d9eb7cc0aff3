// Package export serializes aggregate export rows into the download
// payload the client offers as a CSV file.
package export

import (
	"strings"

	"studyspend/internal/aggregate"
)

// Header columns, in payload order.
var Header = []string{"Date", "Description", "Category", "Amount", "Notes"}

// Payload builds the CSV text: a plain header line, then one line per row
// with every field double-quoted. Quotes inside a value are doubled.
func Payload(rows []aggregate.ExportRow) string {
	var b strings.Builder
	b.WriteString(strings.Join(Header, ","))
	b.WriteByte('\n')

	for _, r := range rows {
		writeLine(&b, r.Date, r.Description, r.Category, r.Amount, r.Notes)
	}
	return b.String()
}

func writeLine(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}
