package warehouse

import (
	"strconv"
	"strings"
)

// PlaceholderStyle names a backend's bind-parameter marker syntax. All SQL in
// this codebase is built with `?` markers; connectors rewrite them to their
// driver's native style just before execution.
type PlaceholderStyle int

const (
	// StyleQuestion keeps `?` markers unchanged.
	StyleQuestion PlaceholderStyle = iota
	// StyleDollar rewrites to $1, $2, ... (PostgreSQL).
	StyleDollar
	// StyleAtP rewrites to @p1, @p2, ... (SQL Server).
	StyleAtP
	// StyleNamed rewrites to :p1, :p2, ... (Databricks named markers).
	StyleNamed
)

// RewritePlaceholders replaces each `?` outside string literals with the
// n-th marker of the given style and returns the rewritten SQL plus the
// number of markers found. Quoted regions are tracked the same way the
// statement splitter tracks them: single quotes with SQL-standard doubling,
// double quotes for identifiers.
func RewritePlaceholders(sqlText string, style PlaceholderStyle) (string, int) {
	if style == StyleQuestion {
		return sqlText, strings.Count(sqlText, "?")
	}

	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	var b strings.Builder
	b.Grow(len(sqlText) + 16)

	state := stateNormal
	prev := rune(0)
	n := 0

	for _, ch := range sqlText {
		switch state {
		case stateNormal:
			switch ch {
			case '?':
				n++
				switch style {
				case StyleDollar:
					b.WriteByte('$')
					b.WriteString(strconv.Itoa(n))
				case StyleAtP:
					b.WriteString("@p")
					b.WriteString(strconv.Itoa(n))
				case StyleNamed:
					b.WriteString(":p")
					b.WriteString(strconv.Itoa(n))
				}
				prev = ch
				continue
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if ch == '\'' && prev != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' && prev != '\\' {
				state = stateNormal
			}
		}
		b.WriteRune(ch)
		prev = ch
	}

	return b.String(), n
}
