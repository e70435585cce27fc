package sqlgen

import (
	"fmt"
	"sort"
	"strings"
)

// Params maps placeholder names (without the leading colon) to values.
type Params map[string]interface{}

// Row is a flat mapping of column name to scalar value.
type Row map[string]interface{}

// Placeholders returns the distinct placeholder names used in sql, in order of
// first appearance. Quoted literals, identifiers and comments are skipped, as
// is the PostgreSQL "::" cast.
func Placeholders(sql string) []string {
	var names []string
	seen := make(map[string]bool)

	for i := 0; i < len(sql); i++ {
		if end, ok := SkipLiteral(sql, i); ok {
			i = end
			continue
		}
		c := sql[i]
		switch {
		case c == ':' && i+1 < len(sql) && sql[i+1] == ':':
			i++
		case c == ':':
			j := i + 1
			for j < len(sql) && isWordByte(sql[j]) {
				j++
			}
			if j > i+1 {
				name := sql[i+1 : j]
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
				i = j - 1
			}
		}
	}
	return names
}

// SkipLiteral reports whether a quoted literal, quoted identifier or comment
// starts at sql[i], and if so the index of its last byte. Inside single and
// double quotes a backslash escapes the next byte, as MySQL reads it. An
// unterminated span runs to the end of sql.
func SkipLiteral(sql string, i int) (int, bool) {
	last := len(sql) - 1
	switch c := sql[i]; {
	case c == '\'' || c == '"' || c == '`':
		for j := i + 1; j < len(sql); j++ {
			switch sql[j] {
			case '\\':
				if c != '`' {
					j++
				}
			case c:
				return j, true
			}
		}
		return last, true
	case c == '-' && i < last && sql[i+1] == '-':
		if k := strings.IndexByte(sql[i:], '\n'); k >= 0 {
			return i + k, true
		}
		return last, true
	case c == '/' && i < last && sql[i+1] == '*':
		if k := strings.Index(sql[i+2:], "*/"); k >= 0 {
			return i + 2 + k + 1, true
		}
		return last, true
	}
	return i, false
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// RemoveUnusedParameters drops every parameter whose placeholder does not
// appear in sql, and every parameter whose name is not a bare identifier.
// Applying it twice yields the same result as applying it once.
func RemoveUnusedParameters(sql string, params Params) Params {
	used := make(map[string]bool)
	for _, name := range Placeholders(sql) {
		used[name] = true
	}

	out := make(Params, len(params))
	for key, value := range params {
		name, err := ValidIdentifier(trimColon(key))
		if err != nil {
			continue
		}
		if used[name] {
			out[name] = value
		}
	}
	return out
}

// MissingParameters returns the placeholders in sql that have no value in
// params, sorted.
func MissingParameters(sql string, params Params) []string {
	var missing []string
	for _, name := range Placeholders(sql) {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func trimColon(s string) string {
	if len(s) > 0 && s[0] == ':' {
		return s[1:]
	}
	return s
}

// paramNamer hands out placeholder names for one compilation. The first use
// of a column gets the bare name, later uses get _2, _3 and so on.
type paramNamer struct {
	uses  map[string]int
	taken map[string]bool
}

func newParamNamer() *paramNamer {
	return &paramNamer{
		uses:  make(map[string]int),
		taken: make(map[string]bool),
	}
}

func (n *paramNamer) next(column string) string {
	for {
		n.uses[column]++
		name := column
		if count := n.uses[column]; count > 1 {
			name = fmt.Sprintf("%s_%d", column, count)
		}
		if !n.taken[name] {
			n.taken[name] = true
			return name
		}
	}
}

func (n *paramNamer) reserve(name string) {
	n.taken[name] = true
}

// sortedColumns returns the keys of row sorted for stable SQL text.
func sortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
