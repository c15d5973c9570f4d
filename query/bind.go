// Package query renders and normalizes Cypher queries for diagnostics.
// Neither function touches the wire: RUN always sends parameters as a
// real PackStream map, never as string-substituted Cypher. This
// package exists purely so logs and the CLI's -explain output are
// readable.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/neo4j-drivers/bolt-go/packstream"
)

// Render substitutes each $name token in cypher with a literal
// rendering of its bound value from params, for logging only.
// Unbound names are left as-is.
func Render(cypher string, params map[string]packstream.Value) string {
	if len(params) == 0 {
		return cypher
	}

	var b strings.Builder
	b.Grow(len(cypher))

	i := 0
	for i < len(cypher) {
		if cypher[i] == '$' && i+1 < len(cypher) && isNameStart(cypher[i+1]) {
			j := i + 1
			for j < len(cypher) && isNameChar(cypher[j]) {
				j++
			}
			name := cypher[i+1 : j]
			if v, ok := params[name]; ok {
				b.WriteString(renderValue(v))
			} else {
				b.WriteString(cypher[i:j])
			}
			i = j
			continue
		}
		b.WriteByte(cypher[i])
		i++
	}
	return b.String()
}

func renderValue(v packstream.Value) string {
	switch v.Kind {
	case packstream.KindNull:
		return "null"
	case packstream.KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case packstream.KindString:
		return "'" + strings.ReplaceAll(v.Str, "'", "\\'") + "'"
	case packstream.KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case packstream.KindMap:
		keys := append([]string(nil), v.MapKeys...)
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, renderValue(v.Map[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
