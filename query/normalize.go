package query

import "strings"

// Normalize replaces literal values in a Cypher query with
// placeholders, so that structurally identical queries can be grouped
// together for burst detection.
//
// String literals ('...') are replaced with '?', standalone numeric
// literals are replaced with ?, and $name parameters are kept as-is.
// Consecutive whitespace is collapsed to a single space.
func Normalize(cypher string) string {
	if cypher == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(cypher))

	i := 0
	prevSpace := false
	for i < len(cypher) {
		ch := cypher[i]

		if ch == '\'' {
			i = normalizeString(&b, cypher, i)
			prevSpace = false
			continue
		}

		if ch == '$' && i+1 < len(cypher) && isNameStart(cypher[i+1]) {
			i = keepParam(&b, cypher, i)
			prevSpace = false
			continue
		}

		if isDigit(ch) && (i == 0 || isNumBoundary(cypher[i-1])) {
			if next, ok := normalizeNumber(&b, cypher, i); ok {
				i = next
				prevSpace = false
				continue
			}
		}

		if isSpace(ch) {
			if !prevSpace && b.Len() > 0 {
				b.WriteByte(' ')
				prevSpace = true
			}
			i++
			continue
		}

		b.WriteByte(ch)
		i++
		prevSpace = false
	}

	return strings.TrimRight(b.String(), " ")
}

// normalizeString replaces a string literal starting at pos with '?'.
func normalizeString(b *strings.Builder, cypher string, pos int) int {
	j := pos + 1
	for j < len(cypher) {
		if cypher[j] == '\'' && j+1 < len(cypher) && cypher[j+1] == '\'' {
			j += 2
			continue
		}
		if cypher[j] == '\'' {
			j++
			break
		}
		j++
	}
	b.WriteString("'?'")
	return j
}

// keepParam writes a $name parameter as-is and returns the new position.
func keepParam(b *strings.Builder, cypher string, pos int) int {
	b.WriteByte('$')
	j := pos + 1
	for j < len(cypher) && isNameChar(cypher[j]) {
		b.WriteByte(cypher[j])
		j++
	}
	return j
}

// normalizeNumber replaces a numeric literal at pos with ?.
// Returns (newPos, true) if replaced, or (0, false) if not a standalone number.
func normalizeNumber(b *strings.Builder, cypher string, pos int) (int, bool) {
	j := pos + 1
	for j < len(cypher) && (isDigit(cypher[j]) || cypher[j] == '.') {
		j++
	}
	if j >= len(cypher) || isNumBoundary(cypher[j]) {
		b.WriteByte('?')
		return j, true
	}
	return 0, false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNumBoundary(c byte) bool {
	return isSpace(c) ||
		c == ',' || c == '(' || c == ')' || c == '=' ||
		c == '<' || c == '>' || c == '+' || c == '-' ||
		c == '*' || c == '/' || c == ';'
}
