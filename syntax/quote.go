package syntax

import "strings"

// ValidName reports whether s is a valid shell identifier: a POSIX "name",
// used for variable names, function names and nameref targets.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// IsKeyword reports whether s is a reserved word in command position, such as
// "if" or "done".
func IsKeyword(s string) bool {
	return reservedWords[s]
}

// Quote returns a version of s quoted so that, if used as a single shell
// word, it expands back to exactly s. Single quoting is used unless s
// contains a single quote, in which case the ANSI-C $'...' form is used so
// that embedded control characters and quotes can still be expressed safely.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, "'\x00") && isPlainQuotable(s) {
		return "'" + s + "'"
	}
	var sb strings.Builder
	sb.WriteString("$'")
	for _, r := range s {
		switch r {
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteString("'")
	return sb.String()
}

// isPlainQuotable reports whether s has no bytes that would need escaping
// inside a plain single-quoted string (i.e. it has no single quotes, which
// Quote already checked for by the caller, and no NUL bytes).
func isPlainQuotable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return false
		}
	}
	return true
}
