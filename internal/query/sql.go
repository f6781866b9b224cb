package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Reply is a parsed model response: either SQL to run or a direct text answer.
type Reply struct {
	SQL  string
	Text string
}

const answerPrefix = "ANSWER:"

var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z]*\\s*\\n?(.*?)```")

// ParseReply extracts the SQL or the direct answer from a model reply.
func ParseReply(content string) Reply {
	content = strings.TrimSpace(content)

	if len(content) >= len(answerPrefix) && strings.EqualFold(content[:len(answerPrefix)], answerPrefix) {
		return Reply{Text: strings.TrimSpace(content[len(answerPrefix):])}
	}

	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		return Reply{SQL: strings.TrimSpace(m[1])}
	}

	// Unterminated fence.
	content = strings.TrimPrefix(content, "```sql")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return Reply{SQL: strings.TrimSpace(content)}
}

var (
	ErrEmptySQL     = errors.New("model returned no query")
	ErrMultipleStmt = errors.New("only one statement is allowed")
	ErrNotReadOnly  = errors.New("only SELECT queries are allowed")
	ErrUnterminated = errors.New("unterminated quote in query")
)

// forbidden keywords may not appear anywhere outside literals.
var forbidden = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "MERGE": {}, "UPSERT": {},
	"DROP": {}, "CREATE": {}, "ALTER": {}, "TRUNCATE": {},
	"ATTACH": {}, "DETACH": {}, "COPY": {}, "EXPORT": {}, "IMPORT": {},
	"INSTALL": {}, "LOAD": {}, "PRAGMA": {}, "SET": {}, "RESET": {},
	"CALL": {}, "CHECKPOINT": {}, "VACUUM": {}, "GRANT": {}, "REVOKE": {},
	"BEGIN": {}, "COMMIT": {}, "ROLLBACK": {},
}

// ValidateSQL checks that query is a single read-only statement and returns
// it without the trailing semicolon.
func ValidateSQL(query string) (string, error) {
	stmt := strings.TrimSpace(query)
	for strings.HasSuffix(stmt, ";") {
		stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	}
	if stmt == "" {
		return "", ErrEmptySQL
	}

	code, err := stripLiterals(stmt)
	if err != nil {
		return "", err
	}
	if strings.Contains(code, ";") {
		return "", ErrMultipleStmt
	}

	words := strings.FieldsFunc(strings.ToUpper(code), func(r rune) bool {
		return !(r == '_' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if len(words) == 0 || (words[0] != "SELECT" && words[0] != "WITH" && words[0] != "FROM") {
		return "", ErrNotReadOnly
	}
	for _, w := range words {
		if _, bad := forbidden[w]; bad {
			return "", fmt.Errorf("%w: %s is not permitted", ErrNotReadOnly, w)
		}
	}

	return stmt, nil
}

// stripLiterals blanks out string literals, quoted identifiers and comments
// so keyword checks only see SQL code.
func stripLiterals(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			end := closingQuote(s, i+1, c)
			if end < 0 {
				return "", ErrUnterminated
			}
			b.WriteByte(' ')
			i = end
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				i = len(s)
			} else {
				i += nl
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return "", ErrUnterminated
			}
			i += end + 3
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// closingQuote returns the index of the quote closing a literal that opened
// just before from. Doubled quotes are escapes.
func closingQuote(s string, from int, q byte) int {
	for i := from; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i
	}
	return -1
}
