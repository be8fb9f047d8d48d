// Package rewrite scopes SQL text to one tenant's table namespace.
//
// The external storage interface emits raw SQL against bare table names
// (person, family, ...). Before a statement reaches the connection, every
// bare reference to a known entity or support table is replaced with the
// active tenant's prefixed name. Shared tables (surname, name_group) and
// already-prefixed names pass through unchanged.
//
// The rewriter is a pure text transform: parameters are never inspected or
// modified. A statement shape it cannot confidently classify is rejected
// rather than executed unscoped; a misrouted write would corrupt another
// tenant's data silently, so correctness wins over availability.
package rewrite

import (
	"strings"
)

// Rewriter rewrites statements for one tenant prefix.
// Safe for concurrent use; it holds no mutable state.
type Rewriter struct {
	prefix string
	known  map[string]bool
	shared map[string]bool
}

// New creates a Rewriter for the given tenant prefix.
//
// known lists the prefixable table vocabulary; shared lists unprefixed
// tables visible to every tenant. An empty prefix (one-database-per-tenant
// mode) makes Rewrite the identity transform apart from shape validation.
func New(prefix string, known, shared []string) *Rewriter {
	r := &Rewriter{
		prefix: prefix,
		known:  make(map[string]bool, len(known)),
		shared: make(map[string]bool, len(shared)),
	}
	for _, t := range known {
		r.known[t] = true
	}
	for _, t := range shared {
		r.shared[t] = true
	}
	return r
}

// Prefix returns the active tenant prefix.
func (r *Rewriter) Prefix() string {
	return r.prefix
}

// Statement head keywords the one known caller emits. Anything else is
// outside the accepted vocabulary and is rejected.
var headKeywords = map[string]bool{
	"SELECT": true,
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"CREATE": true,
	"DROP":   true,
}

// clauseKeywords end a FROM table list: a comma after one of these is a
// column or expression separator, never another table.
var clauseKeywords = map[string]bool{
	"WHERE": true, "SET": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "UNION": true, "VALUES": true, "ON": true,
	"USING": true, "RETURNING": true,
}

// rewriteState tracks progress through one statement.
type rewriteState struct {
	head        string // first keyword, uppercased
	prevUpper   string // previous word, uppercased
	sawAny      bool
	expectTable bool   // next identifier is a table name
	expectIndex bool   // next identifier is an index name
	inTableList bool   // between FROM/JOIN and the next clause keyword
	parenDepth  int
	createKind  string // TABLE or INDEX, for classifying ON under CREATE
}

// Rewrite returns the statement with every bare known-table reference
// carrying the tenant prefix.
//
// Handled positions: FROM, JOIN, INTO, UPDATE, DELETE FROM, CREATE TABLE
// [IF NOT EXISTS], DROP TABLE [IF EXISTS], CREATE/DROP INDEX ... ON, and
// table.column qualification. Keywords match case-insensitively;
// identifiers are preserved as written.
//
// Rewrite is idempotent: an identifier already starting with the active
// prefix is left alone, so rewriting rewritten text never double-prefixes.
func (r *Rewriter) Rewrite(query string) (string, error) {
	s := newScanner(query)
	var out strings.Builder
	out.Grow(len(query) + 32)

	var st rewriteState

	for {
		tok, ok := s.next()
		if !ok {
			break
		}

		out.WriteString(tok.leading)

		if tok.kind != tokWord {
			r.punct(&st, tok.text)
			out.WriteString(tok.text)
			continue
		}

		upper := strings.ToUpper(tok.text)

		if !st.sawAny {
			st.sawAny = true
			if !headKeywords[upper] {
				return "", &RejectedError{
					Query:  query,
					Reason: "statement does not begin with a recognized keyword: " + tok.text,
				}
			}
			st.head = upper
		}

		text, err := r.word(&st, tok.text, upper)
		if err != nil {
			return "", &RejectedError{Query: query, Reason: err.Error(), Table: tableOf(err)}
		}
		// table.column qualification anywhere in the statement: rewrite
		// only when the qualifier is a bare known table, so aliases and
		// already-prefixed names fall through as written.
		if text == tok.text && s.peekDot() && r.known[tok.text] && !st.expectTable && !st.expectIndex {
			text = r.prefix + tok.text
		}
		out.WriteString(text)
		st.prevUpper = upper
	}

	if err := s.err(); err != nil {
		return "", &RejectedError{Query: query, Reason: err.Error()}
	}
	if st.expectTable || st.expectIndex {
		return "", &RejectedError{Query: query, Reason: "statement ends where a table name is required"}
	}
	if !st.sawAny {
		return "", &RejectedError{Query: query, Reason: "empty statement"}
	}

	out.WriteString(s.trailing())
	return out.String(), nil
}

// punct updates state for a punctuation token.
func (r *Rewriter) punct(st *rewriteState, text string) {
	switch text {
	case "(":
		st.parenDepth++
	case ")":
		if st.parenDepth > 0 {
			st.parenDepth--
		}
	case ",":
		// A top-level comma inside a FROM list introduces another table.
		if st.inTableList && st.parenDepth == 0 {
			st.expectTable = true
		}
	case ";":
		// Statement boundary; the caller sends one statement at a time,
		// but a trailing semicolon is tolerated.
	}
}

// word consumes one identifier-or-keyword token and returns its rewritten
// text.
func (r *Rewriter) word(st *rewriteState, text, upper string) (string, error) {
	switch {
	case st.expectTable:
		if upper == "IF" || upper == "NOT" || upper == "EXISTS" {
			return text, nil
		}
		mapped, err := r.mapTable(text)
		if err != nil {
			return "", err
		}
		st.expectTable = false
		return mapped, nil

	case st.expectIndex:
		if upper == "IF" || upper == "NOT" || upper == "EXISTS" {
			return text, nil
		}
		st.expectIndex = false
		return r.mapIndex(text), nil

	case upper == "FROM" || upper == "JOIN":
		st.expectTable = true
		st.inTableList = true
		return text, nil

	case upper == "INTO":
		st.expectTable = true
		return text, nil

	case upper == "UPDATE" && st.head == "UPDATE" && st.prevUpper == "":
		// The statement-head UPDATE, not an ON CONFLICT DO UPDATE clause.
		st.expectTable = true
		return text, nil

	case upper == "TABLE" && (st.head == "CREATE" || st.head == "DROP"):
		st.expectTable = true
		st.createKind = "TABLE"
		return text, nil

	case upper == "INDEX" && (st.head == "CREATE" || st.head == "DROP"):
		st.expectIndex = true
		st.createKind = "INDEX"
		return text, nil

	case upper == "ON" && st.head == "CREATE" && st.createKind == "INDEX":
		st.expectTable = true
		return text, nil

	default:
		if clauseKeywords[upper] && st.parenDepth == 0 {
			st.inTableList = false
		}
		return text, nil
	}
}

// mapTable resolves one identifier in a table position.
func (r *Rewriter) mapTable(name string) (string, error) {
	// Already carries the active prefix: leave untouched (idempotence).
	if r.prefix != "" && strings.HasPrefix(name, r.prefix) && r.known[name[len(r.prefix):]] {
		return name, nil
	}
	if r.shared[name] {
		return name, nil
	}
	if r.known[name] {
		return r.prefix + name, nil
	}
	return "", &unknownTableError{name: name}
}

// mapIndex prefixes an index identifier. Index names share one namespace
// per database file, so every tenant-created index must carry the prefix.
func (r *Rewriter) mapIndex(name string) string {
	if r.prefix == "" || strings.HasPrefix(name, r.prefix) {
		return name
	}
	return r.prefix + name
}

type unknownTableError struct {
	name string
}

func (e *unknownTableError) Error() string {
	return "table " + e.name + " is outside the accepted vocabulary"
}

// tableOf extracts the offending table name, if the cause was one.
func tableOf(err error) string {
	if ute, ok := err.(*unknownTableError); ok {
		return ute.name
	}
	return ""
}
