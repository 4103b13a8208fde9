// Package pattern normalizes raw URL expressions into comparable
// skeletons and scores the similarity of two normalized patterns.
package pattern

import (
	"regexp"
	"strings"
)

// ParamKind is the inferred value kind of a route parameter.
type ParamKind string

const (
	KindNumber  ParamKind = "number"
	KindUUID    ParamKind = "uuid"
	KindSlug    ParamKind = "slug"
	KindString  ParamKind = "string"
	KindUnknown ParamKind = "unknown"
)

// RouteParameter is a single named parameter captured from a URL
// expression. Immutable once produced by Normalize.
type RouteParameter struct {
	Name       string    `json:"name"`
	Kind       ParamKind `json:"kind"`
	Position   int       `json:"position"`
	Optional   bool      `json:"optional"`
	SourceText string    `json:"source_text,omitempty"`
}

// NormalizedPattern is the canonical form of a URL expression: a
// static-segment skeleton with {name} placeholders, the ordered
// parameters, and the query-string keys split off the path.
type NormalizedPattern struct {
	Original    string           `json:"original"`
	Normalized  string           `json:"normalized"`
	Parameters  []RouteParameter `json:"parameters,omitempty"`
	QueryParams []string         `json:"query_params,omitempty"`
	IsStatic    bool             `json:"is_static"`
}

var (
	interpRe = regexp.MustCompile(`\$\{([^}]+)\}`)
	bracketRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\?)?\}`)
	identRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	multiSlashRe = regexp.MustCompile(`([^:/])/{2,}`)
)

// Normalize converts a raw URL expression into its canonical pattern.
// It never fails: empty input yields an empty, non-static pattern.
//
// Accepted inputs include static paths ("/users"), bracket templates
// ("/users/{id}" and "/users/{id?}"), interpolated expressions
// ("/users/${user.id}") and concatenation-built paths
// ("'/users/' + userId + '/posts'"). The three extraction passes run
// in that fixed order over a shared accumulator so a parameter
// expressed in more than one syntax is only claimed once.
func Normalize(url string) NormalizedPattern {
	p := NormalizedPattern{Original: url}
	s := strings.TrimSpace(url)
	if s == "" {
		return p
	}

	s = stripQuotes(s)
	s = multiSlashRe.ReplaceAllString(s, `$1/`)

	acc := &accumulator{claimed: make(map[string]bool)}
	s = extractInterpolations(s, acc)
	s = extractBrackets(s, acc)
	s = extractConcatenation(s, acc)

	path, query := splitQuery(s)
	p.Normalized = path
	p.Parameters = acc.params
	p.QueryParams = query
	p.IsStatic = len(acc.params) == 0 && len(query) == 0
	return p
}

// accumulator tracks parameters captured so far across extraction
// passes. A name claimed by an earlier pass is not re-captured.
type accumulator struct {
	params  []RouteParameter
	claimed map[string]bool
}

func (a *accumulator) claim(name, source string, optional bool) {
	if name == "" || a.claimed[name] {
		return
	}
	a.claimed[name] = true
	a.params = append(a.params, RouteParameter{
		Name:       name,
		Kind:       inferKind(name),
		Position:   len(a.params),
		Optional:   optional,
		SourceText: source,
	})
}

// extractConcatenation resolves string-concatenation-built paths:
// quoted fragments stay literal, bare identifiers become parameters.
// Anything that is not a concatenation expression passes through.
func extractConcatenation(s string, acc *accumulator) string {
	if !strings.Contains(s, "+") {
		return s
	}
	parts := strings.Split(s, "+")
	var b strings.Builder
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if isQuoted(part) {
			b.WriteString(stripQuotes(part))
			continue
		}
		if identRe.MatchString(part) {
			acc.claim(part, part, false)
			b.WriteString("{" + part + "}")
			continue
		}
		// Unparseable fragment (call expression etc.): keep verbatim
		// so downstream comparison at least sees the literal text.
		b.WriteString(part)
	}
	return b.String()
}

// extractInterpolations resolves ${expr} template parameters. For a
// dotted expression the trailing identifier names the parameter
// ("${user.id}" captures "id").
func extractInterpolations(s string, acc *accumulator) string {
	return interpRe.ReplaceAllStringFunc(s, func(m string) string {
		expr := strings.TrimSpace(m[2 : len(m)-1])
		name := expr
		if i := strings.LastIndexAny(expr, ".?!"); i >= 0 && i < len(expr)-1 {
			name = expr[i+1:]
		}
		if !identRe.MatchString(name) {
			name = "param"
		}
		acc.claim(name, m, false)
		return "{" + name + "}"
	})
}

// extractBrackets resolves {name} and {name?} parameters. Names
// already claimed by an earlier pass keep their placeholder but are
// not double-counted.
func extractBrackets(s string, acc *accumulator) string {
	return bracketRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := bracketRe.FindStringSubmatch(m)
		name, optional := sub[1], sub[2] == "?"
		acc.claim(name, m, optional)
		return "{" + name + "}"
	})
}

// splitQuery splits the query-string suffix off the path and returns
// the top-level query keys. A '?' inside braces (the optional marker)
// is not a query separator.
func splitQuery(s string) (path string, keys []string) {
	depth := 0
	cut := -1
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '?':
			if depth == 0 {
				cut = i
			}
		}
		if cut >= 0 {
			break
		}
	}
	if cut < 0 {
		return s, nil
	}
	path = s[:cut]
	seen := make(map[string]bool)
	for _, pair := range strings.Split(s[cut+1:], "&") {
		key := pair
		if eq := strings.Index(pair, "="); eq >= 0 {
			key = pair[:eq]
		}
		key = strings.TrimSpace(key)
		if key != "" && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return path, keys
}

// paginationNames get a numeric kind even without an "id" in the name.
var paginationNames = map[string]bool{
	"page": true, "limit": true, "offset": true,
	"count": true, "size": true, "index": true,
}

func inferKind(name string) ParamKind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "uuid"), strings.Contains(n, "guid"):
		return KindUUID
	case strings.Contains(n, "id"):
		return KindNumber
	case strings.Contains(n, "slug"), strings.Contains(n, "permalink"):
		return KindSlug
	case paginationNames[n]:
		return KindNumber
	default:
		return KindString
	}
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	first, last := s[0], s[len(s)-1]
	return first == last && (first == '\'' || first == '"' || first == '`')
}

// stripQuotes unwraps one or more quote/backtick layers, but only
// when the quote is a true wrapper: a concatenation expression like
// '/users/' + id + '/posts' also starts and ends with a quote and
// must stay intact.
func stripQuotes(s string) string {
	for isQuoted(s) {
		inner := s[1 : len(s)-1]
		if strings.ContainsRune(inner, rune(s[0])) {
			break
		}
		s = inner
	}
	return s
}
