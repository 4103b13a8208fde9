package pattern

import "strings"

// aliasGroups are parameter names that refer to the same logical value
// across common frontend and backend naming conventions. Lookup is
// done on the folded (lowercased, underscore-stripped) form.
var aliasGroups = [][]string{
	{"id", "userid", "user_id"},
	{"slug", "permalink", "name"},
	{"page", "pagenumber", "page_number"},
	{"limit", "pagesize", "page_size", "size"},
	{"offset", "skip"},
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]int {
	idx := make(map[string]int)
	for g, group := range aliasGroups {
		for _, name := range group {
			idx[fold(name)] = g
		}
	}
	return idx
}

// CompatibleParams reports whether two parameter names plausibly refer
// to the same route value. The final generic-id rule is deliberately
// permissive: for discovery, recall beats precision.
func CompatibleParams(a, b string) bool {
	if a == b {
		return true
	}

	fa, fb := fold(a), fold(b)

	// Same predefined alias group.
	if ga, ok := aliasIndex[fa]; ok {
		if gb, ok := aliasIndex[fb]; ok && ga == gb {
			return true
		}
	}

	// Naming-convention equivalence: userId vs user_id.
	if fa == fb {
		return true
	}

	// Equal root after stripping a trailing id: userId vs user.
	ra, rb := strings.TrimSuffix(fa, "id"), strings.TrimSuffix(fb, "id")
	if ra != "" && ra == rb {
		return true
	}

	// Both look like identifiers of something.
	return looksLikeID(fa) && looksLikeID(fb)
}

func looksLikeID(folded string) bool {
	return folded == "id" || strings.HasSuffix(folded, "id")
}

func fold(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "")
}
