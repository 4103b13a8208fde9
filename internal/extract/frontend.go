package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/stackmesh/stackmesh/internal/pattern"
	"github.com/stackmesh/stackmesh/internal/relation"
)

// httpClientObjects are receiver names treated as HTTP clients when a
// method like .get or .post is called on them.
var httpClientObjects = map[string]bool{
	"axios": true, "http": true, "api": true, "client": true,
	"httpclient": true, "request": true,
}

var httpMethods = map[string]string{
	"get": "GET", "post": "POST", "put": "PUT",
	"delete": "DELETE", "patch": "PATCH", "head": "HEAD",
}

// extractCallSite recognizes fetch(...) calls and method calls on a
// known HTTP client object. Returns nil when the node is neither.
func extractCallSite(node *sitter.Node, src Source) *relation.CallSite {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return nil
	}

	var method, responseType string
	switch fn.Type() {
	case "identifier":
		if fn.Content(src.Content) != "fetch" {
			return nil
		}
		method = fetchMethod(node, src.Content)
	case "member_expression":
		object := fn.ChildByFieldName("object")
		property := fn.ChildByFieldName("property")
		if object == nil || property == nil {
			return nil
		}
		m, ok := httpMethods[strings.ToLower(property.Content(src.Content))]
		if !ok || !httpClientObjects[strings.ToLower(object.Content(src.Content))] {
			return nil
		}
		method = m
		responseType = typeArgument(node, src.Content)
	default:
		return nil
	}

	url := firstArgumentText(node, src.Content)
	if url == "" {
		return nil
	}

	start := node.StartPoint()
	return &relation.CallSite{
		URL:          url,
		Method:       method,
		Pattern:      pattern.Normalize(url),
		ResponseType: responseType,
		Location: relation.SourceLocation{
			File:   src.Path,
			Line:   int(start.Row) + 1,
			Column: int(start.Column) + 1,
		},
	}
}

// fetchMethod digs the method out of a fetch options object literal;
// absent options mean GET.
func fetchMethod(call *sitter.Node, code []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() < 2 {
		return "GET"
	}
	opts := args.NamedChild(1)
	if opts.Type() != "object" {
		return "GET"
	}
	for i := 0; i < int(opts.NamedChildCount()); i++ {
		pair := opts.NamedChild(i)
		if pair.Type() != "pair" {
			continue
		}
		key := pair.ChildByFieldName("key")
		value := pair.ChildByFieldName("value")
		if key == nil || value == nil {
			continue
		}
		if strings.Trim(key.Content(code), `"'`) == "method" {
			return strings.ToUpper(strings.Trim(value.Content(code), "`\"'"))
		}
	}
	return "GET"
}

// typeArgument returns the first generic type argument of a call like
// api.get<User>(...), or empty.
func typeArgument(call *sitter.Node, code []byte) string {
	for i := 0; i < int(call.ChildCount()); i++ {
		child := call.Child(i)
		if child.Type() == "type_arguments" && child.NamedChildCount() > 0 {
			return child.NamedChild(0).Content(code)
		}
	}
	return ""
}

func firstArgumentText(call *sitter.Node, code []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	return strings.TrimSpace(args.NamedChild(0).Content(code))
}
