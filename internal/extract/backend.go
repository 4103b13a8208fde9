package extract

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/stackmesh/stackmesh/internal/pattern"
	"github.com/stackmesh/stackmesh/internal/relation"
)

// routerObjects are receiver names treated as route registrars.
var routerObjects = map[string]bool{
	"app": true, "router": true, "server": true, "api": true,
}

var colonParamRe = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)\??`)

// extractRoute recognizes Express-style registrations such as
// app.get('/users/:id', handler). Returns nil when the node is not
// one. A receiver shared with the client list (api.get) is claimed as
// a route only when the path uses colon parameters.
func extractRoute(node *sitter.Node, src Source) *relation.RouteDefinition {
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Type() != "member_expression" {
		return nil
	}
	object := fn.ChildByFieldName("object")
	property := fn.ChildByFieldName("property")
	if object == nil || property == nil {
		return nil
	}
	method, ok := httpMethods[strings.ToLower(property.Content(src.Content))]
	if !ok {
		return nil
	}
	receiver := strings.ToLower(object.Content(src.Content))
	if !routerObjects[receiver] {
		return nil
	}

	raw := firstArgumentText(node, src.Content)
	if raw == "" {
		return nil
	}
	path := strings.Trim(raw, "`\"'")
	if httpClientObjects[receiver] && !strings.Contains(path, ":") {
		return nil
	}

	// Express colon parameters become bracket placeholders before
	// normalization.
	bracketed := colonParamRe.ReplaceAllStringFunc(path, func(m string) string {
		name := strings.TrimPrefix(m, ":")
		if strings.HasSuffix(name, "?") {
			return "{" + strings.TrimSuffix(name, "?") + "?}"
		}
		return "{" + name + "}"
	})

	rt := &relation.RouteDefinition{
		Path:       path,
		Method:     method,
		Pattern:    pattern.Normalize(bracketed),
		SourceFile: src.Path,
	}
	rt.Controller, rt.Action = handlerName(node, src.Content)
	return rt
}

// handlerName reads the last argument of a registration when it is a
// member expression like userController.create.
func handlerName(call *sitter.Node, code []byte) (controller, action string) {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() < 2 {
		return "", ""
	}
	last := args.NamedChild(int(args.NamedChildCount()) - 1)
	if last.Type() != "member_expression" {
		return "", ""
	}
	object := last.ChildByFieldName("object")
	property := last.ChildByFieldName("property")
	if object == nil || property == nil {
		return "", ""
	}
	return object.Content(code), property.Content(code)
}
