package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/stackmesh/stackmesh/internal/schema"
)

// extractInterface converts a TypeScript interface declaration into a
// field-level type description.
func extractInterface(node *sitter.Node, code []byte) *schema.TypeDescription {
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}

	desc := &schema.TypeDescription{Name: nameNode.Content(code)}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		prop := body.NamedChild(i)
		if prop.Type() != "property_signature" {
			continue
		}
		fieldName := prop.ChildByFieldName("name")
		if fieldName == nil {
			continue
		}
		desc.Fields = append(desc.Fields, schema.Field{
			Name:     fieldName.Content(code),
			Type:     annotatedType(prop, code),
			Optional: hasOptionalMarker(prop),
		})
	}
	return desc
}

// annotatedType maps a TypeScript type annotation onto the analyzer's
// type vocabulary.
func annotatedType(prop *sitter.Node, code []byte) string {
	annotation := prop.ChildByFieldName("type")
	if annotation == nil {
		return "any"
	}
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(annotation.Content(code)), ":"))
	lower := strings.ToLower(raw)
	switch {
	case lower == "string" || lower == "number" || lower == "boolean" ||
		lower == "any" || lower == "unknown":
		return lower
	case strings.HasSuffix(raw, "[]"), strings.HasPrefix(raw, "Array<"):
		return "array"
	default:
		return "object"
	}
}

func hasOptionalMarker(prop *sitter.Node) bool {
	for i := 0; i < int(prop.ChildCount()); i++ {
		if prop.Child(i).Type() == "?" {
			return true
		}
	}
	return false
}
