// Package extract pulls HTTP call sites, route definitions and type
// declarations out of JavaScript/TypeScript source using tree-sitter.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"github.com/stackmesh/stackmesh/internal/relation"
	"github.com/stackmesh/stackmesh/internal/resilience"
	"github.com/stackmesh/stackmesh/internal/schema"
)

// Result aggregates everything pulled from a set of source files.
type Result struct {
	CallSites []relation.CallSite                `json:"call_sites"`
	Routes    []relation.RouteDefinition         `json:"routes"`
	Types     map[string]*schema.TypeDescription `json:"types"`
}

// Extractor parses source files and collects call sites, routes and
// interface declarations. Parse failures are recorded on the handler
// and skip the file rather than aborting the batch.
type Extractor struct {
	handler *resilience.Handler
}

// NewExtractor creates an extractor supervised by the given handler.
func NewExtractor(handler *resilience.Handler) *Extractor {
	return &Extractor{handler: handler}
}

// Source is one file's path and content.
type Source struct {
	Path    string
	Content []byte
}

// Extract processes every source file: frontend call sites, backend
// routes and TypeScript interfaces all come from the same parse.
func (e *Extractor) Extract(sources []Source) (*Result, error) {
	res := &Result{Types: make(map[string]*schema.TypeDescription)}
	for _, src := range sources {
		if !supportedFile(src.Path) {
			continue
		}
		root, err := parse(src.Content)
		if err != nil {
			e.recordParseFailure(src.Path, err)
			continue
		}
		e.collect(root, src, res)
		root.Close()
	}
	return res, nil
}

func supportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".ts", ".tsx", ".mjs":
		return true
	}
	return false
}

// parse runs the tsx grammar, which accepts plain JavaScript as well.
func parse(code []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(tsx.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, code)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	return tree, nil
}

func (e *Extractor) collect(tree *sitter.Tree, src Source, res *Result) {
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Type() {
		case "call_expression":
			if cs := extractCallSite(node, src); cs != nil {
				res.CallSites = append(res.CallSites, *cs)
			}
			if rt := extractRoute(node, src); rt != nil {
				res.Routes = append(res.Routes, *rt)
			}
		case "interface_declaration":
			if desc := extractInterface(node, src.Content); desc != nil {
				res.Types[desc.Name] = desc
			}
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(tree.RootNode())
}

func (e *Extractor) recordParseFailure(path string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.RecordError(resilience.KindPatternMatchFailure, resilience.SeverityMedium,
		fmt.Sprintf("could not parse %s: %v", path, err),
		map[string]string{"file": path})
}
