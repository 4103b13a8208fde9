package extract

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stackmesh/stackmesh/internal/resilience"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	h := resilience.NewHandler(resilience.Options{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		DisableGC:        true,
		EvictionInterval: time.Hour,
	})
	t.Cleanup(h.Close)
	return NewExtractor(h)
}

func extractOne(t *testing.T, path, code string) *Result {
	t.Helper()
	res, err := newTestExtractor(t).Extract([]Source{{Path: path, Content: []byte(code)}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return res
}

func TestExtract_FetchCallSite(t *testing.T) {
	code := "async function load(id) {\n" +
		"  const res = await fetch(`/users/${id}`);\n" +
		"  return res.json();\n" +
		"}\n"
	res := extractOne(t, "src/api.ts", code)

	if len(res.CallSites) != 1 {
		t.Fatalf("expected 1 call site, got %d", len(res.CallSites))
	}
	cs := res.CallSites[0]
	if cs.Method != "GET" {
		t.Errorf("fetch without options defaults to GET, got %s", cs.Method)
	}
	if cs.Pattern.Normalized != "/users/{id}" {
		t.Errorf("unexpected normalized pattern: %s", cs.Pattern.Normalized)
	}
	if cs.Location.File != "src/api.ts" || cs.Location.Line != 2 {
		t.Errorf("unexpected location: %+v", cs.Location)
	}
}

func TestExtract_FetchWithMethodOption(t *testing.T) {
	code := "fetch('/users', { method: 'POST', body: payload });\n"
	res := extractOne(t, "src/api.js", code)

	if len(res.CallSites) != 1 {
		t.Fatalf("expected 1 call site, got %d", len(res.CallSites))
	}
	if res.CallSites[0].Method != "POST" {
		t.Errorf("expected POST, got %s", res.CallSites[0].Method)
	}
}

func TestExtract_AxiosCallSites(t *testing.T) {
	code := "axios.get('/orders');\n" +
		"axios.post('/orders', order);\n" +
		"axios.request({ url: '/ignored' });\n"
	res := extractOne(t, "src/orders.js", code)

	if len(res.CallSites) != 2 {
		t.Fatalf("expected 2 call sites, got %d", len(res.CallSites))
	}
	if res.CallSites[0].Method != "GET" || res.CallSites[1].Method != "POST" {
		t.Errorf("unexpected methods: %s, %s", res.CallSites[0].Method, res.CallSites[1].Method)
	}
}

func TestExtract_ExpressRoutes(t *testing.T) {
	code := "app.get('/users/:id', userController.show);\n" +
		"router.post('/users', userController.create);\n" +
		"app.use(middleware);\n"
	res := extractOne(t, "routes/users.js", code)

	if len(res.Routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(res.Routes))
	}
	show := res.Routes[0]
	if show.Path != "/users/:id" || show.Method != "GET" {
		t.Errorf("unexpected route: %+v", show)
	}
	if show.Pattern.Normalized != "/users/{id}" {
		t.Errorf("colon parameter not normalized: %s", show.Pattern.Normalized)
	}
	if show.Controller != "userController" || show.Action != "show" {
		t.Errorf("unexpected handler: %s.%s", show.Controller, show.Action)
	}
}

func TestExtract_OptionalColonParameter(t *testing.T) {
	code := "app.get('/posts/:slug?', handler);\n"
	res := extractOne(t, "routes/posts.js", code)

	if len(res.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(res.Routes))
	}
	params := res.Routes[0].Pattern.Parameters
	if len(params) != 1 || !params[0].Optional {
		t.Errorf("expected one optional parameter, got %+v", params)
	}
}

func TestExtract_Interface(t *testing.T) {
	code := "interface CreateUserRequest {\n" +
		"  firstName: string;\n" +
		"  age?: number;\n" +
		"  tags: string[];\n" +
		"}\n"
	res := extractOne(t, "src/types.ts", code)

	desc, ok := res.Types["CreateUserRequest"]
	if !ok {
		t.Fatalf("interface not extracted: %v", res.Types)
	}
	if len(desc.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(desc.Fields))
	}
	if desc.Fields[0].Name != "firstName" || desc.Fields[0].Type != "string" || desc.Fields[0].Optional {
		t.Errorf("unexpected first field: %+v", desc.Fields[0])
	}
	if !desc.Fields[1].Optional {
		t.Error("age must be optional")
	}
	if desc.Fields[2].Type != "array" {
		t.Errorf("expected array type, got %s", desc.Fields[2].Type)
	}
}

func TestExtract_UnsupportedFilesSkipped(t *testing.T) {
	res := extractOne(t, "README.md", "fetch('/users')")
	if len(res.CallSites) != 0 {
		t.Errorf("markdown must not be parsed, got %d call sites", len(res.CallSites))
	}
}
