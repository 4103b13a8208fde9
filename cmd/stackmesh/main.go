package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackmesh/stackmesh/internal/config"
	"github.com/stackmesh/stackmesh/internal/extract"
	"github.com/stackmesh/stackmesh/internal/graph/neo4j"
	"github.com/stackmesh/stackmesh/internal/monitor"
	"github.com/stackmesh/stackmesh/internal/observability"
	"github.com/stackmesh/stackmesh/internal/pattern"
	"github.com/stackmesh/stackmesh/internal/relation"
	"github.com/stackmesh/stackmesh/internal/resilience"
	"github.com/stackmesh/stackmesh/internal/schema"
	"github.com/stackmesh/stackmesh/internal/server"
)

const version = "0.1.0"

func main() {
	var (
		configPath string
		callsPath  string
		routesPath string
		typesPath  string
		sourceDir  string
		jsonOutput bool
		store      bool
		oldPath    string
		newPath    string
	)

	rootCmd := &cobra.Command{
		Use:   "stackmesh",
		Short: "Cross-stack API relationship detector",
	}

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect relationships between frontend call sites and backend routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(configPath, callsPath, routesPath, typesPath, sourceDir, jsonOutput, store)
		},
	}
	detectCmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	detectCmd.Flags().StringVar(&callsPath, "calls", "", "JSON file of call sites")
	detectCmd.Flags().StringVar(&routesPath, "routes", "", "JSON file of route definitions")
	detectCmd.Flags().StringVar(&typesPath, "types", "", "JSON file of frontend type descriptions")
	detectCmd.Flags().StringVar(&sourceDir, "source", "", "Source directory to extract from")
	detectCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output relationships as JSON")
	detectCmd.Flags().BoolVar(&store, "store", false, "Persist relationships to the configured graph store")

	driftCmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare two snapshots of a type description",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrift(oldPath, newPath, jsonOutput)
		},
	}
	driftCmd.Flags().StringVar(&oldPath, "old", "", "JSON file with the older type description")
	driftCmd.Flags().StringVar(&newPath, "new", "", "JSON file with the newer type description")
	driftCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output drift record as JSON")
	_ = driftCmd.MarkFlagRequired("old")
	_ = driftCmd.MarkFlagRequired("new")

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract call sites, routes and types from a source tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(configPath, sourceDir, jsonOutput)
		},
	}
	extractCmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	extractCmd.Flags().StringVar(&sourceDir, "source", "", "Source directory to extract from")
	extractCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output extraction result as JSON")
	_ = extractCmd.MarkFlagRequired("source")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", "", "Config file path")

	rootCmd.AddCommand(detectCmd, driftCmd, extractCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newHandler(cfg *config.Config, log *slog.Logger) *resilience.Handler {
	return resilience.NewHandler(resilience.Options{
		MaxErrors:        cfg.Resilience.MaxErrors,
		MaxMetrics:       cfg.Resilience.MaxMetrics,
		ErrorRetention:   cfg.Resilience.ErrorRetention(),
		MetricRetention:  cfg.Resilience.MetricRetention(),
		SlowOpThreshold:  cfg.Resilience.SlowOpThreshold(),
		MemoryLimitMB:    cfg.Resilience.MemoryLimitMB,
		EvictionInterval: cfg.Resilience.EvictionInterval(),
		Logger:           log,
	})
}

func runDetect(configPath, callsPath, routesPath, typesPath, sourceDir string, jsonOutput, store bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	ctx := context.Background()
	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "stackmesh",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tp.Shutdown(ctx)

	handler := newHandler(cfg, log)
	defer handler.Close()

	var (
		callSites []relation.CallSite
		routes    []relation.RouteDefinition
		types     = make(map[string]*schema.TypeDescription)
	)

	if sourceDir != "" {
		sources, err := collectSources(sourceDir)
		if err != nil {
			return fmt.Errorf("collect sources: %w", err)
		}
		_, span := observability.StartExtractSpan(ctx, "typescript", len(sources))
		res, err := extract.NewExtractor(handler).Extract(sources)
		if err == nil {
			observability.RecordExtractResult(span, len(res.CallSites), len(res.Routes), len(res.Types))
		}
		observability.RecordError(span, err)
		span.End()
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		callSites = append(callSites, res.CallSites...)
		routes = append(routes, res.Routes...)
		for name, desc := range res.Types {
			types[name] = desc
		}
		log.Info("extracted from source",
			"files", len(sources),
			"call_sites", len(res.CallSites),
			"routes", len(res.Routes),
			"types", len(res.Types))
	}

	if callsPath != "" {
		loaded, err := loadCallSites(callsPath)
		if err != nil {
			return err
		}
		callSites = append(callSites, loaded...)
	}
	if routesPath != "" {
		loaded, err := loadRoutes(routesPath)
		if err != nil {
			return err
		}
		routes = append(routes, loaded...)
	}
	if typesPath != "" {
		loaded, err := loadTypes(typesPath)
		if err != nil {
			return err
		}
		for name, desc := range loaded {
			types[name] = desc
		}
	}

	detector := relation.NewDetector(relation.Config{
		Threshold: cfg.Detection.SimilarityThreshold,
		Workers:   cfg.Detection.Workers,
	}, handler, schema.NewAnalyzer(cfg.Detection.SchemaThreshold))
	detector.Types = types

	detectCtx, span := observability.StartDetectSpan(ctx, len(callSites), len(routes))
	start := time.Now()
	rels, err := detector.Detect(detectCtx, callSites, routes)
	elapsed := time.Since(start)
	observability.RecordError(span, err)
	if err == nil {
		observability.RecordDetectResult(span, len(rels), elapsed)
	}
	span.End()
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	handler.RecordMetrics("relationship_detection", float64(elapsed.Milliseconds()), resilience.HeapMB(), 0, 0)

	if jsonOutput {
		data, _ := json.MarshalIndent(rels, "", "  ")
		fmt.Println(string(data))
	} else {
		printRelationships(rels)
	}

	if store {
		if cfg.Graph.URI == "" {
			return fmt.Errorf("--store requires graph.uri in config")
		}
		repo, err := neo4j.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
		if err != nil {
			return fmt.Errorf("connect graph store: %w", err)
		}
		defer repo.Close(ctx)

		storeCtx, span := observability.StartGraphSpan(ctx, "store", len(rels))
		err = repo.StoreRelationships(storeCtx, rels)
		observability.RecordError(span, err)
		span.End()
		if err != nil {
			return fmt.Errorf("store relationships: %w", err)
		}
		log.Info("relationships persisted", "count", len(rels))
	}

	return nil
}

func printRelationships(rels []relation.CrossStackRelationship) {
	if len(rels) == 0 {
		fmt.Println("No relationships detected.")
		return
	}
	fmt.Printf("Detected %d relationship(s):\n\n", len(rels))
	for _, rel := range rels {
		fmt.Printf("  %.3f  %-9s %s %s -> %s %s\n",
			rel.Similarity.Score, rel.Similarity.MatchType,
			rel.CallSite.Method, rel.CallSite.URL,
			rel.Route.Method, rel.Route.Path)
		if rel.SchemaCompatibility != nil {
			verdict := "incompatible"
			if rel.SchemaCompatibility.Compatible {
				verdict = "compatible"
			}
			fmt.Printf("         schema: %s (%.2f)\n", verdict, rel.SchemaCompatibility.Score)
		}
	}
}

func runDrift(oldPath, newPath string, jsonOutput bool) error {
	oldDesc, err := loadTypeDescription(oldPath)
	if err != nil {
		return fmt.Errorf("read old snapshot: %w", err)
	}
	newDesc, err := loadTypeDescription(newPath)
	if err != nil {
		return fmt.Errorf("read new snapshot: %w", err)
	}

	name := newDesc.Name
	if name == "" {
		name = oldDesc.Name
	}
	drift := schema.ComputeDrift(name, oldDesc.Fields, newDesc.Fields)

	if jsonOutput {
		data, _ := json.MarshalIndent(drift, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Interface: %s\n", drift.InterfaceName)
		fmt.Printf("Severity:  %s\n", drift.Severity)
		if len(drift.FieldsAdded) > 0 {
			fmt.Printf("Added:     %s\n", strings.Join(drift.FieldsAdded, ", "))
		}
		if len(drift.FieldsRemoved) > 0 {
			fmt.Printf("Removed:   %s\n", strings.Join(drift.FieldsRemoved, ", "))
		}
		for _, change := range drift.FieldsModified {
			fmt.Printf("Modified:  %s (%s -> %s)\n", change.Field, change.OldType, change.NewType)
		}
		fmt.Printf("Action:    %s\n", drift.RecommendedAction)
	}

	if drift.Severity == schema.DriftHigh {
		return fmt.Errorf("high-severity drift on %s", drift.InterfaceName)
	}
	return nil
}

func runExtract(configPath, sourceDir string, jsonOutput bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	handler := newHandler(cfg, log)
	defer handler.Close()

	sources, err := collectSources(sourceDir)
	if err != nil {
		return fmt.Errorf("collect sources: %w", err)
	}
	res, err := extract.NewExtractor(handler).Extract(sources)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Call sites (%d):\n", len(res.CallSites))
	for _, cs := range res.CallSites {
		fmt.Printf("  %-7s %s  (%s:%d)\n", cs.Method, cs.URL, cs.Location.File, cs.Location.Line)
	}
	fmt.Printf("Routes (%d):\n", len(res.Routes))
	for _, rt := range res.Routes {
		fmt.Printf("  %-7s %s  %s.%s\n", rt.Method, rt.Path, rt.Controller, rt.Action)
	}
	fmt.Printf("Types (%d):\n", len(res.Types))
	for name, desc := range res.Types {
		fmt.Printf("  %s (%d fields)\n", name, len(desc.Fields))
	}
	return nil
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	ctx := context.Background()
	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "stackmesh",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	handler := newHandler(cfg, log)
	hub := monitor.NewHub()
	handler.Subscribe(monitor.NewEmitter(hub))

	api := server.NewAPI(version, handler, hub, log)
	httpServer := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     api.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	shutdown := server.NewShutdownHandler(nil)
	httpHook := server.HTTPServerShutdownHook("monitor-api", httpServer.Shutdown)
	shutdown.RegisterHook(httpHook.Name, httpHook.Priority, httpHook.Fn)
	resHook := server.ResilienceShutdownHook(handler.Close)
	shutdown.RegisterHook(resHook.Name, resHook.Priority, resHook.Fn)
	traceHook := server.TracingShutdownHook(tp.Shutdown)
	shutdown.RegisterHook(traceHook.Name, traceHook.Priority, traceHook.Fn)
	shutdown.Start()

	api.Health().SetReady(true)
	log.Info("monitoring server listening", "addr", cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-shutdown.Done():
		log.Info("monitoring server stopped")
		return nil
	}
}

func collectSources(dir string) ([]extract.Source, error) {
	var sources []extract.Source
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "node_modules" || strings.HasPrefix(info.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sources = append(sources, extract.Source{Path: path, Content: content})
		return nil
	})
	return sources, err
}

// callSiteInput mirrors relation.CallSite without the derived pattern.
type callSiteInput struct {
	URL         string `json:"url"`
	Method      string `json:"method"`
	RequestType string `json:"request_type,omitempty"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"`
	Component   string `json:"component,omitempty"`
}

func loadCallSites(path string) ([]relation.CallSite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read call sites: %w", err)
	}
	var inputs []callSiteInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse call sites: %w", err)
	}
	out := make([]relation.CallSite, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, relation.CallSite{
			URL:         in.URL,
			Method:      in.Method,
			Pattern:     pattern.Normalize(in.URL),
			RequestType: in.RequestType,
			Location:    relation.SourceLocation{File: in.File, Line: in.Line},
			Component:   in.Component,
		})
	}
	return out, nil
}

type routeInput struct {
	Path            string                  `json:"path"`
	Method          string                  `json:"method"`
	Controller      string                  `json:"controller,omitempty"`
	Action          string                  `json:"action,omitempty"`
	ValidationRules []schema.ValidationRule `json:"validation_rules,omitempty"`
	SourceFile      string                  `json:"source_file,omitempty"`
}

func loadRoutes(path string) ([]relation.RouteDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	var inputs []routeInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	out := make([]relation.RouteDefinition, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, relation.RouteDefinition{
			Path:            in.Path,
			Method:          in.Method,
			Pattern:         pattern.Normalize(in.Path),
			Controller:      in.Controller,
			Action:          in.Action,
			ValidationRules: in.ValidationRules,
			SourceFile:      in.SourceFile,
		})
	}
	return out, nil
}

func loadTypes(path string) (map[string]*schema.TypeDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read types: %w", err)
	}
	var descs []schema.TypeDescription
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("parse types: %w", err)
	}
	out := make(map[string]*schema.TypeDescription, len(descs))
	for i := range descs {
		out[descs[i].Name] = &descs[i]
	}
	return out, nil
}

func loadTypeDescription(path string) (*schema.TypeDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var desc schema.TypeDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}
