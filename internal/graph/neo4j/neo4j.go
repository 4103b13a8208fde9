// Package neo4j stores detected relationships in a Neo4j graph as
// (:CallSite)-[:RESOLVES_TO]->(:Route) edges.
package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/stackmesh/stackmesh/internal/graph"
	"github.com/stackmesh/stackmesh/internal/pattern"
	"github.com/stackmesh/stackmesh/internal/relation"
)

// Neo4jRepository implements graph.Repository using Neo4j.
type Neo4jRepository struct {
	driver neo4j.DriverWithContext
}

// NewNeo4j creates a Neo4j-backed repository.
func NewNeo4j(ctx context.Context, uri, username, password string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver}, nil
}

func (r *Neo4jRepository) StoreRelationships(ctx context.Context, rels []relation.CrossStackRelationship) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, rel := range rels {
		rel := rel
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx,
				"MERGE (c:CallSite {url: $url, method: $method}) "+
					"SET c.normalized = $normalized, c.file = $file, c.line = $line, c.component = $component",
				map[string]any{
					"url":        rel.CallSite.URL,
					"method":     rel.CallSite.Method,
					"normalized": rel.CallSite.Pattern.Normalized,
					"file":       rel.CallSite.Location.File,
					"line":       rel.CallSite.Location.Line,
					"component":  rel.CallSite.Component,
				})
			if err != nil {
				return nil, err
			}
			_, err = tx.Run(ctx,
				"MERGE (r:Route {path: $path, method: $method}) "+
					"SET r.normalized = $normalized, r.controller = $controller, r.source_file = $source",
				map[string]any{
					"path":       rel.Route.Path,
					"method":     rel.Route.Method,
					"normalized": rel.Route.Pattern.Normalized,
					"controller": rel.Route.Controller,
					"source":     rel.Route.SourceFile,
				})
			if err != nil {
				return nil, err
			}
			_, err = tx.Run(ctx,
				"MATCH (c:CallSite {url: $url, method: $cmethod}), (r:Route {path: $path, method: $rmethod}) "+
					"MERGE (c)-[e:RESOLVES_TO]->(r) "+
					"SET e.score = $score, e.match_type = $matchType, e.evidence = $evidence",
				map[string]any{
					"url":       rel.CallSite.URL,
					"cmethod":   rel.CallSite.Method,
					"path":      rel.Route.Path,
					"rmethod":   rel.Route.Method,
					"score":     rel.Similarity.Score,
					"matchType": string(rel.Similarity.MatchType),
					"evidence":  strings.Join(rel.EvidenceTags, ","),
				})
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("store relationship %s -> %s: %w", rel.CallSite.URL, rel.Route.Path, err)
		}
	}
	return nil
}

func (r *Neo4jRepository) LoadRelationships(ctx context.Context) ([]relation.CrossStackRelationship, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (c:CallSite)-[e:RESOLVES_TO]->(r:Route) "+
				"RETURN c.url, c.method, r.path, r.method, e.score, e.match_type, e.evidence",
			nil)
		if err != nil {
			return nil, err
		}

		var rels []relation.CrossStackRelationship
		for records.Next(ctx) {
			rec := records.Record()
			url, _ := rec.Get("c.url")
			cmethod, _ := rec.Get("c.method")
			path, _ := rec.Get("r.path")
			rmethod, _ := rec.Get("r.method")
			score, _ := rec.Get("e.score")
			matchType, _ := rec.Get("e.match_type")
			evidence, _ := rec.Get("e.evidence")

			rel := relation.CrossStackRelationship{
				CallSite: relation.CallSite{
					URL:    asString(url),
					Method: asString(cmethod),
				},
				Route: relation.RouteDefinition{
					Path:   asString(path),
					Method: asString(rmethod),
				},
				Similarity: pattern.SimilarityResult{
					MatchType: pattern.MatchType(asString(matchType)),
				},
			}
			if f, ok := score.(float64); ok {
				rel.Similarity.Score = f
			}
			if ev := asString(evidence); ev != "" {
				rel.EvidenceTags = strings.Split(ev, ",")
			}
			rels = append(rels, rel)
		}
		return rels, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]relation.CrossStackRelationship), nil
}

func (r *Neo4jRepository) QueryRoutesForCallSite(ctx context.Context, url string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (:CallSite {url: $url})-[:RESOLVES_TO]->(r:Route) RETURN r.path",
			map[string]any{"url": url})
		if err != nil {
			return nil, err
		}
		var paths []string
		for records.Next(ctx) {
			p, _ := records.Record().Get("r.path")
			paths = append(paths, asString(p))
		}
		return paths, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

var _ graph.Repository = (*Neo4jRepository)(nil)
