package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
)

// Neo4jStore keeps the graph in a Neo4j-compatible database (Neo4j or
// Memgraph over bolt). Nodes carry a :Knowledge label; relations are
// RELATES_TO edges with the semantic type as a property, since edge types
// cannot be parameterized in cypher.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

const (
	saveNodeQuery = `
		MERGE (n:Knowledge {id: $id})
		SET n.brand_id = $brand_id,
			n.node_type = $node_type,
			n.text = $text,
			n.summary = $summary,
			n.segment = $segment,
			n.journey_stage = $journey_stage,
			n.sources = $sources,
			n.confidence = $confidence,
			n.verified = $verified,
			n.embedding = $embedding,
			n.created_at = $created_at
		RETURN n.id AS id
	`

	nodeFields = `n.id AS id, n.brand_id AS brand_id, n.node_type AS node_type,
		n.text AS text, n.summary AS summary, n.segment AS segment,
		n.journey_stage AS journey_stage, n.sources AS sources,
		n.confidence AS confidence, n.verified AS verified,
		n.embedding AS embedding, n.created_at AS created_at`

	saveRelationQuery = `
		MATCH (from:Knowledge {id: $from_id})
		MATCH (to:Knowledge {id: $to_id})
		MERGE (from)-[e:RELATES_TO {id: $id}]->(to)
		SET e.brand_id = $brand_id,
			e.relation_type = $relation_type,
			e.strength = $strength,
			e.context = $context,
			e.inferred_by = $inferred_by,
			e.created_at = $created_at
		RETURN e.id AS id
	`

	relationFields = `e.id AS id, e.brand_id AS brand_id,
		from.id AS from_id, to.id AS to_id,
		e.relation_type AS relation_type, e.strength AS strength,
		e.context AS context, e.inferred_by AS inferred_by,
		e.created_at AS created_at`
)

func NewNeo4jStore(ctx context.Context, uri, username, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach graph database at %s: %w", uri, err)
	}
	s := &Neo4jStore{driver: driver}
	if err := s.buildIndices(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Neo4jStore) buildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX knowledge_id IF NOT EXISTS FOR (n:Knowledge) ON (n.id)",
		"CREATE INDEX knowledge_brand_type IF NOT EXISTS FOR (n:Knowledge) ON (n.brand_id, n.node_type)",
		"CREATE INDEX relates_id IF NOT EXISTS FOR ()-[e:RELATES_TO]-() ON (e.id)",
	}
	for _, q := range queries {
		if _, err := s.run(ctx, q, nil); err != nil {
			return fmt.Errorf("failed to build index: %w", err)
		}
	}
	return nil
}

func (s *Neo4jStore) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
}

func (s *Neo4jStore) CreateNode(ctx context.Context, n *model.KnowledgeNode) error {
	if err := n.Validate(); err != nil {
		return err
	}
	sources, err := json.Marshal(n.Sources)
	if err != nil {
		return err
	}
	embedding, err := json.Marshal(n.Embedding)
	if err != nil {
		return err
	}
	_, err = s.run(ctx, saveNodeQuery, map[string]any{
		"id":            n.ID,
		"brand_id":      n.BrandID,
		"node_type":     string(n.Type),
		"text":          n.Text,
		"summary":       n.Summary,
		"segment":       n.Segment,
		"journey_stage": n.JourneyStage,
		"sources":       string(sources),
		"confidence":    n.Confidence,
		"verified":      n.Verified,
		"embedding":     string(embedding),
		"created_at":    n.CreatedAt.UnixNano(),
	})
	return err
}

func recordString(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func recordFloat(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	f, _ := v.(float64)
	return f
}

func recordBool(rec *neo4j.Record, key string) bool {
	v, _ := rec.Get(key)
	b, _ := v.(bool)
	return b
}

func recordInt(rec *neo4j.Record, key string) int64 {
	v, _ := rec.Get(key)
	i, _ := v.(int64)
	return i
}

func nodeFromRecord(rec *neo4j.Record) (*model.KnowledgeNode, error) {
	n := &model.KnowledgeNode{
		ID:           recordString(rec, "id"),
		BrandID:      recordString(rec, "brand_id"),
		Type:         model.NodeType(recordString(rec, "node_type")),
		Text:         recordString(rec, "text"),
		Summary:      recordString(rec, "summary"),
		Segment:      recordString(rec, "segment"),
		JourneyStage: recordString(rec, "journey_stage"),
		Confidence:   recordFloat(rec, "confidence"),
		Verified:     recordBool(rec, "verified"),
		CreatedAt:    time.Unix(0, recordInt(rec, "created_at")).UTC(),
	}
	if raw := recordString(rec, "sources"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &n.Sources); err != nil {
			return nil, err
		}
	}
	if raw := recordString(rec, "embedding"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &n.Embedding); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func relationFromRecord(rec *neo4j.Record) *model.KnowledgeRelation {
	return &model.KnowledgeRelation{
		ID:         recordString(rec, "id"),
		BrandID:    recordString(rec, "brand_id"),
		FromNodeID: recordString(rec, "from_id"),
		ToNodeID:   recordString(rec, "to_id"),
		Type:       model.RelationType(recordString(rec, "relation_type")),
		Strength:   recordFloat(rec, "strength"),
		Context:    recordString(rec, "context"),
		InferredBy: model.Provenance(recordString(rec, "inferred_by")),
		CreatedAt:  time.Unix(0, recordInt(rec, "created_at")).UTC(),
	}
}

func (s *Neo4jStore) GetNode(ctx context.Context, id string) (*model.KnowledgeNode, error) {
	res, err := s.run(ctx, "MATCH (n:Knowledge {id: $id}) RETURN "+nodeFields, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, &model.NotFoundError{Kind: "node", ID: id}
	}
	return nodeFromRecord(res.Records[0])
}

func (s *Neo4jStore) ListNodes(ctx context.Context, brandID string, f NodeFilter) ([]*model.KnowledgeNode, error) {
	query := "MATCH (n:Knowledge {brand_id: $brand_id}) "
	params := map[string]any{"brand_id": brandID}
	if f.Type != "" {
		query += "WHERE n.node_type = $node_type "
		params["node_type"] = string(f.Type)
	}
	query += "RETURN " + nodeFields + " ORDER BY n.created_at ASC, n.id ASC"
	res, err := s.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	var out []*model.KnowledgeNode
	for _, rec := range res.Records {
		n, err := nodeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if f.Segment != "" && n.Segment != f.Segment {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Neo4jStore) DeleteNode(ctx context.Context, id string) error {
	if _, err := s.GetNode(ctx, id); err != nil {
		return err
	}
	// DETACH DELETE removes every edge touching the node in the same
	// statement, which is the cascade the data model requires.
	_, err := s.run(ctx, "MATCH (n:Knowledge {id: $id}) DETACH DELETE n", map[string]any{"id": id})
	return err
}

func (s *Neo4jStore) MergeSource(ctx context.Context, id string, src model.SourceRef, confidence float64) error {
	n, err := s.GetNode(ctx, id)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(append(n.Sources, src))
	if err != nil {
		return err
	}
	merged := n.Confidence
	if confidence > merged {
		merged = confidence
	}
	_, err = s.run(ctx,
		"MATCH (n:Knowledge {id: $id}) SET n.sources = $sources, n.confidence = $confidence",
		map[string]any{"id": id, "sources": string(sources), "confidence": merged})
	return err
}

func (s *Neo4jStore) SetVerified(ctx context.Context, id string, verified bool) error {
	if _, err := s.GetNode(ctx, id); err != nil {
		return err
	}
	_, err := s.run(ctx,
		"MATCH (n:Knowledge {id: $id}) SET n.verified = $verified",
		map[string]any{"id": id, "verified": verified})
	return err
}

func (s *Neo4jStore) CreateRelation(ctx context.Context, r *model.KnowledgeRelation) error {
	if err := checkRelation(ctx, s, r); err != nil {
		return err
	}
	_, err := s.run(ctx, saveRelationQuery, map[string]any{
		"id":            r.ID,
		"brand_id":      r.BrandID,
		"from_id":       r.FromNodeID,
		"to_id":         r.ToNodeID,
		"relation_type": string(r.Type),
		"strength":      r.Strength,
		"context":       r.Context,
		"inferred_by":   string(r.InferredBy),
		"created_at":    r.CreatedAt.UnixNano(),
	})
	return err
}

func (s *Neo4jStore) GetRelation(ctx context.Context, id string) (*model.KnowledgeRelation, error) {
	res, err := s.run(ctx,
		"MATCH (from:Knowledge)-[e:RELATES_TO {id: $id}]->(to:Knowledge) RETURN "+relationFields,
		map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, &model.NotFoundError{Kind: "relation", ID: id}
	}
	return relationFromRecord(res.Records[0]), nil
}

func (s *Neo4jStore) ListRelations(ctx context.Context, brandID string, f RelationFilter) ([]*model.KnowledgeRelation, error) {
	query := "MATCH (from:Knowledge)-[e:RELATES_TO {brand_id: $brand_id}]->(to:Knowledge) "
	params := map[string]any{"brand_id": brandID}
	if f.Type != "" {
		query += "WHERE e.relation_type = $relation_type "
		params["relation_type"] = string(f.Type)
	}
	query += "RETURN " + relationFields + " ORDER BY e.created_at ASC, e.id ASC"
	res, err := s.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	var out []*model.KnowledgeRelation
	for _, rec := range res.Records {
		out = append(out, relationFromRecord(rec))
	}
	return out, nil
}

func (s *Neo4jStore) DeleteRelation(ctx context.Context, id string) error {
	if _, err := s.GetRelation(ctx, id); err != nil {
		return err
	}
	_, err := s.run(ctx, "MATCH ()-[e:RELATES_TO {id: $id}]->() DELETE e", map[string]any{"id": id})
	return err
}

func (s *Neo4jStore) PurgeDocument(ctx context.Context, brandID, documentID string) error {
	// Sources are a JSON property, so membership is decided in Go.
	nodes, err := s.ListNodes(ctx, brandID, NodeFilter{})
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if onlySource(n, documentID) {
			if err := s.DeleteNode(ctx, n.ID); err != nil && !model.IsNotFound(err) {
				return err
			}
			continue
		}
		kept := dropSource(n.Sources, documentID)
		if len(kept) == len(n.Sources) {
			continue
		}
		raw, err := json.Marshal(kept)
		if err != nil {
			return err
		}
		if _, err := s.run(ctx,
			"MATCH (n:Knowledge {id: $id}) SET n.sources = $sources",
			map[string]any{"id": n.ID, "sources": string(raw)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
