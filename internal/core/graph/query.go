package graph

import (
	"context"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
	"github.com/ishankgp/indegenge-persona-sub003/internal/store"
)

// Direction selects which edges MultiHop walks.
type Direction string

const (
	Outgoing Direction = "out"
	Incoming Direction = "in"
	Both     Direction = "both"
)

// CoverageRules configure gap analysis: node types that need coverage, and
// the relation types that count as covering them.
type CoverageRules struct {
	NeedsCoverage []model.NodeType     `json:"needs_coverage"`
	Covering      []model.RelationType `json:"covering"`
}

func DefaultCoverageRules() CoverageRules {
	return CoverageRules{
		NeedsCoverage: []model.NodeType{
			model.NodePatientTension, model.NodeUnmetNeed,
			model.NodeClinicalConcern, model.NodeMarketBarrier,
		},
		Covering: []model.RelationType{model.RelAddresses, model.RelSupports},
	}
}

// Query answers read-only questions over the stored graph. Every call
// recomputes from persisted state; there is no cache or carried cursor.
type Query struct {
	store store.GraphStore
}

func NewQuery(st store.GraphStore) *Query {
	return &Query{store: st}
}

// Export dumps a brand's full graph with aggregate stats.
func (q *Query) Export(ctx context.Context, brandID string) (*model.GraphExport, error) {
	nodes, err := q.store.ListNodes(ctx, brandID, store.NodeFilter{})
	if err != nil {
		return nil, err
	}
	relations, err := q.store.ListRelations(ctx, brandID, store.RelationFilter{})
	if err != nil {
		return nil, err
	}

	stats := model.GraphStats{
		NodeCount:       len(nodes),
		RelationCount:   len(relations),
		NodesByType:     make(map[model.NodeType]int),
		RelationsByType: make(map[model.RelationType]int),
	}
	for _, n := range nodes {
		stats.NodesByType[n.Type]++
	}
	for _, r := range relations {
		stats.RelationsByType[r.Type]++
		if r.Type == model.RelContradicts {
			stats.Contradictions++
		}
	}
	stats.Gaps = len(gaps(nodes, relations, DefaultCoverageRules()))

	return &model.GraphExport{
		BrandID:   brandID,
		Nodes:     nodes,
		Relations: relations,
		Stats:     stats,
	}, nil
}

// MultiHop walks breadth-first from a start node up to maxHops, returning
// every path of one or more hops. Cycles are cut by a per-path visited set;
// the graph gives no acyclicity guarantee.
func (q *Query) MultiHop(ctx context.Context, startID string, maxHops int, dir Direction) ([]model.Path, error) {
	start, err := q.store.GetNode(ctx, startID)
	if err != nil {
		return nil, err
	}
	if maxHops <= 0 {
		return nil, nil
	}

	relations, err := q.store.ListRelations(ctx, start.BrandID, store.RelationFilter{})
	if err != nil {
		return nil, err
	}

	// Adjacency by node id. Each step records the relation hopped and the
	// node reached.
	type step struct {
		rel  *model.KnowledgeRelation
		next string
	}
	adj := make(map[string][]step)
	for _, r := range relations {
		if dir == Outgoing || dir == Both {
			adj[r.FromNodeID] = append(adj[r.FromNodeID], step{rel: r, next: r.ToNodeID})
		}
		if dir == Incoming || dir == Both {
			adj[r.ToNodeID] = append(adj[r.ToNodeID], step{rel: r, next: r.FromNodeID})
		}
	}

	type walk struct {
		path    model.Path
		visited map[string]bool
	}
	frontier := []walk{{
		path:    model.Path{NodeIDs: []string{startID}},
		visited: map[string]bool{startID: true},
	}}

	var out []model.Path
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []walk
		for _, w := range frontier {
			tail := w.path.NodeIDs[len(w.path.NodeIDs)-1]
			for _, s := range adj[tail] {
				if w.visited[s.next] {
					continue
				}
				extended := model.Path{
					NodeIDs:   append(append([]string(nil), w.path.NodeIDs...), s.next),
					Relations: append(append([]*model.KnowledgeRelation(nil), w.path.Relations...), s.rel),
				}
				visited := make(map[string]bool, len(w.visited)+1)
				for id := range w.visited {
					visited[id] = true
				}
				visited[s.next] = true
				out = append(out, extended)
				next = append(next, walk{path: extended, visited: visited})
			}
		}
		frontier = next
	}
	return out, nil
}

// GapAnalysis returns every node of a needs-coverage type with zero
// incoming edges of a covering type: insights brand messaging never
// addresses.
func (q *Query) GapAnalysis(ctx context.Context, brandID string, rules CoverageRules) ([]*model.KnowledgeNode, error) {
	if len(rules.NeedsCoverage) == 0 {
		rules = DefaultCoverageRules()
	}
	nodes, err := q.store.ListNodes(ctx, brandID, store.NodeFilter{})
	if err != nil {
		return nil, err
	}
	relations, err := q.store.ListRelations(ctx, brandID, store.RelationFilter{})
	if err != nil {
		return nil, err
	}
	return gaps(nodes, relations, rules), nil
}

func gaps(nodes []*model.KnowledgeNode, relations []*model.KnowledgeRelation, rules CoverageRules) []*model.KnowledgeNode {
	needs := make(map[model.NodeType]bool, len(rules.NeedsCoverage))
	for _, t := range rules.NeedsCoverage {
		needs[t] = true
	}
	covering := make(map[model.RelationType]bool, len(rules.Covering))
	for _, t := range rules.Covering {
		covering[t] = true
	}

	covered := make(map[string]bool)
	for _, r := range relations {
		if covering[r.Type] {
			covered[r.ToNodeID] = true
		}
	}

	var out []*model.KnowledgeNode
	for _, n := range nodes {
		if needs[n.Type] && !covered[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// ContradictionScan surfaces every contradicts-typed relation for review.
func (q *Query) ContradictionScan(ctx context.Context, brandID string) ([]*model.KnowledgeRelation, error) {
	return q.store.ListRelations(ctx, brandID, store.RelationFilter{Type: model.RelContradicts})
}
