package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
)

// MemoryStore keeps the graph in process memory. It backs tests and the
// zero-config development mode. All reads hand out copies.
type MemoryStore struct {
	mu        sync.RWMutex
	nodes     map[string]*model.KnowledgeNode
	relations map[string]*model.KnowledgeRelation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:     make(map[string]*model.KnowledgeNode),
		relations: make(map[string]*model.KnowledgeRelation),
	}
}

func cloneNode(n *model.KnowledgeNode) *model.KnowledgeNode {
	c := *n
	c.Sources = append([]model.SourceRef(nil), n.Sources...)
	c.Embedding = append([]float32(nil), n.Embedding...)
	return &c
}

func cloneRelation(r *model.KnowledgeRelation) *model.KnowledgeRelation {
	c := *r
	return &c
}

func (s *MemoryStore) CreateNode(ctx context.Context, n *model.KnowledgeNode) error {
	if err := n.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID] = cloneNode(n)
	return nil
}

func (s *MemoryStore) GetNode(ctx context.Context, id string) (*model.KnowledgeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: "node", ID: id}
	}
	return cloneNode(n), nil
}

func (s *MemoryStore) ListNodes(ctx context.Context, brandID string, f NodeFilter) ([]*model.KnowledgeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.KnowledgeNode
	for _, n := range s.nodes {
		if n.BrandID != brandID || !matchNode(n, f) {
			continue
		}
		out = append(out, cloneNode(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return &model.NotFoundError{Kind: "node", ID: id}
	}
	delete(s.nodes, id)
	s.deleteRelationsOfLocked(id)
	return nil
}

func (s *MemoryStore) deleteRelationsOfLocked(nodeID string) {
	for rid, r := range s.relations {
		if r.FromNodeID == nodeID || r.ToNodeID == nodeID {
			delete(s.relations, rid)
		}
	}
}

func (s *MemoryStore) MergeSource(ctx context.Context, id string, src model.SourceRef, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return &model.NotFoundError{Kind: "node", ID: id}
	}
	n.Sources = append(n.Sources, src)
	if confidence > n.Confidence {
		n.Confidence = confidence
	}
	return nil
}

func (s *MemoryStore) SetVerified(ctx context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return &model.NotFoundError{Kind: "node", ID: id}
	}
	n.Verified = verified
	return nil
}

func (s *MemoryStore) CreateRelation(ctx context.Context, r *model.KnowledgeRelation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	from, ok := s.nodes[r.FromNodeID]
	if !ok {
		return &model.NotFoundError{Kind: "node", ID: r.FromNodeID}
	}
	to, ok := s.nodes[r.ToNodeID]
	if !ok {
		return &model.NotFoundError{Kind: "node", ID: r.ToNodeID}
	}
	if from.BrandID != r.BrandID || to.BrandID != r.BrandID {
		return &model.ValidationError{
			BrandID: r.BrandID,
			ID:      r.ID,
			Field:   "brand_id",
			Reason:  "relation and both endpoints must belong to the same brand",
		}
	}
	s.relations[r.ID] = cloneRelation(r)
	return nil
}

func (s *MemoryStore) GetRelation(ctx context.Context, id string) (*model.KnowledgeRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.relations[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: "relation", ID: id}
	}
	return cloneRelation(r), nil
}

func (s *MemoryStore) ListRelations(ctx context.Context, brandID string, f RelationFilter) ([]*model.KnowledgeRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.KnowledgeRelation
	for _, r := range s.relations {
		if r.BrandID != brandID {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		out = append(out, cloneRelation(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteRelation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relations[id]; !ok {
		return &model.NotFoundError{Kind: "relation", ID: id}
	}
	delete(s.relations, id)
	return nil
}

func (s *MemoryStore) PurgeDocument(ctx context.Context, brandID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.nodes {
		if n.BrandID != brandID {
			continue
		}
		if onlySource(n, documentID) {
			delete(s.nodes, id)
			s.deleteRelationsOfLocked(id)
			continue
		}
		n.Sources = dropSource(n.Sources, documentID)
	}
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }
