package store

import (
	"context"
	"time"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
)

// NodeFilter narrows ListNodes. Zero values mean "no constraint".
type NodeFilter struct {
	Type    model.NodeType
	Segment string
}

type RelationFilter struct {
	Type model.RelationType
}

// GraphStore is the single mutable shared resource of the engine. All
// methods exchange fully-materialized values; callers never receive handles
// into a backend's internal state.
type GraphStore interface {
	CreateNode(ctx context.Context, n *model.KnowledgeNode) error
	GetNode(ctx context.Context, id string) (*model.KnowledgeNode, error)
	// ListNodes returns the brand's nodes ordered by creation time.
	ListNodes(ctx context.Context, brandID string, f NodeFilter) ([]*model.KnowledgeNode, error)
	// DeleteNode removes a node and every relation touching it.
	DeleteNode(ctx context.Context, id string) error
	// MergeSource is the dedup merge: append a source ref and raise the
	// node's confidence to max(existing, candidate).
	MergeSource(ctx context.Context, id string, src model.SourceRef, confidence float64) error
	SetVerified(ctx context.Context, id string, verified bool) error

	CreateRelation(ctx context.Context, r *model.KnowledgeRelation) error
	GetRelation(ctx context.Context, id string) (*model.KnowledgeRelation, error)
	ListRelations(ctx context.Context, brandID string, f RelationFilter) ([]*model.KnowledgeRelation, error)
	DeleteRelation(ctx context.Context, id string) error

	// PurgeDocument rolls back a cancelled or orphaned extraction batch:
	// nodes sourced only from the document are deleted (with their
	// relations); nodes with other sources just lose the ref.
	PurgeDocument(ctx context.Context, brandID, documentID string) error

	Close(ctx context.Context) error
}

// checkRelation enforces the referential invariants shared by every
// backend: valid fields, existing endpoints, one brand across the relation
// and both endpoints.
func checkRelation(ctx context.Context, s GraphStore, r *model.KnowledgeRelation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	from, err := s.GetNode(ctx, r.FromNodeID)
	if err != nil {
		return err
	}
	to, err := s.GetNode(ctx, r.ToNodeID)
	if err != nil {
		return err
	}
	if from.BrandID != r.BrandID || to.BrandID != r.BrandID {
		return &model.ValidationError{
			BrandID: r.BrandID,
			ID:      r.ID,
			Field:   "brand_id",
			Reason:  "relation and both endpoints must belong to the same brand",
		}
	}
	return nil
}

func matchNode(n *model.KnowledgeNode, f NodeFilter) bool {
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Segment != "" && n.Segment != f.Segment {
		return false
	}
	return true
}

// onlySource reports whether documentID is the node's single provenance.
func onlySource(n *model.KnowledgeNode, documentID string) bool {
	if len(n.Sources) == 0 {
		return false
	}
	for _, s := range n.Sources {
		if s.DocumentID != documentID {
			return false
		}
	}
	return true
}

func unixNanoTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func dropSource(refs []model.SourceRef, documentID string) []model.SourceRef {
	kept := refs[:0]
	for _, s := range refs {
		if s.DocumentID != documentID {
			kept = append(kept, s)
		}
	}
	return kept
}
