package model

import "time"

// RelationType is the closed set of edge semantics between knowledge nodes.
type RelationType string

const (
	RelAddresses   RelationType = "addresses"
	RelSupports    RelationType = "supports"
	RelContradicts RelationType = "contradicts"
	RelTriggers    RelationType = "triggers"
	RelInfluences  RelationType = "influences"
	RelResonates   RelationType = "resonates"
)

func (t RelationType) Valid() bool {
	switch t {
	case RelAddresses, RelSupports, RelContradicts, RelTriggers, RelInfluences, RelResonates:
		return true
	}
	return false
}

func AllRelationTypes() []RelationType {
	return []RelationType{RelAddresses, RelSupports, RelContradicts, RelTriggers, RelInfluences, RelResonates}
}

// Provenance records whether a relation came out of model inference or was
// authored by a reviewer.
type Provenance string

const (
	InferredByLLM  Provenance = "llm"
	InferredByUser Provenance = "user"
)

func (p Provenance) Valid() bool {
	return p == InferredByLLM || p == InferredByUser
}

// KnowledgeRelation is a directed, strength-weighted edge. Relations are
// immutable once stored; there is no update path, only delete.
type KnowledgeRelation struct {
	ID         string       `json:"id"`
	BrandID    string       `json:"brand_id"`
	FromNodeID string       `json:"from_node_id"`
	ToNodeID   string       `json:"to_node_id"`
	Type       RelationType `json:"relation_type"`
	Strength   float64      `json:"strength"`
	Context    string       `json:"context,omitempty"`
	InferredBy Provenance   `json:"inferred_by"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (r *KnowledgeRelation) Validate() error {
	if r.BrandID == "" {
		return &ValidationError{Field: "brand_id", Reason: "must not be empty"}
	}
	if r.FromNodeID == "" || r.ToNodeID == "" {
		return &ValidationError{BrandID: r.BrandID, Field: "node_id", Reason: "both endpoints are required"}
	}
	if r.FromNodeID == r.ToNodeID {
		return &ValidationError{BrandID: r.BrandID, ID: r.FromNodeID, Field: "to_node_id", Reason: "self-loops are not allowed"}
	}
	if !r.Type.Valid() {
		return &ValidationError{BrandID: r.BrandID, Field: "relation_type", Reason: "unknown relation type " + string(r.Type)}
	}
	if r.Strength < 0 || r.Strength > 1 {
		return &ValidationError{BrandID: r.BrandID, Field: "strength", Reason: "must be within [0,1]"}
	}
	if !r.InferredBy.Valid() {
		return &ValidationError{BrandID: r.BrandID, Field: "inferred_by", Reason: "must be llm or user"}
	}
	return nil
}
