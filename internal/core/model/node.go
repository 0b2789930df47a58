package model

import (
	"strings"
	"time"
)

// NodeType classifies a piece of brand knowledge. Types are grouped into
// five families; anything outside this enumeration is rejected at creation.
type NodeType string

const (
	// Brand pillars
	NodeKeyMessage       NodeType = "key_message"
	NodeValueProposition NodeType = "value_proposition"
	NodeDifferentiator   NodeType = "differentiator"
	NodeProofPoint       NodeType = "proof_point"

	// Disease knowledge
	NodeEpidemiology       NodeType = "epidemiology"
	NodeSymptomBurden      NodeType = "symptom_burden"
	NodeTreatmentLandscape NodeType = "treatment_landscape"
	NodeUnmetNeed          NodeType = "unmet_need"

	// Patient insights
	NodePatientMotivation NodeType = "patient_motivation"
	NodePatientBelief     NodeType = "patient_belief"
	NodePatientTension    NodeType = "patient_tension"
	NodeJourneyInsight    NodeType = "journey_insight"

	// HCP insights
	NodePrescribingDriver  NodeType = "prescribing_driver"
	NodeClinicalConcern    NodeType = "clinical_concern"
	NodePracticeConstraint NodeType = "practice_constraint"

	// Market
	NodeCompetitorPosition NodeType = "competitor_position"
	NodeMarketBarrier      NodeType = "market_barrier"
)

type NodeFamily string

const (
	FamilyBrandPillar NodeFamily = "brand_pillar"
	FamilyDisease     NodeFamily = "disease_knowledge"
	FamilyPatient     NodeFamily = "patient_insight"
	FamilyHCP         NodeFamily = "hcp_insight"
	FamilyMarket      NodeFamily = "market"
)

var nodeFamilies = map[NodeType]NodeFamily{
	NodeKeyMessage:         FamilyBrandPillar,
	NodeValueProposition:   FamilyBrandPillar,
	NodeDifferentiator:     FamilyBrandPillar,
	NodeProofPoint:         FamilyBrandPillar,
	NodeEpidemiology:       FamilyDisease,
	NodeSymptomBurden:      FamilyDisease,
	NodeTreatmentLandscape: FamilyDisease,
	NodeUnmetNeed:          FamilyDisease,
	NodePatientMotivation:  FamilyPatient,
	NodePatientBelief:      FamilyPatient,
	NodePatientTension:     FamilyPatient,
	NodeJourneyInsight:     FamilyPatient,
	NodePrescribingDriver:  FamilyHCP,
	NodeClinicalConcern:    FamilyHCP,
	NodePracticeConstraint: FamilyHCP,
	NodeCompetitorPosition: FamilyMarket,
	NodeMarketBarrier:      FamilyMarket,
}

func (t NodeType) Valid() bool {
	_, ok := nodeFamilies[t]
	return ok
}

func (t NodeType) Family() NodeFamily {
	return nodeFamilies[t]
}

// AllNodeTypes returns the enumeration in a stable order, used to build
// extraction prompts and validation messages.
func AllNodeTypes() []NodeType {
	return []NodeType{
		NodeKeyMessage, NodeValueProposition, NodeDifferentiator, NodeProofPoint,
		NodeEpidemiology, NodeSymptomBurden, NodeTreatmentLandscape, NodeUnmetNeed,
		NodePatientMotivation, NodePatientBelief, NodePatientTension, NodeJourneyInsight,
		NodePrescribingDriver, NodeClinicalConcern, NodePracticeConstraint,
		NodeCompetitorPosition, NodeMarketBarrier,
	}
}

// SourceRef ties a node back to the document it was extracted from. A node
// gains additional refs when the deduplicator merges a near-duplicate
// candidate into it.
type SourceRef struct {
	DocumentID string `json:"document_id"`
	Quote      string `json:"quote,omitempty"`
}

type KnowledgeNode struct {
	ID           string      `json:"id"`
	BrandID      string      `json:"brand_id"`
	Type         NodeType    `json:"node_type"`
	Text         string      `json:"text"`
	Summary      string      `json:"summary,omitempty"`
	Segment      string      `json:"segment,omitempty"`
	JourneyStage string      `json:"journey_stage,omitempty"`
	Sources      []SourceRef `json:"sources"`
	Confidence   float64     `json:"confidence"`
	Verified     bool        `json:"verified_by_user"`
	Embedding    []float32   `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Validate checks field-level invariants. Referential checks (endpoint
// existence, brand agreement) belong to the store.
func (n *KnowledgeNode) Validate() error {
	if n.BrandID == "" {
		return &ValidationError{Field: "brand_id", Reason: "must not be empty"}
	}
	if !n.Type.Valid() {
		return &ValidationError{BrandID: n.BrandID, Field: "node_type", Reason: "unknown node type " + string(n.Type)}
	}
	if strings.TrimSpace(n.Text) == "" {
		return &ValidationError{BrandID: n.BrandID, Field: "text", Reason: "must not be empty"}
	}
	if n.Confidence < 0 || n.Confidence > 1 {
		return &ValidationError{BrandID: n.BrandID, Field: "confidence", Reason: "must be within [0,1]"}
	}
	return nil
}
