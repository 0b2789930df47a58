package model

// CandidateNode is what the extraction model proposes for one span of
// document text, before deduplication decides whether it becomes a new node
// or merges into an existing one.
type CandidateNode struct {
	NodeType     NodeType `json:"node_type"`
	Text         string   `json:"text"`
	Summary      string   `json:"summary,omitempty"`
	Segment      string   `json:"segment,omitempty"`
	JourneyStage string   `json:"journey_stage,omitempty"`
	SourceQuote  string   `json:"source_quote,omitempty"`
	Confidence   float64  `json:"confidence"`
}

type ExtractedCandidates struct {
	Candidates []CandidateNode `json:"candidates"`
}

// RelationProposal is the inference model's verdict on one ordered node
// pair: either no relation, or a typed edge with strength and rationale.
type RelationProposal struct {
	NoRelation   bool         `json:"no_relation,omitempty"`
	RelationType RelationType `json:"relation_type,omitempty"`
	Strength     float64      `json:"strength,omitempty"`
	Context      string       `json:"context,omitempty"`
}

// GraphStats accompanies a full export.
type GraphStats struct {
	NodeCount       int                  `json:"node_count"`
	RelationCount   int                  `json:"relation_count"`
	NodesByType     map[NodeType]int     `json:"nodes_by_type"`
	RelationsByType map[RelationType]int `json:"relations_by_type"`
	Contradictions  int                  `json:"contradictions"`
	Gaps            int                  `json:"gaps"`
}

type GraphExport struct {
	BrandID   string               `json:"brand_id"`
	Nodes     []*KnowledgeNode     `json:"nodes"`
	Relations []*KnowledgeRelation `json:"edges"`
	Stats     GraphStats           `json:"stats"`
}

// Path is one walk produced by multi-hop traversal. NodeIDs has one more
// element than Relations; Relations[i] connects NodeIDs[i] and NodeIDs[i+1].
type Path struct {
	NodeIDs   []string             `json:"node_ids"`
	Relations []*KnowledgeRelation `json:"relations"`
}
