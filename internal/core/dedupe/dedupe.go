package dedupe

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viterin/vek/vek32"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
	"github.com/ishankgp/indegenge-persona-sub003/internal/llm"
	"github.com/ishankgp/indegenge-persona-sub003/internal/logger"
	"github.com/ishankgp/indegenge-persona-sub003/internal/store"
)

// Service decides whether a candidate is a restatement of an existing node.
// Near-duplicates merge into the best match instead of fragmenting the
// graph; only genuinely new insights become nodes.
type Service struct {
	store     store.GraphStore
	embedder  llm.EmbedderClient
	threshold float64
	failOpen  bool
	log       *logger.Logger

	// The similarity scan is advisory under concurrency, so the
	// check-then-insert window is serialized per (brand, node type).
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(st store.GraphStore, embedder llm.EmbedderClient, threshold float64, failOpen bool, log *logger.Logger) *Service {
	return &Service{
		store:     st,
		embedder:  embedder,
		threshold: threshold,
		failOpen:  failOpen,
		log:       log.With("component", "dedupe"),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(brandID string, t model.NodeType) *sync.Mutex {
	key := brandID + "|" + string(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// FindOrCreate stores the candidate as a new node, or merges it into the
// most similar existing node of the same brand and type. The returned bool
// is true when a new node was inserted.
func (s *Service) FindOrCreate(ctx context.Context, brandID, documentID string, c model.CandidateNode) (*model.KnowledgeNode, bool, error) {
	node := &model.KnowledgeNode{
		ID:           uuid.New().String(),
		BrandID:      brandID,
		Type:         c.NodeType,
		Text:         c.Text,
		Summary:      c.Summary,
		Segment:      c.Segment,
		JourneyStage: c.JourneyStage,
		Sources:      []model.SourceRef{{DocumentID: documentID, Quote: c.SourceQuote}},
		Confidence:   c.Confidence,
		CreatedAt:    time.Now().UTC(),
	}
	if err := node.Validate(); err != nil {
		return nil, false, err
	}

	l := s.lockFor(brandID, c.NodeType)
	l.Lock()
	defer l.Unlock()

	vec, err := s.embed(ctx, c.Text)
	if err != nil {
		if !s.failOpen {
			return nil, false, err
		}
		s.log.Warn("embedding gateway down, inserting without dedup scan",
			"brand_id", brandID, "node_type", c.NodeType)
	}
	node.Embedding = vec

	if len(vec) > 0 {
		match, score, err := s.bestMatch(ctx, brandID, c.NodeType, vec)
		if err != nil {
			return nil, false, err
		}
		if match != nil && score >= s.threshold {
			src := model.SourceRef{DocumentID: documentID, Quote: c.SourceQuote}
			if err := s.store.MergeSource(ctx, match.ID, src, c.Confidence); err != nil {
				return nil, false, err
			}
			merged, err := s.store.GetNode(ctx, match.ID)
			if err != nil {
				return nil, false, err
			}
			s.log.Debug("merged candidate into existing node",
				"brand_id", brandID, "node_id", match.ID, "similarity", score)
			return merged, false, nil
		}
	}

	if err := s.store.CreateNode(ctx, node); err != nil {
		return nil, false, err
	}
	return node, true, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, &model.UpstreamError{Upstream: "embedding gateway", Err: errNoEmbedder}
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &model.UpstreamError{Upstream: "embedding gateway", Err: err}
	}
	return vec, nil
}

// bestMatch scans every stored node of the same brand and type. Ties on
// similarity go to the earliest-created node; ListNodes returns creation
// order, so strictly-greater comparison keeps the earliest.
func (s *Service) bestMatch(ctx context.Context, brandID string, t model.NodeType, vec []float32) (*model.KnowledgeNode, float64, error) {
	existing, err := s.store.ListNodes(ctx, brandID, store.NodeFilter{Type: t})
	if err != nil {
		return nil, 0, err
	}
	var best *model.KnowledgeNode
	bestScore := math.Inf(-1)
	for _, n := range existing {
		if len(n.Embedding) == 0 || len(n.Embedding) != len(vec) {
			continue
		}
		score := Cosine(vec, n.Embedding)
		if score > bestScore {
			best = n
			bestScore = score
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestScore, nil
}

// Cosine returns cosine similarity, with 0 for degenerate vectors instead
// of the library's NaN.
func Cosine(a, b []float32) float64 {
	sim := vek32.CosineSimilarity(a, b)
	if math.IsNaN(float64(sim)) {
		return 0
	}
	return float64(sim)
}
