package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
	"github.com/ishankgp/indegenge-persona-sub003/internal/logger"
	"github.com/ishankgp/indegenge-persona-sub003/internal/store"
)

type mockEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func candidate(t model.NodeType, text string, confidence float64) model.CandidateNode {
	return model.CandidateNode{NodeType: t, Text: text, SourceQuote: "q", Confidence: confidence}
}

func TestDedupIdempotence(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	emb := &mockEmbedder{vectors: map[string][]float32{
		"Low health literacy leads to medication misuse": {1, 0, 0},
		"Medication misuse driven by low health literacy": {0.99, 0.1, 0},
	}}
	svc := New(st, emb, 0.65, false, logger.Nop())

	first, isNew, err := svc.FindOrCreate(ctx, "5", "doc-1",
		candidate(model.NodeUnmetNeed, "Low health literacy leads to medication misuse", 0.87))
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Len(t, first.Sources, 1)

	second, isNew, err := svc.FindOrCreate(ctx, "5", "doc-2",
		candidate(model.NodeUnmetNeed, "Medication misuse driven by low health literacy", 0.5))
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Sources, 2)
	// merge keeps the higher confidence
	assert.Equal(t, 0.87, second.Confidence)

	nodes, err := st.ListNodes(ctx, "5", store.NodeFilter{Type: model.NodeUnmetNeed})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestMergeRaisesConfidence(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	emb := &mockEmbedder{vectors: map[string][]float32{"a": {1, 0, 0}, "b": {1, 0, 0}}}
	svc := New(st, emb, 0.65, false, logger.Nop())

	_, _, err := svc.FindOrCreate(ctx, "5", "doc-1", candidate(model.NodeUnmetNeed, "a", 0.4))
	require.NoError(t, err)
	merged, isNew, err := svc.FindOrCreate(ctx, "5", "doc-2", candidate(model.NodeUnmetNeed, "b", 0.9))
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, 0.9, merged.Confidence)
}

func TestDissimilarCandidateCreatesNewNode(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	emb := &mockEmbedder{vectors: map[string][]float32{
		"adherence drops at refill time": {1, 0, 0},
		"HCPs worry about drug interactions": {0, 1, 0},
	}}
	svc := New(st, emb, 0.65, false, logger.Nop())

	_, isNew, err := svc.FindOrCreate(ctx, "5", "doc-1", candidate(model.NodeUnmetNeed, "adherence drops at refill time", 0.8))
	require.NoError(t, err)
	assert.True(t, isNew)

	_, isNew, err = svc.FindOrCreate(ctx, "5", "doc-1", candidate(model.NodeUnmetNeed, "HCPs worry about drug interactions", 0.8))
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestDedupScopedToBrandAndType(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	emb := &mockEmbedder{vectors: map[string][]float32{"same text": {1, 0, 0}}}
	svc := New(st, emb, 0.65, false, logger.Nop())

	_, isNew, err := svc.FindOrCreate(ctx, "5", "doc-1", candidate(model.NodeUnmetNeed, "same text", 0.8))
	require.NoError(t, err)
	assert.True(t, isNew)

	// other brand: no merge
	_, isNew, err = svc.FindOrCreate(ctx, "6", "doc-1", candidate(model.NodeUnmetNeed, "same text", 0.8))
	require.NoError(t, err)
	assert.True(t, isNew)

	// other type, same brand: no merge
	_, isNew, err = svc.FindOrCreate(ctx, "5", "doc-1", candidate(model.NodePatientTension, "same text", 0.8))
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestTieBreakPrefersEarliestNode(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	base := time.Now().UTC()
	vec := []float32{1, 0, 0}

	early := &model.KnowledgeNode{
		ID: "early", BrandID: "5", Type: model.NodeUnmetNeed, Text: "first",
		Sources: []model.SourceRef{{DocumentID: "d"}}, Confidence: 0.5,
		Embedding: vec, CreatedAt: base,
	}
	late := &model.KnowledgeNode{
		ID: "late", BrandID: "5", Type: model.NodeUnmetNeed, Text: "second",
		Sources: []model.SourceRef{{DocumentID: "d"}}, Confidence: 0.5,
		Embedding: vec, CreatedAt: base.Add(time.Minute),
	}
	require.NoError(t, st.CreateNode(ctx, early))
	require.NoError(t, st.CreateNode(ctx, late))

	emb := &mockEmbedder{vectors: map[string][]float32{"dup": vec}}
	svc := New(st, emb, 0.65, false, logger.Nop())

	merged, isNew, err := svc.FindOrCreate(ctx, "5", "doc-2", candidate(model.NodeUnmetNeed, "dup", 0.6))
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "early", merged.ID)
}

func TestEmbeddingFailureFailsClosed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	emb := &mockEmbedder{err: errors.New("gateway timeout")}
	svc := New(st, emb, 0.65, false, logger.Nop())

	_, _, err := svc.FindOrCreate(ctx, "5", "doc-1", candidate(model.NodeUnmetNeed, "anything", 0.8))
	require.Error(t, err)
	assert.True(t, model.IsUpstream(err))

	nodes, err := st.ListNodes(ctx, "5", store.NodeFilter{})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestEmbeddingFailureFailOpenInserts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	emb := &mockEmbedder{err: errors.New("gateway timeout")}
	svc := New(st, emb, 0.65, true, logger.Nop())

	node, isNew, err := svc.FindOrCreate(ctx, "5", "doc-1", candidate(model.NodeUnmetNeed, "anything", 0.8))
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Empty(t, node.Embedding)
}

func TestInvalidCandidateRejected(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := New(st, &mockEmbedder{}, 0.65, false, logger.Nop())

	_, _, err := svc.FindOrCreate(ctx, "5", "doc-1", candidate("bogus_type", "text", 0.8))
	assert.True(t, model.IsValidation(err))

	_, _, err = svc.FindOrCreate(ctx, "5", "doc-1", candidate(model.NodeUnmetNeed, "text", 1.5))
	assert.True(t, model.IsValidation(err))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{1, 0}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{0, 0}))
}
