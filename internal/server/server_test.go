package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishankgp/indegenge-persona-sub003/internal/config"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
	"github.com/ishankgp/indegenge-persona-sub003/internal/logger"
	"github.com/ishankgp/indegenge-persona-sub003/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubLLM struct {
	extraction string
	inference  string
}

func (s stubLLM) Generate(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "<DOCUMENT>") {
		return s.extraction, nil
	}
	return s.inference, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r)
	}
	return vec, nil
}

func newTestRouter(t *testing.T, llmc stubLLM) (*gin.Engine, store.GraphStore) {
	t.Helper()
	st := store.NewMemoryStore()
	eng := core.NewEngine(st, llmc, stubEmbedder{}, config.Default(), logger.Nop())
	return NewWithEngine(eng, logger.Nop()).SetupRouter(), st
}

func perform(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, stubLLM{})
	w := perform(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNodeEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, stubLLM{})

	w := perform(r, http.MethodPost, "/api/brands/5/nodes", gin.H{
		"node_type":  "key_message",
		"text":       "Rapid relief within two weeks",
		"summary":    "Rapid relief",
		"confidence": 0.9,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var node model.KnowledgeNode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &node))
	assert.NotEmpty(t, node.ID)
	assert.Equal(t, "5", node.BrandID)

	w = perform(r, http.MethodGet, "/api/nodes/"+node.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodGet, "/api/brands/5/nodes?type=key_message", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Nodes []*model.KnowledgeNode `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed.Nodes, 1)

	w = perform(r, http.MethodGet, "/api/brands/5/nodes?type=nonsense", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodGet, "/api/nodes/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// invalid confidence is a validation failure, not a server error
	w = perform(r, http.MethodPost, "/api/brands/5/nodes", gin.H{
		"node_type": "key_message", "text": "x", "confidence": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodDelete, "/api/nodes/"+node.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = perform(r, http.MethodGet, "/api/nodes/"+node.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func createNodeViaAPI(t *testing.T, r *gin.Engine, brand, nodeType, text string) string {
	t.Helper()
	w := perform(r, http.MethodPost, fmt.Sprintf("/api/brands/%s/nodes", brand), gin.H{
		"node_type": nodeType, "text": text, "confidence": 0.8,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var node model.KnowledgeNode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &node))
	return node.ID
}

func TestRelationEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, stubLLM{})
	from := createNodeViaAPI(t, r, "5", "key_message", "Rapid relief within two weeks")
	to := createNodeViaAPI(t, r, "5", "patient_tension", "Fear of losing independence")

	w := perform(r, http.MethodPost, "/api/brands/5/relations", gin.H{
		"from_node_id": from, "to_node_id": to,
		"relation_type": "addresses", "strength": 0.9, "context": "curated",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rel model.KnowledgeRelation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rel))
	assert.Equal(t, model.InferredByUser, rel.InferredBy)

	// self-loops are rejected
	w = perform(r, http.MethodPost, "/api/brands/5/relations", gin.H{
		"from_node_id": from, "to_node_id": from,
		"relation_type": "addresses", "strength": 0.9,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// an endpoint that does not exist surfaces as not found
	w = perform(r, http.MethodPost, "/api/brands/5/relations", gin.H{
		"from_node_id": from, "to_node_id": "ghost",
		"relation_type": "addresses", "strength": 0.9,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodGet, "/api/brands/5/relations?type=addresses", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Relations []*model.KnowledgeRelation `json:"relations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed.Relations, 1)

	w = perform(r, http.MethodDelete, "/api/relations/"+rel.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = perform(r, http.MethodDelete, "/api/relations/"+rel.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyEndpoints(t *testing.T) {
	r, st := newTestRouter(t, stubLLM{})
	id := createNodeViaAPI(t, r, "5", "key_message", "Rapid relief within two weeks")

	w := perform(r, http.MethodPost, "/api/nodes/"+id+"/verify", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	node, err := st.GetNode(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, node.Verified)

	w = perform(r, http.MethodDelete, "/api/nodes/"+id+"/verify", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	node, err = st.GetNode(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, node.Verified)

	w = perform(r, http.MethodPost, "/api/nodes/ghost/verify", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessDocumentEndpoint(t *testing.T) {
	llmc := stubLLM{
		extraction: `{"candidates": [
			{"node_type": "key_message", "text": "Rapid relief within two weeks", "confidence": 0.9},
			{"node_type": "patient_tension", "text": "Fear of losing independence", "confidence": 0.8}
		]}`,
		inference: `{"no_relation": false, "relation_type": "addresses", "strength": 0.8, "context": "speaks to the fear"}`,
	}
	r, _ := newTestRouter(t, llmc)

	w := perform(r, http.MethodPost, "/api/documents", gin.H{
		"brand_id": "5", "document_id": "doc-1",
		"document_type": "brand deck", "document_text": "deck text",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report core.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.NewNodes)
	assert.Equal(t, 1, report.RelationshipsInferred)

	// missing brand_id fails validation
	w = perform(r, http.MethodPost, "/api/documents", gin.H{
		"document_id": "doc-2", "document_text": "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/api/documents/batch", gin.H{
		"documents": []gin.H{
			{"brand_id": "5", "document_id": "doc-3", "document_text": "deck text"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var batch struct {
		Reports []*core.Report `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	require.Len(t, batch.Reports, 1)
}

func TestGraphQueryEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, stubLLM{})
	m := createNodeViaAPI(t, r, "5", "key_message", "Rapid relief within two weeks")
	tension := createNodeViaAPI(t, r, "5", "patient_tension", "Fear of losing independence")
	belief := createNodeViaAPI(t, r, "5", "patient_belief", "Steroids are unsafe long term")

	w := perform(r, http.MethodGet, "/api/brands/5/gaps", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var gaps struct {
		Gaps []*model.KnowledgeNode `json:"gaps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gaps))
	require.Len(t, gaps.Gaps, 1)
	assert.Equal(t, tension, gaps.Gaps[0].ID)

	perform(r, http.MethodPost, "/api/brands/5/relations", gin.H{
		"from_node_id": m, "to_node_id": tension,
		"relation_type": "addresses", "strength": 0.9,
	})
	perform(r, http.MethodPost, "/api/brands/5/relations", gin.H{
		"from_node_id": belief, "to_node_id": m,
		"relation_type": "contradicts", "strength": 0.7,
	})

	w = perform(r, http.MethodGet, "/api/brands/5/gaps", nil)
	require.Equal(t, http.StatusOK, w.Code)
	gaps.Gaps = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gaps))
	assert.Empty(t, gaps.Gaps)

	w = perform(r, http.MethodGet, "/api/brands/5/gaps?needs=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodGet, "/api/brands/5/contradictions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var contra struct {
		Contradictions []*model.KnowledgeRelation `json:"contradictions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contra))
	require.Len(t, contra.Contradictions, 1)

	w = perform(r, http.MethodGet, "/api/brands/5/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var export model.GraphExport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &export))
	assert.Equal(t, 3, export.Stats.NodeCount)
	assert.Equal(t, 2, export.Stats.RelationCount)
	assert.Equal(t, 1, export.Stats.Contradictions)

	w = perform(r, http.MethodGet, "/api/brands/5/clusters", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodGet, "/api/nodes/"+m+"/paths?max_hops=2&direction=out", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var paths struct {
		Paths []model.Path `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paths))
	require.Len(t, paths.Paths, 1)
	assert.Equal(t, []string{m, tension}, paths.Paths[0].NodeIDs)

	w = perform(r, http.MethodGet, "/api/nodes/"+m+"/paths?direction=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = perform(r, http.MethodGet, "/api/nodes/"+m+"/paths?max_hops=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = perform(r, http.MethodGet, "/api/nodes/ghost/paths", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
