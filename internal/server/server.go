package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ishankgp/indegenge-persona-sub003/internal/config"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/graph"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
	"github.com/ishankgp/indegenge-persona-sub003/internal/llm"
	"github.com/ishankgp/indegenge-persona-sub003/internal/logger"
	"github.com/ishankgp/indegenge-persona-sub003/internal/store"
)

type Server struct {
	Engine *core.Engine
	log    *logger.Logger
}

// New builds the full service from config: store backend, LLM clients, and
// the engine, all constructed once and handed down.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Server, error) {
	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	return &Server{
		Engine: core.NewEngine(st, llmClient, embedder, cfg, log),
		log:    log.With("component", "server"),
	}, nil
}

// NewWithEngine wires a prebuilt engine, used by tests.
func NewWithEngine(engine *core.Engine, log *logger.Logger) *Server {
	return &Server{Engine: engine, log: log.With("component", "server")}
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store.GraphStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.SQLitePath)
	case "neo4j":
		return store.NewNeo4jStore(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/documents", s.processDocument)
	api.POST("/documents/batch", s.processDocuments)

	api.GET("/brands/:brand/nodes", s.listNodes)
	api.POST("/brands/:brand/nodes", s.createNode)
	api.GET("/brands/:brand/relations", s.listRelations)
	api.POST("/brands/:brand/relations", s.createRelation)
	api.GET("/brands/:brand/graph", s.exportGraph)
	api.GET("/brands/:brand/gaps", s.gapAnalysis)
	api.GET("/brands/:brand/contradictions", s.contradictionScan)
	api.GET("/brands/:brand/clusters", s.clusters)

	api.GET("/nodes/:id", s.getNode)
	api.DELETE("/nodes/:id", s.deleteNode)
	api.POST("/nodes/:id/verify", s.verifyNode)
	api.DELETE("/nodes/:id/verify", s.unverifyNode)
	api.GET("/nodes/:id/paths", s.nodePaths)

	api.DELETE("/relations/:id", s.deleteRelation)

	return r
}

// fail maps the engine's error taxonomy onto status codes.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case model.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case model.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case model.IsUpstream(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) processDocument(c *gin.Context) {
	var in core.DocumentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	report, err := s.Engine.ProcessDocument(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) processDocuments(c *gin.Context) {
	var req struct {
		Documents []core.DocumentInput `json:"documents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	reports, err := s.Engine.ProcessDocuments(c.Request.Context(), req.Documents)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (s *Server) listNodes(c *gin.Context) {
	f := store.NodeFilter{
		Type:    model.NodeType(c.Query("type")),
		Segment: c.Query("segment"),
	}
	if f.Type != "" && !f.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown node type: " + string(f.Type)})
		return
	}
	nodes, err := s.Engine.Store.ListNodes(c.Request.Context(), c.Param("brand"), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

func (s *Server) createNode(c *gin.Context) {
	var req struct {
		model.CandidateNode
		DocumentID string `json:"document_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	node, err := s.Engine.CreateNode(c.Request.Context(), c.Param("brand"), req.DocumentID, req.CandidateNode)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

func (s *Server) getNode(c *gin.Context) {
	node, err := s.Engine.Store.GetNode(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (s *Server) deleteNode(c *gin.Context) {
	if err := s.Engine.DeleteNode(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) verifyNode(c *gin.Context) {
	if err := s.Engine.VerifyNode(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) unverifyNode(c *gin.Context) {
	if err := s.Engine.UnverifyNode(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) nodePaths(c *gin.Context) {
	maxHops := 3
	if v := c.Query("max_hops"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_hops must be a positive integer"})
			return
		}
		maxHops = h
	}
	dir := graph.Direction(c.DefaultQuery("direction", string(graph.Both)))
	switch dir {
	case graph.Outgoing, graph.Incoming, graph.Both:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be out, in, or both"})
		return
	}
	paths, err := s.Engine.Query.MultiHop(c.Request.Context(), c.Param("id"), maxHops, dir)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paths": paths})
}

func (s *Server) listRelations(c *gin.Context) {
	f := store.RelationFilter{Type: model.RelationType(c.Query("type"))}
	if f.Type != "" && !f.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown relation type: " + string(f.Type)})
		return
	}
	relations, err := s.Engine.Store.ListRelations(c.Request.Context(), c.Param("brand"), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relations": relations})
}

func (s *Server) createRelation(c *gin.Context) {
	var req struct {
		FromNodeID string             `json:"from_node_id"`
		ToNodeID   string             `json:"to_node_id"`
		Type       model.RelationType `json:"relation_type"`
		Strength   float64            `json:"strength"`
		Context    string             `json:"context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rel, err := s.Engine.CreateRelation(c.Request.Context(), c.Param("brand"), req.FromNodeID, req.ToNodeID, req.Type, req.Strength, req.Context)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rel)
}

func (s *Server) deleteRelation(c *gin.Context) {
	if err := s.Engine.DeleteRelation(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) exportGraph(c *gin.Context) {
	export, err := s.Engine.Query.Export(c.Request.Context(), c.Param("brand"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}

func (s *Server) gapAnalysis(c *gin.Context) {
	rules := graph.CoverageRules{}
	for _, t := range c.QueryArray("needs") {
		nt := model.NodeType(t)
		if !nt.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown node type: " + t})
			return
		}
		rules.NeedsCoverage = append(rules.NeedsCoverage, nt)
	}
	for _, t := range c.QueryArray("covering") {
		rt := model.RelationType(t)
		if !rt.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown relation type: " + t})
			return
		}
		rules.Covering = append(rules.Covering, rt)
	}
	gaps, err := s.Engine.Query.GapAnalysis(c.Request.Context(), c.Param("brand"), rules)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gaps": gaps})
}

func (s *Server) contradictionScan(c *gin.Context) {
	relations, err := s.Engine.Query.ContradictionScan(c.Request.Context(), c.Param("brand"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contradictions": relations})
}

func (s *Server) clusters(c *gin.Context) {
	clusters, err := s.Engine.Query.Clusters(c.Request.Context(), c.Param("brand"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters})
}
