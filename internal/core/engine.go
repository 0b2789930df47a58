package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ishankgp/indegenge-persona-sub003/internal/config"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/dedupe"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/extraction"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/graph"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/inference"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
	"github.com/ishankgp/indegenge-persona-sub003/internal/llm"
	"github.com/ishankgp/indegenge-persona-sub003/internal/logger"
	"github.com/ishankgp/indegenge-persona-sub003/internal/store"
)

// Engine wires the knowledge-graph pipeline together: extraction into
// candidates, dedup into nodes, batch relation inference, and the query
// surface. It is constructed once at startup and passed where needed; no
// component reaches into ambient globals.
type Engine struct {
	Store     store.GraphStore
	Extractor *extraction.Extractor
	Dedupe    *dedupe.Service
	Inference *inference.Engine
	Query     *graph.Query

	workers int
	embed   llm.EmbedderClient
	log     *logger.Logger
}

func NewEngine(st store.GraphStore, llmClient llm.LLMClient, embedder llm.EmbedderClient, cfg *config.Config, log *logger.Logger) *Engine {
	workers := cfg.Concurrency.DocumentWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		Store:     st,
		Extractor: extraction.New(llmClient, cfg.Prompts.Extraction, log),
		Dedupe:    dedupe.New(st, embedder, cfg.Dedup.Threshold, cfg.Dedup.FailOpen, log),
		Inference: inference.New(st, llmClient, cfg.Inference.AcceptanceFloor, cfg.Inference.FanOutLimit, cfg.Inference.PairConcurrency, cfg.Prompts.Inference, log),
		Query:     graph.NewQuery(st),
		workers:   workers,
		embed:     embedder,
		log:       log.With("component", "engine"),
	}
}

// DocumentInput is one document's worth of work. Text extraction from the
// raw file and document-type classification happen upstream.
type DocumentInput struct {
	BrandID      string `json:"brand_id"`
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
	Text         string `json:"document_text"`
}

// Report summarizes one processed document.
type Report struct {
	DocumentID            string `json:"document_id"`
	NodesExtracted        int    `json:"nodes_extracted"`
	NewNodes              int    `json:"new_nodes"`
	MergedNodes           int    `json:"merged_nodes"`
	SkippedCandidates     int    `json:"skipped_candidates"`
	RelationshipsInferred int    `json:"relationships_inferred"`
	Error                 string `json:"error,omitempty"`
}

func (in DocumentInput) validate() error {
	if in.BrandID == "" {
		return &model.ValidationError{Field: "brand_id", Reason: "must not be empty"}
	}
	if in.DocumentID == "" {
		return &model.ValidationError{BrandID: in.BrandID, Field: "document_id", Reason: "must not be empty"}
	}
	if in.Text == "" {
		return &model.ValidationError{BrandID: in.BrandID, Field: "document_text", Reason: "must not be empty"}
	}
	return nil
}

// ProcessDocument runs the full pipeline for one document. One bad
// candidate is skipped and counted, never aborting its siblings. Relation
// inference starts only after every candidate of the batch is durable. If
// the context is cancelled mid-batch, the document's partial artifacts are
// purged so nothing orphaned survives.
func (e *Engine) ProcessDocument(ctx context.Context, in DocumentInput) (*Report, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	report := &Report{DocumentID: in.DocumentID}

	candidates, err := e.Extractor.Extract(ctx, in.DocumentType, in.Text)
	if err != nil {
		return nil, err
	}
	report.NodesExtracted = len(candidates)

	var newNodes []*model.KnowledgeNode
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return report, e.rollback(ctx, in, err)
		}
		node, isNew, err := e.Dedupe.FindOrCreate(ctx, in.BrandID, in.DocumentID, c)
		if err != nil {
			// Invalid candidates and embedding outages both cost only the
			// one candidate; the caller can resubmit it later.
			e.log.Warn("candidate skipped",
				"brand_id", in.BrandID, "document_id", in.DocumentID,
				"node_type", c.NodeType, "error", err)
			report.SkippedCandidates++
			continue
		}
		if isNew {
			report.NewNodes++
			newNodes = append(newNodes, node)
		} else {
			report.MergedNodes++
		}
	}

	if err := ctx.Err(); err != nil {
		return report, e.rollback(ctx, in, err)
	}

	relations, err := e.Inference.InferBatch(ctx, in.BrandID, newNodes)
	if err != nil {
		if ctx.Err() != nil {
			return report, e.rollback(ctx, in, ctx.Err())
		}
		return report, err
	}
	report.RelationshipsInferred = len(relations)

	e.log.Info("document processed",
		"brand_id", in.BrandID, "document_id", in.DocumentID,
		"new_nodes", report.NewNodes, "merged", report.MergedNodes,
		"relations", report.RelationshipsInferred)
	return report, nil
}

// rollback purges a cancelled batch's artifacts using a fresh context; the
// caller's one is already dead.
func (e *Engine) rollback(ctx context.Context, in DocumentInput, cause error) error {
	purgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := e.Store.PurgeDocument(purgeCtx, in.BrandID, in.DocumentID); err != nil {
		e.log.Error("failed to purge cancelled batch",
			"brand_id", in.BrandID, "document_id", in.DocumentID, "error", err)
	}
	return fmt.Errorf("document batch cancelled: %w", cause)
}

// ProcessDocuments runs several documents through a bounded worker pool.
// Each worker owns its document end to end; failures are recorded on the
// report and never abort sibling documents.
func (e *Engine) ProcessDocuments(ctx context.Context, inputs []DocumentInput) ([]*Report, error) {
	reports := make([]*Report, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, in := range inputs {
		g.Go(func() error {
			report, err := e.ProcessDocument(gctx, in)
			if report == nil {
				report = &Report{DocumentID: in.DocumentID}
			}
			if err != nil {
				report.Error = err.Error()
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, ctx.Err()
}

// CreateNode stores a user-authored node directly, bypassing dedup. The
// embedding is computed best-effort so later extractions can still match
// against it.
func (e *Engine) CreateNode(ctx context.Context, brandID, documentID string, c model.CandidateNode) (*model.KnowledgeNode, error) {
	node := &model.KnowledgeNode{
		ID:           uuid.New().String(),
		BrandID:      brandID,
		Type:         c.NodeType,
		Text:         c.Text,
		Summary:      c.Summary,
		Segment:      c.Segment,
		JourneyStage: c.JourneyStage,
		Confidence:   c.Confidence,
		CreatedAt:    time.Now().UTC(),
	}
	if documentID != "" {
		node.Sources = []model.SourceRef{{DocumentID: documentID, Quote: c.SourceQuote}}
	}
	if err := node.Validate(); err != nil {
		return nil, err
	}
	if e.embed != nil {
		if vec, err := e.embed.Embed(ctx, c.Text); err == nil {
			node.Embedding = vec
		} else {
			e.log.Warn("embedding skipped for manual node", "brand_id", brandID, "error", err)
		}
	}
	if err := e.Store.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// CreateRelation stores a user-authored relation.
func (e *Engine) CreateRelation(ctx context.Context, brandID, fromID, toID string, relType model.RelationType, strength float64, rationale string) (*model.KnowledgeRelation, error) {
	rel := &model.KnowledgeRelation{
		ID:         uuid.New().String(),
		BrandID:    brandID,
		FromNodeID: fromID,
		ToNodeID:   toID,
		Type:       relType,
		Strength:   strength,
		Context:    rationale,
		InferredBy: model.InferredByUser,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.Store.CreateRelation(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// VerifyNode marks a node as human-reviewed.
func (e *Engine) VerifyNode(ctx context.Context, id string) error {
	return e.Store.SetVerified(ctx, id, true)
}

// UnverifyNode retracts a review, e.g. when the backing document is
// withdrawn. Verification is deliberately reversible.
func (e *Engine) UnverifyNode(ctx context.Context, id string) error {
	return e.Store.SetVerified(ctx, id, false)
}

func (e *Engine) DeleteNode(ctx context.Context, id string) error {
	return e.Store.DeleteNode(ctx, id)
}

func (e *Engine) DeleteRelation(ctx context.Context, id string) error {
	return e.Store.DeleteRelation(ctx, id)
}
