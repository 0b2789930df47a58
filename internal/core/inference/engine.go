package inference

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/common"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
	"github.com/ishankgp/indegenge-persona-sub003/internal/llm"
	"github.com/ishankgp/indegenge-persona-sub003/internal/logger"
	"github.com/ishankgp/indegenge-persona-sub003/internal/store"
)

// DefaultPrompt expects: from-node type, from-node text, to-node type,
// to-node text, eligible relation type list.
const DefaultPrompt = `Decide whether a directed relation holds between two pieces of pharmaceutical brand knowledge.

FROM (%s): %s
TO (%s): %s

Allowed relation types for this pair: %s

If a relation clearly holds, return:
{"relation_type": "<one allowed type>", "strength": 0.8, "context": "one sentence on why"}
Strength is your confidence in [0,1]. If no relation holds, return:
{"no_relation": true}`

// Engine proposes and commits relations for a batch of newly stored nodes.
// Pair calls run concurrently; all writes go through a single coordinator
// after the calls settle.
type Engine struct {
	store       store.GraphStore
	llm         llm.LLMClient
	floor       float64
	fanOut      int
	concurrency int
	prompt      string
	log         *logger.Logger
}

func New(st store.GraphStore, llmClient llm.LLMClient, floor float64, fanOut, concurrency int, prompt string, log *logger.Logger) *Engine {
	if fanOut <= 0 {
		fanOut = 10
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Engine{
		store:       st,
		llm:         llmClient,
		floor:       floor,
		fanOut:      fanOut,
		concurrency: concurrency,
		prompt:      prompt,
		log:         log.With("component", "inference"),
	}
}

// pair is one ordered candidate edge. owner is the new node whose fan-out
// budget the pair draws from.
type pair struct {
	owner    string
	from, to *model.KnowledgeNode
	eligible []model.RelationType
}

type verdict struct {
	pair     pair
	proposal model.RelationProposal
	ok       bool
}

// InferBatch runs pair inference for the nodes newly committed from one
// document and persists the accepted relations. It must be called only
// after the whole batch is durable, since the scan needs the complete node
// set.
func (e *Engine) InferBatch(ctx context.Context, brandID string, newNodes []*model.KnowledgeNode) ([]*model.KnowledgeRelation, error) {
	if len(newNodes) == 0 {
		return nil, nil
	}

	existing, err := e.store.ListNodes(ctx, brandID, store.NodeFilter{})
	if err != nil {
		return nil, err
	}

	pairs := buildPairs(newNodes, existing)
	if len(pairs) == 0 {
		return nil, nil
	}

	verdicts := make([]verdict, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, p := range pairs {
		g.Go(func() error {
			proposal, err := e.inferPair(gctx, p)
			if err != nil {
				// One dead pair never aborts the batch.
				e.log.Warn("pair inference failed, skipping",
					"brand_id", brandID, "from", p.from.ID, "to", p.to.ID, "error", err)
				return nil
			}
			verdicts[i] = verdict{pair: p, proposal: proposal, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	accepted := e.accept(brandID, verdicts)
	capped := capFanOut(accepted, e.fanOut)

	// Single-writer commit.
	var committed []*model.KnowledgeRelation
	for _, c := range capped {
		rel := &model.KnowledgeRelation{
			ID:         uuid.New().String(),
			BrandID:    brandID,
			FromNodeID: c.pair.from.ID,
			ToNodeID:   c.pair.to.ID,
			Type:       c.proposal.RelationType,
			Strength:   c.proposal.Strength,
			Context:    c.proposal.Context,
			InferredBy: model.InferredByLLM,
			CreatedAt:  time.Now().UTC(),
		}
		if err := e.store.CreateRelation(ctx, rel); err != nil {
			if model.IsNotFound(err) || model.IsValidation(err) {
				// Endpoint deleted mid-flight, or a bad proposal: drop
				// this one and keep committing the rest.
				e.log.Warn("dropping inferred relation", "brand_id", brandID, "error", err)
				continue
			}
			return committed, err
		}
		committed = append(committed, rel)
	}

	e.log.Info("batch inference complete",
		"brand_id", brandID, "pairs", len(pairs), "accepted", len(capped), "committed", len(committed))
	return committed, nil
}

// buildPairs enumerates ordered pairs between new nodes and all same-brand
// nodes, both directions, deduplicated when two new nodes see each other.
func buildPairs(newNodes, existing []*model.KnowledgeNode) []pair {
	isNew := make(map[string]bool, len(newNodes))
	for _, n := range newNodes {
		isNew[n.ID] = true
	}

	seen := make(map[[2]string]bool)
	var pairs []pair
	add := func(owner string, from, to *model.KnowledgeNode) {
		if from.ID == to.ID {
			return
		}
		key := [2]string{from.ID, to.ID}
		if seen[key] {
			return
		}
		eligible := EligibleRelationTypes(from.Type, to.Type)
		if len(eligible) == 0 {
			return
		}
		seen[key] = true
		pairs = append(pairs, pair{owner: owner, from: from, to: to, eligible: eligible})
	}

	for _, n := range newNodes {
		for _, other := range existing {
			add(n.ID, n, other)
			add(n.ID, other, n)
		}
	}
	return pairs
}

func (e *Engine) inferPair(ctx context.Context, p pair) (model.RelationProposal, error) {
	var names []string
	for _, t := range p.eligible {
		names = append(names, string(t))
	}
	prompt := fmt.Sprintf(e.prompt,
		p.from.Type, p.from.Text,
		p.to.Type, p.to.Text,
		strings.Join(names, ", "))

	response, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return model.RelationProposal{}, &model.UpstreamError{Upstream: "inference model", Err: err}
	}
	return common.ParseJSON[model.RelationProposal](response)
}

// accept filters verdicts down to proposals that clear the floor and stay
// within the pair's eligible types.
func (e *Engine) accept(brandID string, verdicts []verdict) []verdict {
	var out []verdict
	for _, v := range verdicts {
		if !v.ok || v.proposal.NoRelation {
			continue
		}
		if v.proposal.Strength < e.floor || v.proposal.Strength > 1 {
			continue
		}
		eligible := false
		for _, t := range v.pair.eligible {
			if t == v.proposal.RelationType {
				eligible = true
				break
			}
		}
		if !eligible {
			e.log.Debug("proposal outside eligible types, dropping",
				"brand_id", brandID, "proposed", v.proposal.RelationType)
			continue
		}
		out = append(out, v)
	}
	return out
}

// capFanOut keeps at most limit relations per owning new node, preferring
// the strongest.
func capFanOut(verdicts []verdict, limit int) []verdict {
	byOwner := make(map[string][]verdict)
	var owners []string
	for _, v := range verdicts {
		if _, ok := byOwner[v.pair.owner]; !ok {
			owners = append(owners, v.pair.owner)
		}
		byOwner[v.pair.owner] = append(byOwner[v.pair.owner], v)
	}

	var out []verdict
	for _, owner := range owners {
		vs := byOwner[owner]
		sort.SliceStable(vs, func(i, j int) bool {
			return vs[i].proposal.Strength > vs[j].proposal.Strength
		})
		if len(vs) > limit {
			vs = vs[:limit]
		}
		out = append(out, vs...)
	}
	return out
}
