package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/common"
	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
	"github.com/ishankgp/indegenge-persona-sub003/internal/llm"
	"github.com/ishankgp/indegenge-persona-sub003/internal/logger"
)

// DefaultPrompt expects, in order: the node type list, the document type,
// and the document text.
const DefaultPrompt = `You are analyzing a pharmaceutical brand document to extract knowledge candidates.

Valid node types:
%s

Document type: %s

<DOCUMENT>
%s
</DOCUMENT>

Extract every distinct insight as a candidate. Return a JSON object:
{
  "candidates": [
    {
      "node_type": "unmet_need",
      "text": "full statement of the insight",
      "summary": "short display label",
      "segment": "optional audience segment",
      "journey_stage": "optional journey stage",
      "source_quote": "verbatim supporting quote from the document",
      "confidence": 0.85
    }
  ]
}
Confidence is your certainty in [0,1] that the insight is stated or strongly implied by the document.`

// Extractor turns raw document text into candidate nodes via the inference
// collaborator. Classification of the document itself happens upstream.
type Extractor struct {
	llm    llm.LLMClient
	prompt string
	log    *logger.Logger
}

func New(llmClient llm.LLMClient, prompt string, log *logger.Logger) *Extractor {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Extractor{llm: llmClient, prompt: prompt, log: log.With("component", "extractor")}
}

func (e *Extractor) Extract(ctx context.Context, documentType, text string) ([]model.CandidateNode, error) {
	var types []string
	for _, t := range model.AllNodeTypes() {
		types = append(types, "- "+string(t)+" ("+string(t.Family())+")")
	}

	prompt := fmt.Sprintf(e.prompt, strings.Join(types, "\n"), documentType, text)
	response, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, &model.UpstreamError{Upstream: "extraction model", Err: err}
	}

	result, err := common.ParseJSON[model.ExtractedCandidates](response)
	if err != nil {
		return nil, &model.UpstreamError{Upstream: "extraction model", Err: err}
	}

	e.log.Debug("extracted candidates", "document_type", documentType, "count", len(result.Candidates))
	return result.Candidates, nil
}
