package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/liliang-cn/studydesk/internal/config"
	"github.com/liliang-cn/studydesk/internal/domain"
)

// OpenAI embeds text through the remote embeddings API. Document and
// query inputs are prefixed with retrieval task hints so asymmetric
// models treat them differently.
type OpenAI struct {
	client *openai.Client
	model  string
}

func newOpenAI(cfg config.EmbeddingConfig, llm config.LLMConfig) (*OpenAI, error) {
	if llm.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key configured for remote embeddings", domain.ErrEmbeddingUnavailable)
	}
	clientCfg := openai.DefaultConfig(llm.APIKey)
	if llm.BaseURL != "" {
		clientCfg.BaseURL = llm.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.RemoteModel,
	}, nil
}

// Model returns the configured model name.
func (o *OpenAI) Model() string { return o.model }

// Embed maps the batch to vectors, tagging each input with its retrieval
// role.
func (o *OpenAI) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	prefix := "retrieval document: "
	if mode == ModeQuery {
		prefix = "retrieval query: "
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = prefix + t
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", domain.ErrEmbeddingUnavailable, len(resp.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i := range out {
		if out[i] == nil {
			out[i] = resp.Data[i].Embedding
		}
	}
	return out, nil
}
