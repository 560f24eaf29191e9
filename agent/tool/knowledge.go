package tool

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
)

// KnowledgeConfig is read from KNOWLEDGE_* variables.
type KnowledgeConfig struct {
	URL     string                    `split_words:"true"`
	Token   string                    `split_words:"true"`
	TopK    int                       `split_words:"true" default:"3"`
	Retry   resiliencex.Policy        `split_words:"true"`
	Breaker resiliencex.BreakerConfig `split_words:"true"`
}

type knowledgeRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type knowledgeResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		Snippet string  `json:"snippet"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// KnowledgeSearch answers product questions from a search API.
type KnowledgeSearch struct {
	endpoint   string
	token      string
	topK       int
	httpClient *http.Client
}

func NewKnowledgeSearch(cfg KnowledgeConfig, client *http.Client) (*KnowledgeSearch, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, errors.New("knowledge search url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	return &KnowledgeSearch{
		endpoint:   endpoint,
		token:      cfg.Token,
		topK:       topK,
		httpClient: client,
	}, nil
}

func (k *KnowledgeSearch) Name() string {
	return contractx.CapabilityKnowledgeSearch
}

func (k *KnowledgeSearch) Invoke(ctx context.Context, req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	query := strings.TrimSpace(req.Utterance)
	if query == "" {
		return contractx.CapabilityResult{}, resiliencex.Permanent(errors.New("empty query"))
	}

	var resp knowledgeResponse
	if err := postJSON(ctx, k.httpClient, k.endpoint, k.token, nil, knowledgeRequest{Query: query, TopK: k.topK}, &resp); err != nil {
		return contractx.CapabilityResult{}, err
	}

	out := contractx.CapabilityResult{Capability: k.Name()}
	best := -1.0
	for _, r := range resp.Results {
		snippet := strings.TrimSpace(r.Snippet)
		if snippet == "" || r.Score <= best {
			continue
		}
		best = r.Score
		out.Answer = snippet
		out.Reference = r.Title
	}
	return out, nil
}
