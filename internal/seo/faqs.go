package seo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const faqSystemPrompt = "You write concise, factual FAQ sections for web pages. " +
	"Reply with a JSON array only, no prose."

// ErrMalformedFAQs is returned when the model reply holds no JSON array.
var ErrMalformedFAQs = errors.New("faq reply is not a json array")

// FAQs asks a chat-completions API (Perplexity and OpenAI share the shape)
// for questions searchers ask about the target.
type FAQs struct {
	api apiClient
	cfg FAQConfig
}

// NewFAQs builds the faqs provider.
func NewFAQs(api apiClient, cfg FAQConfig) *FAQs {
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &FAQs{api: api, cfg: cfg}
}

func (f *FAQs) Name() string { return ProviderFAQs }

func (f *FAQs) Decode(raw []byte) (any, error) { return decodeAs[FAQResult](raw) }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (f *FAQs) Fetch(ctx context.Context, t Target) (any, error) {
	topic := t.Query()
	prompt := fmt.Sprintf(
		"List the %d questions people most often search about %q (site: %s) with a two-sentence answer each. "+
			"Respond as a JSON array of objects with \"question\" and \"answer\" fields.",
		f.cfg.Count, topic, t.Domain)

	payload, err := json.Marshal(map[string]any{
		"model": f.cfg.Model,
		"messages": []chatMessage{
			{Role: "system", Content: faqSystemPrompt},
			{Role: "user", Content: prompt},
		},
		"temperature": 0.2,
	})
	if err != nil {
		return nil, err
	}

	var body chatResponse
	err = f.api.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.Endpoint+"/chat/completions", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
		return req, nil
	}, &body)
	if err != nil {
		return nil, err
	}
	if len(body.Choices) == 0 {
		return nil, errors.New("faq reply has no choices")
	}

	items, err := ParseFAQs(body.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if len(items) > f.cfg.Count {
		items = items[:f.cfg.Count]
	}
	return &FAQResult{Topic: topic, Items: items, Citations: body.Citations}, nil
}

// ParseFAQs pulls the JSON array out of a model reply, tolerating code
// fences and surrounding prose. Entries without a question are dropped.
func ParseFAQs(reply string) ([]FAQ, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, ErrMalformedFAQs
	}

	var raw []FAQ
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFAQs, err)
	}

	items := make([]FAQ, 0, len(raw))
	for _, item := range raw {
		item.Question = strings.TrimSpace(item.Question)
		item.Answer = strings.TrimSpace(item.Answer)
		if item.Question != "" {
			items = append(items, item)
		}
	}
	return items, nil
}
