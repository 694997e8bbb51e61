// Package llm implements the classification boundary client. One call
// covers one small batch of candidates; the response is free text expected
// to contain exactly one JSON array aligned with the batch.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"GiftScout/internal/config"
	"GiftScout/internal/domain"
	"GiftScout/internal/faults"
	"GiftScout/internal/ports"
)

// Classifier talks to an OpenAI-compatible chat-completions endpoint.
type Classifier struct {
	endpoint   string
	model      string
	keys       []string
	keyIndex   int
	httpClient *http.Client
}

var _ ports.Classifier = (*Classifier)(nil)

// NewClassifier builds a client from configuration.
func NewClassifier(cfg config.LLMConfig) *Classifier {
	return &Classifier{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		keys:     cfg.APIKeys,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RotateCredential advances to the next configured API key. It reports
// false when there is no further key to try.
func (c *Classifier) RotateCredential() bool {
	if c.keyIndex+1 >= len(c.keys) {
		return false
	}
	c.keyIndex++
	return true
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// wireResult mirrors the array elements the prompt asks for.
type wireResult struct {
	Accepted     bool             `json:"accepted"`
	QualityScore int              `json:"quality_score"`
	Category     string           `json:"category"`
	AudienceTags []string         `json:"audience_tags"`
	SEOTitle     string           `json:"seo_title"`
	MetaDesc     string           `json:"meta_description"`
	Description  string           `json:"description"`
	Pros         []string         `json:"pros"`
	Cons         []string         `json:"cons"`
	FAQs         []domain.FAQPair `json:"faqs"`
	Verdict      string           `json:"verdict"`
	Slug         string           `json:"slug"`
}

// ClassifyBatch sends one batch and returns positionally aligned results.
// A response whose array is absent, malformed or of the wrong length is a
// parse failure for the whole batch.
func (c *Classifier) ClassifyBatch(ctx context.Context, batch []domain.CandidateRecord) ([]domain.ClassificationResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	if c.endpoint == "" || c.model == "" || len(c.keys) == 0 {
		return nil, faults.Permanent("classify", fmt.Errorf("classifier misconfigured"))
	}

	text, err := c.complete(ctx, buildPrompt(batch))
	if err != nil {
		return nil, err
	}

	array, ok := ExtractJSONArray(text)
	if !ok {
		return nil, faults.Parsef("classify", "response contains no JSON array")
	}

	var wire []wireResult
	if err := json.Unmarshal([]byte(array), &wire); err != nil {
		return nil, faults.Parsef("classify", "malformed JSON array: %v", err)
	}
	if len(wire) != len(batch) {
		return nil, faults.Parsef("classify", "array length %d does not match batch size %d", len(wire), len(batch))
	}

	results := make([]domain.ClassificationResult, len(wire))
	for i, w := range wire {
		results[i] = domain.ClassificationResult{
			Accepted:     w.Accepted,
			QualityScore: w.QualityScore,
			Category:     w.Category,
			AudienceTags: w.AudienceTags,
			Slug:         w.Slug,
			SEO: domain.SEOFields{
				Title:           w.SEOTitle,
				MetaDescription: w.MetaDesc,
				Description:     w.Description,
				Pros:            w.Pros,
				Cons:            w.Cons,
				FAQs:            w.FAQs,
				Verdict:         w.Verdict,
			},
		}
	}

	return results, nil
}

func (c *Classifier) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.keys[c.keyIndex])
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", faults.Transient("classify", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", faults.Transient("classify", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", faults.Quota("classify", fmt.Errorf("boundary returned %s", resp.Status))
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", faults.Transient("classify", fmt.Errorf("boundary returned %s", resp.Status))
	default:
		return "", faults.Permanent("classify", fmt.Errorf("boundary returned %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", faults.Parsef("classify", "undecodable boundary response: %v", err)
	}
	if decoded.Error != nil {
		if strings.Contains(strings.ToLower(decoded.Error.Type+decoded.Error.Message), "quota") {
			return "", faults.Quota("classify", fmt.Errorf("%s", decoded.Error.Message))
		}
		return "", faults.Transient("classify", fmt.Errorf("boundary error: %s", decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return "", faults.Parsef("classify", "boundary response has no choices")
	}

	return decoded.Choices[0].Message.Content, nil
}

// ExtractJSONArray returns the first balanced top-level [...] block in the
// text, skipping brackets inside string literals. It reports false when no
// complete array exists.
func ExtractJSONArray(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '[':
			if start < 0 {
				start = i
			}
			depth++
		case ']':
			if start >= 0 {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}

	return "", false
}
