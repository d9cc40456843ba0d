package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"costbreakdown/internal/entity"
	"costbreakdown/internal/llm"
)

// Wire shapes for models/<model>:generateContent.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// StructureText implements llm.Structurer. A transport or HTTP-status failure
// returns an error; an answer that fails to decode into line items returns an
// empty slice with the raw answer, since the call itself succeeded.
func (c *Client) StructureText(ctx context.Context, text string) ([]entity.LineItem, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		c.logger.Warn("llm.structure.empty_input", "req_id", rid)
		return nil, nil, nil
	}
	if c.cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("gemini api key not configured")
	}

	c.logger.Info("llm.structure.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"text_len", len(text),
		"temperature", c.cfg.Temperature,
	)

	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: llm.BuildExtractionPrompt(text)}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	// Key travels in a header, not the query string, so request logs stay clean.
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.structure.request_failed",
			"req_id", rid,
			"status", status,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, raw, fmt.Errorf("gemini request: %w", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("llm.structure.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return nil, raw, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		c.logger.Warn("llm.structure.no_candidates", "req_id", rid, "raw_bytes", len(raw))
		return nil, raw, nil
	}

	answer := gr.Candidates[0].Content.Parts[0].Text
	items := llm.DecodeLineItems([]byte(answer), c.logger)

	c.logger.Info("llm.structure.ok",
		"req_id", rid,
		"items", len(items),
		"answer_bytes", len(answer),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return items, []byte(answer), nil
}
