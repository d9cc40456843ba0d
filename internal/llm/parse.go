package llm

import (
	"encoding/json"
	"log/slog"
	"strings"

	"costbreakdown/internal/entity"
)

// rawLineItem is the wire shape of one model-produced entry before validation.
type rawLineItem struct {
	Description string `json:"description"`
	Amount      any    `json:"amount"`
}

// DecodeLineItems turns a raw model answer into validated line items.
// A response that is not a JSON array yields an empty slice (logged, never an
// error); individual invalid entries are dropped while their siblings survive.
func DecodeLineItems(raw []byte, logger *slog.Logger) []entity.LineItem {
	if logger == nil {
		logger = slog.Default()
	}

	cleaned := []byte(StripCodeFence(string(raw)))
	if len(cleaned) == 0 {
		logger.Warn("llm.decode.empty_response")
		return nil
	}

	if err := ValidateJSONAgainstSchema(BuildLineItemsJSONSchema(), cleaned); err != nil {
		logger.Warn("llm.decode.not_an_array",
			"error", err,
			"content", truncate(string(cleaned), 512),
		)
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(cleaned, &elems); err != nil {
		logger.Warn("llm.decode.unmarshal_failed", "error", err)
		return nil
	}

	items := make([]entity.LineItem, 0, len(elems))
	for i, el := range elems {
		var it rawLineItem
		if err := json.Unmarshal(el, &it); err != nil {
			logger.Warn("llm.decode.entry_dropped", "index", i, "reason", "not an object", "error", err)
			continue
		}
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			logger.Warn("llm.decode.entry_dropped", "index", i, "reason", "empty description")
			continue
		}
		amount, err := CoerceAmount(it.Amount)
		if err != nil {
			logger.Warn("llm.decode.entry_dropped", "index", i, "reason", "bad amount", "description", desc, "error", err)
			continue
		}
		items = append(items, entity.LineItem{Description: desc, Amount: amount})
	}

	if len(items) < len(elems) {
		logger.Info("llm.decode.partial", "kept", len(items), "dropped", len(elems)-len(items))
	}
	return items
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
