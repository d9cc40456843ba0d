package llm

import "strings"

// maxPromptTextChars bounds the document text embedded in a prompt so one
// oversized spreadsheet dump cannot blow the model's input window.
const maxPromptTextChars = 60000

// BuildExtractionPrompt composes the transcription instructions around the
// extracted document text. The rules mirror how estimators read a cost
// breakdown: every individual line item transcribed, rollup rows skipped.
func BuildExtractionPrompt(text string) string {
	if len(text) > maxPromptTextChars {
		text = text[:maxPromptTextChars] + "\n…(truncated)"
	}

	parts := []string{
		"You are a construction cost analyst. Transcribe every cost line item from the document text below.",
		"Return ONLY a valid JSON array with no prose and no markdown fences. Each element must be an object with exactly two keys: \"description\" (string) and \"amount\" (number).",
		"Include every individual cost line item you can identify, keeping the document's own wording for descriptions.",
		"Exclude subtotals, grand totals, general conditions fees, construction management fees, and markup or administrative fee lines.",
		"Amounts must be plain non-negative numbers with no currency symbols and no thousands separators.",
		`Example: [{"description": "PERMITS", "amount": 10000.00}, {"description": "EXCAVATION", "amount": 15000.00}, {"description": "FOUNDATION", "amount": 45000.00}]`,
		"If the text contains no cost line items, return [].",
		"",
		"Document text:",
		text,
	}
	return strings.Join(parts, "\n")
}
