package llm

import (
	"context"

	"costbreakdown/internal/entity"
)

// Structurer is the interface the pipeline depends on for Stage 2:
// extracted text -> validated line items. The raw model answer is returned
// alongside for logging and audit.
type Structurer interface {
	StructureText(ctx context.Context, text string) ([]entity.LineItem, []byte, error)
}
