package llm

import (
	"context"

	"github.com/danverh/support-chat/internal/domain"
)

// ToolDef describes one tool attached to a model invocation.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Client is the interface a configured model client satisfies. The returned
// assistant message may carry zero or more tool-call requests.
type Client interface {
	Invoke(ctx context.Context, messages []domain.Message, tools []ToolDef) (*domain.Message, error)
}
