package service

import (
	"context"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/danverh/support-chat/internal/llm"
	"github.com/stretchr/testify/mock"
)

// MockModelClient mocks the llm.Client interface
type MockModelClient struct {
	mock.Mock
}

func (m *MockModelClient) Invoke(ctx context.Context, messages []domain.Message, tools []llm.ToolDef) (*domain.Message, error) {
	args := m.Called(ctx, messages, tools)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func clientFactory(client llm.Client) llm.Factory {
	return func(cfg llm.Config) (llm.Client, error) {
		return client, nil
	}
}
