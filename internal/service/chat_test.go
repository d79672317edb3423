package service

import (
	"context"
	"errors"
	"testing"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/danverh/support-chat/internal/llm"
	"github.com/danverh/support-chat/internal/plugin"
	"github.com/danverh/support-chat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, client llm.Client, sources ...plugin.Source) (*ChatService, *session.Store) {
	t.Helper()

	sessions := session.NewStore()
	plugins := plugin.NewRegistry(sources...)
	plugins.LoadAll()

	models, err := llm.NewRegistry(llm.Config{Model: "test-model", APIKey: "test-key"}, clientFactory(client))
	require.NoError(t, err)

	svc := NewChatService(sessions, plugins, models, Options{MaxToolRounds: 3, MaxHistory: 10})
	return svc, sessions
}

func assistant(text string) *domain.Message {
	return &domain.Message{Role: domain.RoleAssistant, Content: text}
}

func TestChatService_PlainAnswer(t *testing.T) {
	client := new(MockModelClient)
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(assistant("hi there"), nil).Once()

	svc, sessions := newTestService(t, client)

	result, err := svc.ProcessMessage(context.Background(), "u1", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Response)
	assert.NotEmpty(t, result.SessionID)
	assert.Empty(t, result.ToolCalls)

	sess, err := svc.SessionHistory("u1", result.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	assert.Equal(t, domain.RoleUser, sess.History[0].Role)
	assert.Equal(t, "hello", sess.History[0].Content)
	assert.Equal(t, domain.RoleAssistant, sess.History[1].Role)
	assert.Equal(t, "hi there", sess.History[1].Content)

	assert.Equal(t, 1, sessions.Stats().TotalSessions)
	client.AssertExpectations(t)
}

func TestChatService_ReplaysPriorHistory(t *testing.T) {
	client := new(MockModelClient)
	var secondCallMsgs []domain.Message
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(assistant("first"), nil).Once()
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			secondCallMsgs = args.Get(1).([]domain.Message)
		}).
		Return(assistant("second"), nil).Once()

	svc, _ := newTestService(t, client)

	first, err := svc.ProcessMessage(context.Background(), "u1", "one", "")
	require.NoError(t, err)

	_, err = svc.ProcessMessage(context.Background(), "u1", "two", first.SessionID)
	require.NoError(t, err)

	require.Len(t, secondCallMsgs, 3)
	assert.Equal(t, "one", secondCallMsgs[0].Content)
	assert.Equal(t, "first", secondCallMsgs[1].Content)
	assert.Equal(t, "two", secondCallMsgs[2].Content)
	client.AssertExpectations(t)
}

func TestChatService_ModelFailureDegrades(t *testing.T) {
	client := new(MockModelClient)
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

	svc, _ := newTestService(t, client)

	result, err := svc.ProcessMessage(context.Background(), "u1", "hello", "")
	require.NoError(t, err)
	assert.Contains(t, result.Response, "something went wrong")

	// Degraded answers are persisted like any other turn.
	sess, err := svc.SessionHistory("u1", result.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	assert.Equal(t, domain.RoleAssistant, sess.History[1].Role)
	assert.Contains(t, sess.History[1].Content, "something went wrong")
}

func TestChatService_ToolLoop(t *testing.T) {
	echo := plugin.Source{
		Name: "echo",
		Manifest: func() ([]plugin.Tool, error) {
			return []plugin.Tool{{
				Name:        "say",
				Description: "echoes its input",
				Handler: func(ctx context.Context, args map[string]any) (string, error) {
					v, _ := args["text"].(string)
					return "echo: " + v, nil
				},
			}}, nil
		},
	}

	client := new(MockModelClient)
	var secondCallMsgs []domain.Message
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Message{
			Role: domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{
				ID:        "call-1",
				Name:      "echo.say",
				Arguments: map[string]any{"text": "ping"},
			}},
		}, nil).Once()
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			secondCallMsgs = args.Get(1).([]domain.Message)
		}).
		Return(assistant("done"), nil).Once()

	svc, _ := newTestService(t, client, echo)

	result, err := svc.ProcessMessage(context.Background(), "u1", "run the tool", "")
	require.NoError(t, err)
	assert.Equal(t, "done", result.Response)

	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "echo.say", result.ToolCalls[0].Name)
	assert.Equal(t, "echo: ping", result.ToolCalls[0].Result)

	// Second model call sees the assistant tool request and the tool result.
	require.Len(t, secondCallMsgs, 3)
	assert.Equal(t, domain.RoleAssistant, secondCallMsgs[1].Role)
	require.Len(t, secondCallMsgs[1].ToolCalls, 1)
	assert.Equal(t, domain.RoleTool, secondCallMsgs[2].Role)
	assert.Equal(t, "echo: ping", secondCallMsgs[2].Content)
	assert.Equal(t, "call-1", secondCallMsgs[2].ToolCallID)

	// Only the user message and the final answer are persisted.
	sess, err := svc.SessionHistory("u1", result.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	client.AssertExpectations(t)
}

func TestChatService_UnknownToolBecomesErrorResult(t *testing.T) {
	client := new(MockModelClient)
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Message{
			Role: domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{
				ID:   "call-1",
				Name: "ghost.vanish",
			}},
		}, nil).Once()
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(assistant("recovered"), nil).Once()

	svc, _ := newTestService(t, client)

	result, err := svc.ProcessMessage(context.Background(), "u1", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Response)
	require.Len(t, result.ToolCalls, 1)
	assert.Contains(t, result.ToolCalls[0].Result, "does not exist")
}

func TestChatService_ToolErrorBecomesErrorResult(t *testing.T) {
	failing := plugin.Source{
		Name: "flaky",
		Manifest: func() ([]plugin.Tool, error) {
			return []plugin.Tool{{
				Name:        "boom",
				Description: "always fails",
				Handler: func(ctx context.Context, args map[string]any) (string, error) {
					return "", errors.New("backend down")
				},
			}}, nil
		},
	}

	client := new(MockModelClient)
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Message{
			Role:      domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{ID: "call-1", Name: "flaky.boom"}},
		}, nil).Once()
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(assistant("sorry"), nil).Once()

	svc, _ := newTestService(t, client, failing)

	result, err := svc.ProcessMessage(context.Background(), "u1", "hello", "")
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Contains(t, result.ToolCalls[0].Result, "backend down")
}

func TestChatService_PanickingToolIsContained(t *testing.T) {
	panicky := plugin.Source{
		Name: "wild",
		Manifest: func() ([]plugin.Tool, error) {
			return []plugin.Tool{{
				Name:        "crash",
				Description: "panics",
				Handler: func(ctx context.Context, args map[string]any) (string, error) {
					panic("oops")
				},
			}}, nil
		},
	}

	client := new(MockModelClient)
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Message{
			Role:      domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{ID: "call-1", Name: "wild.crash"}},
		}, nil).Once()
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(assistant("contained"), nil).Once()

	svc, _ := newTestService(t, client, panicky)

	result, err := svc.ProcessMessage(context.Background(), "u1", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "contained", result.Response)
	require.Len(t, result.ToolCalls, 1)
	assert.Contains(t, result.ToolCalls[0].Result, "oops")
}

func TestChatService_ToolRoundLimit(t *testing.T) {
	echo := plugin.Source{
		Name: "echo",
		Manifest: func() ([]plugin.Tool, error) {
			return []plugin.Tool{{
				Name:        "say",
				Description: "echoes",
				Handler: func(ctx context.Context, args map[string]any) (string, error) {
					return "again", nil
				},
			}}, nil
		},
	}

	client := new(MockModelClient)
	// The model keeps asking for tools forever.
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Message{
			Role:      domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{{ID: "c", Name: "echo.say"}},
		}, nil)

	svc, _ := newTestService(t, client, echo)

	result, err := svc.ProcessMessage(context.Background(), "u1", "loop", "")
	require.NoError(t, err)
	assert.Contains(t, result.Response, "too many tool calls")
	assert.Len(t, result.ToolCalls, 3)
	client.AssertNumberOfCalls(t, "Invoke", 4)
}

func TestChatService_SessionOperations(t *testing.T) {
	client := new(MockModelClient)
	client.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(assistant("hi"), nil)

	svc, _ := newTestService(t, client)

	result, err := svc.ProcessMessage(context.Background(), "u1", "hello", "")
	require.NoError(t, err)

	t.Run("history for wrong owner is forbidden", func(t *testing.T) {
		_, err := svc.SessionHistory("u2", result.SessionID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("malformed session id is not found", func(t *testing.T) {
		_, err := svc.SessionHistory("u1", "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		err = svc.DeleteSession("u1", "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list and delete", func(t *testing.T) {
		infos := svc.UserSessions("u1")
		require.Len(t, infos, 1)
		assert.Equal(t, 2, infos[0].MessageCount)

		require.NoError(t, svc.DeleteSession("u1", result.SessionID))
		_, err := svc.SessionHistory("u1", result.SessionID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestChatService_Status(t *testing.T) {
	echo := plugin.Source{
		Name: "echo",
		Manifest: func() ([]plugin.Tool, error) {
			return []plugin.Tool{{
				Name:        "say",
				Description: "echoes",
				Handler: func(ctx context.Context, args map[string]any) (string, error) {
					return "", nil
				},
			}}, nil
		},
	}

	client := new(MockModelClient)
	svc, _ := newTestService(t, client, echo)

	st := svc.Status()
	assert.Equal(t, "healthy", st.Status)
	assert.Equal(t, "test-model", st.Model.ModelName)
	assert.Equal(t, 1, st.Plugins.TotalPlugins)
	assert.Equal(t, 0, st.Sessions.TotalSessions)
}
