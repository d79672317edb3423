package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/danverh/support-chat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c, err := NewClient("gpt-4o-mini", "sk-test", "")
		require.NoError(t, err)
		assert.Equal(t, "https://api.openai.com/v1", c.baseURL)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewClient("gpt-4o-mini", "", "")
		assert.Error(t, err)
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := NewClient("", "sk-test", "")
		assert.Error(t, err)
	})

	t.Run("bad base url", func(t *testing.T) {
		_, err := NewClient("gpt-4o-mini", "sk-test", "not a url")
		assert.Error(t, err)
	})
}

func TestClient_Invoke(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": "the order has shipped",
				},
			}},
		})
	}))
	defer srv.Close()

	c, err := NewClient("gpt-4o-mini", "sk-test", srv.URL)
	require.NoError(t, err)

	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "where is my order?"},
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{
			ID:        "call-1",
			Name:      "orders.query_order",
			Arguments: map[string]any{"order_id": "ORD202311001"},
		}}},
		{Role: domain.RoleTool, Content: "shipped", ToolCallID: "call-1"},
	}
	tools := []llm.ToolDef{{
		Name:        "orders.query_order",
		Description: "look up an order",
		Parameters:  map[string]any{"type": "object"},
	}}

	reply, err := c.Invoke(context.Background(), msgs, tools)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.Equal(t, "the order has shipped", reply.Content)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	require.Len(t, gotReq.Messages, 3)
	require.Len(t, gotReq.Messages[1].ToolCalls, 1)
	assert.Equal(t, "function", gotReq.Messages[1].ToolCalls[0].Type)
	assert.JSONEq(t, `{"order_id":"ORD202311001"}`, gotReq.Messages[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call-1", gotReq.Messages[2].ToolCallID)
	require.Len(t, gotReq.Tools, 1)
	assert.Equal(t, "orders.query_order", gotReq.Tools[0].Function.Name)
}

func TestClient_InvokeToolCallReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call-9",
						"type": "function",
						"function": map[string]any{
							"name":      "refunds.submit_refund",
							"arguments": `{"order_id":"ORD202311002","reason":"item damaged"}`,
						},
					}},
				},
			}},
		})
	}))
	defer srv.Close()

	c, err := NewClient("gpt-4o-mini", "sk-test", srv.URL)
	require.NoError(t, err)

	reply, err := c.Invoke(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "refund please"}}, nil)
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call-9", reply.ToolCalls[0].ID)
	assert.Equal(t, "refunds.submit_refund", reply.ToolCalls[0].Name)
	assert.Equal(t, "ORD202311002", reply.ToolCalls[0].Arguments["order_id"])
}

func TestClient_InvokeErrors(t *testing.T) {
	t.Run("api error body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "invalid api key"},
			})
		}))
		defer srv.Close()

		c, err := NewClient("gpt-4o-mini", "sk-bad", srv.URL)
		require.NoError(t, err)

		_, err = c.Invoke(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid api key")
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer srv.Close()

		c, err := NewClient("gpt-4o-mini", "sk-test", srv.URL)
		require.NoError(t, err)

		_, err = c.Invoke(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, nil)
		assert.Error(t, err)
	})
}
