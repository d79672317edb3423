// Package tools defines the business plugins exposed to the model: order
// lookup, refund filing and invoice issuance. Each plugin is a
// plugin.Source whose handlers read and write the demo business store and
// answer in plain language the model can relay to the user.
package tools

import (
	"context"
	"time"

	"github.com/danverh/support-chat/internal/plugin"
	"github.com/danverh/support-chat/internal/store"
)

// Sources returns every business plugin backed by the given store. The
// latency is applied to each handler to simulate a backend round trip.
func Sources(st *store.Store, latency time.Duration) []plugin.Source {
	return []plugin.Source{
		OrdersSource(st, latency),
		RefundsSource(st, latency),
		InvoicesSource(st, latency),
	}
}

func simulate(ctx context.Context, latency time.Duration) error {
	if latency <= 0 {
		return nil
	}
	select {
	case <-time.After(latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func floatArg(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func stringParam(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
