package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danverh/support-chat/internal/plugin"
	"github.com/danverh/support-chat/internal/store"
)

// RefundsSource exposes the refund request plugin.
func RefundsSource(st *store.Store, latency time.Duration) plugin.Source {
	return plugin.Source{
		Name: "refunds",
		Manifest: func() ([]plugin.Tool, error) {
			return []plugin.Tool{
				{
					Name:        "submit_refund",
					Description: "Submit a refund request for an order. The reason must be one of the accepted refund reasons; use list_reasons to see them.",
					Parameters: objectSchema(map[string]any{
						"order_id":    stringParam("The order id the refund applies to"),
						"reason":      stringParam("One of the accepted refund reasons"),
						"description": stringParam("Optional free-form detail about the problem"),
					}, "order_id", "reason"),
					Handler: func(ctx context.Context, args map[string]any) (string, error) {
						if err := simulate(ctx, latency); err != nil {
							return "", err
						}
						r, err := st.CreateRefund(ctx,
							stringArg(args, "order_id"),
							stringArg(args, "reason"),
							stringArg(args, "description"))
						if err != nil {
							return "", err
						}
						return fmt.Sprintf("Your refund request has been submitted. Reference number: %s. We will process it within 24 hours.", r.RefundID), nil
					},
				},
				{
					Name:        "query_refund",
					Description: "Check the status of a previously submitted refund request by its reference number.",
					Parameters: objectSchema(map[string]any{
						"refund_id": stringParam("The refund reference number, e.g. REF20231107ABCD1234"),
					}, "refund_id"),
					Handler: func(ctx context.Context, args map[string]any) (string, error) {
						if err := simulate(ctx, latency); err != nil {
							return "", err
						}
						r, err := st.GetRefund(ctx, stringArg(args, "refund_id"))
						if err != nil {
							return "", err
						}
						return refundNarrative(r), nil
					},
				},
				{
					Name:        "list_reasons",
					Description: "List the accepted refund reasons a customer can choose from.",
					Parameters:  objectSchema(map[string]any{}),
					Handler: func(ctx context.Context, args map[string]any) (string, error) {
						return "Accepted refund reasons: " + strings.Join(store.RefundReasons, ", "), nil
					},
				},
			}, nil
		},
	}
}

func refundNarrative(r *store.Refund) string {
	switch r.Status {
	case "processing":
		return fmt.Sprintf("Refund request %s (order %s) is being processed. Submitted %s, expected to complete by %s. You will be notified of the result.",
			r.RefundID, r.OrderID, r.ApplyTime, r.ProcessBy)
	case "approved":
		return fmt.Sprintf("Refund request %s (order %s) was approved for %.2f. The amount will be returned to your payment method within 3-5 business days.",
			r.RefundID, r.OrderID, r.RefundAmount)
	case "rejected":
		reason := r.ProcessResult
		if reason == "" {
			reason = "contact support for details"
		}
		return fmt.Sprintf("Refund request %s (order %s) was rejected: %s.", r.RefundID, r.OrderID, reason)
	default:
		return fmt.Sprintf("Refund request %s is currently in state %q.", r.RefundID, r.Status)
	}
}
