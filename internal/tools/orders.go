package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/danverh/support-chat/internal/plugin"
	"github.com/danverh/support-chat/internal/store"
)

// OrdersSource exposes the order lookup plugin.
func OrdersSource(st *store.Store, latency time.Duration) plugin.Source {
	return plugin.Source{
		Name: "orders",
		Manifest: func() ([]plugin.Tool, error) {
			return []plugin.Tool{
				{
					Name:        "query_order",
					Description: "Look up an order by its order id and report its status, logistics and delivery information.",
					Parameters: objectSchema(map[string]any{
						"order_id": stringParam("The order id, e.g. ORD202311001"),
					}, "order_id"),
					Handler: func(ctx context.Context, args map[string]any) (string, error) {
						if err := simulate(ctx, latency); err != nil {
							return "", err
						}
						o, err := st.GetOrder(ctx, stringArg(args, "order_id"))
						if err != nil {
							return "", err
						}
						return orderNarrative(o), nil
					},
				},
			}, nil
		},
	}
}

// orderNarrative renders a customer-facing status line per order state.
func orderNarrative(o *store.Order) string {
	switch o.Status {
	case "shipped":
		return fmt.Sprintf("Order %s (%s) has shipped with %s, tracking number %s. It is currently at %s and expected to arrive by %s.",
			o.OrderID, o.ProductName, o.Carrier, o.TrackingNumber, o.CurrentLocation, o.EstimatedDelivery)
	case "delivered":
		return fmt.Sprintf("Order %s (%s) was delivered on %s. Thank you for your purchase; contact support if anything is wrong.",
			o.OrderID, o.ProductName, o.DeliveryDate)
	case "processing":
		return fmt.Sprintf("Order %s (%s) is being processed at %s and is expected to ship around %s. Please bear with us.",
			o.OrderID, o.ProductName, o.CurrentLocation, o.EstimatedDelivery)
	default:
		return fmt.Sprintf("Order %s is currently in state %q. Contact support for more detail.", o.OrderID, o.Status)
	}
}
