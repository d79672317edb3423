package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/danverh/support-chat/internal/plugin"
	"github.com/danverh/support-chat/internal/store"
)

// InvoicesSource exposes the invoice issuance plugin.
func InvoicesSource(st *store.Store, latency time.Duration) plugin.Source {
	return plugin.Source{
		Name: "invoices",
		Manifest: func() ([]plugin.Tool, error) {
			return []plugin.Tool{
				{
					Name:        "create_invoice",
					Description: "Issue an invoice for a customer. Requires the customer name, tax id and at least one line item with name, quantity and unit_price.",
					Parameters: objectSchema(map[string]any{
						"customer_name":   stringParam("Customer's legal name"),
						"customer_tax_id": stringParam("Customer's tax identification number"),
						"items": map[string]any{
							"type":        "array",
							"description": "Line items, each with name, quantity and unit_price",
							"items": objectSchema(map[string]any{
								"name":       stringParam("Item name"),
								"quantity":   map[string]any{"type": "number", "description": "Quantity, must be positive"},
								"unit_price": map[string]any{"type": "number", "description": "Unit price, must be positive"},
							}, "name", "quantity", "unit_price"),
						},
						"issue_date": stringParam("Optional issue date in YYYY-MM-DD format, defaults to today"),
					}, "customer_name", "customer_tax_id", "items"),
					Handler: func(ctx context.Context, args map[string]any) (string, error) {
						if err := simulate(ctx, latency); err != nil {
							return "", err
						}
						items, err := parseItems(args["items"])
						if err != nil {
							return "", err
						}
						inv, err := st.CreateInvoice(ctx,
							stringArg(args, "customer_name"),
							stringArg(args, "customer_tax_id"),
							items,
							stringArg(args, "issue_date"))
						if err != nil {
							return "", err
						}
						return fmt.Sprintf("Invoice created. Invoice id: %s, total including tax: %.2f.", inv.InvoiceID, inv.TotalWithTax), nil
					},
				},
				{
					Name:        "query_invoice_status",
					Description: "Check the status of an invoice by its invoice id.",
					Parameters: objectSchema(map[string]any{
						"invoice_id": stringParam("The invoice id, e.g. INV202311071001"),
					}, "invoice_id"),
					Handler: func(ctx context.Context, args map[string]any) (string, error) {
						if err := simulate(ctx, latency); err != nil {
							return "", err
						}
						inv, err := st.GetInvoice(ctx, stringArg(args, "invoice_id"))
						if err != nil {
							return "", err
						}
						return fmt.Sprintf("Invoice %s is %s. Issued %s, due %s, total including tax %.2f.",
							inv.InvoiceID, inv.Status, inv.IssueDate, inv.DueDate, inv.TotalWithTax), nil
					},
				},
				{
					Name:        "get_invoice_details",
					Description: "Get the full details of an invoice including its line items.",
					Parameters: objectSchema(map[string]any{
						"invoice_id": stringParam("The invoice id"),
					}, "invoice_id"),
					Handler: func(ctx context.Context, args map[string]any) (string, error) {
						if err := simulate(ctx, latency); err != nil {
							return "", err
						}
						inv, err := st.GetInvoice(ctx, stringArg(args, "invoice_id"))
						if err != nil {
							return "", err
						}
						return invoiceDetails(inv), nil
					},
				},
				{
					Name:        "update_invoice_status",
					Description: "Move an invoice to a new status. Valid statuses: issued, sent, paid, overdue, cancelled.",
					Parameters: objectSchema(map[string]any{
						"invoice_id": stringParam("The invoice id"),
						"new_status": stringParam("The new status"),
					}, "invoice_id", "new_status"),
					Handler: func(ctx context.Context, args map[string]any) (string, error) {
						if err := simulate(ctx, latency); err != nil {
							return "", err
						}
						id := stringArg(args, "invoice_id")
						newStatus := stringArg(args, "new_status")
						old, err := st.UpdateInvoiceStatus(ctx, id, newStatus)
						if err != nil {
							return "", err
						}
						return fmt.Sprintf("Invoice %s status changed from %s to %s.", id, old, newStatus), nil
					},
				},
				{
					Name:        "list_invoices",
					Description: "List invoices, optionally filtered by customer name and status.",
					Parameters: objectSchema(map[string]any{
						"customer_name": stringParam("Optional customer name filter (substring match)"),
						"status":        stringParam("Optional status filter"),
						"limit":         map[string]any{"type": "integer", "description": "Maximum number of invoices to return, default 10"},
					}),
					Handler: func(ctx context.Context, args map[string]any) (string, error) {
						if err := simulate(ctx, latency); err != nil {
							return "", err
						}
						invs, err := st.ListInvoices(ctx,
							stringArg(args, "customer_name"),
							stringArg(args, "status"),
							intArg(args, "limit"))
						if err != nil {
							return "", err
						}
						if len(invs) == 0 {
							return "No invoices match the given criteria.", nil
						}
						lines := make([]string, 0, len(invs)+1)
						lines = append(lines, fmt.Sprintf("Found %d invoice(s):", len(invs)))
						for _, inv := range invs {
							lines = append(lines, fmt.Sprintf("- %s: %s, issued %s, total %.2f, %s",
								inv.InvoiceID, inv.CustomerName, inv.IssueDate, inv.TotalWithTax, inv.Status))
						}
						return strings.Join(lines, "\n"), nil
					},
				},
			}, nil
		},
	}
}

func parseItems(raw any) ([]store.InvoiceItem, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: items must be an array of objects", domain.ErrInvalidArgument)
	}
	items := make([]store.InvoiceItem, 0, len(list))
	for _, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: each item must be an object with name, quantity and unit_price", domain.ErrInvalidArgument)
		}
		items = append(items, store.InvoiceItem{
			Name:      stringArg(m, "name"),
			Quantity:  floatArg(m, "quantity"),
			UnitPrice: floatArg(m, "unit_price"),
		})
	}
	return items, nil
}

func invoiceDetails(inv *store.Invoice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s\n", inv.InvoiceID)
	fmt.Fprintf(&b, "Customer: %s (tax id %s)\n", inv.CustomerName, inv.CustomerTaxID)
	fmt.Fprintf(&b, "Issued: %s, due: %s\n", inv.IssueDate, inv.DueDate)
	b.WriteString("Items:\n")
	for _, item := range inv.Items {
		fmt.Fprintf(&b, "- %s: %g x %.2f = %.2f\n", item.Name, item.Quantity, item.UnitPrice, item.Total)
	}
	fmt.Fprintf(&b, "Subtotal: %.2f\n", inv.Subtotal)
	fmt.Fprintf(&b, "Tax (%.0f%%): %.2f\n", inv.TaxRate*100, inv.TaxAmount)
	fmt.Fprintf(&b, "Total: %.2f\n", inv.TotalWithTax)
	fmt.Fprintf(&b, "Status: %s", inv.Status)
	return b.String()
}
