// Package store holds the demo business data behind the chatbot tools:
// orders, refund requests and invoices. It is backed by an in-memory
// SQLite database seeded at startup, standing in for the real order and
// billing systems.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id           TEXT PRIMARY KEY,
	status             TEXT NOT NULL,
	product_name       TEXT NOT NULL,
	order_date         TEXT NOT NULL,
	estimated_delivery TEXT,
	delivery_date      TEXT,
	tracking_number    TEXT,
	carrier            TEXT,
	logistics_status   TEXT,
	current_location   TEXT
);

CREATE TABLE IF NOT EXISTS refunds (
	refund_id      TEXT PRIMARY KEY,
	order_id       TEXT NOT NULL,
	reason         TEXT NOT NULL,
	description    TEXT,
	status         TEXT NOT NULL,
	apply_time     TEXT NOT NULL,
	process_by     TEXT NOT NULL,
	refund_amount  REAL,
	process_result TEXT
);

CREATE TABLE IF NOT EXISTS invoices (
	invoice_id      TEXT PRIMARY KEY,
	customer_name   TEXT NOT NULL,
	customer_tax_id TEXT NOT NULL,
	issue_date      TEXT NOT NULL,
	due_date        TEXT NOT NULL,
	subtotal        REAL NOT NULL,
	tax_rate        REAL NOT NULL,
	tax_amount      REAL NOT NULL,
	total_with_tax  REAL NOT NULL,
	status          TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS invoice_items (
	invoice_id TEXT NOT NULL,
	name       TEXT NOT NULL,
	quantity   REAL NOT NULL,
	unit_price REAL NOT NULL,
	total      REAL NOT NULL
);
`

// Seed rows for the demo order database: one shipped, one delivered, one
// still in the warehouse.
var seedOrders = []Order{
	{
		OrderID:           "ORD202311001",
		Status:            "shipped",
		ProductName:       "smart watch",
		OrderDate:         "2023-11-05",
		EstimatedDelivery: "2023-11-08",
		TrackingNumber:    "SF1234567890",
		Carrier:           "SF Express",
		LogisticsStatus:   "in transit",
		CurrentLocation:   "Shanghai transfer center",
	},
	{
		OrderID:         "ORD202311002",
		Status:          "delivered",
		ProductName:     "wireless earbuds",
		OrderDate:       "2023-11-03",
		DeliveryDate:    "2023-11-06",
		TrackingNumber:  "YT9876543210",
		Carrier:         "YTO Express",
		LogisticsStatus: "delivered",
		CurrentLocation: "delivered",
	},
	{
		OrderID:           "ORD202311003",
		Status:            "processing",
		ProductName:       "smart speaker",
		OrderDate:         "2023-11-07",
		EstimatedDelivery: "2023-11-12",
		LogisticsStatus:   "warehouse processing",
		CurrentLocation:   "Beijing warehouse",
	},
}

// RefundReasons are the accepted reasons for a refund request.
var RefundReasons = []string{
	"quality issue",
	"item not as described",
	"no longer needed",
	"item damaged",
	"late shipment",
	"other",
}

// InvoiceStatuses are the valid invoice lifecycle states.
var InvoiceStatuses = []string{"issued", "sent", "paid", "overdue", "cancelled"}

const invoiceTaxRate = 0.13

// Order is a row in the demo order database.
type Order struct {
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	ProductName       string `json:"product_name"`
	OrderDate         string `json:"order_date"`
	EstimatedDelivery string `json:"estimated_delivery,omitempty"`
	DeliveryDate      string `json:"delivery_date,omitempty"`
	TrackingNumber    string `json:"tracking_number,omitempty"`
	Carrier           string `json:"carrier,omitempty"`
	LogisticsStatus   string `json:"logistics_status,omitempty"`
	CurrentLocation   string `json:"current_location,omitempty"`
}

// Refund is a submitted refund request.
type Refund struct {
	RefundID      string  `json:"refund_id"`
	OrderID       string  `json:"order_id"`
	Reason        string  `json:"reason"`
	Description   string  `json:"description,omitempty"`
	Status        string  `json:"status"`
	ApplyTime     string  `json:"apply_time"`
	ProcessBy     string  `json:"estimated_process_time"`
	RefundAmount  float64 `json:"refund_amount,omitempty"`
	ProcessResult string  `json:"process_result,omitempty"`
}

// InvoiceItem is one line on an invoice.
type InvoiceItem struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// Invoice is an issued invoice with its line items.
type Invoice struct {
	InvoiceID     string        `json:"invoice_id"`
	CustomerName  string        `json:"customer_name"`
	CustomerTaxID string        `json:"customer_tax_id"`
	Items         []InvoiceItem `json:"items"`
	IssueDate     string        `json:"issue_date"`
	DueDate       string        `json:"due_date"`
	Subtotal      float64       `json:"subtotal"`
	TaxRate       float64       `json:"tax_rate"`
	TaxAmount     float64       `json:"tax_amount"`
	TotalWithTax  float64       `json:"total_with_tax"`
	Status        string        `json:"status"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
}

// InvoiceSummary is the list view of an invoice.
type InvoiceSummary struct {
	InvoiceID    string  `json:"invoice_id"`
	CustomerName string  `json:"customer_name"`
	IssueDate    string  `json:"issue_date"`
	DueDate      string  `json:"due_date"`
	TotalWithTax float64 `json:"total_with_tax"`
	Status       string  `json:"status"`
}

// Store wraps the SQLite database holding the demo business data.
type Store struct {
	db *sql.DB

	mu             sync.Mutex
	invoiceCounter int
}

// Open creates the in-memory database, applies the schema and seeds the
// demo orders.
func Open(ctx context.Context) (*Store, error) {
	// Shared cache keeps the in-memory database alive across pooled
	// connections; SQLite only supports one writer anyway.
	db, err := sql.Open("sqlite", "file:supportchat?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, invoiceCounter: 1000}
	if err := s.seed(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Int("orders", len(seedOrders)).Msg("business data store ready")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) seed(ctx context.Context) error {
	for _, o := range seedOrders {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO orders
			(order_id, status, product_name, order_date, estimated_delivery,
			 delivery_date, tracking_number, carrier, logistics_status, current_location)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.OrderID, o.Status, o.ProductName, o.OrderDate, o.EstimatedDelivery,
			o.DeliveryDate, o.TrackingNumber, o.Carrier, o.LogisticsStatus, o.CurrentLocation,
		)
		if err != nil {
			return fmt.Errorf("failed to seed order %s: %w", o.OrderID, err)
		}
	}
	return nil
}

// GetOrder looks up one order by id.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalidArgument)
	}

	var o Order
	var estimated, delivery, tracking, carrier, logistics, location sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT order_id, status, product_name, order_date, estimated_delivery,
		       delivery_date, tracking_number, carrier, logistics_status, current_location
		FROM orders WHERE order_id = ?`, orderID,
	).Scan(&o.OrderID, &o.Status, &o.ProductName, &o.OrderDate, &estimated,
		&delivery, &tracking, &carrier, &logistics, &location)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	o.EstimatedDelivery = estimated.String
	o.DeliveryDate = delivery.String
	o.TrackingNumber = tracking.String
	o.Carrier = carrier.String
	o.LogisticsStatus = logistics.String
	o.CurrentLocation = location.String
	return &o, nil
}

// CreateRefund records a refund request. The reason must be one of
// RefundReasons.
func (s *Store) CreateRefund(ctx context.Context, orderID, reason, description string) (*Refund, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalidArgument)
	}
	if !contains(RefundReasons, reason) {
		return nil, fmt.Errorf("%w: unknown refund reason %q, valid reasons: %s",
			domain.ErrInvalidArgument, reason, strings.Join(RefundReasons, ", "))
	}

	now := time.Now()
	r := &Refund{
		RefundID:    fmt.Sprintf("REF%s%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8])),
		OrderID:     orderID,
		Reason:      reason,
		Description: description,
		Status:      "processing",
		ApplyTime:   now.Format("2006-01-02 15:04:05"),
		ProcessBy:   now.Add(24 * time.Hour).Format("2006-01-02 15:04:05"),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refunds (refund_id, order_id, reason, description, status, apply_time, process_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RefundID, r.OrderID, r.Reason, r.Description, r.Status, r.ApplyTime, r.ProcessBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert refund: %w", err)
	}

	log.Info().Str("refund_id", r.RefundID).Str("order_id", orderID).Msg("refund request created")
	return r, nil
}

// GetRefund looks up one refund request by id.
func (s *Store) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	if refundID == "" {
		return nil, fmt.Errorf("%w: refund id is required", domain.ErrInvalidArgument)
	}

	var r Refund
	var amount sql.NullFloat64
	var result sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT refund_id, order_id, reason, description, status, apply_time, process_by, refund_amount, process_result
		FROM refunds WHERE refund_id = ?`, refundID,
	).Scan(&r.RefundID, &r.OrderID, &r.Reason, &r.Description, &r.Status, &r.ApplyTime, &r.ProcessBy, &amount, &result)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("refund %s: %w", refundID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query refund: %w", err)
	}

	r.RefundAmount = amount.Float64
	r.ProcessResult = result.String
	return &r, nil
}

// CreateInvoice validates the request and records an invoice. Quantities
// and unit prices must be positive; the issue date, when supplied, must be
// YYYY-MM-DD.
func (s *Store) CreateInvoice(ctx context.Context, customerName, customerTaxID string, items []InvoiceItem, issueDate string) (*Invoice, error) {
	if customerName == "" || customerTaxID == "" {
		return nil, fmt.Errorf("%w: customer name and tax id are required", domain.ErrInvalidArgument)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: item list must not be empty", domain.ErrInvalidArgument)
	}
	for _, item := range items {
		if item.Name == "" {
			return nil, fmt.Errorf("%w: every item needs a name, quantity and unit price", domain.ErrInvalidArgument)
		}
		if item.Quantity <= 0 || item.UnitPrice <= 0 {
			return nil, fmt.Errorf("%w: item quantity and unit price must be positive", domain.ErrInvalidArgument)
		}
	}

	var issued time.Time
	if issueDate != "" {
		var err error
		issued, err = time.Parse("2006-01-02", issueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: issue date must be YYYY-MM-DD", domain.ErrInvalidArgument)
		}
	} else {
		issued = time.Now()
		issueDate = issued.Format("2006-01-02")
	}

	inv := &Invoice{
		InvoiceID:     s.nextInvoiceID(),
		CustomerName:  customerName,
		CustomerTaxID: customerTaxID,
		IssueDate:     issueDate,
		DueDate:       issued.AddDate(0, 0, 30).Format("2006-01-02"),
		TaxRate:       invoiceTaxRate,
		Status:        "issued",
		CreatedAt:     time.Now().Format(time.RFC3339),
		UpdatedAt:     time.Now().Format(time.RFC3339),
	}
	for _, item := range items {
		item.Total = round2(item.Quantity * item.UnitPrice)
		inv.Items = append(inv.Items, item)
		inv.Subtotal += item.Total
	}
	inv.Subtotal = round2(inv.Subtotal)
	inv.TaxAmount = round2(inv.Subtotal * invoiceTaxRate)
	inv.TotalWithTax = round2(inv.Subtotal + inv.TaxAmount)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices
		(invoice_id, customer_name, customer_tax_id, issue_date, due_date,
		 subtotal, tax_rate, tax_amount, total_with_tax, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.InvoiceID, inv.CustomerName, inv.CustomerTaxID, inv.IssueDate, inv.DueDate,
		inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.TotalWithTax, inv.Status, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}
	for _, item := range inv.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, name, quantity, unit_price, total)
			VALUES (?, ?, ?, ?, ?)`,
			inv.InvoiceID, item.Name, item.Quantity, item.UnitPrice, item.Total,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}

	log.Info().Str("invoice_id", inv.InvoiceID).Float64("total", inv.TotalWithTax).Msg("invoice created")
	return inv, nil
}

// GetInvoice looks up one invoice with its items.
func (s *Store) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("%w: invoice id is required", domain.ErrInvalidArgument)
	}

	var inv Invoice
	err := s.db.QueryRowContext(ctx, `
		SELECT invoice_id, customer_name, customer_tax_id, issue_date, due_date,
		       subtotal, tax_rate, tax_amount, total_with_tax, status, created_at, updated_at
		FROM invoices WHERE invoice_id = ?`, invoiceID,
	).Scan(&inv.InvoiceID, &inv.CustomerName, &inv.CustomerTaxID, &inv.IssueDate, &inv.DueDate,
		&inv.Subtotal, &inv.TaxRate, &inv.TaxAmount, &inv.TotalWithTax, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, quantity, unit_price, total FROM invoice_items
		WHERE invoice_id = ? ORDER BY rowid`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(&item.Name, &item.Quantity, &item.UnitPrice, &item.Total); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read invoice items: %w", err)
	}
	return &inv, nil
}

// UpdateInvoiceStatus moves an invoice to a new lifecycle state and
// returns the previous one.
func (s *Store) UpdateInvoiceStatus(ctx context.Context, invoiceID, newStatus string) (string, error) {
	if invoiceID == "" || newStatus == "" {
		return "", fmt.Errorf("%w: invoice id and new status are required", domain.ErrInvalidArgument)
	}
	if !contains(InvoiceStatuses, newStatus) {
		return "", fmt.Errorf("%w: invalid status %q, valid statuses: %s",
			domain.ErrInvalidArgument, newStatus, strings.Join(InvoiceStatuses, ", "))
	}

	var oldStatus string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM invoices WHERE invoice_id = ?`, invoiceID).Scan(&oldStatus)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("invoice %s: %w", invoiceID, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query invoice: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE invoices SET status = ?, updated_at = ? WHERE invoice_id = ?`,
		newStatus, time.Now().Format(time.RFC3339), invoiceID)
	if err != nil {
		return "", fmt.Errorf("failed to update invoice status: %w", err)
	}

	log.Info().Str("invoice_id", invoiceID).Str("from", oldStatus).Str("to", newStatus).Msg("invoice status updated")
	return oldStatus, nil
}

// ListInvoices returns invoice summaries filtered by customer name
// substring and status, newest issue date first.
func (s *Store) ListInvoices(ctx context.Context, customerName, status string, limit int) ([]InvoiceSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT invoice_id, customer_name, issue_date, due_date, total_with_tax, status
		FROM invoices WHERE 1=1`
	args := []any{}
	if customerName != "" {
		query += ` AND LOWER(customer_name) LIKE ?`
		args = append(args, "%"+strings.ToLower(customerName)+"%")
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY issue_date DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var out []InvoiceSummary
	for rows.Next() {
		var inv InvoiceSummary
		if err := rows.Scan(&inv.InvoiceID, &inv.CustomerName, &inv.IssueDate, &inv.DueDate, &inv.TotalWithTax, &inv.Status); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) nextInvoiceID() string {
	s.mu.Lock()
	s.invoiceCounter++
	n := s.invoiceCounter
	s.mu.Unlock()
	return fmt.Sprintf("INV%s%04d", time.Now().Format("20060102"), n)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
