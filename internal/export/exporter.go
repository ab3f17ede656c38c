// Package export renders printable documents for material requests and
// purchase orders. One template per entity type; every lifecycle status has
// a label so any document can be printed at any point of the flow.
package export

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/procureflow/procureflow/internal/orders"
	"github.com/procureflow/procureflow/internal/requests"
	"github.com/procureflow/procureflow/internal/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

// statusLabels covers the full request and order vocabulary.
var statusLabels = map[workflow.Status]string{
	workflow.RequestPendingEngineer:     "Pending Engineer Review",
	workflow.RequestApprovedByEngineer:  "Approved by Engineer",
	workflow.RequestRejectedByEngineer:  "Rejected by Engineer",
	workflow.RequestPartiallyOrdered:    "Partially Ordered",
	workflow.RequestPurchaseOrderIssued: "Purchase Order Issued",
	workflow.OrderPendingApproval:       "Pending GM Approval",
	workflow.OrderApproved:              "Approved",
	workflow.OrderRejected:              "Rejected",
	workflow.OrderPrinted:               "Printed",
	workflow.OrderShipped:               "Shipped",
	workflow.OrderPartiallyDelivered:    "Partially Delivered",
	workflow.OrderDelivered:             "Delivered",
}

// StatusLabel returns the printable label for a lifecycle status.
func StatusLabel(s workflow.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Exporter renders entity documents as HTML and, through Gotenberg, PDF.
type Exporter struct {
	templates *template.Template
	gotenberg *GotenbergClient
	printer   *message.Printer
}

// NewExporter parses the embedded templates. gotenberg may be nil; PDF
// rendering then fails with an explicit error while HTML keeps working.
func NewExporter(gotenberg *GotenbergClient) (*Exporter, error) {
	printer := message.NewPrinter(language.English)
	funcMap := template.FuncMap{
		"statusLabel": StatusLabel,
		"money": func(v float64) string {
			return printer.Sprintf("%.2f", v)
		},
		"moneyPtr": func(v *float64) string {
			if v == nil {
				return ""
			}
			return printer.Sprintf("%.2f", *v)
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("January 2, 2006")
		},
		"formatDatePtr": func(t *time.Time) string {
			if t == nil || t.IsZero() {
				return ""
			}
			return t.Format("January 2, 2006")
		},
		"formatQty": func(qty float64) string {
			s := fmt.Sprintf("%.4f", qty)
			s = strings.TrimRight(s, "0")
			s = strings.TrimRight(s, ".")
			return s
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"now": func() string {
			return time.Now().Format("January 2, 2006 at 3:04 PM")
		},
		"inc": func(i int) int { return i + 1 },
	}
	tpl, err := template.New("export").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("export: parse templates: %w", err)
	}
	return &Exporter{templates: tpl, gotenberg: gotenberg, printer: printer}, nil
}

// RequestHTML renders the material request document.
func (e *Exporter) RequestHTML(req *requests.Request) (string, error) {
	return e.render("request_document.html", req)
}

// OrderHTML renders the purchase order document.
func (e *Exporter) OrderHTML(o *orders.PurchaseOrder) (string, error) {
	return e.render("purchase_order_document.html", o)
}

// RequestPDF renders the material request document to PDF via Gotenberg.
func (e *Exporter) RequestPDF(ctx context.Context, req *requests.Request) ([]byte, error) {
	html, err := e.RequestHTML(req)
	if err != nil {
		return nil, err
	}
	return e.toPDF(ctx, html)
}

// OrderPDF renders the purchase order document to PDF via Gotenberg.
func (e *Exporter) OrderPDF(ctx context.Context, o *orders.PurchaseOrder) ([]byte, error) {
	html, err := e.OrderHTML(o)
	if err != nil {
		return nil, err
	}
	return e.toPDF(ctx, html)
}

func (e *Exporter) toPDF(ctx context.Context, html string) ([]byte, error) {
	if e.gotenberg == nil {
		return nil, fmt.Errorf("export: pdf rendering not configured")
	}
	return e.gotenberg.RenderHTML(ctx, html)
}

func (e *Exporter) render(name string, data any) (string, error) {
	buf := &bytes.Buffer{}
	if err := e.templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", fmt.Errorf("export: render %s: %w", name, err)
	}
	return buf.String(), nil
}
