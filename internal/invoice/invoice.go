package invoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LineItem struct {
	Quantity    float64
	Description string
	UnitPrice   float64
	TaxAmount   float64
}

func (l LineItem) Total() float64 {
	return l.Quantity * l.UnitPrice
}

type Receiver struct {
	TaxID   string
	Name    string
	Surname string
}

type Issuer struct {
	Name         string
	TaxID        string
	TradeName    string
	AddressLines []string
	Series       string
	DTENumber    string
	Currency     string
}

// Document is the handle to an emitted invoice.
type Document struct {
	Name          string
	Path          string
	Authorization string
	IssuedAt      time.Time
	Total         float64
	Tax           float64
}

type Emitter interface {
	Emit(ctx context.Context, to Receiver, items []LineItem) (Document, error)
}

var (
	ErrMissingReceiver = errors.New("receiver tax id and name are required")
	ErrNoItems         = errors.New("invoice has no items")
)

const filePrefix = "invoice_"

// HTMLEmitter writes printable HTML invoices into a directory.
type HTMLEmitter struct {
	dir    string
	issuer Issuer
	now    func() time.Time
	auth   func() string
}

func NewHTMLEmitter(dir string, issuer Issuer) *HTMLEmitter {
	return &HTMLEmitter{
		dir:    dir,
		issuer: issuer,
		now:    time.Now,
		auth:   func() string { return strings.ToUpper(uuid.NewString()) },
	}
}

func (e *HTMLEmitter) Dir() string {
	return e.dir
}

func (e *HTMLEmitter) Emit(ctx context.Context, to Receiver, items []LineItem) (Document, error) {
	to.TaxID = strings.TrimSpace(to.TaxID)
	to.Name = strings.TrimSpace(to.Name)
	to.Surname = strings.TrimSpace(to.Surname)
	if to.TaxID == "" || to.Name == "" {
		return Document{}, ErrMissingReceiver
	}
	if len(items) == 0 {
		return Document{}, ErrNoItems
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	issuedAt := e.now()
	doc := Document{
		Authorization: e.auth(),
		IssuedAt:      issuedAt,
	}
	rows := make([]templateRow, 0, len(items))
	for i, it := range items {
		total := it.Total()
		doc.Total += total
		doc.Tax += it.TaxAmount
		rows = append(rows, templateRow{
			N:           i + 1,
			Quantity:    formatQuantity(it.Quantity),
			Description: it.Description,
			UnitPrice:   formatMoney(it.UnitPrice),
			Tax:         formatMoney(it.TaxAmount),
			Total:       formatMoney(total),
		})
	}

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, templateData{
		Issuer:        e.issuer,
		Receiver:      to,
		Authorization: doc.Authorization,
		IssuedAt:      issuedAt.Format("02-Jan-2006 15:04:05"),
		Rows:          rows,
		TotalTax:      formatMoney(doc.Tax),
		Total:         formatMoney(doc.Total),
	})
	if err != nil {
		return Document{}, fmt.Errorf("render invoice: %w", err)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return Document{}, fmt.Errorf("create invoice dir: %w", err)
	}

	doc.Name = fmt.Sprintf("%s%s_%s.html", filePrefix, issuedAt.Format("20060102_150405"), strings.ReplaceAll(doc.Authorization, "-", "")[:8])
	doc.Path = filepath.Join(e.dir, doc.Name)
	if err := writeFileAtomic(doc.Path, buf.Bytes()); err != nil {
		return Document{}, fmt.Errorf("write invoice: %w", err)
	}
	return doc, nil
}

// ValidName reports whether name could have been produced by an HTMLEmitter.
func ValidName(name string) bool {
	return name == filepath.Base(name) &&
		strings.HasPrefix(name, filePrefix) &&
		strings.HasSuffix(name, ".html")
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".invoice-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatQuantity(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
