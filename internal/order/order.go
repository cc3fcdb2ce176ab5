package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidJob marks job data no printer command can be built from.
var ErrInvalidJob = errors.New("invalid print job")

// LineItem is one ordered product.
type LineItem struct {
	Name        string
	Quantity    int
	UnitAmount  decimal.Decimal
	TotalAmount decimal.Decimal
}

// PrintJob is the data the order screens hand over for printing.
// It is built per print request and not modified afterwards.
type PrintJob struct {
	OrderReference     string
	Lines              []LineItem
	Note               string
	PaymentMethodLabel string
	Discount           decimal.Decimal
	CodePayload        string // optional URL rendered as a QR block on receipts
	CreatedAt          time.Time
}

// NewLineItem builds an item whose total is unit * quantity.
func NewLineItem(name string, quantity int, unit decimal.Decimal) LineItem {
	return LineItem{
		Name:        name,
		Quantity:    quantity,
		UnitAmount:  unit,
		TotalAmount: unit.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Validate checks the structural constraints encoders rely on.
// Business rules such as pricing are the caller's concern.
func (j PrintJob) Validate() error {
	for i, l := range j.Lines {
		if l.Quantity < 1 {
			return fmt.Errorf("%w: line %d (%q) has quantity %d", ErrInvalidJob, i, l.Name, l.Quantity)
		}
	}
	if j.Discount.IsNegative() {
		return fmt.Errorf("%w: negative discount %s", ErrInvalidJob, j.Discount)
	}
	return nil
}

// Subtotal sums the line totals.
func (j PrintJob) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range j.Lines {
		sum = sum.Add(l.TotalAmount)
	}
	return sum
}

// Total is the subtotal minus the discount.
func (j PrintJob) Total() decimal.Decimal {
	return j.Subtotal().Sub(j.Discount)
}

// Timestamp returns CreatedAt, or now when the caller left it empty.
func (j PrintJob) Timestamp() time.Time {
	if j.CreatedAt.IsZero() {
		return time.Now()
	}
	return j.CreatedAt
}
