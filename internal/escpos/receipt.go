package escpos

import (
	"bytes"
	"fmt"

	"brewprint/internal/order"
)

// DefaultColumns is the character width of a 58mm printer in font A.
const DefaultColumns = 32

// Options configures receipt and kitchen ticket output.
type Options struct {
	ShopName       string
	Columns        int
	CurrencySymbol string
	CodePage       CodePage
	ClosingMessage string
	QRModuleSize   byte
	TimeLayout     string
}

func (o Options) withDefaults() Options {
	if o.Columns <= 0 {
		o.Columns = DefaultColumns
	}
	if o.CodePage.cm == nil {
		o.CodePage = DefaultCodePage
	}
	if o.ClosingMessage == "" {
		o.ClosingMessage = "Thank you!"
	}
	if o.QRModuleSize == 0 {
		o.QRModuleSize = 6
	}
	if o.TimeLayout == "" {
		o.TimeLayout = "2006-01-02 15:04"
	}
	return o
}

// stream accumulates commands and code-page encoded text.
type stream struct {
	buf bytes.Buffer
	cp  CodePage
}

func (s *stream) cmd(parts ...[]byte) {
	for _, p := range parts {
		s.buf.Write(p)
	}
}

func (s *stream) line(text string) {
	s.buf.Write(s.cp.Encode(text))
	s.buf.WriteByte(LF)
}

func (s *stream) begin() {
	s.cmd(Init(), SelectCodeTable(s.cp.Table))
}

func (s *stream) finish() []byte {
	s.cmd(FeedLines(4), Cut())
	return s.buf.Bytes()
}

// BuildReceipt renders a customer receipt.
func BuildReceipt(job order.PrintJob, opts Options) ([]byte, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	width := opts.Columns
	cp := opts.CodePage
	// amounts are padded by rune count, so they must survive encoding intact
	symbol := cp.Sanitize(opts.CurrencySymbol)

	var code []byte
	if job.CodePayload != "" {
		var err error
		code, err = QRCode([]byte(job.CodePayload), opts.QRModuleSize, ECMedium)
		if err != nil {
			return nil, err
		}
	}

	s := &stream{cp: cp}
	s.begin()

	s.cmd(SetAlign(AlignCenter), Bold(true))
	if opts.ShopName != "" {
		s.line(opts.ShopName)
	}
	s.line(fmt.Sprintf("Order #%s", job.OrderReference))
	s.line(job.Timestamp().Format(opts.TimeLayout))
	s.cmd(Bold(false), SetAlign(AlignLeft))
	s.line(Rule(width))

	for _, l := range job.Lines {
		name := cp.Sanitize(l.Name)
		label := ItemLabel(name, l.Quantity, width-priceColumn)
		s.line(FormatLine(label, FormatAmount(symbol, l.TotalAmount), width))
		if l.Quantity > 1 {
			s.line("   @ " + FormatAmount(symbol, l.UnitAmount))
		}
	}
	s.line(Rule(width))

	if job.Discount.IsPositive() {
		s.line(FormatLine("Subtotal", FormatAmount(symbol, job.Subtotal()), width))
		s.line(FormatLine("Discount", FormatAmount(symbol, job.Discount.Neg()), width))
	}

	s.cmd(Bold(true))
	s.line(FormatLine("TOTAL", FormatAmount(symbol, job.Total()), width))
	s.cmd(Bold(false))

	if job.PaymentMethodLabel != "" {
		s.line(FormatLine("Paid by", cp.Sanitize(job.PaymentMethodLabel), width))
	}

	if job.Note != "" {
		s.line("")
		for _, l := range wrapWords(cp.Sanitize(job.Note), width) {
			s.line(l)
		}
	}

	if code != nil {
		s.line("")
		s.cmd(SetAlign(AlignCenter), code)
		s.line("")
	}

	s.cmd(SetAlign(AlignCenter))
	s.line(opts.ClosingMessage)
	s.cmd(SetAlign(AlignLeft))

	return s.finish(), nil
}

// BuildKitchenTicket renders the order for the bar or kitchen: no prices,
// payment or code block, and item names in bold.
func BuildKitchenTicket(job order.PrintJob, opts Options) ([]byte, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	width := opts.Columns
	cp := opts.CodePage

	s := &stream{cp: cp}
	s.begin()

	s.cmd(SetAlign(AlignCenter), DoubleHeight(true))
	s.line(fmt.Sprintf("Order #%s", job.OrderReference))
	s.cmd(DoubleHeight(false))
	s.line(job.Timestamp().Format(opts.TimeLayout))
	s.cmd(SetAlign(AlignLeft))
	s.line(Rule(width))

	for _, l := range job.Lines {
		s.cmd(Bold(true))
		s.line(ItemLabel(cp.Sanitize(l.Name), l.Quantity, width))
		s.cmd(Bold(false))
	}

	if job.Note != "" {
		s.line(Rule(width))
		s.cmd(Bold(true))
		for _, l := range wrapWords(cp.Sanitize(job.Note), width) {
			s.line(l)
		}
		s.cmd(Bold(false))
	}

	return s.finish(), nil
}
