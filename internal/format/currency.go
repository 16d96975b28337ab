package format

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"orderdash/internal/models"
)

// Currency renders amounts for display, e.g. the revenue headline metric.
type Currency struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewCurrency parses an ISO 4217 code ("IDR") and a BCP 47 locale ("id-ID").
func NewCurrency(code, locale string) (*Currency, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	return &Currency{unit: unit, printer: message.NewPrinter(tag)}, nil
}

// Format prints amount with the currency symbol and locale digit grouping.
func (c *Currency) Format(amount float64) string {
	return c.printer.Sprint(currency.Symbol(c.unit.Amount(amount)))
}

// Code returns the ISO code, e.g. "IDR".
func (c *Currency) Code() string {
	return c.unit.String()
}

// Annotate fills the display fields of s.
func (c *Currency) Annotate(s *models.Summary) {
	s.RevenueDisplay = c.Format(s.TotalRevenue)
	s.Currency = c.Code()
}
