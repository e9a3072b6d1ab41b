// Package locale — тонкая обёртка над golang.org/x/text для вывода сумм и дат.
package locale

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

// DateLayout — день/месяц/год, как в ar-DZ.
const DateLayout = "2/1/2006"

// Formatter форматирует числа по языковому тегу и добавляет обозначение валюты.
type Formatter struct {
	tag      language.Tag
	printer  *message.Printer
	currency string
}

// New создаёт Formatter для тега вида "ar-DZ".
func New(tag, currency string) (*Formatter, error) {
	const op = "locale.New"

	t, err := language.Parse(tag)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Formatter{
		tag:      t,
		printer:  message.NewPrinter(t),
		currency: currency,
	}, nil
}

// Tag возвращает BCP 47 тег, например для атрибута lang.
func (f *Formatter) Tag() string {
	return f.tag.String()
}

// Amount форматирует число с разделителями разрядов, не больше двух знаков после запятой.
func (f *Formatter) Amount(v float64) string {
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// Money — Amount с обозначением валюты.
func (f *Formatter) Money(v float64) string {
	if f.currency == "" {
		return f.Amount(v)
	}
	return f.Amount(v) + " " + f.currency
}

// Date форматирует календарную дату.
func (f *Formatter) Date(d models.Date) string {
	return d.Format(DateLayout)
}
