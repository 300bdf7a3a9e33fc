package core

import (
	"math"
	"strings"

	money "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

const (
	DefaultLocale   = "en-LK"
	DefaultCurrency = "LKR"
)

type separators struct {
	decimal  string
	thousand string

	// codeFirst prints the ISO code before the number instead of the grapheme.
	codeFirst bool
}

var (
	englishStyle = separators{decimal: ".", thousand: ",", codeFirst: true}

	maxMinorUnits = decimal.New(math.MaxInt64, 0)

	// Keyed by base language.
	localeSeparators = map[string]separators{
		"en": englishStyle,
		"si": englishStyle,
		"ta": englishStyle,
		"hi": englishStyle,
		"de": {decimal: ",", thousand: "."},
		"it": {decimal: ",", thousand: "."},
		"es": {decimal: ",", thousand: "."},
		"pt": {decimal: ",", thousand: "."},
		"nl": {decimal: ",", thousand: "."},
		"id": {decimal: ",", thousand: "."},
		"tr": {decimal: ",", thousand: "."},
		"da": {decimal: ",", thousand: "."},
		"fr": {decimal: ",", thousand: " "},
		"ru": {decimal: ",", thousand: " "},
		"pl": {decimal: ",", thousand: " "},
		"cs": {decimal: ",", thousand: " "},
		"sv": {decimal: ",", thousand: " "},
		"fi": {decimal: ",", thousand: " "},
	}
)

// CurrencyFormatter renders amounts with a locale's grouping and decimal
// separators. The zero value formats like DefaultLocale.
type CurrencyFormatter struct {
	seps separators
}

// NewCurrencyFormatter returns a formatter for a BCP 47 locale such as
// "en-LK" or "it-IT". Unknown or malformed locales fall back to DefaultLocale.
func NewCurrencyFormatter(locale string) CurrencyFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		return CurrencyFormatter{seps: englishStyle}
	}
	base, _ := tag.Base()
	seps, ok := localeSeparators[base.String()]
	if !ok {
		seps = englishStyle
	}
	return CurrencyFormatter{seps: seps}
}

// Format renders m in the given ISO 4217 currency, e.g. "LKR 1,234.50".
func (f CurrencyFormatter) Format(m Money, code string) string {
	return f.formatDecimal(m.Decimal(), code)
}

// FormatFloat renders a floating point amount. Non-finite input is rendered
// as text instead of failing.
func (f CurrencyFormatter) FormatFloat(amount float64, code string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return f.formatNonFinite(amount, code)
	}
	return f.formatDecimal(decimal.NewFromFloat(amount), code)
}

// FormatCurrency formats amount for DefaultLocale.
func FormatCurrency(amount float64, code string) string {
	return NewCurrencyFormatter(DefaultLocale).FormatFloat(amount, code)
}

func (f CurrencyFormatter) formatDecimal(d decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	fraction := 2
	grapheme := code
	if c := money.GetCurrency(code); c != nil {
		fraction = c.Fraction
		grapheme = c.Grapheme
	}

	seps := f.seps
	if seps.decimal == "" {
		seps = englishStyle
	}
	template := "1 $"
	if seps.codeFirst {
		template = "$ 1"
		grapheme = code
	}

	minor := d.Round(int32(fraction)).Shift(int32(fraction))
	if minor.Abs().GreaterThan(maxMinorUnits) {
		// Beyond int64 minor units: skip grouping rather than overflow.
		return code + " " + d.StringFixed(int32(fraction))
	}

	formatter := money.NewFormatter(fraction, seps.decimal, seps.thousand, grapheme, template)
	return formatter.Format(minor.IntPart())
}

func (f CurrencyFormatter) formatNonFinite(amount float64, code string) string {
	if code == "" {
		code = DefaultCurrency
	}
	switch {
	case math.IsNaN(amount):
		return code + " NaN"
	case amount < 0:
		return "-" + code + " ∞"
	default:
		return code + " ∞"
	}
}
