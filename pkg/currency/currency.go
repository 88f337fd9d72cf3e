// Package currency converts listing prices from the base currency and
// formats them for display.
package currency

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rubiojr/roost/pkg/log"
	xcurrency "golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var logger = log.ForService("currency")

// Converter holds exchange rates relative to a base currency. It is safe for
// concurrent use; rates can be replaced while serving.
type Converter struct {
	mu    sync.RWMutex
	base  string
	def   string
	rates map[string]float64
}

// NewConverter returns a converter from base. def is the display currency
// used when none is requested. rates maps codes to units per base unit.
func NewConverter(base, def string, rates map[string]float64) (*Converter, error) {
	base = strings.ToUpper(base)
	if _, err := xcurrency.ParseISO(base); err != nil {
		return nil, fmt.Errorf("invalid base currency %q: %w", base, err)
	}
	if def == "" {
		def = base
	}
	c := &Converter{base: base, def: strings.ToUpper(def)}
	if err := c.SetRates(rates); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Converter) Base() string { return c.base }

func (c *Converter) Default() string { return c.def }

// SetRates replaces every rate. Codes are validated against ISO 4217 and
// the default currency must keep a rate; on error the current rates stay.
func (c *Converter) SetRates(rates map[string]float64) error {
	next := make(map[string]float64, len(rates)+1)
	for code, rate := range rates {
		code = strings.ToUpper(code)
		if _, err := xcurrency.ParseISO(code); err != nil {
			return fmt.Errorf("invalid currency %q: %w", code, err)
		}
		if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
			return fmt.Errorf("invalid rate for %s: %v", code, rate)
		}
		next[code] = rate
	}
	next[c.base] = 1
	if _, ok := next[c.def]; !ok {
		return fmt.Errorf("no rate for default currency %s", c.def)
	}

	c.mu.Lock()
	c.rates = next
	c.mu.Unlock()
	return nil
}

// IsSupported reports whether prices can be shown in code.
func (c *Converter) IsSupported(code string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rates[strings.ToUpper(code)]
	return ok
}

// Supported returns the known currency codes, sorted.
func (c *Converter) Supported() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := make([]string, 0, len(c.rates))
	for code := range c.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Convert converts amount of the base currency to target.
func (c *Converter) Convert(amount float64, target string) (float64, error) {
	c.mu.RLock()
	rate, ok := c.rates[strings.ToUpper(target)]
	c.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("unsupported currency %q", target)
	}
	return amount * rate, nil
}

// ConvertAndFormat converts amount to target and formats it for locale.
// Unknown targets fall back to the default currency. Without decimals the
// amount is rounded to whole units.
func (c *Converter) ConvertAndFormat(amount float64, target string, decimals bool, locale string) string {
	if target == "" || !c.IsSupported(target) {
		if target != "" {
			logger.Debugf("unsupported currency %q, using %s", target, c.def)
		}
		target = c.def
	}
	converted, err := c.Convert(amount, target)
	if err != nil {
		// Rates were replaced since the check.
		converted = amount
		target = c.base
	}
	return Format(converted, target, decimals, locale)
}

// Format formats amount in code for locale: grouping separators and the
// currency symbol of the locale.
func Format(amount float64, code string, decimals bool, locale string) string {
	tag := language.Make(locale)
	p := message.NewPrinter(tag)

	opts := []number.Option{number.MaxFractionDigits(0)}
	if decimals {
		opts = []number.Option{number.MinFractionDigits(2), number.MaxFractionDigits(2)}
	} else {
		amount = math.Round(amount)
	}
	num := p.Sprint(number.Decimal(amount, opts...))

	unit, err := xcurrency.ParseISO(code)
	if err != nil {
		return num + " " + code
	}
	symbol := p.Sprint(xcurrency.Symbol(unit))

	if symbolAfter(tag) {
		return num + "\u00a0" + symbol
	}
	return symbol + num
}

// Languages writing the currency symbol after the amount.
var suffixLanguages = map[string]bool{
	"fr": true, "de": true, "es": true, "it": true, "pt": true,
	"pl": true, "cs": true, "sv": true, "fi": true, "da": true, "nb": true, "ru": true,
}

func symbolAfter(tag language.Tag) bool {
	base, _ := tag.Base()
	return suffixLanguages[base.String()]
}
