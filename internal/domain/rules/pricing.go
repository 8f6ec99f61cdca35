package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SeniorAgeBoundary is the first age that falls into the senior bracket.
const SeniorAgeBoundary = 60

var ErrPricingNotConfigured = errors.New("monthly price is not configured for pricing class and age bracket")

type AgeBracket string

const (
	AgeBracketUnderSixty AgeBracket = "UNDER_60"
	AgeBracketSixtyPlus  AgeBracket = "SIXTY_PLUS"
)

func BracketForAge(age int) AgeBracket {
	if age >= SeniorAgeBoundary {
		return AgeBracketSixtyPlus
	}
	return AgeBracketUnderSixty
}

// AgeAt returns full elapsed years between dob and now, month/day sensitive.
func AgeAt(dob, now time.Time) int {
	dob = dob.UTC()
	now = now.UTC()
	years := now.Year() - dob.Year()
	anniversary := time.Date(now.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC)
	if now.Before(anniversary) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

type PriceKey struct {
	PricingClass string
	Bracket      AgeBracket
}

// PriceTable maps (pricing class, age bracket) to a monthly unit price. It is
// an explicit lookup table validated at load time, not resolved per call.
type PriceTable map[PriceKey]decimal.Decimal

// Validate checks that every listed pricing class has a positive price for
// both age brackets.
func (t PriceTable) Validate(classes []string) error {
	for _, class := range classes {
		for _, bracket := range []AgeBracket{AgeBracketUnderSixty, AgeBracketSixtyPlus} {
			price, ok := t[PriceKey{PricingClass: class, Bracket: bracket}]
			if !ok {
				return fmt.Errorf("class %q bracket %s: %w", class, bracket, ErrPricingNotConfigured)
			}
			if !price.IsPositive() {
				return fmt.Errorf("class %q bracket %s has non-positive price: %w", class, bracket, ErrPricingNotConfigured)
			}
		}
	}
	return nil
}

// MonthlyPrice resolves the monthly unit price for a payer of the given age.
func MonthlyPrice(table PriceTable, pricingClass string, age int) (decimal.Decimal, error) {
	if pricingClass == "" {
		return decimal.Zero, fmt.Errorf("product has no pricing class: %w", ErrPricingNotConfigured)
	}

	price, ok := table[PriceKey{PricingClass: pricingClass, Bracket: BracketForAge(age)}]
	if !ok {
		return decimal.Zero, fmt.Errorf("class %q age %d: %w", pricingClass, age, ErrPricingNotConfigured)
	}
	return price, nil
}
