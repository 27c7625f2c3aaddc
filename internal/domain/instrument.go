package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SecurityClass identifies the asset class of an instrument.
type SecurityClass int

const (
	Equity SecurityClass = iota
	Crypto
	Option
)

func (c SecurityClass) String() string {
	switch c {
	case Equity:
		return "equity"
	case Crypto:
		return "crypto"
	case Option:
		return "option"
	default:
		return fmt.Sprintf("security_class(%d)", int(c))
	}
}

// OptionRight is the side of an option contract.
type OptionRight int

const (
	Call OptionRight = iota
	Put
)

func (r OptionRight) String() string {
	if r == Put {
		return "put"
	}
	return "call"
}

// Instrument identifies a tradable asset independent of any venue's
// ticker conventions. Crypto symbols keep the "BASE/QUOTE" form
// (e.g. "BTC/USD"); for options Symbol holds the underlying.
type Instrument struct {
	Symbol string        `json:"symbol"`
	Class  SecurityClass `json:"class"`
	Market string        `json:"market,omitempty"` // venue hint, e.g. "us_equity"

	// Contract fields, set only when Class == Option.
	Expiry time.Time       `json:"expiry,omitempty"`
	Strike decimal.Decimal `json:"strike,omitempty"`
	Right  OptionRight     `json:"right,omitempty"`
}

func (i Instrument) String() string {
	if i.Class == Option {
		return fmt.Sprintf("%s %s %s %s", i.Symbol, i.Expiry.Format("2006-01-02"), i.Right, i.Strike)
	}
	return i.Symbol
}
