package alpaca

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"alpaca_go/internal/domain"
)

// Market names reported on instruments built from Alpaca responses.
const (
	MarketUSEquity = "us_equity"
	MarketCrypto   = "crypto"
)

// quoteCurrencies are the quote codes recognized when splitting a
// concatenated crypto pair. Longer codes come first so BTCUSDT resolves
// to BTC/USDT rather than BTCUSD + T.
var quoteCurrencies = []string{"USDT", "USDC", "USD", "BTC", "ETH", "DAI"}

// BrokerTicker renders an instrument in Alpaca's ticker convention:
// equities pass through, crypto pairs lose their separator, options use
// the OCC-style underlying + yymmdd + right + strike form
// (e.g. SPY230120C00400000).
func BrokerTicker(inst domain.Instrument) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(inst.Symbol))
	if sym == "" {
		return "", fmt.Errorf("instrument has a blank symbol")
	}

	switch inst.Class {
	case domain.Equity:
		return sym, nil

	case domain.Crypto:
		return stripPairSeparators(sym), nil

	case domain.Option:
		if inst.Expiry.IsZero() {
			return "", fmt.Errorf("option %s has no expiry", sym)
		}
		right := "C"
		if inst.Right == domain.Put {
			right = "P"
		}
		strikeMilli := inst.Strike.Mul(decimal.NewFromInt(1000)).IntPart()
		if strikeMilli <= 0 {
			return "", fmt.Errorf("option %s has invalid strike %s", sym, inst.Strike)
		}
		return fmt.Sprintf("%s%s%s%08d", sym, inst.Expiry.Format("060102"), right, strikeMilli), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedClass, inst.Class)
	}
}

// CanonicalInstrument builds the canonical instrument for a broker
// ticker. Option tickers are not decoded; no current call site receives
// one, so that path reports an error instead of guessing.
func CanonicalInstrument(ticker string, class domain.SecurityClass, market string) (domain.Instrument, error) {
	sym := strings.ToUpper(strings.TrimSpace(ticker))
	if sym == "" {
		return domain.Instrument{}, fmt.Errorf("broker ticker is blank")
	}

	switch class {
	case domain.Equity:
		return domain.Instrument{Symbol: sym, Class: domain.Equity, Market: market}, nil

	case domain.Crypto:
		base, quote, err := splitCryptoPair(stripPairSeparators(sym))
		if err != nil {
			return domain.Instrument{}, err
		}
		return domain.Instrument{Symbol: base + "/" + quote, Class: domain.Crypto, Market: market}, nil

	case domain.Option:
		return domain.Instrument{}, fmt.Errorf("option ticker %s: decoding option symbols is not supported", sym)

	default:
		return domain.Instrument{}, fmt.Errorf("%w: %s", ErrUnsupportedClass, class)
	}
}

// CanonicalOption builds an option instrument from its contract fields.
func CanonicalOption(underlying, market string, expiry time.Time, strike decimal.Decimal, right domain.OptionRight) (domain.Instrument, error) {
	sym := strings.ToUpper(strings.TrimSpace(underlying))
	if sym == "" {
		return domain.Instrument{}, fmt.Errorf("option underlying is blank")
	}
	if expiry.IsZero() {
		return domain.Instrument{}, fmt.Errorf("option %s has no expiry", sym)
	}
	return domain.Instrument{
		Symbol: sym,
		Class:  domain.Option,
		Market: market,
		Expiry: expiry,
		Strike: strike,
		Right:  right,
	}, nil
}

func stripPairSeparators(sym string) string {
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(sym)
}

// splitCryptoPair decomposes a concatenated pair like BTCUSD into base
// and quote using the known quote currency codes.
func splitCryptoPair(sym string) (string, string, error) {
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(sym, quote) && len(sym) > len(quote) {
			return sym[:len(sym)-len(quote)], quote, nil
		}
	}
	return "", "", fmt.Errorf("cannot split crypto pair %q: unknown quote currency", sym)
}
