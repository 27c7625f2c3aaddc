package alpaca

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"alpaca_go/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// toOrderRequest renders an order as a create-order payload. The side
// comes from the quantity sign and the price fields from the kind
// variant, so an inconsistent combination cannot be expressed.
func toOrderRequest(o *domain.Order) (*orderRequest, error) {
	ticker, err := BrokerTicker(o.Instrument)
	if err != nil {
		return nil, err
	}
	if o.Qty.IsZero() {
		return nil, fmt.Errorf("order %s has zero quantity", o.ID)
	}

	req := &orderRequest{
		Symbol:        ticker,
		Qty:           o.AbsQty(),
		Side:          o.Side().String(),
		TimeInForce:   o.TIF.String(),
		ExtendedHours: o.ExtendedHours,
	}

	switch k := o.Kind.(type) {
	case domain.MarketOrder:
		req.Type = "market"
	case domain.LimitOrder:
		req.Type = "limit"
		req.LimitPrice = &k.LimitPrice
	case domain.StopMarketOrder:
		req.Type = "stop"
		req.StopPrice = &k.StopPrice
	case domain.StopLimitOrder:
		req.Type = "stop_limit"
		req.LimitPrice = &k.LimitPrice
		req.StopPrice = &k.StopPrice
	case domain.TrailingStopOrder:
		req.Type = "trailing_stop"
		if k.UsePercent {
			pct := k.TrailPercent.Mul(hundred)
			req.TrailPercent = &pct
		} else {
			price := k.TrailPrice
			req.TrailPrice = &price
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedOrderType, o.Kind)
	}

	return req, nil
}

// toPatchRequest renders the replaceable fields of an order for a
// PATCH. Quantity always rides along; prices depend on the kind.
func toPatchRequest(o *domain.Order) (*orderPatchRequest, error) {
	if o.Qty.IsZero() {
		return nil, fmt.Errorf("order %s has zero quantity", o.ID)
	}
	qty := o.AbsQty()
	patch := &orderPatchRequest{Qty: &qty}

	switch k := o.Kind.(type) {
	case domain.MarketOrder:
	case domain.LimitOrder:
		patch.LimitPrice = &k.LimitPrice
	case domain.StopMarketOrder:
		patch.StopPrice = &k.StopPrice
	case domain.StopLimitOrder:
		patch.LimitPrice = &k.LimitPrice
		patch.StopPrice = &k.StopPrice
	case domain.TrailingStopOrder:
		if k.UsePercent {
			pct := k.TrailPercent.Mul(hundred)
			patch.Trail = &pct
		} else {
			price := k.TrailPrice
			patch.Trail = &price
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedOrderType, o.Kind)
	}

	return patch, nil
}

// toOrder rebuilds a generic order from a wire order. The broker id
// lands in BrokerIDs; ID carries the client order id when the wire has
// one so a round-tripped order keeps its identity.
func toOrder(w *wireOrder) (*domain.Order, error) {
	kind, err := kindFromWire(w)
	if err != nil {
		return nil, err
	}

	class := classFromAsset(w.AssetClass)
	inst, err := CanonicalInstrument(w.Symbol, class, marketFor(class))
	if err != nil {
		return nil, err
	}

	qty := w.Qty
	if strings.EqualFold(w.Side, "sell") {
		qty = qty.Neg()
	}

	id := w.ClientOrderID
	if id == "" {
		id = w.ID
	}

	o := &domain.Order{
		ID:            id,
		Instrument:    inst,
		Qty:           qty,
		Kind:          kind,
		TIF:           tifFromWire(w.TimeInForce),
		Status:        toStatus(w.Status),
		ExtendedHours: w.ExtendedHours,
		CreatedAt:     w.CreatedAt,
	}
	o.AddBrokerID(w.ID)
	return o, nil
}

func kindFromWire(w *wireOrder) (domain.OrderKind, error) {
	switch strings.ToLower(w.Type) {
	case "market":
		return domain.MarketOrder{}, nil

	case "limit":
		if w.LimitPrice == nil {
			return nil, fmt.Errorf("limit order %s has no limit_price", w.ID)
		}
		return domain.LimitOrder{LimitPrice: *w.LimitPrice}, nil

	case "stop":
		if w.StopPrice == nil {
			return nil, fmt.Errorf("stop order %s has no stop_price", w.ID)
		}
		return domain.StopMarketOrder{StopPrice: *w.StopPrice}, nil

	case "stop_limit":
		if w.LimitPrice == nil || w.StopPrice == nil {
			return nil, fmt.Errorf("stop_limit order %s is missing a price", w.ID)
		}
		return domain.StopLimitOrder{LimitPrice: *w.LimitPrice, StopPrice: *w.StopPrice}, nil

	case "trailing_stop":
		if w.TrailPercent != nil {
			return domain.TrailingStopOrder{TrailPercent: w.TrailPercent.Div(hundred), UsePercent: true}, nil
		}
		if w.TrailPrice != nil {
			return domain.TrailingStopOrder{TrailPrice: *w.TrailPrice}, nil
		}
		return nil, fmt.Errorf("trailing_stop order %s has neither trail_price nor trail_percent", w.ID)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOrderType, w.Type)
	}
}

// toStatus maps an Alpaca order status onto the generic lifecycle.
// Matching is case-insensitive; anything unrecognized maps to None.
func toStatus(s string) domain.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new", "accepted", "pending_new":
		return domain.StatusSubmitted
	case "partially_filled":
		return domain.StatusPartiallyFilled
	case "filled":
		return domain.StatusFilled
	case "canceled", "pending_cancel", "expired":
		return domain.StatusCanceled
	case "rejected", "suspended":
		return domain.StatusInvalid
	default:
		return domain.StatusNone
	}
}

func classFromAsset(assetClass string) domain.SecurityClass {
	if strings.EqualFold(assetClass, "crypto") {
		return domain.Crypto
	}
	return domain.Equity
}

func marketFor(class domain.SecurityClass) string {
	if class == domain.Crypto {
		return MarketCrypto
	}
	return MarketUSEquity
}

func tifFromWire(s string) domain.TimeInForce {
	switch strings.ToLower(s) {
	case "gtc":
		return domain.GoodTilCanceled
	case "ioc":
		return domain.ImmediateOrCancel
	case "fok":
		return domain.FillOrKill
	default:
		return domain.Day
	}
}
