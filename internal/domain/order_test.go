package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_CanTransition(t *testing.T) {
	t.Run("forward transitions allowed", func(t *testing.T) {
		assert.True(t, StatusNone.CanTransition(StatusPendingSubmit))
		assert.True(t, StatusPendingSubmit.CanTransition(StatusSubmitted))
		assert.True(t, StatusSubmitted.CanTransition(StatusPartiallyFilled))
		assert.True(t, StatusPartiallyFilled.CanTransition(StatusFilled))
		assert.True(t, StatusSubmitted.CanTransition(StatusCanceled))
		assert.True(t, StatusSubmitted.CanTransition(StatusFilled))
	})

	t.Run("backward transitions rejected", func(t *testing.T) {
		assert.False(t, StatusSubmitted.CanTransition(StatusPendingSubmit))
		assert.False(t, StatusPartiallyFilled.CanTransition(StatusSubmitted))
		assert.False(t, StatusFilled.CanTransition(StatusSubmitted))
	})

	t.Run("partial and filled may trade places", func(t *testing.T) {
		assert.True(t, StatusPartiallyFilled.CanTransition(StatusFilled))
		assert.True(t, StatusFilled.CanTransition(StatusPartiallyFilled))
		assert.True(t, StatusPartiallyFilled.CanTransition(StatusPartiallyFilled))
	})

	t.Run("canceled and invalid are terminal", func(t *testing.T) {
		for _, terminal := range []OrderStatus{StatusCanceled, StatusInvalid} {
			assert.False(t, terminal.CanTransition(StatusSubmitted), terminal.String())
			assert.False(t, terminal.CanTransition(StatusFilled), terminal.String())
			assert.False(t, terminal.CanTransition(terminal), terminal.String())
		}
	})
}

func TestOrder_ApplyStatus(t *testing.T) {
	o := &Order{Status: StatusPendingSubmit}

	require.True(t, o.ApplyStatus(StatusSubmitted))
	assert.Equal(t, StatusSubmitted, o.Status)

	// A stale report must not rewind the order.
	assert.False(t, o.ApplyStatus(StatusPendingSubmit))
	assert.Equal(t, StatusSubmitted, o.Status)

	require.True(t, o.ApplyStatus(StatusCanceled))
	assert.False(t, o.ApplyStatus(StatusFilled))
	assert.Equal(t, StatusCanceled, o.Status)
}

func TestOrder_BrokerIDs(t *testing.T) {
	t.Run("append keeps order and skips duplicates", func(t *testing.T) {
		o := &Order{}
		o.AddBrokerID("a")
		o.AddBrokerID("b")
		o.AddBrokerID("a")
		o.AddBrokerID("")
		assert.Equal(t, []string{"a", "b"}, o.BrokerIDs)
	})

	t.Run("broker id is the most recent", func(t *testing.T) {
		o := &Order{}
		assert.Equal(t, "", o.BrokerID())
		o.AddBrokerID("first")
		o.AddBrokerID("second")
		assert.Equal(t, "second", o.BrokerID())
	})
}

func TestOrder_Side(t *testing.T) {
	buy := &Order{Qty: decimal.NewFromInt(10)}
	sell := &Order{Qty: decimal.NewFromInt(-10)}

	assert.Equal(t, Buy, buy.Side())
	assert.Equal(t, Sell, sell.Side())
	assert.Equal(t, "buy", buy.Side().String())
	assert.Equal(t, "sell", sell.Side().String())
	assert.True(t, sell.AbsQty().Equal(decimal.NewFromInt(10)))
}

func TestOrderKind_Variants(t *testing.T) {
	// Each variant carries only its own price fields; the type switch
	// below is the shape translators rely on.
	kinds := []OrderKind{
		MarketOrder{},
		LimitOrder{LimitPrice: decimal.NewFromFloat(150.25)},
		StopMarketOrder{StopPrice: decimal.NewFromInt(90)},
		StopLimitOrder{LimitPrice: decimal.NewFromInt(91), StopPrice: decimal.NewFromInt(90)},
		TrailingStopOrder{TrailPercent: decimal.NewFromFloat(0.05), UsePercent: true},
	}

	var seen []string
	for _, k := range kinds {
		switch k.(type) {
		case MarketOrder:
			seen = append(seen, "market")
		case LimitOrder:
			seen = append(seen, "limit")
		case StopMarketOrder:
			seen = append(seen, "stop")
		case StopLimitOrder:
			seen = append(seen, "stop_limit")
		case TrailingStopOrder:
			seen = append(seen, "trailing_stop")
		}
	}
	assert.Equal(t, []string{"market", "limit", "stop", "stop_limit", "trailing_stop"}, seen)
}

func TestOrderStatus_IsOpen(t *testing.T) {
	assert.True(t, StatusSubmitted.IsOpen())
	assert.True(t, StatusPartiallyFilled.IsOpen())
	assert.False(t, StatusPendingSubmit.IsOpen())
	assert.False(t, StatusFilled.IsOpen())
	assert.False(t, StatusCanceled.IsOpen())
}
