package alpaca

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alpaca_go/internal/domain"
	"alpaca_go/internal/event"
)

const (
	callTimeout      = 30 * time.Second
	orderEventBuffer = 256
	openOrdersLimit  = 500
)

// restAPI is the slice of Client the trader depends on.
type restAPI interface {
	GetAccount(ctx context.Context) (*accountResponse, error)
	ListOrders(ctx context.Context, status string, limit int) ([]wireOrder, error)
	CreateOrder(ctx context.Context, req *orderRequest) (*wireOrder, error)
	PatchOrder(ctx context.Context, id string, patch *orderPatchRequest) (*wireOrder, error)
	DeleteOrder(ctx context.Context, id string) error
	ListPositions(ctx context.Context) ([]positionResponse, error)
	GetBars(ctx context.Context, symbols []string, timeframe string, start, end time.Time) (map[string][]wireBar, error)
}

// Trader drives the order lifecycle against Alpaca. Order operations
// return a bool and report detail through OrderEvents plus the log;
// queries degrade to empty results on failure. All broker calls are
// bounded by a 30 second timeout and aborted by Disconnect.
type Trader struct {
	api    restAPI
	logger *zap.Logger

	connected atomic.Bool
	mu        sync.Mutex
	lifetime  context.Context
	cancel    context.CancelFunc

	events chan domain.OrderEvent
}

// NewTrader builds a trader on top of a REST client.
func NewTrader(client *Client, logger *zap.Logger) *Trader {
	return newTrader(client, logger)
}

func newTrader(api restAPI, logger *zap.Logger) *Trader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trader{
		api:    api,
		logger: logger.With(zap.String("component", "alpaca_trader")),
		events: make(chan domain.OrderEvent, orderEventBuffer),
	}
}

// Connect probes the account endpoint once and marks the trader
// connected on success. It does not retry.
func (t *Trader) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel == nil {
		t.lifetime, t.cancel = context.WithCancel(context.Background())
	}
	t.mu.Unlock()

	cctx, done := t.callCtx(ctx)
	defer done()

	acct, err := t.api.GetAccount(cctx)
	if err != nil {
		return fmt.Errorf("account probe: %w", err)
	}

	t.connected.Store(true)
	t.logger.Info("connected to brokerage",
		zap.String("account", acct.AccountNumber),
		zap.String("status", acct.Status))
	return nil
}

// Disconnect aborts in-flight calls and marks the trader disconnected.
// Idempotent.
func (t *Trader) Disconnect() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.lifetime = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t.connected.CompareAndSwap(true, false) {
		t.logger.Info("disconnected from brokerage")
	}
}

// IsConnected reports whether the last Connect succeeded and no
// Disconnect happened since.
func (t *Trader) IsConnected() bool {
	return t.connected.Load()
}

// OrderEvents exposes the order notification channel. Events are
// dropped, with a warning, if the consumer falls far behind.
func (t *Trader) OrderEvents() <-chan domain.OrderEvent {
	return t.events
}

// callCtx derives the per-call context: caller's ctx, capped at the
// call timeout, and additionally canceled when Disconnect fires.
func (t *Trader) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithTimeout(ctx, callTimeout)

	t.mu.Lock()
	lifetime := t.lifetime
	t.mu.Unlock()
	if lifetime == nil {
		return cctx, cancel
	}

	stop := context.AfterFunc(lifetime, cancel)
	return cctx, func() {
		stop()
		cancel()
	}
}

// PlaceOrder submits the order. On success the broker id is appended
// and a Submitted event emitted; any failure emits an Invalid event
// carrying the reason and returns false. Orders are never retried here.
func (t *Trader) PlaceOrder(ctx context.Context, o *domain.Order) bool {
	req, err := toOrderRequest(o)
	if err != nil {
		t.reject(o, err)
		return false
	}
	// The engine id doubles as the client order id so orders read back
	// from the broker keep their identity.
	req.ClientOrderID = o.ID
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}

	cctx, done := t.callCtx(ctx)
	defer done()

	w, err := t.api.CreateOrder(cctx, req)
	if err != nil {
		t.reject(o, err)
		return false
	}

	o.AddBrokerID(w.ID)
	o.ApplyStatus(domain.StatusSubmitted)
	t.emit(o, domain.StatusSubmitted, "")

	t.logger.Info("order submitted",
		zap.String("order_id", o.ID),
		zap.String("broker_id", w.ID),
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.String("qty", req.Qty.String()))
	return true
}

// UpdateOrder replaces quantity and kind-specific prices of a working
// order. It needs a broker id; side and kind are immutable after
// submission. A failed update emits an event with the unchanged status.
func (t *Trader) UpdateOrder(ctx context.Context, o *domain.Order) bool {
	brokerID := o.BrokerID()
	if brokerID == "" {
		t.logger.Warn("update rejected", zap.String("order_id", o.ID), zap.Error(ErrNoBrokerID))
		t.emit(o, o.Status, ErrNoBrokerID.Error())
		return false
	}

	patch, err := toPatchRequest(o)
	if err != nil {
		t.logger.Warn("update rejected", zap.String("order_id", o.ID), zap.Error(err))
		t.emit(o, o.Status, err.Error())
		return false
	}

	cctx, done := t.callCtx(ctx)
	defer done()

	w, err := t.api.PatchOrder(cctx, brokerID, patch)
	if err != nil {
		t.logger.Warn("update failed", zap.String("order_id", o.ID), zap.Error(err))
		t.emit(o, o.Status, err.Error())
		return false
	}

	// The replacement order arrives under a fresh broker id.
	o.AddBrokerID(w.ID)
	t.logger.Info("order updated",
		zap.String("order_id", o.ID),
		zap.String("broker_id", w.ID))
	return true
}

// CancelOrder requests cancellation. Failures are logged and swallowed;
// an order that never reached the broker cancels to false with no
// network call.
func (t *Trader) CancelOrder(ctx context.Context, o *domain.Order) bool {
	brokerID := o.BrokerID()
	if brokerID == "" {
		t.logger.Warn("cancel rejected", zap.String("order_id", o.ID), zap.Error(ErrNoBrokerID))
		return false
	}

	cctx, done := t.callCtx(ctx)
	defer done()

	if err := t.api.DeleteOrder(cctx, brokerID); err != nil {
		t.logger.Warn("cancel failed",
			zap.String("order_id", o.ID),
			zap.String("broker_id", brokerID),
			zap.Error(err))
		return false
	}

	o.ApplyStatus(domain.StatusCanceled)
	t.emit(o, domain.StatusCanceled, "")
	t.logger.Info("order canceled",
		zap.String("order_id", o.ID),
		zap.String("broker_id", brokerID))
	return true
}

// GetOpenOrders queries working orders. Failures yield an empty slice:
// treat empty as unknown, not as confirmed flat.
func (t *Trader) GetOpenOrders(ctx context.Context) []*domain.Order {
	cctx, done := t.callCtx(ctx)
	defer done()

	wires, err := t.api.ListOrders(cctx, "open", openOrdersLimit)
	if err != nil {
		t.logger.Warn("open orders query failed", zap.Error(err))
		return nil
	}

	orders := make([]*domain.Order, 0, len(wires))
	for i := range wires {
		o, err := toOrder(&wires[i])
		if err != nil {
			t.logger.Warn("skipping undecodable order",
				zap.String("broker_id", wires[i].ID),
				zap.Error(err))
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

// GetAccountHoldings queries open positions. Failures yield an empty
// slice.
func (t *Trader) GetAccountHoldings(ctx context.Context) []domain.Holding {
	cctx, done := t.callCtx(ctx)
	defer done()

	positions, err := t.api.ListPositions(cctx)
	if err != nil {
		t.logger.Warn("holdings query failed", zap.Error(err))
		return nil
	}

	holdings := make([]domain.Holding, 0, len(positions))
	for _, p := range positions {
		class := classFromAsset(p.AssetClass)
		inst, err := CanonicalInstrument(p.Symbol, class, marketFor(class))
		if err != nil {
			t.logger.Warn("skipping position with unmappable symbol",
				zap.String("symbol", p.Symbol),
				zap.Error(err))
			continue
		}
		holdings = append(holdings, domain.Holding{
			Instrument:   inst,
			Qty:          p.Qty,
			AvgPrice:     p.AvgEntryPrice,
			MarketPrice:  p.CurrentPrice,
			MarketValue:  p.MarketValue,
			UnrealizedPL: p.UnrealizedPL,
			Currency:     "USD",
		})
	}
	return holdings
}

// GetCashBalance queries the account cash. Failures yield an empty
// slice.
func (t *Trader) GetCashBalance(ctx context.Context) []domain.CashAmount {
	cctx, done := t.callCtx(ctx)
	defer done()

	acct, err := t.api.GetAccount(cctx)
	if err != nil {
		t.logger.Warn("cash balance query failed", zap.Error(err))
		return nil
	}

	currency := acct.Currency
	if currency == "" {
		currency = "USD"
	}
	return []domain.CashAmount{{Amount: acct.Cash, Currency: currency}}
}

// GetBars fetches historical bars for an equity instrument, following
// server-side pagination to the end of the range.
func (t *Trader) GetBars(ctx context.Context, inst domain.Instrument, timeframe string, start, end time.Time) ([]event.BarEvent, error) {
	if inst.Class != domain.Equity {
		return nil, fmt.Errorf("%w: bar history supports equities only, got %s", ErrUnsupportedClass, inst.Class)
	}
	ticker, err := BrokerTicker(inst)
	if err != nil {
		return nil, err
	}

	cctx, done := t.callCtx(ctx)
	defer done()

	pages, err := t.api.GetBars(cctx, []string{ticker}, timeframe, start, end)
	if err != nil {
		return nil, err
	}

	bars := make([]event.BarEvent, 0, len(pages[ticker]))
	for _, b := range pages[ticker] {
		bars = append(bars, event.BarEvent{
			BaseEvent: event.BaseEvent{Instrument: inst, Ts: b.Ts},
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return bars, nil
}

func (t *Trader) reject(o *domain.Order, err error) {
	t.logger.Warn("order rejected", zap.String("order_id", o.ID), zap.Error(err))
	o.ApplyStatus(domain.StatusInvalid)
	t.emit(o, domain.StatusInvalid, err.Error())
}

// emit snapshots the order into the notification channel without ever
// blocking the caller.
func (t *Trader) emit(o *domain.Order, status domain.OrderStatus, msg string) {
	ev := domain.OrderEvent{
		Order:   *o,
		Ts:      time.Now().UTC(),
		Status:  status,
		Message: msg,
	}
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("order event dropped, consumer too slow",
			zap.String("order_id", o.ID),
			zap.String("status", status.String()))
	}
}
