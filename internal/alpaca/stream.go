package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"alpaca_go/internal/domain"
	"alpaca_go/internal/event"
	"alpaca_go/internal/infra"
)

const subscriberBuffer = 256

// subscription is one entry in the desired set: the canonical
// instrument plus the channel its events flow through.
type subscription struct {
	inst domain.Instrument
	ch   chan event.Event
}

// MarketStream ingests Alpaca's market data websocket and fans frames
// out to per-instrument channels. The desired subscription set, not the
// wire state, is authoritative: every (re)connect re-asserts it before
// any frame of that session is processed.
type MarketStream struct {
	url    string
	keyID  string
	secret string
	logger *zap.Logger
	worker *infra.WSWorker

	mu   sync.RWMutex
	subs map[string]*subscription // keyed by broker ticker
}

// NewMarketStream builds the stream from the adapter config. Start
// opens the connection; instruments can be subscribed before or after.
func NewMarketStream(cfg *infra.Config, logger *zap.Logger) *MarketStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MarketStream{
		url:    cfg.Alpaca.StreamURL,
		keyID:  cfg.Alpaca.KeyID,
		secret: cfg.Alpaca.SecretKey,
		logger: logger.With(zap.String("component", "alpaca_stream")),
		subs:   make(map[string]*subscription),
	}
	s.worker = infra.NewWSWorker(s, logger)
	s.worker.UserAgent = cfg.UserAgent()
	s.worker.MaxRetries = cfg.Stream.MaxRetries
	return s
}

// Start launches the connection loop.
func (s *MarketStream) Start(ctx context.Context) {
	s.worker.Start(ctx)
}

// Stop tears the connection down and stops reconnecting.
func (s *MarketStream) Stop() {
	s.worker.Stop()
}

// State reports the connection lifecycle state.
func (s *MarketStream) State() infra.ConnState {
	return s.worker.State()
}

// Done is closed when the stream has given up for good, either stopped
// or out of reconnect budget.
func (s *MarketStream) Done() <-chan struct{} {
	return s.worker.Done()
}

// Subscribe adds an instrument to the desired set and returns its event
// channel. Subscribing an already-subscribed instrument returns the
// existing channel without touching the wire.
func (s *MarketStream) Subscribe(inst domain.Instrument) (<-chan event.Event, error) {
	if s.worker.State() == infra.StateFailed {
		return nil, ErrStreamUnavailable
	}

	ticker, err := BrokerTicker(inst)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.subs[ticker]; ok {
		s.mu.Unlock()
		return existing.ch, nil
	}
	sub := &subscription{inst: inst, ch: make(chan event.Event, subscriberBuffer)}
	s.subs[ticker] = sub
	s.mu.Unlock()

	if s.worker.State() == infra.StateStreaming {
		if err := s.sendSubscribe("subscribe", []string{ticker}); err != nil {
			// The desired set keeps the entry; the next reconnect
			// re-asserts it.
			s.logger.Warn("subscribe send failed", zap.String("ticker", ticker), zap.Error(err))
		}
	}

	s.logger.Info("subscribed", zap.String("ticker", ticker))
	return sub.ch, nil
}

// Unsubscribe removes an instrument from the desired set and closes its
// channel. Unknown instruments are a no-op with no wire call.
func (s *MarketStream) Unsubscribe(inst domain.Instrument) {
	ticker, err := BrokerTicker(inst)
	if err != nil {
		s.logger.Warn("unsubscribe ignored", zap.Error(err))
		return
	}

	s.mu.Lock()
	sub, ok := s.subs[ticker]
	if ok {
		delete(s.subs, ticker)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	if s.worker.State() == infra.StateStreaming {
		if err := s.sendSubscribe("unsubscribe", []string{ticker}); err != nil {
			s.logger.Warn("unsubscribe send failed", zap.String("ticker", ticker), zap.Error(err))
		}
	}

	// deliver() can no longer see the entry, so closing is safe once
	// the map write above is visible.
	close(sub.ch)
	s.logger.Info("unsubscribed", zap.String("ticker", ticker))
}

// ID implements infra.StreamHandler.
func (s *MarketStream) ID() string { return "alpaca-data" }

// URL implements infra.StreamHandler.
func (s *MarketStream) URL() string { return s.url }

// Authenticate sends the credential frame. Fire-and-forget: the ack
// arrives as a control object and is only logged.
func (s *MarketStream) Authenticate(ctx context.Context, conn *websocket.Conn) error {
	frame, err := json.Marshal(authRequest{Action: "auth", Key: s.keyID, Secret: s.secret})
	if err != nil {
		return err
	}
	return s.worker.Write(websocket.TextMessage, frame)
}

// OnOpen re-asserts the full desired set so a reconnect restores every
// subscription before the session's first frame is read.
func (s *MarketStream) OnOpen(ctx context.Context, conn *websocket.Conn) error {
	s.mu.RLock()
	tickers := make([]string, 0, len(s.subs))
	for ticker := range s.subs {
		tickers = append(tickers, ticker)
	}
	s.mu.RUnlock()

	if len(tickers) == 0 {
		return nil
	}
	sort.Strings(tickers)
	return s.sendSubscribe("subscribe", tickers)
}

// OnMessage handles one inbound frame: a JSON array of tagged objects.
// Each object decodes independently; one bad object never takes down
// its neighbors or the loop.
func (s *MarketStream) OnMessage(ctx context.Context, msg []byte) {
	var objects []json.RawMessage
	if err := json.Unmarshal(msg, &objects); err != nil {
		s.logger.Warn("malformed frame", zap.Error(err))
		return
	}
	for _, raw := range objects {
		s.dispatch(raw)
	}
}

func (s *MarketStream) dispatch(raw json.RawMessage) {
	var tag struct {
		T string `json:"T"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		s.logger.Warn("object missing type tag", zap.Error(err))
		return
	}

	switch tag.T {
	case "t":
		var w streamTrade
		if err := json.Unmarshal(raw, &w); err != nil {
			s.logger.Warn("bad trade object", zap.Error(err))
			return
		}
		s.deliver(w.Symbol, func(inst domain.Instrument) []event.Event {
			return []event.Event{event.TradeEvent{
				BaseEvent: event.BaseEvent{Instrument: inst, Ts: w.Ts},
				Price:     w.Price,
				Size:      w.Size,
				Exchange:  w.Exchange,
			}}
		})

	case "q":
		var w streamQuote
		if err := json.Unmarshal(raw, &w); err != nil {
			s.logger.Warn("bad quote object", zap.Error(err))
			return
		}
		s.deliver(w.Symbol, func(inst domain.Instrument) []event.Event {
			return []event.Event{
				event.QuoteEvent{
					BaseEvent: event.BaseEvent{Instrument: inst, Ts: w.Ts},
					Side:      event.Bid,
					Price:     w.BidPrice,
					Size:      w.BidSize,
				},
				event.QuoteEvent{
					BaseEvent: event.BaseEvent{Instrument: inst, Ts: w.Ts},
					Side:      event.Ask,
					Price:     w.AskPrice,
					Size:      w.AskSize,
				},
			}
		})

	case "b":
		var w streamBar
		if err := json.Unmarshal(raw, &w); err != nil {
			s.logger.Warn("bad bar object", zap.Error(err))
			return
		}
		s.deliver(w.Symbol, func(inst domain.Instrument) []event.Event {
			return []event.Event{event.BarEvent{
				BaseEvent: event.BaseEvent{Instrument: inst, Ts: w.Ts},
				Open:      w.Open,
				High:      w.High,
				Low:       w.Low,
				Close:     w.Close,
				Volume:    w.Volume,
			}}
		})

	case "success", "subscription":
		var ctl streamControl
		if err := json.Unmarshal(raw, &ctl); err == nil {
			s.logger.Debug("stream control", zap.String("type", ctl.T), zap.String("msg", ctl.Msg))
		}

	case "error":
		var ctl streamControl
		if err := json.Unmarshal(raw, &ctl); err == nil {
			s.logger.Warn("stream error", zap.Int("code", ctl.Code), zap.String("msg", ctl.Msg))
		}

	default:
		s.logger.Debug("unhandled stream object", zap.String("type", tag.T))
	}
}

// deliver routes events for a ticker to its subscriber. The read lock
// pins the subscription open for the duration of the send, so a
// concurrent Unsubscribe cannot close the channel underneath it.
func (s *MarketStream) deliver(ticker string, build func(domain.Instrument) []event.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[ticker]
	if !ok {
		return // late frame for an unsubscribed ticker
	}
	for _, ev := range build(sub.inst) {
		select {
		case sub.ch <- ev:
		default:
			s.logger.Warn("event dropped, subscriber too slow", zap.String("ticker", ticker))
		}
	}
}

func (s *MarketStream) sendSubscribe(action string, tickers []string) error {
	frame, err := json.Marshal(subscribeRequest{
		Action: action,
		Trades: tickers,
		Quotes: tickers,
		Bars:   tickers,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", action, err)
	}
	return s.worker.Write(websocket.TextMessage, frame)
}
