package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"alpaca_go/internal/alpaca"
	"alpaca_go/internal/app"
	"alpaca_go/internal/domain"
	"alpaca_go/internal/event"
	"alpaca_go/internal/infra"
	"alpaca_go/internal/storage"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. System bootstrapping: .env, config, logger, optional journal
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(""); err != nil {
		fmt.Fprintln(os.Stderr, "bootstrapping failed:", err)
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config
	logger := bootstrap.Logger
	infra.PrintBanner(cfg)

	// 2. Pprof server (localhost only for security)
	go func() {
		logger.Info("pprof server listening on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			logger.Warn("pprof server failed", zap.Error(err))
		}
	}()

	// 3. Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Trading side: liveness probe, then report the account once.
	// A failed probe is not fatal; market data runs independently.
	client := alpaca.NewClient(cfg, logger)
	trader := alpaca.NewTrader(client, logger)
	if err := trader.Connect(ctx); err != nil {
		logger.Error("brokerage connect failed, trading disabled", zap.Error(err))
	} else {
		defer trader.Disconnect()
		for _, cash := range trader.GetCashBalance(ctx) {
			logger.Info("cash balance",
				zap.String("amount", cash.Amount.String()),
				zap.String("currency", cash.Currency))
		}
		for _, h := range trader.GetAccountHoldings(ctx) {
			logger.Info("holding",
				zap.String("symbol", h.Instrument.Symbol),
				zap.String("qty", h.Qty.String()),
				zap.String("market_value", h.MarketValue.String()))
		}
	}

	// The engine-side consumer of order notifications.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-trader.OrderEvents():
				logger.Info("order event",
					zap.String("order_id", ev.Order.ID),
					zap.String("status", ev.Status.String()),
					zap.String("message", ev.Message))
			}
		}
	}()

	// 5. Market data: declare the desired set, then connect. The stream
	// re-asserts these subscriptions on every (re)connect.
	stream := alpaca.NewMarketStream(cfg, logger)

	subscribe := func(sym string, class domain.SecurityClass, market string) {
		ch, err := stream.Subscribe(domain.Instrument{Symbol: sym, Class: class, Market: market})
		if err != nil {
			logger.Error("subscribe failed", zap.String("symbol", sym), zap.Error(err))
			return
		}
		go consume(ctx, logger, bootstrap.Journal, ch)
	}
	for _, sym := range cfg.Stream.Symbols {
		subscribe(sym, domain.Equity, alpaca.MarketUSEquity)
	}
	for _, sym := range cfg.Stream.CryptoSymbols {
		subscribe(sym, domain.Crypto, alpaca.MarketCrypto)
	}

	stream.Start(ctx)
	defer stream.Stop()

	logger.Info("adapter running",
		zap.Int("equities", len(cfg.Stream.Symbols)),
		zap.Int("crypto_pairs", len(cfg.Stream.CryptoSymbols)),
		zap.Bool("journal", bootstrap.Journal != nil))

	// 6. Run until a signal arrives or the stream gives up for good.
	select {
	case <-ctx.Done():
	case <-stream.Done():
		logger.Error("market data stream unavailable, exiting")
	}
	logger.Info("shutting down gracefully")
}

// consume drains one subscription, logging every event and teeing it
// into the journal when one is configured.
func consume(ctx context.Context, logger *zap.Logger, journal *storage.Journal, ch <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			logger.Debug("market event",
				zap.String("type", ev.GetType().String()),
				zap.String("symbol", ev.GetInstrument().Symbol),
				zap.Time("ts", ev.GetTs()))
			if journal != nil {
				if err := journal.Record(ctx, ev); err != nil {
					logger.Warn("journal write failed", zap.Error(err))
				}
			}
		}
	}
}
