package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"alpaca_go/internal/alpaca"
	"alpaca_go/internal/domain"
	"alpaca_go/internal/event"
	"alpaca_go/internal/infra"
)

// Quick check for the market data stream: subscribe to the symbols
// given on the command line and print every normalized event. No
// trading, no journal.
func main() {
	fmt.Println("=== Alpaca Stream Test ===")
	fmt.Println()

	_ = godotenv.Load()

	symbols := os.Args[1:]
	if len(symbols) == 0 {
		symbols = []string{"AAPL", "MSFT", "SPY"}
	}

	cfg := infra.DefaultConfig()
	if cfg.Alpaca.KeyID == "" || cfg.Alpaca.SecretKey == "" {
		fmt.Println("❌ Set APCA_API_KEY_ID and APCA_API_SECRET_KEY first.")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := alpaca.NewMarketStream(cfg, nil)

	for _, sym := range symbols {
		// A slash marks a crypto pair, e.g. BTC/USD.
		inst := domain.Instrument{Symbol: sym, Class: domain.Equity, Market: alpaca.MarketUSEquity}
		if strings.Contains(sym, "/") {
			inst.Class = domain.Crypto
			inst.Market = alpaca.MarketCrypto
		}

		ch, err := stream.Subscribe(inst)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", sym, err)
			continue
		}
		go printEvents(ctx, ch)
	}

	stream.Start(ctx)
	defer stream.Stop()

	fmt.Printf("📡 Streaming %s from %s\n", strings.Join(symbols, ", "), cfg.Alpaca.StreamURL)
	fmt.Println("   Press Ctrl+C to exit.")
	fmt.Println()

	select {
	case <-ctx.Done():
		fmt.Println()
		fmt.Println("👋 Bye.")
	case <-stream.Done():
		fmt.Println()
		fmt.Println("❌ Stream gave up reconnecting.")
		os.Exit(1)
	}
}

func printEvents(ctx context.Context, ch <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			printEvent(ev)
		}
	}
}

func printEvent(ev event.Event) {
	ts := ev.GetTs().Format("15:04:05.000")
	sym := ev.GetInstrument().Symbol

	switch e := ev.(type) {
	case event.TradeEvent:
		fmt.Printf("%s  TRADE %-9s %12s x %-8s %s\n",
			ts, sym, e.Price.StringFixed(2), e.Size.String(), e.Exchange)
	case event.QuoteEvent:
		fmt.Printf("%s  QUOTE %-9s %-3s %12s x %-8s\n",
			ts, sym, strings.ToUpper(e.Side.String()), e.Price.StringFixed(2), e.Size.String())
	case event.BarEvent:
		fmt.Printf("%s  BAR   %-9s O %s H %s L %s C %s V %s\n",
			ts, sym, e.Open.StringFixed(2), e.High.StringFixed(2),
			e.Low.StringFixed(2), e.Close.StringFixed(2), e.Volume.String())
	}
}
