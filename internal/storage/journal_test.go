package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alpaca_go/internal/domain"
	"alpaca_go/internal/event"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndQuery(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	aapl := domain.Instrument{Symbol: "AAPL", Class: domain.Equity, Market: "us_equity"}
	msft := domain.Instrument{Symbol: "MSFT", Class: domain.Equity, Market: "us_equity"}
	base := time.Date(2024, 5, 2, 13, 30, 0, 0, time.UTC)

	trade := event.TradeEvent{
		BaseEvent: event.BaseEvent{Instrument: aapl, Ts: base},
		Price:     decimal.NewFromFloat(150.25),
		Size:      decimal.NewFromInt(100),
		Exchange:  "V",
	}
	quote := event.QuoteEvent{
		BaseEvent: event.BaseEvent{Instrument: aapl, Ts: base.Add(time.Second)},
		Side:      event.Ask,
		Price:     decimal.NewFromFloat(150.30),
		Size:      decimal.NewFromInt(200),
	}
	bar := event.BarEvent{
		BaseEvent: event.BaseEvent{Instrument: aapl, Ts: base.Add(time.Minute)},
		Open:      decimal.NewFromFloat(150.1),
		High:      decimal.NewFromFloat(150.9),
		Low:       decimal.NewFromFloat(149.8),
		Close:     decimal.NewFromFloat(150.4),
		Volume:    decimal.NewFromInt(120000),
	}
	other := event.TradeEvent{
		BaseEvent: event.BaseEvent{Instrument: msft, Ts: base},
		Price:     decimal.NewFromFloat(400.10),
		Size:      decimal.NewFromInt(50),
	}

	for _, ev := range []event.Event{trade, quote, bar, other} {
		if err := j.Record(ctx, ev); err != nil {
			t.Fatalf("Failed to record event: %v", err)
		}
	}

	n, err := j.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("Expected 4 events, got %d", n)
	}

	loaded, err := j.Events(ctx, "AAPL", base, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Failed to load events: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("Expected 3 AAPL events, got %d", len(loaded))
	}

	got, ok := loaded[0].(event.TradeEvent)
	if !ok {
		t.Fatalf("Expected a trade first, got %T", loaded[0])
	}
	if !got.Price.Equal(trade.Price) {
		t.Errorf("Trade price mismatch: got %s, want %s", got.Price, trade.Price)
	}
	if got.Exchange != "V" {
		t.Errorf("Trade exchange mismatch: got %q", got.Exchange)
	}
	if !got.Ts.Equal(base) {
		t.Errorf("Trade timestamp mismatch: got %v", got.Ts)
	}

	if q, ok := loaded[1].(event.QuoteEvent); !ok {
		t.Errorf("Expected a quote second, got %T", loaded[1])
	} else if q.Side != event.Ask {
		t.Errorf("Quote side mismatch: got %v", q.Side)
	}

	if b, ok := loaded[2].(event.BarEvent); !ok {
		t.Errorf("Expected a bar third, got %T", loaded[2])
	} else if !b.Volume.Equal(bar.Volume) {
		t.Errorf("Bar volume mismatch: got %s", b.Volume)
	}
}

func TestJournal_WindowBounds(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	aapl := domain.Instrument{Symbol: "AAPL", Class: domain.Equity, Market: "us_equity"}
	base := time.Date(2024, 5, 2, 13, 30, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ev := event.TradeEvent{
			BaseEvent: event.BaseEvent{Instrument: aapl, Ts: base.Add(time.Duration(i) * time.Minute)},
			Price:     decimal.NewFromInt(int64(150 + i)),
			Size:      decimal.NewFromInt(1),
		}
		if err := j.Record(ctx, ev); err != nil {
			t.Fatalf("Failed to record event: %v", err)
		}
	}

	// [base, base+2m) excludes the third event.
	loaded, err := j.Events(ctx, "AAPL", base, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Failed to load events: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 events in window, got %d", len(loaded))
	}

	// Empty window.
	loaded, err = j.Events(ctx, "AAPL", base.Add(time.Hour), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Failed to load events: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("Expected no events, got %d", len(loaded))
	}
}

func TestJournal_Metadata(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	val, err := j.GetMetadata(ctx, "missing")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if val != "" {
		t.Errorf("Expected empty value for missing key, got %q", val)
	}

	if err := j.UpsertMetadata(ctx, "session_started", "2024-05-02T13:30:00Z", 1000); err != nil {
		t.Fatalf("UpsertMetadata failed: %v", err)
	}
	if err := j.UpsertMetadata(ctx, "session_started", "2024-05-02T14:00:00Z", 2000); err != nil {
		t.Fatalf("UpsertMetadata upsert failed: %v", err)
	}

	val, err = j.GetMetadata(ctx, "session_started")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if val != "2024-05-02T14:00:00Z" {
		t.Errorf("Expected upserted value, got %q", val)
	}
}
