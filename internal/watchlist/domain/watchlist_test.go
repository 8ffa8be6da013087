package domain

import (
	"testing"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCheckAlerts(t *testing.T) {
	items := []*WatchlistItem{
		{
			Instrument:     mddomain.NewAssetInstrument(1),
			PriceAlertHigh: dec("110"),
			PriceAlertLow:  dec("90"),
		},
		{
			Instrument:     mddomain.NewAssetInstrument(2),
			PriceAlertHigh: dec("50"),
		},
		{
			Instrument:    mddomain.NewAssetInstrument(3),
			PriceAlertLow: dec("20"),
		},
		{
			// 无提醒界
			Instrument: mddomain.NewAssetInstrument(4),
		},
	}

	snapshot := mddomain.PriceSnapshot{
		mddomain.NewAssetInstrument(1): {Mark: dec("100")},
		mddomain.NewAssetInstrument(2): {Mark: dec("55")},
		mddomain.NewAssetInstrument(3): {Mark: dec("18")},
		mddomain.NewAssetInstrument(4): {Mark: dec("7")},
	}

	states := CheckAlerts(items, snapshot)
	if len(states) != 4 {
		t.Fatalf("states = %d, want 4", len(states))
	}

	if states[0].Triggered() {
		t.Fatal("price inside the band should not trigger")
	}
	if !states[1].HighTriggered || states[1].LowTriggered {
		t.Fatalf("item 2: high=%v low=%v, want high only", states[1].HighTriggered, states[1].LowTriggered)
	}
	if !states[2].LowTriggered || states[2].HighTriggered {
		t.Fatalf("item 3: high=%v low=%v, want low only", states[2].HighTriggered, states[2].LowTriggered)
	}
	if states[3].Triggered() {
		t.Fatal("item without alert bounds should not trigger")
	}
}

func TestCheckAlertsBoundaryInclusive(t *testing.T) {
	items := []*WatchlistItem{
		{
			Instrument:     mddomain.NewAssetInstrument(1),
			PriceAlertHigh: dec("100"),
			PriceAlertLow:  dec("100"),
		},
	}
	snapshot := mddomain.PriceSnapshot{
		mddomain.NewAssetInstrument(1): {Mark: dec("100")},
	}

	states := CheckAlerts(items, snapshot)
	if !states[0].HighTriggered || !states[0].LowTriggered {
		t.Fatalf("boundary should trigger both: %+v", states[0])
	}
}

func TestCheckAlertsSkipsMissingQuotes(t *testing.T) {
	items := []*WatchlistItem{
		{Instrument: mddomain.NewAssetInstrument(1), PriceAlertHigh: dec("10")},
		{Instrument: mddomain.NewAssetInstrument(2), PriceAlertHigh: dec("10")},
	}
	snapshot := mddomain.PriceSnapshot{
		mddomain.NewAssetInstrument(2): {Mark: dec("15")},
	}

	states := CheckAlerts(items, snapshot)
	if len(states) != 1 {
		t.Fatalf("states = %d, want 1", len(states))
	}
	if states[0].Item.Instrument.ID != 2 {
		t.Fatalf("wrong item evaluated: %+v", states[0].Item.Instrument)
	}
}
