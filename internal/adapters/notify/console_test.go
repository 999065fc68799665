package notify

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/alejandrodnm/mirrorbot/internal/registry"
)

func TestPrintStatusCompact(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	c.PrintStatus(StatusInput{
		Markets:       []registry.MarketRecord{{Key: "BTC-UpDown-15"}},
		BuildingCount: 1,
		NewTrades:     3,
		Stats: domain.LedgerStats{
			AvailableCapital: 9800,
			TotalInvested:    200,
			SettledMarkets:   4,
			Wins:             3,
			WinRate:          0.75,
			RealizedPnL:      12.5,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "1 markets")
	assert.Contains(t, out, "+3 trades")
	assert.Contains(t, out, "cap $9800.00")
	assert.Contains(t, out, "win 75% (3/4)")
}

func TestPrintStatusTable(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	c.PrintStatus(StatusInput{
		Markets: []registry.MarketRecord{{
			Key:  "CID-1234abcd",
			Name: "Bitcoin Up or Down - August 31, 3PM ET",
			Up:   registry.SideStats{Cost: 150, Price: 0.55},
			Down: registry.SideStats{Cost: 90, Price: 0.45},
		}},
		Positions: []domain.PaperMarketPosition{{
			Key:  "CID-1234abcd",
			Name: "Bitcoin Up or Down - August 31, 3PM ET",
			Up:   domain.PaperPosition{Shares: 100, TotalCost: 55},
		}},
		Stats: domain.LedgerStats{StartingCapital: 10000, AvailableCapital: 9945},
	})

	out := buf.String()
	assert.Contains(t, out, "MIRROR STATUS")
	assert.Contains(t, out, "CID-1234abcd")
	assert.Contains(t, out, "0.550")
}

func TestPrintResolution(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	c.PrintResolution(domain.ResolvedMarket{
		Key:         "CID-1234abcd",
		Name:        "Ethereum Up or Down",
		Winner:      domain.OutcomeUp,
		Payout:      120,
		RealizedPnL: 20,
	})
	c.PrintResolution(domain.ResolvedMarket{
		Key:          "SOL-UpDown-15",
		Name:         "Solana Up or Down",
		Voided:       true,
		InvestedUp:   30,
		InvestedDown: 10,
	})

	out := buf.String()
	assert.Contains(t, out, "SETTLED")
	assert.Contains(t, out, "winner UP")
	assert.Contains(t, out, "VOID")
	assert.Contains(t, out, "refunded $40.00")
}

func TestEndsLabel(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, "?", endsLabel(registry.MarketRecord{}, now))
	assert.Equal(t, "ended", endsLabel(registry.MarketRecord{EndTime: now.Add(-time.Minute)}, now))
	assert.Equal(t, "12m", endsLabel(registry.MarketRecord{EndTime: now.Add(12 * time.Minute)}, now))
	assert.Equal(t, "2.0h", endsLabel(registry.MarketRecord{WindowEnd: now.Add(2 * time.Hour)}, now))
}
