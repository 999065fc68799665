package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ConditionIDWins(t *testing.T) {
	c := NewTextClassifier()
	id := c.Classify(WalletActivity{
		ConditionID: "0x1234abcd5678ef90",
		Title:       "Bitcoin Up or Down - August 31, 3:15PM-3:30PM ET",
		Slug:        "bitcoin-up-or-down-august-31",
		Timestamp:   time.Date(2026, 8, 31, 19, 16, 0, 0, time.UTC),
	})

	assert.Equal(t, MarketKey("CID-1234abcd"), id.Key)
	assert.Equal(t, "BTC", id.Asset)
	assert.Equal(t, 15, id.TimeframeMin)
	assert.Equal(t, "BTC-UpDown-15", id.RotatingType)
	assert.True(t, id.Rotating())
}

func TestClassify_TextualFallback(t *testing.T) {
	c := NewTextClassifier()
	id := c.Classify(WalletActivity{
		Title:     "Ethereum Up or Down - 15 min",
		Timestamp: time.Date(2026, 8, 31, 19, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, MarketKey("ETH-UpDown-15"), id.Key)

	id = c.Classify(WalletActivity{Slug: "some-longshot-market"})
	assert.Equal(t, MarketKey("SLUG-some-longshot-market"), id.Key)

	id = c.Classify(WalletActivity{Title: "???"})
	assert.Equal(t, UnknownKey, id.Key)
}

func TestClassify_Assets(t *testing.T) {
	c := NewTextClassifier()
	cases := map[string]string{
		"Bitcoin Up or Down 15 min": "BTC",
		"BTC 15-minute market":      "BTC",
		"Solana Up or Down":         "SOL",
		"XRP hourly - 4PM ET":       "XRP",
		"Will it rain tomorrow":     "",
	}
	for title, want := range cases {
		id := c.Classify(WalletActivity{Title: title})
		assert.Equal(t, want, id.Asset, title)
	}
}

func TestDetectTimeframe(t *testing.T) {
	assert.Equal(t, 15, detectTimeframe("Bitcoin Up or Down - 15 min"))
	assert.Equal(t, 15, detectTimeframe("ETH 3:45PM-4:00PM ET"))
	// rango de una hora → 60
	assert.Equal(t, 60, detectTimeframe("SOL 3:00PM-4:00PM ET"))
	// "4PM ET" suelto implica mercado horario
	assert.Equal(t, 60, detectTimeframe("Ethereum Up or Down - August 31, 4PM ET"))
	assert.Equal(t, 0, detectTimeframe("no timing signal here"))
}

func TestParseWindow_AbsoluteTimes(t *testing.T) {
	c := NewTextClassifier()
	// 31 de agosto 2026, 19:16 UTC = 15:16 ET (EDT)
	ref := time.Date(2026, 8, 31, 19, 16, 0, 0, time.UTC)

	id := c.Classify(WalletActivity{
		Title:     "Bitcoin Up or Down - 3:15PM-3:30PM ET",
		Timestamp: ref,
	})

	assert.False(t, id.WindowStart.IsZero())
	assert.Equal(t, 15*time.Minute, id.WindowEnd.Sub(id.WindowStart))
	assert.Equal(t, 15, id.WindowStart.In(c.loc).Hour())
	assert.Equal(t, 15, id.WindowStart.In(c.loc).Minute())
}

func TestParseWindow_MidnightCrossover(t *testing.T) {
	c := NewTextClassifier()
	ref := time.Date(2026, 8, 31, 3, 50, 0, 0, time.UTC) // 23:50 ET del día 30

	id := c.Classify(WalletActivity{
		Title:     "Bitcoin Up or Down - 11:45PM-12:00AM ET",
		Timestamp: ref,
	})
	assert.True(t, id.WindowEnd.After(id.WindowStart))
	assert.Equal(t, 15*time.Minute, id.WindowEnd.Sub(id.WindowStart))
}

func TestResolveOutcome(t *testing.T) {
	assert.Equal(t, OutcomeUp, ResolveOutcome(WalletActivity{OutcomeIndex: 0}))
	assert.Equal(t, OutcomeDown, ResolveOutcome(WalletActivity{OutcomeIndex: 1}))
	assert.Equal(t, OutcomeUp, ResolveOutcome(WalletActivity{OutcomeIndex: -1, OutcomeText: "Up"}))
	assert.Equal(t, OutcomeDown, ResolveOutcome(WalletActivity{OutcomeIndex: -1, OutcomeText: "Lower"}))
	// ambiguo → UP
	assert.Equal(t, OutcomeUp, ResolveOutcome(WalletActivity{OutcomeIndex: -1, OutcomeText: "???"}))
}

func TestConditionKey(t *testing.T) {
	assert.Equal(t, MarketKey("CID-1234abcd"), ConditionKey("0x1234abcd9999"))
	assert.Equal(t, MarketKey("CID-1234abcd"), ConditionKey("1234abcd9999"))
	assert.Equal(t, MarketKey("CID-12ab"), ConditionKey("12ab"))
}
