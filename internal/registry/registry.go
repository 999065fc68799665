package registry

import (
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
)

const (
	// DefaultStaleAfter is how long an untouched market survives before pruning.
	DefaultStaleAfter = 7 * 24 * time.Hour
	// defaultMaxSeenTxs bounds the duplicate-suppression set.
	defaultMaxSeenTxs = 10000
)

// Config holds registry tuning knobs.
type Config struct {
	StaleAfter time.Duration
	MaxSeenTxs int
}

// SideStats are the cumulative aggregates for one outcome of a market.
// Only BUY activity accumulates here; SELL activity registers the market's
// existence but never touches shares or cost (the strategy never sells).
type SideStats struct {
	Shares     float64
	Cost       float64
	TradeCount int
	TokenID    string
	Price      float64
	PriceAt    time.Time
}

// MarketRecord is one live entry in the registry, keyed by canonical key.
type MarketRecord struct {
	Key          domain.MarketKey
	Name         string
	ConditionID  string
	RotatingType string
	BaseName     string
	WindowStart  time.Time
	WindowEnd    time.Time
	Up           SideStats
	Down         SideStats
	EndTime      time.Time
	FirstSeen    time.Time
	LastUpdate   time.Time
}

// TotalInvested is the total observed BUY notional across both sides.
func (r MarketRecord) TotalInvested() float64 {
	return r.Up.Cost + r.Down.Cost
}

// HasPrices reports whether both sides carry a usable (>0) price.
func (r MarketRecord) HasPrices() bool {
	return r.Up.Price > 0 && r.Down.Price > 0
}

// Registry is the bounded, self-pruning table of currently relevant markets.
// All mutation happens on the bot's poll loop goroutine, so the registry
// carries no locking.
type Registry struct {
	classifier domain.Classifier
	cfg        Config
	records    map[domain.MarketKey]*MarketRecord
	seenTx     map[string]struct{}
	seenOrder  []string
}

// New creates an empty registry using the given classifier.
func New(classifier domain.Classifier, cfg Config) *Registry {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.MaxSeenTxs <= 0 {
		cfg.MaxSeenTxs = defaultMaxSeenTxs
	}
	return &Registry{
		classifier: classifier,
		cfg:        cfg,
		records:    make(map[domain.MarketKey]*MarketRecord),
		seenTx:     make(map[string]struct{}),
	}
}

// RecordTrade normalizes a raw activity record, creates or updates the
// market record for its key, and applies rotation supersession. It returns
// the resolved identity, the keys removed by supersession, and whether the
// activity was applied (false for duplicate transaction hashes).
func (g *Registry) RecordTrade(a domain.WalletActivity) (domain.Identity, []domain.MarketKey, bool) {
	id := g.classifier.Classify(a)

	if a.TransactionHash != "" {
		if _, dup := g.seenTx[a.TransactionHash]; dup {
			return id, nil, false
		}
		g.rememberTx(a.TransactionHash)
	}

	rec, exists := g.records[id.Key]
	if !exists {
		rec = &MarketRecord{
			Key:          id.Key,
			Name:         a.Title,
			ConditionID:  a.ConditionID,
			RotatingType: id.RotatingType,
			BaseName:     id.BaseName,
			WindowStart:  id.WindowStart,
			WindowEnd:    id.WindowEnd,
			FirstSeen:    a.Timestamp,
		}
		g.records[id.Key] = rec
	}

	side := domain.ResolveOutcome(a)
	stats := rec.side(side)
	if stats.TokenID == "" {
		stats.TokenID = a.Asset
	}
	if a.Side == domain.SideBuy {
		stats.Shares += a.Size
		stats.Cost += a.UsdcSize
		stats.TradeCount++
	}
	if a.HasEndDate() {
		rec.EndTime = a.EndDate
	}
	if a.Timestamp.After(rec.LastUpdate) {
		rec.LastUpdate = a.Timestamp
	}

	superseded := g.supersede(id, a.Timestamp)
	return id, superseded, true
}

func (r *MarketRecord) side(o domain.Outcome) *SideStats {
	if o == domain.OutcomeUp {
		return &r.Up
	}
	return &r.Down
}

// supersede removes any other record that the incoming identity replaces:
// same rotating type with an older last update, or same base name with an
// earlier window start. Short-lived UpDown markets rotate every few minutes,
// so at most one live instance per rotating type survives.
func (g *Registry) supersede(id domain.Identity, activityTS time.Time) []domain.MarketKey {
	var removed []domain.MarketKey
	for key, other := range g.records {
		if key == id.Key {
			continue
		}
		drop := false
		if id.RotatingType != "" && other.RotatingType == id.RotatingType &&
			other.LastUpdate.Before(activityTS) {
			drop = true
		}
		if !drop && id.BaseName != "" && other.BaseName == id.BaseName &&
			id.HasWindow() && !other.WindowStart.IsZero() &&
			other.WindowStart.Before(id.WindowStart) {
			drop = true
		}
		if drop {
			delete(g.records, key)
			removed = append(removed, key)
			slog.Debug("registry: superseded rotated market",
				"old", key, "new", id.Key, "type", id.RotatingType)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed
}

// RefreshPrices applies a last-write-wins price update to a tracked market.
// A non-positive value means the fetch for that side came back empty; the
// last known price survives so a transient one-sided gap doesn't erase state.
func (g *Registry) RefreshPrices(key domain.MarketKey, priceUp, priceDown float64, now time.Time) {
	rec, ok := g.records[key]
	if !ok {
		return
	}
	if priceUp > 0 {
		rec.Up.Price = priceUp
		rec.Up.PriceAt = now
	}
	if priceDown > 0 {
		rec.Down.Price = priceDown
		rec.Down.PriceAt = now
	}
	if now.After(rec.LastUpdate) {
		rec.LastUpdate = now
	}
}

// SetEndTime sets the authoritative resolution time for a market when the
// activity feed didn't carry one.
func (g *Registry) SetEndTime(key domain.MarketKey, end time.Time) {
	if rec, ok := g.records[key]; ok && rec.EndTime.IsZero() {
		rec.EndTime = end
	}
}

// Get returns a copy of the record for key.
func (g *Registry) Get(key domain.MarketKey) (MarketRecord, bool) {
	rec, ok := g.records[key]
	if !ok {
		return MarketRecord{}, false
	}
	return *rec, true
}

// Keys returns all live keys in stable (sorted) order.
func (g *Registry) Keys() []domain.MarketKey {
	keys := make([]domain.MarketKey, 0, len(g.records))
	for k := range g.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of live records.
func (g *Registry) Len() int {
	return len(g.records)
}

// PruneExpired removes records whose end time has passed, whose title window
// has elapsed, or which have gone untouched beyond the staleness threshold.
// It returns the removed keys so building positions and open ledger entries
// can reclaim capital.
func (g *Registry) PruneExpired(now time.Time) []domain.MarketKey {
	var removed []domain.MarketKey
	for key, rec := range g.records {
		expired := false
		switch {
		case !rec.EndTime.IsZero() && now.After(rec.EndTime):
			expired = true
		case !rec.WindowEnd.IsZero() && now.After(rec.WindowEnd):
			expired = true
		case !rec.LastUpdate.IsZero() && now.Sub(rec.LastUpdate) > g.cfg.StaleAfter:
			expired = true
		}
		if expired {
			delete(g.records, key)
			removed = append(removed, key)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	if len(removed) > 0 {
		slog.Debug("registry: pruned expired markets", "count", len(removed))
	}
	return removed
}

// Snapshot returns a read-only copy of all live records sorted by descending
// total invested. Consumers rely on this order for "top markets" views.
func (g *Registry) Snapshot() []MarketRecord {
	out := make([]MarketRecord, 0, len(g.records))
	for _, rec := range g.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalInvested() != out[j].TotalInvested() {
			return out[i].TotalInvested() > out[j].TotalInvested()
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// rememberTx adds a hash to the bounded dedup set, evicting oldest first.
func (g *Registry) rememberTx(hash string) {
	g.seenTx[hash] = struct{}{}
	g.seenOrder = append(g.seenOrder, hash)
	for len(g.seenOrder) > g.cfg.MaxSeenTxs {
		delete(g.seenTx, g.seenOrder[0])
		g.seenOrder = g.seenOrder[1:]
	}
}
