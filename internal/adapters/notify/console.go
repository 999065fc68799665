package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/alejandrodnm/mirrorbot/internal/registry"
)

const maxTableRows = 15

// StatusInput agrupa todo lo que PrintStatus necesita en un tick.
type StatusInput struct {
	Markets       []registry.MarketRecord // snapshot ordenado por inversión
	Positions     []domain.PaperMarketPosition
	Stats         domain.LedgerStats
	BuildingCount int
	NewTrades     int
}

// Console imprime el estado de la simulación a stdout.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// PrintStatus imprime el estado del ciclo en el modo configurado.
func (c *Console) PrintStatus(in StatusInput) {
	if c.table {
		c.printFull(in)
		return
	}
	c.printCompact(in)
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(in StatusInput) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d markets | %d building | %d open pos | +%d trades | cap $%.2f | inv $%.2f",
		now, len(in.Markets), in.BuildingCount, len(in.Positions), in.NewTrades,
		in.Stats.AvailableCapital, in.Stats.TotalInvested)

	if in.Stats.SettledMarkets > 0 {
		fmt.Fprintf(&sb, " | pnl $%+.2f | win %.0f%% (%d/%d)",
			in.Stats.RealizedPnL, in.Stats.WinRate*100,
			in.Stats.Wins, in.Stats.SettledMarkets)
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime el dashboard completo con tablas.
func (c *Console) printFull(in StatusInput) {
	now := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(c.out, "\n=== MIRROR STATUS %s ===\n\n", now)

	if len(in.Markets) > 0 {
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Market", "Key", "WalletUp$", "WalletDn$", "PxUp", "PxDn", "Ends")

		for i, m := range in.Markets {
			if i >= maxTableRows {
				break
			}
			tbl.Append(
				domain.TruncateTitle(m.Name, m.Key, 36),
				string(m.Key),
				fmt.Sprintf("%.0f", m.Up.Cost),
				fmt.Sprintf("%.0f", m.Down.Cost),
				priceLabel(m.Up.Price),
				priceLabel(m.Down.Price),
				endsLabel(m, time.Now()),
			)
		}
		tbl.Render()
	}

	if len(in.Positions) > 0 {
		fmt.Fprintf(c.out, "\nOpen positions:\n")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Market", "ShUp", "AvgUp", "ShDn", "AvgDn", "Cost$", "Trades")

		for _, p := range in.Positions {
			tbl.Append(
				domain.TruncateTitle(p.Name, p.Key, 36),
				fmt.Sprintf("%.1f", p.Up.Shares),
				priceLabel(p.Up.AveragePrice()),
				fmt.Sprintf("%.1f", p.Down.Shares),
				priceLabel(p.Down.AveragePrice()),
				fmt.Sprintf("%.2f", p.TotalInvested()),
				fmt.Sprintf("%d", len(p.Trades)),
			)
		}
		tbl.Render()
	}

	fmt.Fprintf(c.out, "\nCapital $%.2f / $%.2f | invested $%.2f | realized $%+.2f",
		in.Stats.AvailableCapital, in.Stats.StartingCapital,
		in.Stats.TotalInvested, in.Stats.RealizedPnL)
	if in.Stats.SettledMarkets > 0 {
		fmt.Fprintf(c.out, " | settled %d (%d void) | win %.0f%%",
			in.Stats.SettledMarkets, in.Stats.VoidedMarkets, in.Stats.WinRate*100)
	}
	fmt.Fprintf(c.out, " | trades %d (%d up / %d down)\n",
		in.Stats.TotalTrades, in.Stats.TradesUp, in.Stats.TradesDown)
}

// PrintResolution imprime una línea por mercado resuelto.
func (c *Console) PrintResolution(r domain.ResolvedMarket) {
	now := time.Now().Format("15:04:05")
	if r.Voided {
		fmt.Fprintf(c.out, "[%s] VOID %s | refunded $%.2f\n",
			now, domain.TruncateTitle(r.Name, r.Key, 40), r.TotalInvested())
		return
	}
	fmt.Fprintf(c.out, "[%s] SETTLED %s | winner %s | payout $%.2f | pnl $%+.2f (%.1f%%)\n",
		now, domain.TruncateTitle(r.Name, r.Key, 40), r.Winner, r.Payout,
		r.RealizedPnL, r.RealizedPnLPct)
}

func priceLabel(p float64) string {
	if p <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.3f", p)
}

// endsLabel formatea el tiempo restante del mercado, "?" si no se conoce.
func endsLabel(m registry.MarketRecord, now time.Time) string {
	end := m.EndTime
	if end.IsZero() {
		end = m.WindowEnd
	}
	if end.IsZero() {
		return "?"
	}
	left := end.Sub(now)
	if left < 0 {
		return "ended"
	}
	if left < time.Hour {
		return fmt.Sprintf("%dm", int(left.Minutes()))
	}
	return fmt.Sprintf("%.1fh", left.Hours())
}
