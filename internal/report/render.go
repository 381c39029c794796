package report

import (
	"fmt"
	"io"

	"paper-trade-bot-go/internal/ledger"
	"paper-trade-bot-go/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// RenderAccount writes the cash balance and open positions. Positions are
// valued with lookup, falling back to their entry price when no quote exists.
func RenderAccount(w io.Writer, acc models.Account, positions []models.Position, lookup ledger.PriceLookup) {
	t := newTable(w, "Account")
	t.AppendHeader(table.Row{"Symbol", "Amount", "Entry", "Price", "Value", "Unrealized P&L"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	total := acc.CashBalance
	for _, p := range positions {
		price := p.AvgEntryPrice
		if lookup != nil {
			if q, ok := lookup(p.Symbol); ok {
				price = q
			}
		}
		value := p.Amount.Mul(price)
		pnl := price.Sub(p.AvgEntryPrice).Mul(p.Amount)
		total = total.Add(value)
		t.AppendRow(table.Row{p.Symbol, p.Amount.String(), money(p.AvgEntryPrice), money(price), money(value), money(pnl)})
	}

	t.AppendFooter(table.Row{"Cash", "", "", "", money(acc.CashBalance), ""})
	t.AppendFooter(table.Row{"Equity", "", "", "", money(total), ""})
	t.Render()
}

// RenderTrades writes a trade history table.
func RenderTrades(w io.Writer, trades []models.Trade) {
	t := newTable(w, "Trades")
	t.AppendHeader(table.Row{"ID", "Time", "Symbol", "Side", "Amount", "Price", "Fee", "Net", "P&L"})
	for _, tr := range trades {
		pnl := "-"
		if tr.RealizedPnl.Valid {
			pnl = money(tr.RealizedPnl.Decimal)
		}
		t.AppendRow(table.Row{
			tr.ID,
			tr.Timestamp.Format("2006-01-02 15:04:05"),
			tr.Symbol,
			tr.Side,
			tr.Amount.String(),
			money(tr.Price),
			tr.Fee.StringFixed(4),
			money(tr.NetValue),
			pnl,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "Total", len(trades)})
	t.Render()
}

// RenderReport writes the performance summary.
func RenderReport(w io.Writer, r Report) {
	t := newTable(w, "Performance")
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	sharpe := "n/a"
	if r.SharpeValid {
		sharpe = fmt.Sprintf("%.3f", r.SharpeRatio)
	}

	t.AppendRows([]table.Row{
		{"Starting balance", money(r.StartingBalance)},
		{"Cash balance", money(r.CashBalance)},
		{"Current equity", money(r.CurrentEquity)},
		{"Total return", fmt.Sprintf("%s (%.2f%%)", money(r.TotalReturn), r.TotalReturnPct)},
		{"Max drawdown", fmt.Sprintf("%s (%.2f%%)", money(r.MaxDrawdown), r.MaxDrawdownPct)},
		{"Sharpe ratio", sharpe},
	})
	t.AppendSeparator()

	s := r.Stats
	t.AppendRows([]table.Row{
		{"Trades", fmt.Sprintf("%d (%d buys, %d sells)", s.TotalTrades, s.Buys, s.Sells)},
		{"Win rate", fmt.Sprintf("%.1f%% (%d/%d)", r.WinRate, s.Wins, s.Sells)},
		{"Gross profit", money(s.GrossProfit)},
		{"Gross loss", money(s.GrossLoss)},
		{"Net profit", money(s.NetProfit)},
		{"Avg win / loss", fmt.Sprintf("%s / %s", money(s.AvgProfit), money(s.AvgLoss))},
		{"Largest win / loss", fmt.Sprintf("%s / %s", money(s.LargestWin), money(s.LargestLoss))},
		{"Profit factor", s.FormatProfitFactor()},
		{"Total fees", s.TotalFees.StringFixed(4)},
	})
	t.Render()
}
