package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for non-positive quantities, prices or negative fees.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds is returned when cash does not cover cost plus fee.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientPosition is returned when selling more than is held.
	ErrInsufficientPosition = errors.New("insufficient position")
)

// Position is the holding of one symbol. A zero amount means no position.
type Position struct {
	Symbol        string          `json:"symbol"`
	Amount        decimal.Decimal `json:"amount"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
}

// CostBasis returns amount * average entry price.
func (p Position) CostBasis() decimal.Decimal {
	return p.Amount.Mul(p.AvgEntryPrice)
}

// PriceLookup returns the current price of a symbol, or false when none is known.
type PriceLookup func(symbol string) (decimal.Decimal, bool)

// Snapshot is a point-in-time copy of the ledger, used for persistence and restore.
type Snapshot struct {
	CashBalance     decimal.Decimal
	StartingBalance decimal.Decimal
	Positions       []Position
}

// State holds the account cash balance and the open positions.
// Only the execution engine mutates it; everything else reads.
type State struct {
	mu              sync.RWMutex
	cash            decimal.Decimal
	startingBalance decimal.Decimal
	positions       map[string]Position
}

// New creates a fresh ledger funded with startingBalance.
func New(startingBalance decimal.Decimal) *State {
	return &State{
		cash:            startingBalance,
		startingBalance: startingBalance,
		positions:       make(map[string]Position),
	}
}

// Restore rebuilds a ledger from a persisted snapshot.
func Restore(s Snapshot) (*State, error) {
	if s.CashBalance.IsNegative() {
		return nil, fmt.Errorf("restore ledger: negative cash balance %s", s.CashBalance)
	}
	st := New(s.StartingBalance)
	st.cash = s.CashBalance
	for _, p := range s.Positions {
		if p.Amount.IsNegative() {
			return nil, fmt.Errorf("restore ledger: negative amount for %s", p.Symbol)
		}
		if p.Amount.IsZero() {
			continue
		}
		st.positions[p.Symbol] = p
	}
	return st, nil
}

// CashBalance returns the available cash.
func (s *State) CashBalance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cash
}

// StartingBalance returns the balance the account was created (or last reset) with.
func (s *State) StartingBalance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startingBalance
}

// Position returns the open position for symbol, if any.
func (s *State) Position(symbol string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// Positions returns all open positions ordered by symbol.
func (s *State) Positions() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPositions()
}

func (s *State) sortedPositions() []Position {
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// CanAfford reports whether cost is covered by the cash balance.
func (s *State) CanAfford(cost decimal.Decimal) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cost.LessThanOrEqual(s.cash)
}

// avgPricePrecision is the number of fractional digits kept when re-averaging
// an entry price.
const avgPricePrecision = 28

// ApplyBuy adds amount of symbol bought at price, debiting amount*price + fee.
// An existing position is re-averaged. Nothing changes when an error is returned.
func (s *State) ApplyBuy(symbol string, amount, price, fee decimal.Decimal) error {
	if !amount.IsPositive() || !price.IsPositive() || fee.IsNegative() {
		return fmt.Errorf("%w: buy %s amount=%s price=%s fee=%s", ErrInvalidAmount, symbol, amount, price, fee)
	}
	return s.applyBuy(symbol, amount, price, amount.Mul(price).Add(fee))
}

// ApplyBuyNotional spends exactly notional + fee on symbol at price and returns
// the quantity bought, notional/price. Nothing changes when an error is returned.
func (s *State) ApplyBuyNotional(symbol string, notional, price, fee decimal.Decimal) (decimal.Decimal, error) {
	if !notional.IsPositive() || !price.IsPositive() || fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: buy %s notional=%s price=%s fee=%s", ErrInvalidAmount, symbol, notional, price, fee)
	}
	amount := notional.Div(price)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: notional %s buys nothing at %s", ErrInvalidAmount, notional, price)
	}
	if err := s.applyBuy(symbol, amount, price, notional.Add(fee)); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// applyBuy debits cost and adds amount at price to the position in symbol.
func (s *State) applyBuy(symbol string, amount, price, cost decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cost.GreaterThan(s.cash) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, s.cash, cost)
	}

	pos, ok := s.positions[symbol]
	if ok {
		newAmount := pos.Amount.Add(amount)
		pos.AvgEntryPrice = pos.CostBasis().Add(amount.Mul(price)).DivRound(newAmount, avgPricePrecision)
		pos.Amount = newAmount
	} else {
		pos = Position{Symbol: symbol, Amount: amount, AvgEntryPrice: price}
	}

	s.positions[symbol] = pos
	s.cash = s.cash.Sub(cost)
	return nil
}

// ApplySell removes amount of symbol sold at price, crediting amount*price - fee,
// and returns the realized profit against the average entry price.
// The cost basis of the remainder is unchanged; a fully sold position is cleared.
func (s *State) ApplySell(symbol string, amount, price, fee decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() || !price.IsPositive() || fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: sell %s amount=%s price=%s fee=%s", ErrInvalidAmount, symbol, amount, price, fee)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no position in %s", ErrInsufficientPosition, symbol)
	}
	if pos.Amount.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: have %s %s, want to sell %s", ErrInsufficientPosition, pos.Amount, symbol, amount)
	}

	gross := amount.Mul(price)
	net := gross.Sub(fee)
	realized := net.Sub(pos.AvgEntryPrice.Mul(amount))

	pos.Amount = pos.Amount.Sub(amount)
	if pos.Amount.IsZero() {
		delete(s.positions, symbol)
	} else {
		s.positions[symbol] = pos
	}
	s.cash = s.cash.Add(net)
	return realized, nil
}

// PositionsValue marks every open position to market. Positions without a price
// are valued at their average entry price.
func (s *State) PositionsValue(lookup PriceLookup) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positionsValue(lookup)
}

func (s *State) positionsValue(lookup PriceLookup) decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.positions {
		price := p.AvgEntryPrice
		if lookup != nil {
			if px, ok := lookup(p.Symbol); ok {
				price = px
			}
		}
		total = total.Add(p.Amount.Mul(price))
	}
	return total
}

// CalculateTotalEquity returns cash plus the market value of all positions.
func (s *State) CalculateTotalEquity(lookup PriceLookup) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cash.Add(s.positionsValue(lookup))
}

// Valuation returns cash and positions value read under one lock, so the pair
// is consistent even while orders execute.
func (s *State) Valuation(lookup PriceLookup) (cash, positionsValue decimal.Decimal) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cash, s.positionsValue(lookup)
}

// CalculateUnrealizedPnl returns (currentPrice - avg entry) * amount, or zero when flat.
func (s *State) CalculateUnrealizedPnl(symbol string, currentPrice decimal.Decimal) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	if !ok {
		return decimal.Zero
	}
	return currentPrice.Sub(p.AvgEntryPrice).Mul(p.Amount)
}

// Reset restores the starting balance and drops every position.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cash = s.startingBalance
	s.positions = make(map[string]Position)
}

// ResetTo replaces the starting balance and then resets.
func (s *State) ResetTo(startingBalance decimal.Decimal) {
	s.mu.Lock()
	s.startingBalance = startingBalance
	s.mu.Unlock()
	s.Reset()
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		CashBalance:     s.cash,
		StartingBalance: s.startingBalance,
		Positions:       s.sortedPositions(),
	}
}
