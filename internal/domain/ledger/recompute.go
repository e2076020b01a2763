package ledger

import (
	"slices"
	"time"

	"bakehouse/internal/core/types"
)

// Recompute returns a copy of entries sorted chronologically with running balances
// folded from initial. The input slice is not modified.
//
// Ordering is OccurredAt ascending, then Seq ascending; the sort is stable so entries
// sharing both keys keep their relative order. A negative running balance is reported
// as is: deciding whether it is acceptable is the caller's business.
func Recompute(initial types.Quantity, entries []Entry) []Entry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, compareEntries)

	running := initial
	for i := range out {
		out[i].BalanceBefore = running
		running = running.Add(out[i].Delta)
		out[i].BalanceAfter = running
	}
	return out
}

func compareEntries(a, b Entry) int {
	if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
		return c
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

// Sum returns initial plus every delta, independent of order.
func Sum(initial types.Quantity, entries []Entry) types.Quantity {
	total := initial
	for _, e := range entries {
		total = total.Add(e.Delta)
	}
	return total
}

// BalanceAt returns the stock after every entry dated at or before at.
func BalanceAt(initial types.Quantity, entries []Entry, at time.Time) types.Quantity {
	total := initial
	for _, e := range entries {
		if !e.OccurredAt.After(at) {
			total = total.Add(e.Delta)
		}
	}
	return total
}

// Turnover is the movement summary of a ledger over a period.
type Turnover struct {
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	OpeningBalance types.Quantity `json:"openingBalance"`
	Imported       types.Quantity `json:"imported"`
	Used           types.Quantity `json:"used"`
	ClosingBalance types.Quantity `json:"closingBalance"`
}

// ComputeTurnover summarises entries dated within [from, to].
// Used is reported as a positive amount.
func ComputeTurnover(initial types.Quantity, entries []Entry, from, to time.Time) Turnover {
	t := Turnover{
		From:     from,
		To:       to,
		Imported: types.Zero(),
		Used:     types.Zero(),
	}
	opening := initial
	for _, e := range entries {
		switch {
		case e.OccurredAt.Before(from):
			opening = opening.Add(e.Delta)
		case !e.OccurredAt.After(to):
			if e.Delta.IsNegative() {
				t.Used = t.Used.Add(e.Delta.Abs())
			} else {
				t.Imported = t.Imported.Add(e.Delta)
			}
		}
	}
	t.OpeningBalance = opening
	t.ClosingBalance = opening.Add(t.Imported).Sub(t.Used)
	return t
}
