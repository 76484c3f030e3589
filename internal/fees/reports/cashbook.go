// Package reports builds cashbook and summary rollups from journal scans.
// Builders are pure: the same scan and opening balance always produce the
// same report, so any output can be reproduced from the journal alone.
package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one cashbook line taken from the journal scan.
type Entry struct {
	ReceiptNo int64
	Date      time.Time
	StudentID int64
	ClassName string
	Mode      string
	CashierID int64
	Amount    decimal.Decimal
}

// CashierTotal sums one cashier's takings within a payment mode.
type CashierTotal struct {
	CashierID int64
	Total     decimal.Decimal
}

// ModeSummary groups entries by payment mode, split per cashier.
type ModeSummary struct {
	Mode     string
	Cashiers []CashierTotal
	Total    decimal.Decimal
}

// ClassSummary aggregates entries by the student's class at receipt time.
type ClassSummary struct {
	ClassName string
	Count     int
	Min       decimal.Decimal
	Max       decimal.Decimal
	Average   decimal.Decimal
	Total     decimal.Decimal
}

// Cashbook is the full rollup for one date range. GrandTotal minus
// OpeningBalance always equals the entry total, the mode total and the class
// total; BuildCashbook computes all four from the same pass.
type Cashbook struct {
	OpeningBalance decimal.Decimal
	Entries        []Entry
	ModeSummary    []ModeSummary
	ClassSummary   []ClassSummary
	GrandTotal     decimal.Decimal
}

// BuildCashbook folds scanned entries into the cashbook rollup.
func BuildCashbook(opening decimal.Decimal, entries []Entry) Cashbook {
	book := Cashbook{OpeningBalance: opening, Entries: entries}

	modes := make(map[string]map[int64]decimal.Decimal)
	modeKeys := make([]string, 0)
	classes := make(map[string]*ClassSummary)
	classKeys := make([]string, 0)
	received := decimal.Zero

	for _, e := range entries {
		received = received.Add(e.Amount)

		byCashier, ok := modes[e.Mode]
		if !ok {
			byCashier = make(map[int64]decimal.Decimal)
			modes[e.Mode] = byCashier
			modeKeys = append(modeKeys, e.Mode)
		}
		byCashier[e.CashierID] = byCashier[e.CashierID].Add(e.Amount)

		cls, ok := classes[e.ClassName]
		if !ok {
			cls = &ClassSummary{ClassName: e.ClassName, Min: e.Amount, Max: e.Amount}
			classes[e.ClassName] = cls
			classKeys = append(classKeys, e.ClassName)
		}
		cls.Count++
		cls.Total = cls.Total.Add(e.Amount)
		if e.Amount.LessThan(cls.Min) {
			cls.Min = e.Amount
		}
		if e.Amount.GreaterThan(cls.Max) {
			cls.Max = e.Amount
		}
	}

	sort.Strings(modeKeys)
	for _, mode := range modeKeys {
		byCashier := modes[mode]
		summary := ModeSummary{Mode: mode}
		ids := make([]int64, 0, len(byCashier))
		for id := range byCashier {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			summary.Cashiers = append(summary.Cashiers, CashierTotal{CashierID: id, Total: byCashier[id]})
			summary.Total = summary.Total.Add(byCashier[id])
		}
		book.ModeSummary = append(book.ModeSummary, summary)
	}

	sort.Strings(classKeys)
	for _, name := range classKeys {
		cls := classes[name]
		cls.Average = cls.Total.DivRound(decimal.NewFromInt(int64(cls.Count)), 2)
		book.ClassSummary = append(book.ClassSummary, *cls)
	}

	book.GrandTotal = opening.Add(received)
	return book
}

// ReceivedTotal is the sum over entries, i.e. GrandTotal - OpeningBalance.
func (b Cashbook) ReceivedTotal() decimal.Decimal {
	return b.GrandTotal.Sub(b.OpeningBalance)
}
