package fees

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSummarizeMatchesIndependentRecomputation(t *testing.T) {
	acct := StudentAccount{StudentID: 1, TenantID: 1, SessionID: 1, OldBalance: dec("1200")}
	comps := []FeeComponent{
		{ID: 10, Name: "Tuition", Class: ClassTuition},
		{ID: 30, Name: "Transport", Class: ClassTransport},
	}
	cells := []MonthlyCell{
		{StudentID: 1, ComponentID: 10, Month: April, Base: dec("5000"), Discount: dec("500"), Paid: dec("4500")},
		{StudentID: 1, ComponentID: 10, Month: May, Base: dec("5000"), Fine: dec("100"), Paid: dec("2000")},
		{StudentID: 1, ComponentID: 30, Month: April, Base: dec("700")},
	}

	summary := Summarize(acct, comps, cells)

	// remainingDue must equal oldBalance + sum(net) - sum(paid) recomputed
	// independently from the schedule.
	independent := acct.OldBalance
	for _, c := range cells {
		independent = independent.Add(c.Net()).Sub(c.Paid)
	}
	if !summary.TotalRemaining.Equal(independent) {
		t.Fatalf("remaining %s diverges from independent %s", summary.TotalRemaining, independent)
	}
	if !summary.TotalDue.Equal(dec("10300")) {
		t.Fatalf("expected total due 10300, got %s", summary.TotalDue)
	}
	if !summary.TotalReceived.Equal(dec("6500")) {
		t.Fatalf("expected received 6500, got %s", summary.TotalReceived)
	}
	if len(summary.Cells) != 3 {
		t.Fatalf("expected 3 cells, got %d", len(summary.Cells))
	}
	if summary.Cells[0].ComponentName != "Tuition" {
		t.Fatalf("cells must come back in clearing order, first was %s", summary.Cells[0].ComponentName)
	}
}

func TestSummarizeFamilyIsPureSum(t *testing.T) {
	a := StudentFeeSummary{StudentID: 1, TotalDue: dec("100"), TotalReceived: dec("60"), TotalRemaining: dec("40")}
	b := StudentFeeSummary{StudentID: 2, TotalDue: dec("200"), TotalReceived: dec("50"), TotalRemaining: dec("150")}

	family := SummarizeFamily(7, []StudentFeeSummary{a, b})
	if family.SiblingGroupID != 7 {
		t.Fatalf("unexpected group id %d", family.SiblingGroupID)
	}
	if !family.TotalDue.Equal(dec("300")) || !family.TotalReceived.Equal(dec("110")) || !family.TotalRemaining.Equal(dec("190")) {
		t.Fatalf("family totals must be plain sums, got due=%s received=%s remaining=%s",
			family.TotalDue, family.TotalReceived, family.TotalRemaining)
	}
	if len(family.Students) != 2 {
		t.Fatalf("per-student figures must be preserved")
	}
	if !family.Students[0].TotalRemaining.Equal(dec("40")) {
		t.Fatalf("student figures must stay unmodified")
	}
}

func TestSummarizeEmptySchedule(t *testing.T) {
	acct := StudentAccount{StudentID: 1, OldBalance: dec("250")}
	summary := Summarize(acct, nil, nil)
	if !summary.TotalRemaining.Equal(dec("250")) {
		t.Fatalf("old balance alone should remain, got %s", summary.TotalRemaining)
	}
	if !summary.TotalDue.Equal(decimal.Zero) || !summary.TotalReceived.Equal(decimal.Zero) {
		t.Fatalf("empty schedule must produce zero due and received")
	}
}
