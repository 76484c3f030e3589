package fees

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Concession is an extra discount granted at receipt time. It lowers the due
// the allocator sees by raising the cell's discount; it is never a cash
// credit of its own.
type Concession struct {
	ComponentID int64
	Month       AcademicMonth
	Amount      decimal.Decimal
}

// AllocationResult is the outcome of spreading one payment across a schedule.
type AllocationResult struct {
	Allocations []Allocation
	// Remaining is the unallocated tail of the payment, kept on the receipt
	// as an advance.
	Remaining decimal.Decimal
}

type cellKey struct {
	ComponentID int64
	Month       AcademicMonth
}

// OrderCells returns the schedule in clearing order: ascending academic
// month, then component class priority, then component ID for determinism.
func OrderCells(cells []MonthlyCell, classes map[int64]ComponentClass) []MonthlyCell {
	ordered := make([]MonthlyCell, len(cells))
	copy(ordered, cells)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		pa := classes[a.ComponentID].Priority()
		pb := classes[b.ComponentID].Priority()
		if pa != pb {
			return pa < pb
		}
		return a.ComponentID < b.ComponentID
	})
	return ordered
}

// ApplyConcessions raises the discount on each targeted cell and returns the
// adjusted schedule. The input slice is not mutated.
func ApplyConcessions(cells []MonthlyCell, concessions []Concession) ([]MonthlyCell, error) {
	adjusted := make([]MonthlyCell, len(cells))
	copy(adjusted, cells)
	index := indexCells(adjusted)
	for _, con := range concessions {
		if !con.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: concession amount must be positive", ErrValidation)
		}
		pos, ok := index[cellKey{con.ComponentID, con.Month}]
		if !ok {
			return nil, fmt.Errorf("%w: no cell for component %d month %s", ErrNotFound, con.ComponentID, con.Month)
		}
		cell := adjusted[pos]
		cell.Discount = cell.Discount.Add(con.Amount)
		if cell.Net().LessThan(cell.Paid) {
			return nil, fmt.Errorf("%w: concession on component %d month %s drops net below paid", ErrInvariant, con.ComponentID, con.Month)
		}
		adjusted[pos] = cell
	}
	return adjusted, nil
}

// Allocate spreads amount across cells in clearing order, filling each open
// due before moving on. Leftover becomes the receipt's advance.
func Allocate(cells []MonthlyCell, classes map[int64]ComponentClass, amount decimal.Decimal) AllocationResult {
	remaining := amount
	var allocs []Allocation
	for _, cell := range OrderCells(cells, classes) {
		if !remaining.IsPositive() {
			break
		}
		due := cell.Due()
		if !due.IsPositive() {
			continue
		}
		applied := decimal.Min(remaining, due)
		allocs = append(allocs, Allocation{
			ComponentID: cell.ComponentID,
			Month:       cell.Month,
			Amount:      applied,
		})
		remaining = remaining.Sub(applied)
	}
	return AllocationResult{Allocations: allocs, Remaining: remaining}
}

// CheckManual verifies caller-specified allocations against the schedule.
// Override lines skip the auto ordering but stay subject to the cell
// invariant: no line may overfill or drain its cell.
func CheckManual(cells []MonthlyCell, lines []Allocation) error {
	index := indexCells(cells)
	seen := make(map[cellKey]decimal.Decimal, len(lines))
	for _, line := range lines {
		if line.Amount.IsZero() {
			return fmt.Errorf("%w: zero allocation line for component %d", ErrValidation, line.ComponentID)
		}
		key := cellKey{line.ComponentID, line.Month}
		pos, ok := index[key]
		if !ok {
			return fmt.Errorf("%w: no cell for component %d month %s", ErrNotFound, line.ComponentID, line.Month)
		}
		applied := seen[key].Add(line.Amount)
		seen[key] = applied
		cell := cells[pos]
		paid := cell.Paid.Add(applied)
		if paid.IsNegative() || paid.GreaterThan(cell.Net()) {
			return fmt.Errorf("%w: component %d month %s paid would be %s of net %s", ErrInvariant, line.ComponentID, line.Month, paid, cell.Net())
		}
	}
	return nil
}

func indexCells(cells []MonthlyCell) map[cellKey]int {
	index := make(map[cellKey]int, len(cells))
	for i, c := range cells {
		index[cellKey{c.ComponentID, c.Month}] = i
	}
	return index
}
