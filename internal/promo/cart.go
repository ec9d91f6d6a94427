package promo

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mn-ibiz/promo-engine/internal/money"
)

// CartLine is one immutable line of the cart being priced. Lines are
// addressed by their index within the snapshot.
type CartLine struct {
	ID         int
	ProductID  uuid.UUID
	CategoryID uuid.UUID
	Quantity   int
	UnitPrice  money.Amount
}

// Subtotal returns quantity times unit price.
func (l CartLine) Subtotal() money.Amount {
	return money.MulQty(l.UnitPrice, l.Quantity)
}

// Snapshot is the immutable view of the cart for one pricing pass.
type Snapshot struct {
	lines []CartLine
}

// NewSnapshot copies the lines and assigns positional ids. Lines with
// non-positive quantity are dropped.
func NewSnapshot(lines []CartLine) *Snapshot {
	s := &Snapshot{lines: make([]CartLine, 0, len(lines))}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		l.ID = len(s.lines)
		s.lines = append(s.lines, l)
	}
	return s
}

// Lines returns the snapshot lines. Callers must not mutate the slice.
func (s *Snapshot) Lines() []CartLine {
	return s.lines
}

// Line returns the line with the given id.
func (s *Snapshot) Line(id int) (CartLine, bool) {
	if id < 0 || id >= len(s.lines) {
		return CartLine{}, false
	}
	return s.lines[id], true
}

// Subtotal sums all line subtotals.
func (s *Snapshot) Subtotal() money.Amount {
	total := money.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Availability tracks unclaimed quantity per line. The matcher uses one per
// promotion so a single rule never double-claims its own units; the resolver
// uses one across all accepted matches.
type Availability struct {
	snap      *Snapshot
	remaining []int
}

// NewAvailability starts with every unit of every line unclaimed.
func (s *Snapshot) NewAvailability() *Availability {
	remaining := make([]int, len(s.lines))
	for i, l := range s.lines {
		remaining[i] = l.Quantity
	}
	return &Availability{snap: s, remaining: remaining}
}

// Unclaimed returns the unclaimed quantity of a line, zero for unknown ids.
func (a *Availability) Unclaimed(lineID int) int {
	if lineID < 0 || lineID >= len(a.remaining) {
		return 0
	}
	return a.remaining[lineID]
}

// Take claims qty units from a line. Claiming more than is unclaimed is a
// programming defect and returns ErrInvariant.
func (a *Availability) Take(lineID, qty int) error {
	if qty < 0 {
		return fmt.Errorf("%w: negative claim %d on line %d", ErrInvariant, qty, lineID)
	}
	if lineID < 0 || lineID >= len(a.remaining) {
		return fmt.Errorf("%w: claim on unknown line %d", ErrInvariant, lineID)
	}
	if qty > a.remaining[lineID] {
		return fmt.Errorf("%w: claim %d exceeds unclaimed %d on line %d", ErrInvariant, qty, a.remaining[lineID], lineID)
	}
	a.remaining[lineID] -= qty
	return nil
}

// CanTake reports whether all claims fit the current availability.
func (a *Availability) CanTake(claims []Claim) bool {
	need := map[int]int{}
	for _, c := range claims {
		need[c.LineID] += c.Quantity
	}
	for lineID, qty := range need {
		if qty > a.Unclaimed(lineID) {
			return false
		}
	}
	return true
}
