package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCatalog    = errors.New("prize catalog is empty")
	ErrInvalidWeight   = errors.New("prize weight must be positive")
	ErrInvalidPrize    = errors.New("invalid prize")
	ErrNoSpinAvailable = errors.New("no spin available")
	ErrSpinInProgress  = errors.New("a spin is already in progress")
)

// Kind is the effect a prize has on the ledger.
type Kind string

const (
	KindBonus   Kind = "bonus"
	KindPremium Kind = "premium"
	KindNoop    Kind = "noop"
)

// Prize is one wheel outcome.
type Prize struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Amount int    `json:"amount,omitempty"`
	Label  string `json:"label"`
}

// Validate checks that the prize can be applied.
func (p Prize) Validate() error {
	switch p.Kind {
	case KindBonus:
		if p.Amount <= 0 {
			return fmt.Errorf("%w: %s grants no consultations", ErrInvalidPrize, p.ID)
		}
	case KindPremium, KindNoop:
	default:
		return fmt.Errorf("%w: %s has kind %q", ErrInvalidPrize, p.ID, p.Kind)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPrize)
	}
	return nil
}

// WeightedPrize pairs a prize with its relative weight.
type WeightedPrize struct {
	Prize  Prize
	Weight int
}

type tableEntry struct {
	cumulative int
	prize      Prize
}

// Table is an ordered cumulative-weight table. A draw r in [0, Total)
// selects the first entry whose cumulative weight exceeds r.
type Table struct {
	entries []tableEntry
	total   int
}

// NewTable builds a table from weighted prizes.
func NewTable(prizes []WeightedPrize) (*Table, error) {
	if len(prizes) == 0 {
		return nil, ErrEmptyCatalog
	}
	t := &Table{entries: make([]tableEntry, 0, len(prizes))}
	for _, wp := range prizes {
		if wp.Weight <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidWeight, wp.Prize.ID)
		}
		if err := wp.Prize.Validate(); err != nil {
			return nil, err
		}
		t.total += wp.Weight
		t.entries = append(t.entries, tableEntry{cumulative: t.total, prize: wp.Prize})
	}
	return t, nil
}

// Total is the sum of all weights.
func (t *Table) Total() int {
	return t.total
}

// Pick maps a draw to a prize. Out-of-range draws are clamped.
func (t *Table) Pick(r int) Prize {
	if r < 0 {
		r = 0
	}
	for _, e := range t.entries {
		if r < e.cumulative {
			return e.prize
		}
	}
	return t.entries[len(t.entries)-1].prize
}

// Draw picks a prize with a single draw from rng.
func (t *Table) Draw(rng RNG) Prize {
	return t.Pick(rng.Intn(t.total))
}

// Share returns the fraction of the total weight held by prizes of kind k.
func (t *Table) Share(k Kind) float64 {
	prev, sum := 0, 0
	for _, e := range t.entries {
		if e.prize.Kind == k {
			sum += e.cumulative - prev
		}
		prev = e.cumulative
	}
	return float64(sum) / float64(t.total)
}
