package models

import "fmt"

// Range is an inclusive numeric namespace with its staging high-water mark.
// All numbers in [Start, TopID] have been staged at some point.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	TopID int64 `json:"top_id"`
}

// Validate checks Start-1 <= TopID <= End and Start <= End.
func (r Range) Validate() error {
	if r.Start < 0 || r.End < r.Start {
		return fmt.Errorf("range bounds [%d, %d] are invalid", r.Start, r.End)
	}
	if r.TopID < r.Start-1 || r.TopID > r.End {
		return fmt.Errorf("top id %d outside [%d, %d]", r.TopID, r.Start-1, r.End)
	}
	return nil
}

// Remaining is the count of numbers not yet staged.
func (r Range) Remaining() int64 {
	return r.End - r.TopID
}

// YearRange is the per-year namespace document. Only General is allocated from
// by the non-sequential allocator; Priority is carried for other policies.
type YearRange struct {
	Year     int   `json:"cve_year"`
	Priority Range `json:"priority"`
	General  Range `json:"general"`
}

// Default namespace bounds for newly provisioned years.
const (
	DefaultPriorityStart int64 = 0
	DefaultPriorityEnd   int64 = 20000
	DefaultGeneralStart  int64 = 20000
	DefaultGeneralEnd    int64 = 50000000
)

// NewYearRange builds a fresh range document with nothing staged yet.
func NewYearRange(year int, generalStart, generalEnd int64) (*YearRange, error) {
	if !ValidYear(year) {
		return nil, fmt.Errorf("year %d must have four digits", year)
	}
	yr := &YearRange{
		Year: year,
		Priority: Range{
			Start: DefaultPriorityStart,
			End:   DefaultPriorityEnd,
			TopID: DefaultPriorityStart - 1,
		},
		General: Range{
			Start: generalStart,
			End:   generalEnd,
			TopID: generalStart - 1,
		},
	}
	if err := yr.General.Validate(); err != nil {
		return nil, fmt.Errorf("general range: %w", err)
	}
	return yr, nil
}

// DefaultYearRange provisions year with the default bounds.
func DefaultYearRange(year int) (*YearRange, error) {
	return NewYearRange(year, DefaultGeneralStart, DefaultGeneralEnd)
}

// TopUpdate is the outcome of one conditional high-water-mark increment.
type TopUpdate struct {
	PrevTopID int64
	NewTopID  int64
	End       int64
}

// Granted is the number of newly staged numbers.
func (u TopUpdate) Granted() int64 {
	return u.NewTopID - u.PrevTopID
}
