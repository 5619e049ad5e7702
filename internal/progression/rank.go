package progression

import (
	"errors"
	"fmt"

	"shadowrank/internal/model"
)

// ErrInvalidBreakpoints is returned when rank breakpoints are not total and monotonic.
var ErrInvalidBreakpoints = errors.New("invalid rank breakpoints")

// Breakpoint promotes a hunter to Rank once they reach MinLevel.
type Breakpoint struct {
	MinLevel int64      `mapstructure:"min_level" json:"min_level"`
	Rank     model.Rank `mapstructure:"rank" json:"rank"`
}

// DefaultBreakpoints is the stock E..S ladder.
var DefaultBreakpoints = []Breakpoint{
	{MinLevel: 1, Rank: model.RankE},
	{MinLevel: 5, Rank: model.RankD},
	{MinLevel: 10, Rank: model.RankC},
	{MinLevel: 20, Rank: model.RankB},
	{MinLevel: 35, Rank: model.RankA},
	{MinLevel: 50, Rank: model.RankS},
}

// RankClassifier maps levels to hunter ranks.
type RankClassifier struct {
	breakpoints []Breakpoint
}

// NewRankClassifier validates breakpoints: the first must start at level 1 and
// both levels and ranks must be strictly increasing.
func NewRankClassifier(breakpoints []Breakpoint) (*RankClassifier, error) {
	if len(breakpoints) == 0 {
		return nil, fmt.Errorf("%w: at least one breakpoint is required", ErrInvalidBreakpoints)
	}
	if breakpoints[0].MinLevel != 1 {
		return nil, fmt.Errorf("%w: first breakpoint must start at level 1, got %d",
			ErrInvalidBreakpoints, breakpoints[0].MinLevel)
	}
	for i, bp := range breakpoints {
		if !bp.Rank.Valid() {
			return nil, fmt.Errorf("%w: unknown rank %q", ErrInvalidBreakpoints, bp.Rank)
		}
		if i == 0 {
			continue
		}
		prev := breakpoints[i-1]
		if bp.MinLevel <= prev.MinLevel {
			return nil, fmt.Errorf("%w: levels must increase (%d after %d)",
				ErrInvalidBreakpoints, bp.MinLevel, prev.MinLevel)
		}
		if !prev.Rank.Less(bp.Rank) {
			return nil, fmt.Errorf("%w: ranks must increase (%s after %s)",
				ErrInvalidBreakpoints, bp.Rank, prev.Rank)
		}
	}

	owned := make([]Breakpoint, len(breakpoints))
	copy(owned, breakpoints)
	return &RankClassifier{breakpoints: owned}, nil
}

// RankOf returns the rank of the highest breakpoint at or below level.
func (c *RankClassifier) RankOf(level int64) model.Rank {
	rank := c.breakpoints[0].Rank
	for _, bp := range c.breakpoints[1:] {
		if level < bp.MinLevel {
			break
		}
		rank = bp.Rank
	}
	return rank
}

// NextBreakpoint returns the next promotion above level, if any.
func (c *RankClassifier) NextBreakpoint(level int64) (Breakpoint, bool) {
	for _, bp := range c.breakpoints {
		if bp.MinLevel > level {
			return bp, true
		}
	}
	return Breakpoint{}, false
}
