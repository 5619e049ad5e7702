// Package progression holds the pure functions behind hunter progression:
// the XP/level curve, the rank classifier and the daily streak rules.
package progression

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCurve is returned when a level curve cannot produce strictly increasing thresholds.
var ErrInvalidCurve = errors.New("invalid level curve")

// LevelInfo describes where an XP total sits on the level curve.
type LevelInfo struct {
	Level          int64 `json:"level"`
	CurrentInLevel int64 `json:"current_in_level"`
	NeededForNext  int64 `json:"needed_for_next"`
	Percentage     int   `json:"percentage"`
}

// LevelTable maps cumulative XP to levels using an arithmetic curve:
// going from level n to n+1 costs Base + Step*(n-1) XP.
//
//	T(1) = 0
//	T(n) = (n-1)*Base + Step*(n-1)*(n-2)/2
type LevelTable struct {
	base int64
	step int64
}

// NewLevelTable validates and builds a level table.
func NewLevelTable(base, step int64) (*LevelTable, error) {
	if base <= 0 {
		return nil, fmt.Errorf("%w: base must be positive, got %d", ErrInvalidCurve, base)
	}
	if step < 0 {
		return nil, fmt.Errorf("%w: step must not be negative, got %d", ErrInvalidCurve, step)
	}
	return &LevelTable{base: base, step: step}, nil
}

// Threshold returns T(level), the total XP required to reach level.
// Results saturate at math.MaxInt64, so thresholds only increase strictly up
// to the first saturated level; every level past it shares that threshold.
func (t *LevelTable) Threshold(level int64) int64 {
	if level <= 1 {
		return 0
	}
	n := level - 1
	linear := satMul(n, t.base)
	// n*(n-1)/2 without overflowing the intermediate product
	var tri int64
	if n%2 == 0 {
		tri = satMul(n/2, n-1)
	} else {
		tri = satMul(n, (n-1)/2)
	}
	return satAdd(linear, satMul(tri, t.step))
}

// Needed returns the XP cost of going from level to level+1.
func (t *LevelTable) Needed(level int64) int64 {
	if level < 1 {
		level = 1
	}
	return satAdd(t.base, satMul(t.step, level-1))
}

// LevelOf returns the level and in-level progress for a cumulative XP total.
// Negative XP is treated as zero. The first level whose threshold saturates
// is the cap: only an XP total of exactly math.MaxInt64 reaches it, and no
// XP total reaches the levels beyond.
func (t *LevelTable) LevelOf(xp int64) LevelInfo {
	if xp < 0 {
		xp = 0
	}
	level := t.search(xp)
	current := xp - t.Threshold(level)
	needed := t.Needed(level)

	var pct int
	if current <= math.MaxInt64/100 {
		pct = int(current * 100 / needed)
	} else {
		pct = int(float64(current) * 100 / float64(needed))
	}
	pct = min(max(pct, 0), 100)

	return LevelInfo{
		Level:          level,
		CurrentInLevel: current,
		NeededForNext:  needed,
		Percentage:     pct,
	}
}

// search finds the largest reachable level whose threshold does not exceed xp:
// exponential probing for an upper bound, then binary search.
func (t *LevelTable) search(xp int64) int64 {
	low, high := int64(1), int64(2)
	for t.reaches(high, xp) {
		low = high
		if high > math.MaxInt64/2 {
			return low
		}
		high *= 2
	}
	for low+1 < high {
		mid := low + (high-low)/2
		if t.reaches(mid, xp) {
			low = mid
		} else {
			high = mid
		}
	}
	return low
}

// reaches reports whether xp attains level. Saturated thresholds all equal
// math.MaxInt64, so only the first of them counts as reachable.
func (t *LevelTable) reaches(level, xp int64) bool {
	threshold := t.Threshold(level)
	if threshold > xp {
		return false
	}
	return threshold < math.MaxInt64 || t.Threshold(level-1) < math.MaxInt64
}

func satAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}
