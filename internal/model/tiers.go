package model

import "fmt"

// Rank is an ordered hunter tier, E (lowest) through S (highest).
// Quest difficulty reuses the same tiers.
type Rank string

const (
	RankE Rank = "E"
	RankD Rank = "D"
	RankC Rank = "C"
	RankB Rank = "B"
	RankA Rank = "A"
	RankS Rank = "S"
)

// Ranks lists every tier in ascending order.
var Ranks = []Rank{RankE, RankD, RankC, RankB, RankA, RankS}

// RankColors maps tiers to their badge colour.
var RankColors = map[Rank]string{
	RankE: "#6b7280",
	RankD: "#22c55e",
	RankC: "#3b82f6",
	RankB: "#a855f7",
	RankA: "#e94560",
	RankS: "#ffd700",
}

// Ordinal returns the position of r in Ranks, or -1 when r is unknown.
func (r Rank) Ordinal() int {
	for i, rank := range Ranks {
		if rank == r {
			return i
		}
	}
	return -1
}

// Valid reports whether r is a known tier.
func (r Rank) Valid() bool {
	return r.Ordinal() >= 0
}

// Less reports whether r is a lower tier than other.
func (r Rank) Less(other Rank) bool {
	return r.Ordinal() < other.Ordinal()
}

// Color returns the badge colour for r.
func (r Rank) Color() string {
	return RankColors[r]
}

// Label returns the badge text, e.g. "S-Rank".
func (r Rank) Label() string {
	return string(r) + "-Rank"
}

// ParseRank validates a tier string.
func ParseRank(s string) (Rank, error) {
	r := Rank(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown rank %q", s)
	}
	return r, nil
}

// Category groups quests by life area.
type Category string

const (
	CategoryFitness      Category = "fitness"
	CategoryLearning     Category = "learning"
	CategoryProductivity Category = "productivity"
	CategoryHealth       Category = "health"
	CategorySocial       Category = "social"
	CategoryCreativity   Category = "creativity"
	CategoryOther        Category = "other"
)

// CategoryIcons maps categories to their board icon.
var CategoryIcons = map[Category]string{
	CategoryFitness:      "💪",
	CategoryLearning:     "📚",
	CategoryProductivity: "💼",
	CategoryHealth:       "❤️",
	CategorySocial:       "👥",
	CategoryCreativity:   "🎨",
	CategoryOther:        "⭐",
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := CategoryIcons[c]
	return ok
}

// Icon returns the board icon for c.
func (c Category) Icon() string {
	return CategoryIcons[c]
}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
