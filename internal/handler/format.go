package handler

import (
	"fmt"
	"strings"

	"shadowrank/internal/model"
	"shadowrank/internal/service"
)

const (
	divider  = "━━━━━━━━━━━━━━━"
	barWidth = 10
)

// progressBar renders pct (0..100) as a fixed-width bar.
func progressBar(pct int) string {
	pct = min(max(pct, 0), 100)
	filled := pct * barWidth / 100
	return strings.Repeat("▰", filled) + strings.Repeat("▱", barWidth-filled)
}

func formatStatus(d *service.Dashboard) string {
	p := d.Profile
	var b strings.Builder
	fmt.Fprintf(&b, "🗡 %s\n%s\n", p.Name(), divider)
	fmt.Fprintf(&b, "Rank: %s\n", p.RankLabel)
	fmt.Fprintf(&b, "Level %d  %s %d%%\n", p.Progress.Level, progressBar(p.Progress.Percentage), p.Progress.Percentage)
	fmt.Fprintf(&b, "XP: %d (%d/%d to next level)\n", p.XP, p.Progress.CurrentInLevel, p.Progress.NeededForNext)
	fmt.Fprintf(&b, "🔥 Streak: %d day(s)\n", p.StreakCount)
	fmt.Fprintf(&b, "✅ Quests completed: %d\n", p.TotalQuestsCompleted)
	if p.NextRank != nil {
		fmt.Fprintf(&b, "Next rank: %s at level %d\n", p.NextRank.Rank.Label(), p.NextRank.MinLevel)
	}

	open := 0
	for _, e := range d.Board.Entries {
		if !e.CompletedToday {
			open++
		}
	}
	fmt.Fprintf(&b, "%s\n📋 %d of %d quests open today", divider, open, len(d.Board.Entries))
	return b.String()
}

func formatBoard(board *service.Board) string {
	if len(board.Entries) == 0 {
		return "📋 Your quest board is empty. Add one with /add <difficulty> <title>."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Quest board for %s\n%s\n", board.Day, divider)
	for i, e := range board.Entries {
		mark := "⬜"
		if e.CompletedToday {
			mark = "✅"
		}
		repeat := ""
		if e.IsDaily {
			repeat = " 🔁"
		}
		fmt.Fprintf(&b, "%d. %s %s %s [%s] +%d XP%s\n", i+1, mark, e.Icon, e.Title, e.Difficulty, e.XPReward, repeat)
	}
	b.WriteString(divider)
	return b.String()
}

func formatResult(title string, res *service.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s\n+%d XP (total %d)\n", title, res.XPAwarded, res.NewXP)
	if res.LeveledUp {
		fmt.Fprintf(&b, "⬆️ Level up! %d → %d\n", res.OldLevel, res.NewLevel)
	}
	if res.RankChanged {
		fmt.Fprintf(&b, "🏅 Rank up! You are now %s\n", res.NewRank.Label())
	}
	fmt.Fprintf(&b, "Level %d  %s %d%%\n", res.NewLevel, progressBar(res.Progress.Percentage), res.Progress.Percentage)
	fmt.Fprintf(&b, "🔥 Streak: %d day(s)", res.NewStreak)
	return b.String()
}

func formatTop(entries []model.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "🏆 No hunters ranked yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Top %d hunters\n%s\n", len(entries), divider)
	for _, e := range entries {
		pos := e.Medal
		if pos == "" {
			pos = fmt.Sprintf("%d.", e.Position)
		}
		fmt.Fprintf(&b, "%s %s [%s] Lv.%d · %d XP\n", pos, e.Name, e.HunterRank, e.Level, e.XP)
	}
	b.WriteString(divider)
	return b.String()
}

// errorText turns a service error into a user-facing reply.
func errorText(err error) string {
	switch service.KindOf(err) {
	case service.KindAlreadyCompleted:
		return "☑️ Already done for today. Come back tomorrow!"
	case service.KindQuestNotFound:
		return "❌ That quest no longer exists."
	case service.KindNotOwner:
		return "❌ That quest belongs to another hunter."
	case service.KindInvalidTimeOrder:
		return "❌ That day is before your last activity."
	case service.KindInvalidInput:
		return "❌ " + strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
	case service.KindPersistenceConflict, service.KindStoreUnavailable:
		return "⏳ Busy right now, please try again in a moment."
	default:
		return "❌ Something went wrong, please try again later."
	}
}
