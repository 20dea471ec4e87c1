// Command analyze prints quick, human-readable statistics about the games in
// a store. It summarizes games per phase, wins by seat and by player, game
// length, and games still waiting for an opponent past a staleness threshold.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/wricardo/mcp-training/chopsticks/game/engine"
	"github.com/wricardo/mcp-training/chopsticks/game/session"
)

// Analysis is the aggregate view of a set of games
type Analysis struct {
	Total      int
	Awaiting   int
	InProgress int
	Finished   int

	SeatWins   map[engine.Seat]int
	PlayerWins map[string]int

	MinMoves int
	MaxMoves int
	AvgMoves float64

	// Stale lists games awaiting an opponent longer than the threshold
	Stale []string
}

// PlayerTally is one row of the leaderboard
type PlayerTally struct {
	Identity string
	Wins     int
}

// analyze aggregates games; now and staleAfter decide which open games are stale
func analyze(games []*engine.Game, now time.Time, staleAfter time.Duration) Analysis {
	a := Analysis{
		Total:      len(games),
		SeatWins:   map[engine.Seat]int{},
		PlayerWins: map[string]int{},
	}

	totalMoves := 0
	for _, g := range games {
		switch ph := g.Phase.(type) {
		case engine.AwaitingOpponent:
			a.Awaiting++
			if now.Sub(g.CreatedAt) > staleAfter {
				a.Stale = append(a.Stale, g.SessionID)
			}
		case engine.InProgress:
			a.InProgress++
		case engine.Finished:
			a.Finished++
			if seat, ok := g.SeatOf(ph.Winner); ok {
				a.SeatWins[seat]++
			}
			a.PlayerWins[ph.Winner]++

			totalMoves += g.MoveCount
			if a.Finished == 1 || g.MoveCount < a.MinMoves {
				a.MinMoves = g.MoveCount
			}
			if g.MoveCount > a.MaxMoves {
				a.MaxMoves = g.MoveCount
			}
		}
	}

	if a.Finished > 0 {
		a.AvgMoves = float64(totalMoves) / float64(a.Finished)
	}
	sort.Strings(a.Stale)
	return a
}

// Leaderboard returns the top n players by wins, ties broken by identity
func (a Analysis) Leaderboard(n int) []PlayerTally {
	rows := make([]PlayerTally, 0, len(a.PlayerWins))
	for id, wins := range a.PlayerWins {
		rows = append(rows, PlayerTally{Identity: id, Wins: wins})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		return rows[i].Identity < rows[j].Identity
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func main() {
	driver := flag.String("store", "file", "Store driver: file, sqlite, bolt")
	path := flag.String("path", "sessions", "Store directory or database path")
	container := flag.String("container", session.DefaultContainer, "Container name")
	staleAfter := flag.Duration("stale-after", time.Hour, "Report open games older than this")
	top := flag.Int("top", 5, "Leaderboard size")
	flag.Parse()

	store, err := session.Open(session.Options{Driver: *driver, Path: *path, Container: *container})
	if err != nil {
		fmt.Printf("Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	games, err := store.List(context.Background())
	if err != nil {
		fmt.Printf("Error listing games: %v\n", err)
		os.Exit(1)
	}

	a := analyze(games, time.Now().UTC(), *staleAfter)

	fmt.Printf("\n=== Analyzing %s (%s) ===\n", *container, *driver)
	fmt.Printf("Games: %d\n", a.Total)
	fmt.Printf("Awaiting opponent: %d\n", a.Awaiting)
	fmt.Printf("In progress: %d\n", a.InProgress)
	fmt.Printf("Finished: %d\n", a.Finished)

	if a.Finished > 0 {
		fmt.Printf("Wins by seat: player_one=%d player_two=%d\n", a.SeatWins[engine.PlayerOne], a.SeatWins[engine.PlayerTwo])
		fmt.Printf("Moves per finished game: min=%d max=%d avg=%.1f\n", a.MinMoves, a.MaxMoves, a.AvgMoves)
		fmt.Printf("Top players:\n")
		for i, row := range a.Leaderboard(*top) {
			fmt.Printf("   %d. %s (%d wins)\n", i+1, row.Identity, row.Wins)
		}
	}

	if len(a.Stale) > 0 {
		fmt.Printf("⚠️  WARNING: %d games have waited more than %s for an opponent\n", len(a.Stale), *staleAfter)
		for i, id := range a.Stale {
			if i < 5 { // Show first 5 stale games
				fmt.Printf("   Stale: %s\n", id)
			}
		}
		if len(a.Stale) > 5 {
			fmt.Printf("   ... and %d more\n", len(a.Stale)-5)
		}
	} else {
		fmt.Printf("✅ No stale open games\n")
	}
}
