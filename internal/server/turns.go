package server

import "math/rand"

// selectDescriber picks the next describer by fairness: fewest clues given
// wins, the previous describer never repeats while an alternative exists, and
// among equally overdue players the one who has waited longest since their
// last turn goes first. Remaining ties break deterministically on earliest
// joinedAt, then smallest playerId. Each player's first turn is assigned
// uniformly at random.
func selectDescriber(players []Player, rounds []Round) string {
	if len(players) == 0 {
		return ""
	}
	counts := cluesGiven(players, rounds)
	minCount := -1
	for _, p := range players {
		if minCount == -1 || counts[p.ID] < minCount {
			minCount = counts[p.ID]
		}
	}
	eligible := make([]Player, 0, len(players))
	for _, p := range players {
		if counts[p.ID] == minCount {
			eligible = append(eligible, p)
		}
	}
	if last := lastDescriber(rounds); last != "" && len(eligible) > 1 {
		trimmed := eligible[:0]
		for _, p := range eligible {
			if p.ID != last {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			eligible = trimmed
		}
	}
	if minCount == 0 {
		return eligible[rand.Intn(len(eligible))].ID
	}
	best := eligible[0]
	bestIndex := lastDescribingIndex(rounds, best.ID)
	for _, p := range eligible[1:] {
		index := lastDescribingIndex(rounds, p.ID)
		if index < bestIndex {
			best, bestIndex = p, index
			continue
		}
		if index == bestIndex && staleTieBreak(p, best) {
			best = p
		}
	}
	return best.ID
}

func staleTieBreak(a, b Player) bool {
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.ID < b.ID
}

func cluesGiven(players []Player, rounds []Round) map[string]int {
	counts := make(map[string]int, len(players))
	for _, p := range players {
		counts[p.ID] = 0
	}
	for i := range rounds {
		if _, ok := counts[rounds[i].DescriberID]; ok {
			counts[rounds[i].DescriberID]++
		}
	}
	return counts
}

func lastDescriber(rounds []Round) string {
	if len(rounds) == 0 {
		return ""
	}
	return rounds[len(rounds)-1].DescriberID
}

func lastDescribingIndex(rounds []Round, playerID string) int {
	for i := len(rounds) - 1; i >= 0; i-- {
		if rounds[i].DescriberID == playerID {
			return i
		}
	}
	return -1
}

// gameComplete reports whether every current player has described at least
// turnsPerPlayer rounds.
func gameComplete(players []Player, rounds []Round, turnsPerPlayer int) bool {
	if len(players) == 0 {
		return false
	}
	counts := cluesGiven(players, rounds)
	for _, p := range players {
		if counts[p.ID] < turnsPerPlayer {
			return false
		}
	}
	return true
}
