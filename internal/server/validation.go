package server

import (
	"fmt"
	"strings"

	"hueclue/internal/color"
)

const (
	maxNameLength        = 20
	maxDescriptionLength = 140

	minPlayers        = 2
	maxPlayersLimit   = 10
	minTimerSeconds   = 10
	maxTimerSeconds   = 24 * 60 * 60
	minTurnsPerPlayer = 1
	maxTurnsPerPlayer = 5
)

func validateName(name string) (string, error) {
	trimmed := normalizeText(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: name must be %d characters or fewer", ErrValidation, maxNameLength)
	}
	return trimmed, nil
}

// validateDescription permits the empty string: a blank clue is the sentinel
// for "no clue" and short-circuits the round to reveal.
func validateDescription(text string) (string, error) {
	trimmed := normalizeText(text)
	if len(trimmed) > maxDescriptionLength {
		return "", fmt.Errorf("%w: description must be %d characters or fewer", ErrValidation, maxDescriptionLength)
	}
	return trimmed, nil
}

func validateColor(c color.HSL) error {
	if !c.Valid() {
		return fmt.Errorf("%w: color out of range", ErrValidation)
	}
	return nil
}

// clampConfig folds a requested config into policy ranges, falling back to
// defaults for unset fields.
func clampConfig(req GameConfig, defaults GameConfig) GameConfig {
	cfg := defaults
	if req.MaxPlayers != 0 {
		cfg.MaxPlayers = clampInt(req.MaxPlayers, minPlayers, maxPlayersLimit)
	}
	if req.DescriptionSeconds != 0 {
		cfg.DescriptionSeconds = clampInt(req.DescriptionSeconds, minTimerSeconds, maxTimerSeconds)
	}
	if req.GuessingSeconds != 0 {
		cfg.GuessingSeconds = clampInt(req.GuessingSeconds, minTimerSeconds, maxTimerSeconds)
	}
	if req.TurnsPerPlayer != 0 {
		cfg.TurnsPerPlayer = clampInt(req.TurnsPerPlayer, minTurnsPerPlayer, maxTurnsPerPlayer)
	}
	return cfg
}

func clampInt(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}
