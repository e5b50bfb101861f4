package server

import (
	"math"
	"math/rand"
	"time"

	"hueclue/internal/color"
)

func newRound(sess *Session, describerID string, now time.Time) Round {
	return Round{
		Target:              randomTarget(),
		DescriberID:         describerID,
		Phase:               phaseDescribing,
		Submissions:         make(map[string]color.HSL),
		StartedAt:           now,
		DescriptionDeadline: now.Add(time.Duration(sess.Config.DescriptionSeconds) * time.Second),
	}
}

func randomTarget() color.HSL {
	return color.HSL{
		H: rand.Float64() * 360,
		S: rand.Float64() * 100,
		L: rand.Float64() * 100,
	}
}

// submissionsComplete is true once every guesser has a submission. Guessers
// are all current players except the describer.
func submissionsComplete(sess *Session, round *Round) bool {
	return len(round.Submissions) >= len(sess.Players)-1
}

// scoreRound rates every submission against the target, derives the
// describer's score as the rounded mean of the guesser scores, and moves the
// round to reveal. With zero guessers the describer scores 0.
func scoreRound(round *Round) {
	scores := make(map[string]int, len(round.Submissions)+1)
	sum := 0
	for playerID, guess := range round.Submissions {
		score := color.Score(round.Target, guess)
		scores[playerID] = score
		sum += score
	}
	describerScore := 0
	if len(round.Submissions) > 0 {
		describerScore = int(math.Round(float64(sum) / float64(len(round.Submissions))))
	}
	scores[round.DescriberID] = describerScore
	round.Scores = scores
	round.Phase = phaseReveal
}

// noClueScores settles a round whose describer gave no clue: the describer
// scores 0 and every other player scores 100.
func noClueScores(sess *Session, round *Round) {
	scores := make(map[string]int, len(sess.Players))
	for i := range sess.Players {
		if sess.Players[i].ID == round.DescriberID {
			scores[sess.Players[i].ID] = 0
		} else {
			scores[sess.Players[i].ID] = 100
		}
	}
	round.Scores = scores
	round.Phase = phaseReveal
}
