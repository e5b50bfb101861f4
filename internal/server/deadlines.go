package server

import "time"

// reconcileDeadlines fast-forwards a round whose deadline has passed. It runs
// at the top of every read and mutating call instead of a background timer: a
// session nobody touches can sit past its deadline until the next action or
// poll catches it up. Returns true when state changed.
//
// Overdue describing: a non-blank draft description is promoted to the
// committed clue and guessing starts; a blank draft settles the round as
// "no clue". Overdue guessing: guessers without a submission contribute their
// last draft color if they have one, then the round is scored exactly like
// the normal completion path.
func reconcileDeadlines(sess *Session, now time.Time) bool {
	round := currentRound(sess)
	if round == nil || sess.Status != statusPlaying {
		return false
	}
	switch round.Phase {
	case phaseDescribing:
		if !now.After(round.DescriptionDeadline) {
			return false
		}
		draft := ""
		if describer, ok := findPlayer(sess, round.DescriberID); ok {
			draft = normalizeText(describer.DraftDescription)
		}
		if draft == "" {
			noClueScores(sess, round)
			return true
		}
		round.Description = draft
		round.Described = true
		round.Phase = phaseGuessing
		round.GuessingDeadline = now.Add(time.Duration(sess.Config.GuessingSeconds) * time.Second)
		return true
	case phaseGuessing:
		if !now.After(round.GuessingDeadline) {
			return false
		}
		for i := range sess.Players {
			p := &sess.Players[i]
			if p.ID == round.DescriberID {
				continue
			}
			if _, submitted := round.Submissions[p.ID]; submitted {
				continue
			}
			if p.DraftColor != nil {
				round.Submissions[p.ID] = *p.DraftColor
			}
		}
		scoreRound(round)
		return true
	default:
		return false
	}
}
