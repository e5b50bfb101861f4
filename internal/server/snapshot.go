package server

// Payload builders for HTTP responses and websocket pushes. Snapshots are
// viewer-aware: the hidden target and other players' draft colors stay
// private until the reveal.

func snapshotFor(sess *Session, viewerID string) map[string]any {
	return map[string]any{
		"game_id": sess.Code,
		"config":  sess.Config,
		"meta":    metaPayload(sess),
		"host_id": hostID(sess),
		"players": playersPayload(sess),
		"round":   roundPayload(sess, viewerID),
	}
}

func metaPayload(sess *Session) map[string]any {
	return map[string]any{
		"status":        sess.Status,
		"current_round": currentRoundIndex(sess),
	}
}

func playersPayload(sess *Session) []map[string]any {
	players := make([]map[string]any, 0, len(sess.Players))
	for i := range sess.Players {
		p := &sess.Players[i]
		players = append(players, map[string]any{
			"player_id":   p.ID,
			"name":        p.Name,
			"joined_at":   p.JoinedAt,
			"total_score": totalScore(sess, p.ID),
		})
	}
	return players
}

func roundPayload(sess *Session, viewerID string) map[string]any {
	round := currentRound(sess)
	if round == nil || sess.Status != statusPlaying {
		return nil
	}
	revealed := round.Phase == phaseReveal || round.Phase == phaseEndgame
	submitted := make([]string, 0, len(round.Submissions))
	for playerID := range round.Submissions {
		submitted = append(submitted, playerID)
	}
	payload := map[string]any{
		"index":                len(sess.Rounds) - 1,
		"phase":                round.Phase,
		"describer_id":         round.DescriberID,
		"started_at":           round.StartedAt,
		"description_deadline": round.DescriptionDeadline,
		"submitted":            submitted,
	}
	if !round.GuessingDeadline.IsZero() {
		payload["guessing_deadline"] = round.GuessingDeadline
	}
	if round.Described {
		payload["description"] = round.Description
	} else if describer, ok := findPlayer(sess, round.DescriberID); ok {
		// Live clue preview while the describer is still typing.
		payload["draft_description"] = describer.DraftDescription
	}
	if revealed || viewerID == round.DescriberID {
		payload["target"] = round.Target
	}
	if revealed {
		payload["submissions"] = round.Submissions
		payload["scores"] = round.Scores
	}
	if viewer, ok := findPlayer(sess, viewerID); ok && viewer.DraftColor != nil {
		payload["draft_color"] = viewer.DraftColor
	}
	return payload
}
