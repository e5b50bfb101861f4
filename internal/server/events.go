package server

// Outbound push event types form a closed set; clients reject anything else.
const (
	eventMetaUpdated      = "metaUpdated"
	eventPlayersUpdated   = "playersUpdated"
	eventGameplayUpdated  = "gameplayUpdated"
	eventGameStateUpdated = "gameStateUpdated"
	eventError            = "error"
	eventKicked           = "kicked"
)

func evMetaUpdated(sess *Session) map[string]any {
	return map[string]any{
		"type": eventMetaUpdated,
		"meta": metaPayload(sess),
	}
}

func evPlayersUpdated(sess *Session) map[string]any {
	return map[string]any{
		"type":    eventPlayersUpdated,
		"players": playersPayload(sess),
		"host_id": hostID(sess),
	}
}

func evGameplayUpdated(sess *Session, viewerID string) map[string]any {
	return map[string]any{
		"type":  eventGameplayUpdated,
		"meta":  metaPayload(sess),
		"round": roundPayload(sess, viewerID),
	}
}

func evGameStateUpdated(sess *Session, viewerID string) map[string]any {
	return map[string]any{
		"type": eventGameStateUpdated,
		"game": snapshotFor(sess, viewerID),
	}
}

func evError(err error) map[string]any {
	return map[string]any{
		"type":    eventError,
		"code":    errorCode(err),
		"message": err.Error(),
	}
}

func evKicked(message string) map[string]any {
	return map[string]any{
		"type":    eventKicked,
		"message": message,
	}
}

// EventPayload is the journal row payload written alongside state changes.
type EventPayload struct {
	GameID     string `json:"game_id,omitempty"`
	RoomCode   string `json:"room_code,omitempty"`
	PlayerID   string `json:"player_id,omitempty"`
	PlayerName string `json:"player,omitempty"`
	RoundIndex int    `json:"round_index,omitempty"`
	Phase      string `json:"phase,omitempty"`
	Status     string `json:"status,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Score      int    `json:"score,omitempty"`
}
