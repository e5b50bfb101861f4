package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"hueclue/internal/color"
)

// submitColorFor posts a guess and returns the response status.
func submitColorFor(t *testing.T, ts *httptest.Server, gameID, playerID string, c color.HSL) int {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/color", map[string]any{
		"player_id": playerID,
		"color":     c,
	})
	return resp.StatusCode
}

func submitDescriptionFor(t *testing.T, ts *httptest.Server, gameID, playerID, text string) int {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/description", map[string]any{
		"player_id": playerID,
		"text":      text,
	})
	return resp.StatusCode
}

// playRound drives the current round to reveal: the describer commits a clue
// and every guesser submits a color.
func playRound(t *testing.T, ts *httptest.Server, gameID string, playerIDs []string) {
	t.Helper()
	describer := currentDescriber(t, ts, gameID)
	if status := submitDescriptionFor(t, ts, gameID, describer, "somewhere warm"); status != http.StatusOK {
		t.Fatalf("submit description: status %d", status)
	}
	for _, id := range playerIDs {
		if id == describer {
			continue
		}
		if status := submitColorFor(t, ts, gameID, id, color.HSL{H: 30, S: 50, L: 50}); status != http.StatusOK {
			t.Fatalf("submit color for %s: status %d", id, status)
		}
	}
	snapshot := fetchSnapshot(t, ts, gameID, "")
	round := snapshot["round"].(map[string]any)
	if round["phase"] != phaseReveal {
		t.Fatalf("phase = %v, want reveal", round["phase"])
	}
}

func TestFullRound(t *testing.T) {
	ts := newTestServer(t)

	gameID, hostID := createGame(t, ts, "Ada")
	graceID := joinPlayer(t, ts, gameID, "Grace")
	edsgerID := joinPlayer(t, ts, gameID, "Edsger")
	all := []string{hostID, graceID, edsgerID}
	startRound(t, ts, gameID, hostID)

	describer := currentDescriber(t, ts, gameID)

	// The hidden target is only in the describer's view.
	describerView := fetchSnapshot(t, ts, gameID, describer)
	if _, ok := describerView["round"].(map[string]any)["target"]; !ok {
		t.Fatal("describer cannot see the target")
	}
	for _, id := range all {
		if id == describer {
			continue
		}
		view := fetchSnapshot(t, ts, gameID, id)
		if _, ok := view["round"].(map[string]any)["target"]; ok {
			t.Fatal("guesser can see the hidden target")
		}
	}

	// Guessing before the clue is committed is a stale-phase conflict.
	var guessers []string
	for _, id := range all {
		if id != describer {
			guessers = append(guessers, id)
		}
	}
	if status := submitColorFor(t, ts, gameID, guessers[0], color.HSL{H: 30, S: 50, L: 50}); status != http.StatusConflict {
		t.Fatalf("color during describing: status %d, want %d", status, http.StatusConflict)
	}
	// Only the describer can commit the clue.
	if status := submitDescriptionFor(t, ts, gameID, guessers[0], "my clue"); status != http.StatusConflict {
		t.Fatalf("description by guesser: status %d, want %d", status, http.StatusConflict)
	}

	if status := submitDescriptionFor(t, ts, gameID, describer, "a ripe mango"); status != http.StatusOK {
		t.Fatalf("submit description: status %d", status)
	}
	// The describer cannot also guess.
	if status := submitColorFor(t, ts, gameID, describer, color.HSL{H: 30, S: 50, L: 50}); status != http.StatusConflict {
		t.Fatalf("describer guessing: status %d, want %d", status, http.StatusConflict)
	}

	if status := submitColorFor(t, ts, gameID, guessers[0], color.HSL{H: 40, S: 60, L: 50}); status != http.StatusOK {
		t.Fatalf("first guess: status %d", status)
	}
	// Duplicate submission is rejected, not overwritten.
	if status := submitColorFor(t, ts, gameID, guessers[0], color.HSL{H: 200, S: 60, L: 50}); status != http.StatusConflict {
		t.Fatalf("duplicate guess: status %d, want %d", status, http.StatusConflict)
	}

	snapshot := fetchSnapshot(t, ts, gameID, "")
	if phase := snapshot["round"].(map[string]any)["phase"]; phase != phaseGuessing {
		t.Fatalf("phase = %v, want guessing with one guess outstanding", phase)
	}

	if status := submitColorFor(t, ts, gameID, guessers[1], color.HSL{H: 40, S: 60, L: 50}); status != http.StatusOK {
		t.Fatalf("second guess: status %d", status)
	}

	snapshot = fetchSnapshot(t, ts, gameID, guessers[0])
	round := snapshot["round"].(map[string]any)
	if round["phase"] != phaseReveal {
		t.Fatalf("phase = %v, want reveal", round["phase"])
	}
	scores := round["scores"].(map[string]any)
	if len(scores) != 3 {
		t.Fatalf("scores cover %d players, want 3", len(scores))
	}
	submissions := round["submissions"].(map[string]any)
	if len(submissions) != 2 {
		t.Fatalf("submissions = %d, want 2", len(submissions))
	}
	if _, ok := submissions[describer]; ok {
		t.Fatal("describer appears in submissions")
	}
	if _, ok := round["target"]; !ok {
		t.Fatal("target hidden after reveal")
	}
}

func TestConcurrentDuplicateSubmitColor(t *testing.T) {
	ts := newTestServer(t)

	gameID, hostID := createGame(t, ts, "Ada")
	graceID := joinPlayer(t, ts, gameID, "Grace")
	joinPlayer(t, ts, gameID, "Edsger")
	startRound(t, ts, gameID, hostID)

	describer := currentDescriber(t, ts, gameID)
	if status := submitDescriptionFor(t, ts, gameID, describer, "clue"); status != http.StatusOK {
		t.Fatalf("submit description: status %d", status)
	}
	guesser := graceID
	if guesser == describer {
		guesser = hostID
	}

	payload, err := json.Marshal(map[string]any{
		"player_id": guesser,
		"color":     color.HSL{H: 120, S: 50, L: 50},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	const attempts = 8
	statuses := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(ts.URL+"/api/games/"+gameID+"/color", "application/json", bytes.NewReader(payload))
			if err != nil {
				statuses <- 0
				return
			}
			_ = resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	committed, conflicts := 0, 0
	for status := range statuses {
		switch status {
		case http.StatusOK:
			committed++
		case http.StatusConflict:
			conflicts++
		default:
			t.Fatalf("unexpected status %d", status)
		}
	}
	if committed != 1 {
		t.Fatalf("%d submissions committed, want exactly 1", committed)
	}
	if conflicts != attempts-1 {
		t.Fatalf("%d conflicts, want %d", conflicts, attempts-1)
	}

	snapshot := fetchSnapshot(t, ts, gameID, "")
	submitted := snapshot["round"].(map[string]any)["submitted"].([]any)
	if len(submitted) != 1 || submitted[0] != guesser {
		t.Fatalf("submitted = %v, want exactly [%s]", submitted, guesser)
	}
}

// Distinct guessers submitting at once while other clients poll the snapshot
// is normal load, not a corner case. Run with -race.
func TestConcurrentGuessersWithPollers(t *testing.T) {
	ts := newTestServer(t)

	gameID, hostID := createGame(t, ts, "Ada")
	names := []string{"Grace", "Edsger", "Barbara", "Donald", "Tony"}
	ids := []string{hostID}
	for _, name := range names {
		ids = append(ids, joinPlayer(t, ts, gameID, name))
	}
	startRound(t, ts, gameID, hostID)

	describer := currentDescriber(t, ts, gameID)
	if status := submitDescriptionFor(t, ts, gameID, describer, "a foggy morning"); status != http.StatusOK {
		t.Fatalf("submit description: status %d", status)
	}
	var guessers []string
	for _, id := range ids {
		if id != describer {
			guessers = append(guessers, id)
		}
	}

	statuses := make(chan int, len(guessers))
	var wg sync.WaitGroup
	for i, id := range guessers {
		payload, err := json.Marshal(map[string]any{
			"player_id": id,
			"color":     color.HSL{H: float64(i * 40), S: 60, L: 50},
		})
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(ts.URL+"/api/games/"+gameID+"/color", "application/json", bytes.NewReader(payload))
			if err != nil {
				statuses <- 0
				return
			}
			_ = resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				resp, err := http.Get(ts.URL + "/api/games/" + gameID)
				if err != nil {
					return
				}
				_ = resp.Body.Close()
			}
		}()
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		if status != http.StatusOK {
			t.Fatalf("guess status = %d, want %d", status, http.StatusOK)
		}
	}

	snapshot := fetchSnapshot(t, ts, gameID, "")
	round := snapshot["round"].(map[string]any)
	if round["phase"] != phaseReveal {
		t.Fatalf("phase = %v, want reveal after every guesser submitted", round["phase"])
	}
	if scores := round["scores"].(map[string]any); len(scores) != len(ids) {
		t.Fatalf("scores cover %d players, want %d", len(scores), len(ids))
	}
}

func TestBlankDescriptionShortCircuits(t *testing.T) {
	ts := newTestServer(t)

	gameID, hostID := createGame(t, ts, "Ada")
	graceID := joinPlayer(t, ts, gameID, "Grace")
	startRound(t, ts, gameID, hostID)

	describer := currentDescriber(t, ts, gameID)
	if status := submitDescriptionFor(t, ts, gameID, describer, "   "); status != http.StatusOK {
		t.Fatalf("blank description: status %d", status)
	}

	snapshot := fetchSnapshot(t, ts, gameID, "")
	round := snapshot["round"].(map[string]any)
	if round["phase"] != phaseReveal {
		t.Fatalf("phase = %v, want reveal", round["phase"])
	}
	scores := round["scores"].(map[string]any)
	if scores[describer].(float64) != 0 {
		t.Fatalf("describer score = %v, want 0", scores[describer])
	}
	other := graceID
	if describer == graceID {
		other = hostID
	}
	if scores[other].(float64) != 100 {
		t.Fatalf("guesser score = %v, want 100", scores[other])
	}
}

func TestFinaliseAndReset(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/api/games", map[string]any{
		"name":   "Ada",
		"config": map[string]any{"turns_per_player": 1},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	gameID := body["game_id"].(string)
	hostID := body["player_id"].(string)
	graceID := joinPlayer(t, ts, gameID, "Grace")
	players := []string{hostID, graceID}

	startRound(t, ts, gameID, hostID)
	playRound(t, ts, gameID, players)

	// One player still has a turn left.
	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/finalise", map[string]string{"player_id": hostID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("early finalise: status %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	startRound(t, ts, gameID, hostID)
	playRound(t, ts, gameID, players)

	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/finalise", map[string]string{"player_id": graceID})
	if graceID != hostID && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("finalise by guest: status %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/finalise", map[string]string{"player_id": hostID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalise: status %d", resp.StatusCode)
	}
	snapshot := fetchSnapshot(t, ts, gameID, "")
	if phase := snapshot["round"].(map[string]any)["phase"]; phase != phaseEndgame {
		t.Fatalf("phase = %v, want endgame", phase)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/reset", map[string]string{"player_id": hostID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: status %d", resp.StatusCode)
	}
	snapshot = fetchSnapshot(t, ts, gameID, "")
	meta := snapshot["meta"].(map[string]any)
	if meta["status"] != statusWaiting {
		t.Fatalf("status = %v, want waiting after reset", meta["status"])
	}
	if meta["current_round"] != nil {
		t.Fatalf("current_round = %v, want null after reset", meta["current_round"])
	}
	if snapshot["round"] != nil {
		t.Fatal("round payload present after reset")
	}
}

func TestKickPlayer(t *testing.T) {
	ts := newTestServer(t)

	gameID, hostID := createGame(t, ts, "Ada")
	graceID := joinPlayer(t, ts, gameID, "Grace")
	edsgerID := joinPlayer(t, ts, gameID, "Edsger")

	// A guest cannot remove another player.
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/kick", map[string]string{
		"player_id": graceID,
		"target_id": edsgerID,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("guest kick: status %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	// The host can.
	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/kick", map[string]string{
		"player_id": hostID,
		"target_id": edsgerID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("host kick: status %d", resp.StatusCode)
	}

	// A player can always remove themself.
	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/kick", map[string]string{
		"player_id": graceID,
		"target_id": graceID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("self kick: status %d", resp.StatusCode)
	}

	snapshot := fetchSnapshot(t, ts, gameID, "")
	players := snapshot["players"].([]any)
	if len(players) != 1 {
		t.Fatalf("players = %d, want 1", len(players))
	}
}

func TestHostTransfersOnLeave(t *testing.T) {
	ts := newTestServer(t)

	gameID, hostID := createGame(t, ts, "Ada")
	graceID := joinPlayer(t, ts, gameID, "Grace")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/kick", map[string]string{
		"player_id": hostID,
		"target_id": hostID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("host leave: status %d", resp.StatusCode)
	}
	snapshot := fetchSnapshot(t, ts, gameID, "")
	if snapshot["host_id"] != graceID {
		t.Fatalf("host_id = %v, want %s", snapshot["host_id"], graceID)
	}
}

func TestKickDuringGuessingCompletesRound(t *testing.T) {
	ts := newTestServer(t)

	gameID, hostID := createGame(t, ts, "Ada")
	graceID := joinPlayer(t, ts, gameID, "Grace")
	edsgerID := joinPlayer(t, ts, gameID, "Edsger")
	all := []string{hostID, graceID, edsgerID}
	startRound(t, ts, gameID, hostID)

	describer := currentDescriber(t, ts, gameID)
	if status := submitDescriptionFor(t, ts, gameID, describer, "clue"); status != http.StatusOK {
		t.Fatalf("submit description: status %d", status)
	}
	var guessers []string
	for _, id := range all {
		if id != describer {
			guessers = append(guessers, id)
		}
	}
	if status := submitColorFor(t, ts, gameID, guessers[0], color.HSL{H: 10, S: 10, L: 10}); status != http.StatusOK {
		t.Fatalf("guess: status %d", status)
	}

	// The second guesser leaves; the remaining submission now completes the
	// set and the round reveals.
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/kick", map[string]string{
		"player_id": guessers[1],
		"target_id": guessers[1],
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leave: status %d", resp.StatusCode)
	}
	snapshot := fetchSnapshot(t, ts, gameID, "")
	round := snapshot["round"].(map[string]any)
	if round["phase"] != phaseReveal {
		t.Fatalf("phase = %v, want reveal", round["phase"])
	}
	if _, ok := round["scores"].(map[string]any)[guessers[1]]; ok {
		t.Fatal("removed player was scored")
	}
}

func TestCloseRoom(t *testing.T) {
	ts := newTestServer(t)

	gameID, hostID := createGame(t, ts, "Ada")
	graceID := joinPlayer(t, ts, gameID, "Grace")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/close", map[string]string{"player_id": graceID})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("guest close: status %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/close", map[string]string{"player_id": hostID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close: status %d", resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodGet, "/api/games/"+gameID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after close: status %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestDraftColorVisibility(t *testing.T) {
	ts := newTestServer(t)

	gameID, hostID := createGame(t, ts, "Ada")
	graceID := joinPlayer(t, ts, gameID, "Grace")
	startRound(t, ts, gameID, hostID)

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/draft-color", map[string]any{
		"player_id": graceID,
		"color":     color.HSL{H: 90, S: 40, L: 60},
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("draft color: status %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	// Only the owner sees their own draft.
	own := fetchSnapshot(t, ts, gameID, graceID)
	if _, ok := own["round"].(map[string]any)["draft_color"]; !ok {
		t.Fatal("owner cannot see their draft color")
	}
	other := fetchSnapshot(t, ts, gameID, hostID)
	if _, ok := other["round"].(map[string]any)["draft_color"]; ok {
		t.Fatal("another player can see the draft color")
	}
}
