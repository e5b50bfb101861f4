// Package daily implements the once-per-day challenge: every user may submit
// one color per UTC day, scored against the community average accumulated
// from all earlier submissions.
package daily

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hueclue/internal/color"
	"hueclue/internal/db"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already submitted")
	ErrExpired    = errors.New("challenge expired")
	ErrValidation = errors.New("invalid request")
)

const challengeDateLayout = "2006-01-02"

// prompts rotate by day; the list is short on purpose, repetition across
// months is fine for a daily gimmick.
var prompts = []string{
	"the color of a perfect summer evening",
	"the color of your first bicycle",
	"the color of fresh coffee",
	"the color of a thunderstorm",
	"the color of nostalgia",
	"the color of an unripe banana",
	"the color of deep sleep",
	"the color of a brand new eraser",
	"the color of the open sea",
	"the color of a quiet library",
	"the color of static on an old TV",
	"the color of candlelight",
	"the color of a glacier",
	"the color of burnt toast",
}

type Challenge struct {
	ID               string
	Prompt           string
	ValidFrom        time.Time
	ValidUntil       time.Time
	TotalSubmissions int
	HStats           ComponentStats
	SStats           ComponentStats
	LStats           ComponentStats
}

// Average is the running community color: the per-component means.
func (c *Challenge) Average() color.HSL {
	return color.HSL{H: c.HStats.Mean, S: c.SStats.Mean, L: c.LStats.Mean}
}

type Submission struct {
	ChallengeID         string
	UserID              string
	UserName            string
	Fingerprint         string
	Color               color.HSL
	Score               int
	DistanceFromAverage float64
	AverageAtSubmission color.HSL
	SubmittedAt         time.Time
}

// Engine keeps the active challenges in memory and mirrors them to the
// database when one is configured. The engine mutex is the ordering
// authority: a submission is scored against the pre-submission average, then
// folded into the running statistics, and no other submission can interleave.
type Engine struct {
	mu          sync.Mutex
	db          *gorm.DB
	now         func() time.Time
	challenges  map[string]*Challenge
	submissions map[string][]*Submission
}

func NewEngine(conn *gorm.DB) *Engine {
	return &Engine{
		db:          conn,
		now:         func() time.Time { return time.Now().UTC() },
		challenges:  make(map[string]*Challenge),
		submissions: make(map[string][]*Submission),
	}
}

// Current returns today's challenge, creating it idempotently on first
// request, plus the caller's submission if they already played.
func (e *Engine) Current(userID string) (*Challenge, *Submission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	challenge, err := e.ensureChallengeLocked(e.todayID())
	if err != nil {
		return nil, nil, err
	}
	return challenge, e.findSubmissionLocked(challenge.ID, userID), nil
}

// Submit records one color for (challengeId, userId). A duplicate attempt is
// rejected and must not touch the running statistics; the new submission is
// scored before the statistics absorb it, so it never influences its own
// score. The first two submissions of a day always score 100: the population
// is too small to judge closeness.
func (e *Engine) Submit(challengeID, userID, userName, fingerprint string, c color.HSL) (*Submission, int, error) {
	if !c.Valid() {
		return nil, 0, fmt.Errorf("%w: color out of range", ErrValidation)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	challenge, err := e.loadChallengeLocked(challengeID)
	if err != nil {
		return nil, 0, err
	}
	now := e.now()
	if now.Before(challenge.ValidFrom) || !now.Before(challenge.ValidUntil) {
		return nil, 0, fmt.Errorf("%w: challenge %s", ErrExpired, challengeID)
	}
	if e.findSubmissionLocked(challengeID, userID) != nil {
		return nil, 0, fmt.Errorf("%w: user %s", ErrConflict, userID)
	}

	prior := challenge.TotalSubmissions
	average := challenge.Average()
	if prior == 0 {
		average = c
	}
	score := 100
	if prior >= 2 {
		score = color.Score(c, average)
	}
	sub := &Submission{
		ChallengeID:         challengeID,
		UserID:              userID,
		UserName:            userName,
		Fingerprint:         fingerprint,
		Color:               c,
		Score:               score,
		DistanceFromAverage: color.Distance(c, average),
		AverageAtSubmission: average,
		SubmittedAt:         now,
	}
	if err := e.persistSubmission(challenge, sub); err != nil {
		return nil, 0, err
	}

	challenge.TotalSubmissions++
	challenge.HStats.Add(c.H, challenge.TotalSubmissions)
	challenge.SStats.Add(c.S, challenge.TotalSubmissions)
	challenge.LStats.Add(c.L, challenge.TotalSubmissions)
	e.submissions[challengeID] = append(e.submissions[challengeID], sub)
	e.persistChallengeStats(challenge)

	log.Printf("daily submission challenge_id=%s user_id=%s score=%d", challengeID, userID, score)
	return sub, e.rankLocked(challengeID, sub), nil
}

// rankLocked is 1 + the number of submissions with a strictly higher score.
// The same comparison backs the leaderboard, so ranks agree everywhere.
func (e *Engine) rankLocked(challengeID string, sub *Submission) int {
	rank := 1
	for _, other := range e.submissions[challengeID] {
		if other.Score > sub.Score {
			rank++
		}
	}
	return rank
}

type LeaderboardEntry struct {
	Rank        int
	UserID      string
	UserName    string
	Color       color.HSL
	Score       int
	SubmittedAt time.Time
}

// Leaderboard lists a challenge's submissions ordered by score, earliest
// submission first among equals. Tied scores share the better rank.
func (e *Engine) Leaderboard(challengeID string) (*Challenge, []LeaderboardEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	challenge, err := e.loadChallengeLocked(challengeID)
	if err != nil {
		return nil, nil, err
	}
	subs := append([]*Submission(nil), e.submissions[challengeID]...)
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Score != subs[j].Score {
			return subs[i].Score > subs[j].Score
		}
		return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
	})
	entries := make([]LeaderboardEntry, 0, len(subs))
	for _, sub := range subs {
		entries = append(entries, LeaderboardEntry{
			Rank:        e.rankLocked(challengeID, sub),
			UserID:      sub.UserID,
			UserName:    sub.UserName,
			Color:       sub.Color,
			Score:       sub.Score,
			SubmittedAt: sub.SubmittedAt,
		})
	}
	return challenge, entries, nil
}

// History returns a user's submissions across all loaded challenges, newest
// day first, with each day's rank.
func (e *Engine) History(userID string) ([]LeaderboardEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		if err := e.loadUserChallengesLocked(userID); err != nil {
			return nil, err
		}
	}
	entries := make([]LeaderboardEntry, 0)
	ids := make([]string, 0, len(e.challenges))
	for id := range e.challenges {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	for _, id := range ids {
		if sub := e.findSubmissionLocked(id, userID); sub != nil {
			entries = append(entries, LeaderboardEntry{
				Rank:        e.rankLocked(id, sub),
				UserID:      sub.UserID,
				UserName:    sub.UserName,
				Color:       sub.Color,
				Score:       sub.Score,
				SubmittedAt: sub.SubmittedAt,
			})
		}
	}
	return entries, nil
}

func (e *Engine) Stats(challengeID string) (*Challenge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadChallengeLocked(challengeID)
}

func (e *Engine) todayID() string {
	return e.now().Format(challengeDateLayout)
}

func (e *Engine) findSubmissionLocked(challengeID, userID string) *Submission {
	for _, sub := range e.submissions[challengeID] {
		if sub.UserID == userID {
			return sub
		}
	}
	return nil
}

// ensureChallengeLocked creates the challenge for the given day if it does
// not exist yet. Creation is idempotent across processes: the insert ignores
// conflicts and the row is re-read afterwards.
func (e *Engine) ensureChallengeLocked(id string) (*Challenge, error) {
	if challenge, ok := e.challenges[id]; ok {
		return challenge, nil
	}
	if e.db != nil {
		if challenge, ok := e.hydrateChallengeLocked(id); ok {
			return challenge, nil
		}
	}
	day, err := time.Parse(challengeDateLayout, id)
	if err != nil {
		return nil, fmt.Errorf("%w: bad challenge id %q", ErrValidation, id)
	}
	challenge := &Challenge{
		ID:         id,
		Prompt:     promptForDay(day),
		ValidFrom:  day,
		ValidUntil: day.Add(24 * time.Hour),
	}
	if err := e.persistChallenge(challenge); err != nil {
		return nil, err
	}
	e.challenges[id] = challenge
	return challenge, nil
}

// loadChallengeLocked returns the in-memory challenge, hydrating it from the
// database after a restart. Today's challenge is created lazily.
func (e *Engine) loadChallengeLocked(id string) (*Challenge, error) {
	if challenge, ok := e.challenges[id]; ok {
		return challenge, nil
	}
	if e.db != nil {
		if challenge, ok := e.hydrateChallengeLocked(id); ok {
			return challenge, nil
		}
	}
	if id == e.todayID() {
		return e.ensureChallengeLocked(id)
	}
	return nil, fmt.Errorf("%w: challenge %s", ErrNotFound, id)
}

func promptForDay(day time.Time) string {
	index := day.YearDay() % len(prompts)
	return prompts[index]
}

func (e *Engine) hydrateChallengeLocked(id string) (*Challenge, bool) {
	var record db.Challenge
	if err := e.db.Where("id = ?", id).First(&record).Error; err != nil {
		return nil, false
	}
	challenge := &Challenge{
		ID:               record.ID,
		Prompt:           record.Prompt,
		ValidFrom:        record.ValidFrom,
		ValidUntil:       record.ValidUntil,
		TotalSubmissions: record.TotalSubmissions,
		HStats:           ComponentStats{Mean: record.HMean, M2: record.HM2},
		SStats:           ComponentStats{Mean: record.SMean, M2: record.SM2},
		LStats:           ComponentStats{Mean: record.LMean, M2: record.LM2},
	}
	var rows []db.Submission
	if err := e.db.Where("challenge_id = ?", id).Order("submitted_at asc").Find(&rows).Error; err != nil {
		return nil, false
	}
	subs := make([]*Submission, 0, len(rows))
	for i := range rows {
		sub := submissionFromRecord(&rows[i])
		subs = append(subs, sub)
	}
	e.challenges[id] = challenge
	e.submissions[id] = subs
	return challenge, true
}

func (e *Engine) loadUserChallengesLocked(userID string) error {
	var ids []string
	if err := e.db.Model(&db.Submission{}).Where("user_id = ?", userID).
		Distinct("challenge_id").Pluck("challenge_id", &ids).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := e.challenges[id]; !ok {
			e.hydrateChallengeLocked(id)
		}
	}
	return nil
}

func (e *Engine) persistChallenge(challenge *Challenge) error {
	if e.db == nil {
		return nil
	}
	record := db.Challenge{
		ID:         challenge.ID,
		Prompt:     challenge.Prompt,
		ValidFrom:  challenge.ValidFrom,
		ValidUntil: challenge.ValidUntil,
	}
	err := e.db.Create(&record).Error
	if err != nil && !isUniqueViolation(err) {
		return err
	}
	if err != nil {
		// Another process created it first; adopt that row.
		if hydrated, ok := e.hydrateChallengeLocked(challenge.ID); ok {
			*challenge = *hydrated
		}
	}
	return nil
}

func (e *Engine) persistSubmission(challenge *Challenge, sub *Submission) error {
	if e.db == nil {
		return nil
	}
	record := db.Submission{
		ChallengeID:         sub.ChallengeID,
		UserID:              sub.UserID,
		UserName:            sub.UserName,
		Fingerprint:         sub.Fingerprint,
		Color:               mustJSON(sub.Color),
		AverageAtSubmission: mustJSON(sub.AverageAtSubmission),
		Score:               sub.Score,
		DistanceFromAverage: sub.DistanceFromAverage,
		SubmittedAt:         sub.SubmittedAt,
	}
	if err := e.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", ErrConflict, sub.UserID)
		}
		return err
	}
	return nil
}

func (e *Engine) persistChallengeStats(challenge *Challenge) {
	if e.db == nil {
		return
	}
	updates := map[string]any{
		"total_submissions": challenge.TotalSubmissions,
		"h_mean":            challenge.HStats.Mean,
		"h_m2":              challenge.HStats.M2,
		"s_mean":            challenge.SStats.Mean,
		"s_m2":              challenge.SStats.M2,
		"l_mean":            challenge.LStats.Mean,
		"l_m2":              challenge.LStats.M2,
	}
	if err := e.db.Model(&db.Challenge{}).Where("id = ?", challenge.ID).Updates(updates).Error; err != nil {
		log.Printf("daily stats persist failed challenge_id=%s error=%v", challenge.ID, err)
	}
}

func submissionFromRecord(record *db.Submission) *Submission {
	sub := &Submission{
		ChallengeID:         record.ChallengeID,
		UserID:              record.UserID,
		UserName:            record.UserName,
		Fingerprint:         record.Fingerprint,
		Score:               record.Score,
		DistanceFromAverage: record.DistanceFromAverage,
		SubmittedAt:         record.SubmittedAt,
	}
	_ = json.Unmarshal(record.Color, &sub.Color)
	_ = json.Unmarshal(record.AverageAtSubmission, &sub.AverageAtSubmission)
	return sub
}

func mustJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
