package server

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"hueclue/internal/db"
)

// The journal is best-effort durable history for collaborators (analytics,
// postmortems); live gameplay never reads it. Every writer tolerates a nil
// db so the server can run fully in memory.

func (s *Server) persistGame(sess *Session) error {
	if s.db == nil {
		return nil
	}
	record := db.Game{
		RoomCode: sess.Code,
		Status:   sess.Status,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	sess.DBID = record.ID
	s.cacheGameDBID(sess.Code, record.ID)
	return s.persistEvent(sess, "game_created", EventPayload{RoomCode: sess.Code})
}

func (s *Server) persistEvent(sess *Session, eventType string, payload EventPayload) error {
	if s.db == nil {
		return nil
	}
	if sess.DBID == 0 {
		if err := s.ensureGameDBID(sess); err != nil || sess.DBID == 0 {
			return err
		}
	}
	payload.GameID = sess.Code
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := db.Event{
		GameID:  sess.DBID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	}
	if err := s.db.Create(&event).Error; err != nil {
		return err
	}
	return s.db.Model(&db.Game{}).Where("id = ?", sess.DBID).Update("status", sess.Status).Error
}

func (s *Server) ensureGameDBID(sess *Session) error {
	if s.db == nil || sess.DBID != 0 {
		return nil
	}
	var record db.Game
	if err := s.db.Where("room_code = ?", sess.Code).First(&record).Error; err != nil {
		return nil
	}
	sess.DBID = record.ID
	s.cacheGameDBID(sess.Code, record.ID)
	return nil
}

// cacheGameDBID records the database id on the live session. Callers only
// hold detached copies, so the id has to go through a mutator to stick.
func (s *Server) cacheGameDBID(code string, id uint) {
	_, _ = s.store.Update(code, func(live *Session) error {
		live.DBID = id
		return nil
	})
}
