package server

import (
	"crypto/rand"
	"strings"
)

// Room codes are drawn from a vowel-free alphabet so a code can never spell
// an accidental word. The fixed length and alphabet are a contract: other
// services shard rooms by the final character of the code.
const (
	roomCodeAlphabet = "BCDFGHJKLMNPQRSTVWXZ2345678"
	roomCodeLength   = 4
)

func newRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("B", roomCodeLength)
	}
	for i := range buf {
		buf[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
	}
	return string(buf)
}

func normalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validRoomCode(code string) bool {
	if len(code) != roomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(roomCodeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
