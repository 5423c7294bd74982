package uid

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateRoomID returns a short random hex code players can share.
func GenerateRoomID() string {
	bytes := make([]byte, 4)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GenerateConnectionID identifies one websocket connection for its lifetime.
func GenerateConnectionID() string {
	return uuid.NewString()
}

func GenerateBotID() string {
	return "bot-" + uuid.NewString()
}

// GenerateGuestID is the subject of a guest ticket.
func GenerateGuestID() string {
	return "guest-" + uuid.NewString()
}
