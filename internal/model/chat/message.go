package chat

import "time"

// Sender identifies which side of the conversation produced a message.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message persists individual turns. The transcript is append-only;
// messages are never edited or removed once stored.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
