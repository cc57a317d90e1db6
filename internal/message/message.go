package message

import "time"

// Platform identifies the chat source of an event.
type Platform string

const (
	Twitch  Platform = "twitch"
	YouTube Platform = "youtube"
	Kick    Platform = "kick"
	TikTok  Platform = "tiktok"
)

// Event is one normalized chat message from any platform. ID is assigned
// by the message buffer at insertion time; adapters leave it empty because
// not every platform supplies a stable message ID.
type Event struct {
	Platform  Platform  `json:"platform"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id,omitempty"`
}
