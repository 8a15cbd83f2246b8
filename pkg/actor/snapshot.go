package actor

import "time"

// ActorSnapshot Actor 诊断快照
type ActorSnapshot struct {
	ActorID              string     `json:"actor_id"`
	IsPaused             bool       `json:"is_paused"`
	PendingMessagesCount int        `json:"pending_messages_count"`
	LastMessageAt        time.Time  `json:"last_message_at"`
	LastMessageReceived  string     `json:"last_message_received"` // 如 "5 seconds ago at 3:04PM"
	PausedAt             time.Time  `json:"paused_at"`
	LastError            error      `json:"-"`
	LastException        string     `json:"last_exception"`
	Stats                ActorStats `json:"stats"`
}

// DirectorSnapshot Director 诊断快照
type DirectorSnapshot struct {
	DirectorID          string          `json:"director_id"`
	ActorCount          int             `json:"actor_count"`
	TotalQueuedMessages int             `json:"total_queued_messages"`
	IsBusy              bool            `json:"is_busy"`
	LastActive          time.Time       `json:"last_active"`
	LastActiveText      string          `json:"last_active_text"`
	Actors              []ActorSnapshot `json:"actors"`
}

// Actor 按标识查找快照
func (s DirectorSnapshot) Actor(actorID string) (ActorSnapshot, bool) {
	for _, a := range s.Actors {
		if a.ActorID == actorID {
			return a, true
		}
	}
	return ActorSnapshot{}, false
}
