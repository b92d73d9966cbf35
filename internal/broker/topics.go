package broker

import "github.com/google/uuid"

// Well-known topics.
const (
	TopicQueue      = "queue"
	TopicAdminStats = "admin-stats"
	TopicBroadcast  = "broadcast"
)

// SessionTopic names the per-session fan-out channel.
func SessionTopic(id uuid.UUID) string {
	return "session:" + id.String()
}

// AgentTopic names an agent's private channel.
func AgentTopic(id uuid.UUID) string {
	return "agent:" + id.String()
}
