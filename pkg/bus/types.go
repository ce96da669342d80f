package bus

// ChatType distinguishes direct chats from group chats; several commands
// (/group_fortune, /ranking, /pk) only make sense in groups.
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

// InboundMessage is one message received from a channel.
type InboundMessage struct {
	Channel    string
	SenderID   string
	SenderName string
	ChatID     string
	ChatType   string
	Content    string
	ReplyToID  string
	Metadata   map[string]string
}

// OutboundMessage is one reply the bot wants a channel to deliver.
type OutboundMessage struct {
	Channel   string
	ChatID    string
	Content   string
	ReplyToID string
}
