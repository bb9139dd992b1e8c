package domain

// Command is the typed union of inbound client events. Each wire event
// maps to exactly one command type so the dispatcher can switch
// exhaustively instead of wiring a callback per event name.
type Command interface {
	CommandName() string
}

type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateBackground AppState = "background"
	AppStateInactive   AppState = "inactive"
)

type AuthenticateCommand struct {
	Token string `json:"token" validate:"required"`
}

func (AuthenticateCommand) CommandName() string { return "authenticate" }

type HeartbeatCommand struct{}

func (HeartbeatCommand) CommandName() string { return "heartbeat" }

type AppStateCommand struct {
	State AppState `json:"state" validate:"required,oneof=active background inactive"`
}

func (AppStateCommand) CommandName() string { return "app_state_change" }

type TypingStartCommand struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
}

func (TypingStartCommand) CommandName() string { return "typing:start" }

type TypingStopCommand struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
}

func (TypingStopCommand) CommandName() string { return "typing:stop" }

type SendMessageCommand struct {
	ConversationID string `json:"conversationId" validate:"required"`
	SenderID       string `json:"senderId" validate:"required"`
	Content        string `json:"content" validate:"required"`
}

func (SendMessageCommand) CommandName() string { return "message:send" }

type MarkReadCommand struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
}

func (MarkReadCommand) CommandName() string { return "message:read" }

type ConversationOpenedCommand struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
}

func (ConversationOpenedCommand) CommandName() string { return "conversation_opened" }
