package errors

import "fmt"

var (
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrAuthentication       = fmt.Errorf("authentication failed")
	ErrUnknownConnection    = fmt.Errorf("unknown connection")
	ErrAccessDenied         = fmt.Errorf("not a participant of this conversation")
	ErrUserNotFound         = fmt.Errorf("user not found")
	ErrUserExists           = fmt.Errorf("user already exists")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrConversationExists   = fmt.Errorf("conversation already exists for this pair")
	ErrEmptyContent         = fmt.Errorf("message content is empty")
)
