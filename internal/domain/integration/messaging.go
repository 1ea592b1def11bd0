package integration

import "context"

// Member identifies a user in the chat app
type Member struct {
	Email string
	AppID string
}

// Attachment is a document linked from a chat message
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"download_url"`
	ContentType string `json:"content_type"`
}

// Flow starts an interactive message flow for a member
type Flow struct {
	Tag         string
	Flow        string
	PushMessage string
	Params      map[string]any
	Attachments []Attachment
}

// Chat is the messaging app of the platform
type Chat interface {
	// SendMessage sends a chat message and the same text by email
	SendMessage(ctx context.Context, to Member, subject, body string) error
	StartFlow(ctx context.Context, to Member, flow Flow) error
	PutUserData(ctx context.Context, to Member, data map[string]any) error
	AddRole(ctx context.Context, to Member, role string) error
	// NotifySupport posts a message to the support chat
	NotifySupport(ctx context.Context, subject, body string) error
}

// CRM is the customer relationship system
type CRM interface {
	TagUser(ctx context.Context, username, email string, tags []string) error
}

// MemberDirectory resolves the chat identity of a user
type MemberDirectory interface {
	Member(ctx context.Context, username string) (Member, error)
}
