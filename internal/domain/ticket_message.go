package domain

import "time"

// TicketMessage captures communications in a ticket thread.
type TicketMessage struct {
	ID          string
	TicketID    string
	AuthorID    string
	Content     string
	Attachments []Attachment
	CreatedAt   time.Time
}

// Attachment stores metadata for a file uploaded elsewhere.
type Attachment struct {
	ID          string
	MessageID   string
	Filename    string
	MimeType    string
	SizeBytes   int64
	StoragePath string
	CreatedAt   time.Time
}
