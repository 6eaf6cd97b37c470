package archive

import "time"

// TranscriptRecord is the document archived to S3 for one agent-resolved booking.
type TranscriptRecord struct {
	Version       string    `json:"version"` // "1.0"
	CallLogID     string    `json:"call_log_id"`
	CallID        string    `json:"call_id"`
	BusinessID    string    `json:"business_id"`
	PhoneHash     string    `json:"phone_hash,omitempty"` // sha256 of phone
	ArchivedAt    time.Time `json:"archived_at"`
	RequestedTime string    `json:"requested_time"`
	Outcome       string    `json:"outcome"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Iterations    int       `json:"iterations"`
	InputTokens   int32     `json:"input_tokens"`
	OutputTokens  int32     `json:"output_tokens"`
	Messages      []Message `json:"messages"`
}

// Message is a single transcript turn. Tool is set for tool calls and tool results.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Tool    string `json:"tool,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	CallLogID     string `json:"call_log_id"`
	BusinessID    string `json:"business_id"`
	S3Key         string `json:"s3_key"`
	ArchivedAt    string `json:"archived_at"`
	Outcome       string `json:"outcome"`
	FailureReason string `json:"failure_reason,omitempty"`
	Iterations    int    `json:"iterations"`
	MessageCount  int    `json:"message_count"`
}
