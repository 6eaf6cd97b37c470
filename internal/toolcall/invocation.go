package toolcall

import "errors"

// ErrNotRecognized is returned when no tool invocation can be found in a payload.
var ErrNotRecognized = errors.New("toolcall: payload not recognized")

// Tool identifies which operation the voice platform asked for.
type Tool string

const (
	ToolBookAppointment   Tool = "bookAppointment"
	ToolCheckAvailability Tool = "checkAvailability"
)

// Arguments is the canonical argument set, whatever dialect the platform used.
type Arguments struct {
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	DateTime   string `json:"dateTime,omitempty"`
	StartTime  string `json:"startTime,omitempty"`
	EndTime    string `json:"endTime,omitempty"`
	BusinessID string `json:"businessId,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// RequestedTime is the best available description of when the caller wants to come in.
func (a Arguments) RequestedTime() string {
	if a.StartTime != "" {
		return a.StartTime
	}
	return a.DateTime
}

// Invocation is one canonical tool call.
type Invocation struct {
	ToolCallID string    `json:"toolCallId"`
	Tool       Tool      `json:"tool"`
	Arguments  Arguments `json:"arguments"`
	CallID     string    `json:"callId,omitempty"`
}

// DeliveryKey identifies this invocation across webhook retries. Empty when the
// platform supplied no ids.
func (i Invocation) DeliveryKey() string {
	if i.CallID == "" || i.ToolCallID == "" {
		return ""
	}
	return i.CallID + ":" + i.ToolCallID
}
