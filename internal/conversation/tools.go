package conversation

const (
	ToolCheckAvailability = "checkAvailability"
	ToolBookAppointment   = "bookAppointment"
	ToolReportOutcome     = "reportOutcome"
)

// Statuses accepted by reportOutcome.
const (
	ReportBooked              = "booked"
	ReportAlternativesOffered = "alternatives_offered"
	ReportNoAlternatives      = "no_alternatives"
	ReportNeedsInformation    = "needs_information"
	ReportFailed              = "failed"
)

// ToolParam is a single string parameter of a tool.
type ToolParam struct {
	Name        string
	Description string
	Required    bool
	Enum        []string
}

// ToolSchema describes a function the model may call. All parameters are strings.
type ToolSchema struct {
	Name        string
	Description string
	Params      []ToolParam
}

// JSONSchema renders the parameters as a JSON Schema object.
func (s ToolSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := make([]any, 0, len(s.Params))
	for _, p := range s.Params {
		prop := map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			enum := make([]any, 0, len(p.Enum))
			for _, e := range p.Enum {
				enum = append(enum, e)
			}
			prop["enum"] = enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// AgentTools returns the tool schemas offered to the scheduling agent.
func AgentTools() []ToolSchema {
	return []ToolSchema{
		{
			Name:        ToolCheckAvailability,
			Description: "Check whether a time window is open for booking. Returns availability and, when unavailable, up to three alternative start times.",
			Params: []ToolParam{
				{Name: "startTime", Description: "Window start, ISO-8601 with offset, e.g. 2024-01-15T14:00:00-05:00", Required: true},
				{Name: "endTime", Description: "Window end, ISO-8601 with offset. Defaults to one slot after startTime.", Required: true},
			},
		},
		{
			Name:        ToolBookAppointment,
			Description: "Book an appointment. Only call after checkAvailability reported the window as available.",
			Params: []ToolParam{
				{Name: "startTime", Description: "Appointment start, ISO-8601 with offset", Required: true},
				{Name: "endTime", Description: "Appointment end, ISO-8601 with offset", Required: true},
				{Name: "name", Description: "Caller's full name", Required: true},
				{Name: "phone", Description: "Caller's phone number"},
				{Name: "email", Description: "Caller's email address"},
			},
		},
		{
			Name:        ToolReportOutcome,
			Description: "Finish the task. Always call this last with the final status and the sentence to read to the caller.",
			Params: []ToolParam{
				{
					Name:        "status",
					Description: "Final status of the request",
					Required:    true,
					Enum:        []string{ReportBooked, ReportAlternativesOffered, ReportNoAlternatives, ReportNeedsInformation, ReportFailed},
				},
				{Name: "message", Description: "One or two spoken sentences for the caller", Required: true},
			},
		},
	}
}

type checkAvailabilityArgs struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type bookAppointmentArgs struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

type reportOutcomeArgs struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
