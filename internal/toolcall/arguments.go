package toolcall

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// canonicalKey folds "Phone Number", "phone_number", "phoneNumber" and "phone-number"
// into "phonenumber".
func canonicalKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

var argumentFields = map[string]func(*Arguments) *string{
	"name":            func(a *Arguments) *string { return &a.Name },
	"fullname":        func(a *Arguments) *string { return &a.Name },
	"callername":      func(a *Arguments) *string { return &a.Name },
	"customername":    func(a *Arguments) *string { return &a.Name },
	"phone":           func(a *Arguments) *string { return &a.Phone },
	"phonenumber":     func(a *Arguments) *string { return &a.Phone },
	"callerphone":     func(a *Arguments) *string { return &a.Phone },
	"email":           func(a *Arguments) *string { return &a.Email },
	"emailaddress":    func(a *Arguments) *string { return &a.Email },
	"calleremail":     func(a *Arguments) *string { return &a.Email },
	"dateandtime":     func(a *Arguments) *string { return &a.DateTime },
	"datetime":        func(a *Arguments) *string { return &a.DateTime },
	"requestedtime":   func(a *Arguments) *string { return &a.DateTime },
	"appointmenttime": func(a *Arguments) *string { return &a.DateTime },
	"starttime":       func(a *Arguments) *string { return &a.StartTime },
	"start":           func(a *Arguments) *string { return &a.StartTime },
	"endtime":         func(a *Arguments) *string { return &a.EndTime },
	"end":             func(a *Arguments) *string { return &a.EndTime },
	"businessid":      func(a *Arguments) *string { return &a.BusinessID },
	"notes":           func(a *Arguments) *string { return &a.Notes },
	"note":            func(a *Arguments) *string { return &a.Notes },
}

// parseArguments accepts an object or a JSON-encoded object string.
func parseArguments(raw any) (Arguments, error) {
	var args Arguments
	switch v := raw.(type) {
	case nil:
		return args, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return args, nil
		}
		decoded, err := decode([]byte(v))
		if err != nil {
			return args, fmt.Errorf("%w: arguments string is not JSON", ErrNotRecognized)
		}
		return parseArguments(decoded)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var date, clock string
		for _, k := range keys {
			s := scalarString(v[k])
			if s == "" {
				continue
			}
			key := canonicalKey(k)
			switch key {
			case "date":
				date = s
				continue
			case "time":
				clock = s
				continue
			}
			if field, ok := argumentFields[key]; ok {
				*field(&args) = s
			}
		}
		if args.DateTime == "" {
			args.DateTime = strings.TrimSpace(date + " " + clock)
		}
		return args, nil
	default:
		return args, fmt.Errorf("%w: arguments must be an object", ErrNotRecognized)
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// normalizeTool maps the spellings platforms use onto a Tool.
func normalizeTool(name string) (Tool, bool) {
	switch canonicalKey(name) {
	case "bookappointment", "book", "createappointment", "scheduleappointment":
		return ToolBookAppointment, true
	case "checkavailability", "availability", "checkslot":
		return ToolCheckAvailability, true
	}
	return "", false
}
