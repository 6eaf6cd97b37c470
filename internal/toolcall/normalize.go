package toolcall

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	maxScanDepth = 12
	maxScanNodes = 2048
)

// Normalize returns the first tool invocation in payload.
func Normalize(payload []byte) (Invocation, error) {
	all, err := NormalizeAll(payload)
	if err != nil {
		return Invocation{}, err
	}
	return all[0], nil
}

// NormalizeAll returns every tool invocation in payload, in delivery order. The known
// wrapper shapes are tried first, then the flat toolCall shape, then a bounded
// depth-first scan. It never returns an empty slice without an error.
func NormalizeAll(payload []byte) ([]Invocation, error) {
	root, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecognized, err)
	}
	obj, _ := root.(map[string]any)

	for _, recognize := range []func(map[string]any) ([]Invocation, bool, error){
		recognizeBodyMessage,
		recognizeMessage,
		recognizeFlat,
	} {
		if obj == nil {
			break
		}
		invs, ok, err := recognize(obj)
		if err != nil {
			return nil, err
		}
		if ok {
			return invs, nil
		}
	}

	inv, ok, err := scan(root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRecognized
	}
	return []Invocation{inv}, nil
}

func decode(payload []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// {"body": {"message": {"toolCalls": [...], "call": {...}}}}
func recognizeBodyMessage(root map[string]any) ([]Invocation, bool, error) {
	body, ok := root["body"].(map[string]any)
	if !ok {
		return nil, false, nil
	}
	return recognizeMessage(body)
}

// {"message": {"toolCalls": [...], "call": {...}}}
func recognizeMessage(root map[string]any) ([]Invocation, bool, error) {
	msg, ok := root["message"].(map[string]any)
	if !ok {
		return nil, false, nil
	}
	calls, ok := toolCallList(msg)
	if !ok {
		return nil, false, nil
	}
	id := callID(msg)
	if id == "" {
		id = callID(root)
	}
	out := make([]Invocation, 0, len(calls))
	for _, c := range calls {
		obj, ok := c.(map[string]any)
		if !ok {
			return nil, false, fmt.Errorf("%w: toolCalls entry is not an object", ErrNotRecognized)
		}
		inv, ok, err := invocationFrom(obj)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, fmt.Errorf("%w: toolCalls entry has no function name", ErrNotRecognized)
		}
		inv.CallID = id
		out = append(out, inv)
	}
	return out, true, nil
}

func toolCallList(msg map[string]any) ([]any, bool) {
	for _, key := range []string{"toolCalls", "toolCallList", "tool_calls"} {
		if list, ok := msg[key].([]any); ok && len(list) > 0 {
			return list, true
		}
	}
	return nil, false
}

// {"toolCall": {...}, "call": {...}}
func recognizeFlat(root map[string]any) ([]Invocation, bool, error) {
	obj, ok := root["toolCall"].(map[string]any)
	if !ok {
		return nil, false, nil
	}
	inv, ok, err := invocationFrom(obj)
	if err != nil || !ok {
		return nil, false, err
	}
	inv.CallID = callID(root)
	return []Invocation{inv}, true, nil
}

// invocationFrom accepts {id, function: {name, arguments}} and {id, name, arguments}.
// ok is false when the object does not look like a tool call at all.
func invocationFrom(obj map[string]any) (Invocation, bool, error) {
	name, args, found := nameAndArguments(obj)
	if fn, isFn := obj["function"].(map[string]any); isFn && !found {
		name, args, found = nameAndArguments(fn)
	}
	if !found {
		return Invocation{}, false, nil
	}

	tool, known := normalizeTool(name)
	if !known {
		return Invocation{}, false, fmt.Errorf("%w: unknown tool %q", ErrNotRecognized, name)
	}
	parsed, err := parseArguments(args)
	if err != nil {
		return Invocation{}, false, err
	}
	return Invocation{
		ToolCallID: firstString(obj, "id", "toolCallId", "tool_call_id"),
		Tool:       tool,
		Arguments:  parsed,
	}, true, nil
}

func nameAndArguments(obj map[string]any) (string, any, bool) {
	name, ok := obj["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", nil, false
	}
	args, ok := obj["arguments"]
	if !ok {
		args, ok = obj["parameters"]
	}
	if !ok {
		return "", nil, false
	}
	return name, args, true
}

// scan walks v depth-first, with map keys in sorted order so the result does not
// depend on decode order, and stops at the first tool-call-shaped object. The call id
// comes from the nearest enclosing object that carries one.
func scan(v any) (Invocation, bool, error) {
	visited := 0
	var walk func(node any, depth int, call string) (Invocation, bool, error)
	walk = func(node any, depth int, call string) (Invocation, bool, error) {
		if depth > maxScanDepth || visited >= maxScanNodes {
			return Invocation{}, false, nil
		}
		visited++
		switch n := node.(type) {
		case map[string]any:
			if id := callID(n); id != "" {
				call = id
			}
			candidates := []map[string]any{n}
			if tc, ok := n["toolCall"].(map[string]any); ok {
				candidates = append(candidates, tc)
			}
			for _, c := range candidates {
				inv, ok, err := invocationFrom(c)
				if err != nil {
					return Invocation{}, false, err
				}
				if ok {
					inv.CallID = call
					return inv, true, nil
				}
			}
			keys := make([]string, 0, len(n))
			for k := range n {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if inv, ok, err := walk(n[k], depth+1, call); err != nil || ok {
					return inv, ok, err
				}
			}
		case []any:
			for _, item := range n {
				if inv, ok, err := walk(item, depth+1, call); err != nil || ok {
					return inv, ok, err
				}
			}
		}
		return Invocation{}, false, nil
	}
	return walk(v, 0, "")
}

// callID reads call.id or callId from obj.
func callID(obj map[string]any) string {
	if obj == nil {
		return ""
	}
	if call, ok := obj["call"].(map[string]any); ok {
		if id := firstString(call, "id"); id != "" {
			return id
		}
	}
	return firstString(obj, "callId", "call_id")
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := scalarString(obj[k]); s != "" {
			return s
		}
	}
	return ""
}
