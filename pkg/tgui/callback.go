package tgui

import (
	"strings"
)

// Data joins callback parts with ':' into "route:action:args...".
// Parts are kept as-is (no escaping), so they must not contain ':'.
func Data(parts ...string) string {
	trimmed := make([]string, len(parts))
	for i, p := range parts {
		trimmed[i] = strings.TrimSpace(p)
	}
	return strings.Join(trimmed, ":")
}

// Parse splits callback data into route, action and the remaining args.
// A bare route like "cancel" parses with an empty action.
func Parse(data string) (route, action string, args []string) {
	fields := strings.Split(strings.TrimSpace(data), ":")
	route = fields[0]
	if len(fields) > 1 {
		action = fields[1]
	}
	if len(fields) > 2 {
		args = fields[2:]
	}
	return route, action, args
}

// CheckLen verifies data fits Telegram's callback_data byte limit.
func CheckLen(data string) error {
	if len(data) > MaxCallbackDataLen {
		return ErrCallbackDataTooLong
	}
	return nil
}
