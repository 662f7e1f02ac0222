package callbacks

import (
	"errors"
	"strconv"
	"strings"
)

// ErrBadPayload reports a callback payload that does not match the shape the
// handler expects.
var ErrBadPayload = errors.New("callbacks: bad payload")

// SplitPayload splits a raw callback payload into exactly n parts.
func SplitPayload(payload, sep string, n int) ([]string, error) {
	if payload == "" {
		return nil, ErrBadPayload
	}
	parts := strings.Split(payload, sep)
	if len(parts) != n {
		return nil, ErrBadPayload
	}
	return parts, nil
}

// PayloadID parses a payload part as a positive numeric identifier.
func PayloadID(part string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadPayload
	}
	return id, nil
}
