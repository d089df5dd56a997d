package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	handleRe  = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)
	channelRe = regexp.MustCompile(`^@[A-Za-z][A-Za-z0-9_]{3,31}$`)
)

// NormalizeHandle trims whitespace and a leading "@" from a source handle and
// validates what is left.
//
//	NormalizeHandle(" @Alice ") // "Alice", nil
func NormalizeHandle(s string) (string, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "@")
	if !handleRe.MatchString(h) {
		return "", fmt.Errorf("%w: %q", ErrorInvalidHandle, s)
	}
	return h, nil
}

// ValidateChannel accepts a public channel username ("@news") or a numeric
// chat id ("-1001234567890").
func ValidateChannel(s string) error {
	if channelRe.MatchString(s) {
		return nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrorInvalidChannel, s)
}
