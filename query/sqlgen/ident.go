package sqlgen

import (
	"regexp"
	"strings"

	"github.com/supergnaw/nestbox/errdefs"
)

var identifierPattern = regexp.MustCompile(`^\w+$`)

// ValidIdentifier returns the trimmed identifier if it consists only of word
// characters. Every table and column name passes through here before it is
// written into SQL text.
func ValidIdentifier(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if !identifierPattern.MatchString(trimmed) {
		return "", errdefs.NewSyntaxError(s)
	}
	return trimmed, nil
}
