package filter

import (
	"regexp"
	"strings"
)

// Policy controls which chat messages are dropped before they reach the
// buffer and the speech queue. Immutable for the duration of a session.
type Policy struct {
	ExcludeUsers    []string
	ExcludeCommands bool
	ExcludeLinks    bool
	OnlyMentions    bool
	MentionTarget   string
}

var linkPattern = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)

// Drop reports whether a message should be filtered out. Checks run in
// precedence order: excluded user, command prefix, link, missing mention.
// Pure and total over all inputs.
func Drop(username, msg string, p Policy) bool {
	for _, excluded := range p.ExcludeUsers {
		if strings.EqualFold(username, excluded) {
			return true
		}
	}

	if p.ExcludeCommands && strings.HasPrefix(msg, "!") {
		return true
	}

	if p.ExcludeLinks && linkPattern.MatchString(msg) {
		return true
	}

	if p.OnlyMentions {
		mention := "@" + strings.ToLower(p.MentionTarget)
		if !strings.Contains(strings.ToLower(msg), mention) {
			return true
		}
	}

	return false
}
