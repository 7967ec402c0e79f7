package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxIDLength          = 128
	maxDisplayNameLength = 100
	maxParticipants      = 10000
)

var (
	// IDRegex matches stream, session and participant ids.
	IDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:@-]+$`)
)

func validateID(id, what string) error {
	if id == "" {
		return fmt.Errorf("%s is required", what)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%s is too long (max %d characters)", what, maxIDLength)
	}
	if !IDRegex.MatchString(id) {
		return fmt.Errorf("invalid %s format", what)
	}
	return nil
}

// ValidateStreamID validates a stream ID.
func ValidateStreamID(streamID string) error {
	return validateID(streamID, "stream ID")
}

// ValidateSessionID validates a session ID.
func ValidateSessionID(sessionID string) error {
	return validateID(sessionID, "session ID")
}

// ValidateParticipantID validates a participant ID.
func ValidateParticipantID(participantID string) error {
	return validateID(participantID, "participant ID")
}

// ValidateStreamIDs checks every id and rejects duplicates.
func ValidateStreamIDs(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if err := ValidateStreamID(id); err != nil {
			return fmt.Errorf("streams[%d]: %w", i, err)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("streams[%d]: duplicate stream ID %q", i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ValidateDisplayName validates a display name.
func ValidateDisplayName(name string) error {
	if !utf8.ValidString(name) {
		return fmt.Errorf("display name contains invalid characters")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return fmt.Errorf("display name is too long (max %d characters)", maxDisplayNameLength)
	}
	return nil
}

// ValidateParticipantCount validates a participant count.
func ValidateParticipantCount(count int) error {
	if count < 0 {
		return fmt.Errorf("participant count must be >= 0")
	}
	if count > maxParticipants {
		return fmt.Errorf("participant count is too high (max %d)", maxParticipants)
	}
	return nil
}

// ValidateOneOf checks that value is one of allowed.
func ValidateOneOf(value, fieldName string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (must be one of %s)", fieldName, value, strings.Join(allowed, ", "))
}

// ValidateNonNegative rejects negative capacity overrides.
func ValidateNonNegative(n int, fieldName string) error {
	if n < 0 {
		return fmt.Errorf("%s must be >= 0", fieldName)
	}
	return nil
}
