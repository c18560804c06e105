package engine

import (
	"errors"
	"fmt"
	"strings"

	"reminders/internal/domain"
)

// BuildMessageID builds the deterministic compiled-message id.
// Params: trigger type and subject entity id.
// Returns: "<prefix>_<subject id>" or error for unknown triggers and empty subjects.
func BuildMessageID(trigger domain.TriggerType, subjectID string) (string, error) {
	rule, ok := RuleFor(trigger)
	if !ok {
		return "", fmt.Errorf("unknown trigger %q", trigger)
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", errors.New("subject id is required")
	}

	var builder strings.Builder
	builder.Grow(len(rule.IDPrefix) + 1 + len(subjectID))
	builder.WriteString(rule.IDPrefix)
	builder.WriteByte('_')
	builder.WriteString(subjectID)
	return builder.String(), nil
}

// ParseMessageID splits a message id into trigger and subject id.
// Params: id produced by BuildMessageID.
// Returns: trigger, subject id, and existence flag.
func ParseMessageID(id string) (domain.TriggerType, string, bool) {
	for _, rule := range rules {
		prefix := rule.IDPrefix + "_"
		if strings.HasPrefix(id, prefix) && len(id) > len(prefix) {
			return rule.Trigger, id[len(prefix):], true
		}
	}
	return "", "", false
}
