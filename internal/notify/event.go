// Package notify publishes audit events about classification runs to a message broker.
package notify

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	EventGroupRuleUpdated = "group.rule_updated"
	EventNodeClassified   = "node.classified"
)

// Event is a single audit record. Subject is a group name or a node certname.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	RunID       string    `json:"run_id,omitempty"`
	Subject     string    `json:"subject"`
	Environment string    `json:"environment,omitempty"`
	Time        time.Time `json:"time"`
}

func NewEvent(eventType, runID, subject, environment string) Event {
	return Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		RunID:       runID,
		Subject:     subject,
		Environment: environment,
		Time:        time.Now().UTC(),
	}
}

// subjectFor appends the event type to a dotted base subject.
func subjectFor(base, eventType string) string {
	return normalizeSubject(base + "." + eventType)
}

// topicFor converts a dotted subject into an MQTT topic.
func topicFor(base, eventType string) string {
	return strings.ReplaceAll(subjectFor(base, eventType), ".", "/")
}

// normalizeSubject replaces characters brokers reject in subjects and topics.
func normalizeSubject(subject string) string {
	replacer := strings.NewReplacer(
		" ", "_",
		",", "_",
		":", "_",
		"?", "_",
		"*", "_",
		">", "_",
		"+", "_",
		"#", "_",
	)
	return replacer.Replace(subject)
}
