package workflow

import "slices"

// ChangeType enumerates the semantic diffs that can be detected between two
// successive workflow States.
type ChangeType string

const (
	ChangePhase       ChangeType = "phase"
	ChangeIssue       ChangeType = "issue"
	ChangeTracking    ChangeType = "tracking"
	ChangeDescription ChangeType = "description"
	ChangeQueue       ChangeType = "queue"
)

// ChangeEvent is a single detected difference between an old and new
// workflow State.
type ChangeEvent struct {
	Type     ChangeType
	OldValue string
	NewValue string
}

// DetectChanges compares old against new and returns the ordered list of
// semantic changes. old may be nil (first observation ever), in which case
// every non-empty field on new is reported as a change — mirroring the
// original's "initial state always counts as changed" behaviour so the
// agent gets oriented on the very first workflow-file read.
func DetectChanges(old, new *State) []ChangeEvent {
	if new == nil {
		return nil
	}

	var oldPhase, oldIssue, oldTracking, oldDescription string
	var oldQueue []string
	if old != nil {
		oldPhase, oldIssue, oldTracking, oldDescription = old.Phase, old.Issue, old.Tracking, old.Description
		oldQueue = old.Queue
	}

	var changes []ChangeEvent
	if new.Phase != oldPhase && new.Phase != "" {
		changes = append(changes, ChangeEvent{Type: ChangePhase, OldValue: oldPhase, NewValue: new.Phase})
	}
	if new.Issue != oldIssue && new.Issue != "" {
		changes = append(changes, ChangeEvent{Type: ChangeIssue, OldValue: oldIssue, NewValue: new.Issue})
	}
	if new.Tracking != oldTracking && new.Tracking != "" {
		changes = append(changes, ChangeEvent{Type: ChangeTracking, OldValue: oldTracking, NewValue: new.Tracking})
	}
	if new.Description != oldDescription && new.Description != "" {
		changes = append(changes, ChangeEvent{Type: ChangeDescription, OldValue: oldDescription, NewValue: new.Description})
	}
	if !slices.Equal(new.Queue, oldQueue) {
		changes = append(changes, ChangeEvent{Type: ChangeQueue, OldValue: joinQueue(oldQueue), NewValue: joinQueue(new.Queue)})
	}
	return changes
}

func joinQueue(q []string) string {
	out := ""
	for i, item := range q {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}

// TemplateForChange maps a change's type to the relative template name
// WorkflowMonitorTask renders for it.
func TemplateForChange(c ChangeEvent) string {
	switch c.Type {
	case ChangePhase:
		return "workflow/phase-changed"
	case ChangeIssue:
		return "workflow/issue-changed"
	case ChangeTracking:
		return "workflow/tracking-changed"
	case ChangeDescription:
		return "workflow/description-changed"
	case ChangeQueue:
		return "workflow/queue-changed"
	default:
		return "workflow/generic-changed"
	}
}
