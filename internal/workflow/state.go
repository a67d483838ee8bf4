// Package workflow parses the project-owned workflow-tracking markdown
// file into a structured State and diffs successive States into semantic
// ChangeEvents. Grounded on workflow/tasks.py's consumption contract
// (parse_workflow_state/detect_workflow_changes); the parser and
// change-detector modules themselves were filtered from the retrieval
// pack, so their behaviour is reconstructed from the State field contract
// and rendered in the teacher's plain hand-rolled-parser style (the
// teacher never reaches for a markdown/frontmatter library, so neither
// do we — see DESIGN.md).
package workflow

import (
	"bufio"
	"strings"
)

// State is the structured record parsed from the workflow file: current
// phase, active issue, tracking reference, free-text description, and an
// ordered queue of upcoming items.
type State struct {
	Phase       string
	Issue       string
	Tracking    string
	Description string
	Queue       []string
}

// fieldPrefixes maps the markdown file's "Key: value" lines to State
// fields, matching the labels the workflow template family renders.
var fieldPrefixes = map[string]string{
	"phase":       "phase",
	"issue":       "issue",
	"tracking":    "tracking",
	"description": "description",
}

// ParseState parses the workflow file's content. It recognises simple
// "Key: value" lines for phase/issue/tracking/description and a "Queue:"
// section followed by "- item" bullet lines. Returns nil if content has
// no recognisable phase line, mirroring the original's "not a workflow
// file" signal.
func ParseState(content string) *State {
	s := &State{}
	inQueue := false
	found := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.EqualFold(trimmed, "Queue:") || strings.EqualFold(trimmed, "## Queue") {
			inQueue = true
			continue
		}

		if inQueue {
			if strings.HasPrefix(trimmed, "-") {
				item := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
				if item != "" {
					s.Queue = append(s.Queue, item)
				}
				continue
			}
			inQueue = false // falls through to key:value parsing below
		}

		key, value, ok := splitKeyValue(trimmed)
		if !ok {
			continue
		}
		switch fieldPrefixes[strings.ToLower(key)] {
		case "phase":
			s.Phase = value
			found = true
		case "issue":
			s.Issue = value
		case "tracking":
			s.Tracking = value
		case "description":
			s.Description = value
		}
	}

	if !found {
		return nil
	}
	return s
}

func splitKeyValue(line string) (key, value string, ok bool) {
	line = strings.TrimPrefix(line, "#")
	line = strings.TrimPrefix(line, "#")
	line = strings.TrimSpace(line)
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	return key, value, key != ""
}
