package guide

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/guidemcp/gateway/internal/session"
)

// GetContent resolves expression (a comma-separated list of category and/or
// collection names) against project, expanding category glob patterns
// rooted at docroot into absolute file paths. A name may resolve to a
// category, a collection, or both; files are de-duplicated by absolute
// path. Collections may reference other collections — resolution tracks a
// visited-name set so a cycle terminates instead of looping forever.
func GetContent(project *session.Project, docroot, expression string) ([]string, error) {
	names := splitNames(expression)
	if len(names) == 0 {
		return nil, fmt.Errorf("get_content: expression must name at least one category or collection")
	}

	seen := map[string]bool{}
	var files []string
	var unknown []string

	for _, name := range names {
		matchedAny := false

		if cat, ok := project.Categories[name]; ok {
			matchedAny = true
			expandCategory(docroot, cat, seen, &files)
		}

		if _, ok := project.Collections[name]; ok {
			matchedAny = true
			visited := map[string]bool{}
			resolveCollection(project, docroot, name, visited, seen, &files)
		}

		if !matchedAny {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) > 0 {
		return files, fmt.Errorf("get_content: unknown name(s): %s", strings.Join(unknown, ", "))
	}

	sort.Strings(files)
	return files, nil
}

func splitNames(expression string) []string {
	var names []string
	for _, part := range strings.Split(expression, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

func expandCategory(docroot string, cat session.Category, seen map[string]bool, files *[]string) {
	for _, pattern := range cat.Patterns {
		matches, err := filepath.Glob(filepath.Join(docroot, pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			if !seen[abs] {
				seen[abs] = true
				*files = append(*files, abs)
			}
		}
	}
}

// resolveCollection expands collectionName's categories and any
// collections it references, in turn, guarding against cycles via visited.
func resolveCollection(project *session.Project, docroot, collectionName string, visited, seen map[string]bool, files *[]string) {
	if visited[collectionName] {
		return
	}
	visited[collectionName] = true

	col, ok := project.Collections[collectionName]
	if !ok {
		return
	}
	for _, ref := range col.Categories {
		if cat, ok := project.Categories[ref]; ok {
			expandCategory(docroot, cat, seen, files)
			continue
		}
		if _, ok := project.Collections[ref]; ok {
			resolveCollection(project, docroot, ref, visited, seen, files)
		}
	}
}
