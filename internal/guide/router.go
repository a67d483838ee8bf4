// Package guide implements the Guide Prompt Router (§4.J): the single
// `guide` prompt's argv-based dispatch between command requests (template
// rendering against the context chain) and content requests (category/
// collection resolution via get_content). Grounded on the spec's routing
// algorithm; there is no single teacher file this is ported from, since
// the teacher exposes no prompt surface of its own — the decorator shape
// (validate, then dispatch, then render) follows the same body/Result
// discipline as internal/pipeline.
package guide

import (
	"fmt"
	"strings"
	"time"

	"github.com/guidemcp/gateway/internal/pipeline"
	"github.com/guidemcp/gateway/internal/session"
	"github.com/guidemcp/gateway/internal/taskmanager"
	"github.com/guidemcp/gateway/internal/templatectx"
)

// maxPositionalArgs is the protocol constraint named in §4.J: the `guide`
// prompt has exactly fifteen optional positional arguments.
const maxPositionalArgs = 15

// BuildArgv constructs argv from the prompt's fifteen positional slots,
// stopping at the first empty ("null") argument — matching the spec's
// "stopping at the first null" rule exactly, including the leading
// synthetic "guide" token.
func BuildArgv(args [maxPositionalArgs]string) []string {
	argv := []string{"guide"}
	for _, a := range args {
		if a == "" {
			break
		}
		argv = append(argv, a)
	}
	return argv
}

// Deps bundles the collaborators the router needs to resolve a content or
// command request: the current project, its docroot, a core context chain
// builder, and the task manager (for requires-* filter evaluation).
type Deps struct {
	Project *session.Project
	Docroot string
	CoreCtx *templatectx.Chain
	TM      *taskmanager.Manager
}

// Route implements the full §4.J algorithm over argv (as built by
// BuildArgv, or equivalently any []string{"guide", ...}).
func Route(argv []string, deps Deps) *pipeline.Result {
	if len(argv) < 2 {
		return pipeline.Failure(pipeline.ErrValidation, "Requires 1 or more arguments", "")
	}

	first := argv[1]
	if strings.HasPrefix(first, ":") || strings.HasPrefix(first, ";") {
		return routeCommand(argv, deps)
	}
	return routeContent(argv, deps)
}

func routeCommand(argv []string, deps Deps) *pipeline.Result {
	remainder := strings.TrimPrefix(strings.TrimPrefix(argv[1], ":"), ";")
	if remainder == "" {
		return pipeline.Failure(pipeline.ErrValidation, "command request missing a command name", "")
	}

	if err := validateCommandPath(remainder); err != nil {
		return pipeline.Failure(pipeline.ErrSecurity, fmt.Sprintf("Security validation failed: %s", err), "")
	}

	parsed := ParseArgs(argv[2:])
	if len(parsed.Errors) > 0 {
		return pipeline.Failure(pipeline.ErrValidation, strings.Join(parsed.Errors, "; "), "")
	}

	cmd, err := DiscoverCommand(deps.Docroot, remainder)
	if err != nil {
		return pipeline.Failure(pipeline.ErrNotFound, err.Error(), "do not retry; the command does not exist")
	}

	if missing := cmd.MissingRequired(parsed.Positional, parsed.Kwargs); len(missing) > 0 {
		return pipeline.Failure(pipeline.ErrValidation,
			fmt.Sprintf("missing required argument(s): %s", strings.Join(missing, ", ")), "")
	}

	if reason, ok := evaluateRequires(cmd.Frontmatter.Requires, deps); !ok {
		return pipeline.Failure(pipeline.ErrValidation, reason, "")
	}

	renderCtx := buildCommandContext(deps, cmd, parsed)

	rendered, err := cmd.Render(renderCtx)
	if err != nil {
		return pipeline.Failure(pipeline.ErrTemplate, err.Error(), "")
	}

	instruction := cmd.Frontmatter.Instruction
	if instruction == "" {
		instruction = pipeline.InstructionDisplayOnly
	}
	return pipeline.OkWithInstruction(rendered, instruction)
}

func routeContent(argv []string, deps Deps) *pipeline.Result {
	expression := strings.Join(argv[1:], ",")

	files, err := GetContent(deps.Project, deps.Docroot, expression)
	if err != nil {
		return pipeline.Failure(pipeline.ErrNotFound, err.Error(), "do not retry without correcting the name(s)")
	}

	return pipeline.OkWithInstruction(files, pipeline.InstructionDisplayOnly)
}

// buildCommandContext assembles args ⊳ transient ⊳ file ⊳ project ⊳
// core(agent ⊳ client ⊳ system) and flattens it for template execution.
// There is no category layer.
func buildCommandContext(deps Deps, cmd *Command, parsed ParsedArgs) map[string]any {
	chain := deps.CoreCtx
	if chain == nil {
		chain = templatectx.New(nil)
	}

	projectValues := map[string]any{}
	if deps.Project != nil {
		projectValues = templatectx.ProjectContext(deps.Project, "", deps.TM)
	}
	chain = chain.NewChild(projectValues)

	fileValues := map[string]any{
		"path": cmd.Path,
		"name": cmd.Name,
	}
	chain = chain.NewChild(fileValues)

	transient := templatectx.TransientContext(time.Now())
	chain = chain.NewChild(transient)

	argValues := map[string]any{
		"args":   parsed.Positional,
		"kwargs": parsed.Kwargs,
	}
	chain = chain.NewChild(argValues)

	return chain.Flatten()
}

// evaluateRequires checks the command's requires-* frontmatter filters
// against task manager statistics and project feature-flag values. An
// unmet requirement fails with a human-readable reason.
func evaluateRequires(requires map[string]string, deps Deps) (reason string, ok bool) {
	for key, expected := range requires {
		switch {
		case strings.HasPrefix(key, "flag:"):
			name := strings.TrimPrefix(key, "flag:")
			var actual string
			if deps.Project != nil {
				if v, present := deps.Project.Flags[name]; present {
					actual = fmt.Sprint(v)
				}
			}
			if actual != expected {
				return fmt.Sprintf("requires flag %q = %q", name, expected), false
			}
		case key == "tasks_running":
			if deps.TM == nil {
				return "requires task manager statistics, none available", false
			}
			stats := deps.TM.GetTaskStatistics()
			if fmt.Sprint(stats.Count) != expected {
				return fmt.Sprintf("requires %s running tasks, found %d", expected, stats.Count), false
			}
		}
	}
	return "", true
}
