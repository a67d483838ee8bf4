package guide

import (
	"strings"

	"github.com/guidemcp/gateway/internal/cronutil"
)

// ParsedArgs is the result of parsing a command request's remaining argv
// into keyword arguments, positional arguments, and any parse errors
// encountered along the way.
type ParsedArgs struct {
	Kwargs     map[string]string
	Positional []string
	Errors     []string
}

// ParseArgs implements the dedicated argument parser named in §4.J step 3:
// recognises `--flag` (boolean true), `--flag=value`, bare `key=value`, and
// otherwise treats the token as positional. This is deliberately separate
// from cobra/pflag, which parse a process's os.Args against a predeclared
// flag set — guide command arguments are arbitrary, per-command, and
// declared only in template frontmatter, so there is nothing to predeclare
// against.
func ParseArgs(tokens []string) ParsedArgs {
	result := ParsedArgs{Kwargs: map[string]string{}}

	for _, tok := range tokens {
		switch {
		case strings.HasPrefix(tok, "--"):
			body := tok[2:]
			if body == "" {
				result.Errors = append(result.Errors, "empty flag token: --")
				continue
			}
			if eq := strings.IndexByte(body, '='); eq >= 0 {
				key, value := body[:eq], body[eq+1:]
				if key == "" {
					result.Errors = append(result.Errors, "flag missing name: "+tok)
					continue
				}
				result.Kwargs[key] = value
				continue
			}
			result.Kwargs[body] = "true"

		case strings.Contains(tok, "=") && !strings.HasPrefix(tok, "="):
			eq := strings.IndexByte(tok, '=')
			key, value := tok[:eq], tok[eq+1:]
			if key == "" {
				result.Errors = append(result.Errors, "argument missing name: "+tok)
				continue
			}
			result.Kwargs[key] = value

		default:
			result.Positional = append(result.Positional, tok)
		}
	}

	if sched, ok := result.Kwargs["schedule"]; ok && !cronutil.Valid(sched) {
		result.Errors = append(result.Errors, "invalid cron expression for schedule: "+sched)
	}

	return result
}
