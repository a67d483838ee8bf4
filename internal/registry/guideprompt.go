package registry

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/guidemcp/gateway/internal/guide"
	"github.com/guidemcp/gateway/internal/pipeline"
	"github.com/guidemcp/gateway/internal/session"
	"github.com/guidemcp/gateway/internal/taskmanager"
	"github.com/guidemcp/gateway/internal/templatectx"
)

// guideArgCount is the protocol constraint behind the guide prompt's
// signature: exactly fifteen optional positional arguments.
const guideArgCount = 15

// SessionForPrompt resolves the project and docroot the guide prompt
// should route against for the current call. cmd/serve.go supplies a
// concrete implementation backed by the session.Manager and its single
// fixed scope "default".
type SessionForPrompt func(ctx context.Context) (*session.Project, string, error)

// GuidePrompt describes the single `guide` prompt (§4.J/§5): fifteen
// optional positional arguments named arg1..arg15, routed through
// guide.Route.
func GuidePrompt(resolve SessionForPrompt, tm *taskmanager.Manager, coreCtx func() *templatectx.Chain) PromptSpec {
	opts := []mcp.PromptOption{
		mcp.WithPromptDescription("Route a command or content request against the project's documentation store."),
	}
	for i := 1; i <= guideArgCount; i++ {
		opts = append(opts, mcp.WithArgument(fmt.Sprintf("arg%d", i), mcp.ArgumentDescription("Positional argument; leave unset to stop argv construction.")))
	}

	return PromptSpec{
		Name:   "guide",
		Prompt: mcp.NewPrompt("guide", opts...),
		Handle: func(ctx context.Context, args map[string]string) *pipeline.Result {
			var positional [guideArgCount]string
			for i := 0; i < guideArgCount; i++ {
				positional[i] = args[fmt.Sprintf("arg%d", i+1)]
			}
			argv := guide.BuildArgv(positional)

			project, docroot, err := resolve(ctx)
			if err != nil {
				return pipeline.Failure(pipeline.ErrNoProject, err.Error(), "")
			}

			var core *templatectx.Chain
			if coreCtx != nil {
				core = coreCtx()
			}

			return guide.Route(argv, guide.Deps{
				Project: project,
				Docroot: docroot,
				CoreCtx: core,
				TM:      tm,
			})
		},
	}
}
