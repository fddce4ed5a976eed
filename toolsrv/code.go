package toolsrv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openvj/arenalink/arena"
)

const quickstart = `## arenalink: live VJ control quickstart

This server controls a running media server composition through two tools:

1. **search(query)** — discover client operations and live state paths before
   writing code. Searching "bpm" shows the tempo state path and the SetTempo
   operation.

2. **execute(code)** — run an expression against the live client. Multi-step
   routines go in one call by evaluating a list of steps in order:

   [set_layer_opacity(1, 0.0), connect_clip(1, 2), set_layer_opacity(1, 1.0)]

### State structure — two quirks

The composition arrives with no "composition" wrapper key: state() IS the
composition, so use get("/layers/0/name") or get("/composition/layers/0/name")
interchangeably. Every parameter is a mapping, not a primitive; use value()
to read the unwrapped value:

   value("/layers/0/bypassed")   -> false
   get("/layers/0/bypassed")     -> {"id": ..., "value": false}

### Indexing

Operations use 1-based layer/clip indices matching the remote's UI. State
paths use 0-based sequence positions: /layers/0 is layer 1 in the UI.

### Available functions

   state()                          full composition mirror
   get(path), value(path)           read mirrored state
   set(path, v)                     fire-and-forget parameter set
   set_and_wait(path, v)            set, confirmed by the remote's echo
   trigger(path), post(path, v)     raw commands
   connect_clip(layer, clip)        fire a clip cell
   connect_column(column)           fire a whole column
   disconnect_all()                 blackout
   set_layer_opacity(layer, v)      0.0..1.0
   set_layer_bypass(layer, b)       mute/unmute
   set_bpm(bpm), set_crossfader(v)  global controls
   add_video_effect(layer, id)      effect by idstring
   fade_layer(layer, to, ms)        stepped opacity fade
   subscribe(path)                  push updates for a parameter
   sleep(ms)                        pause between steps

### Examples

   value("/tempocontroller/tempo")
   [fade_layer(1, 0.0, 500), connect_clip(1, 2), fade_layer(1, 1.0, 500)]
   set_bpm(128.0)
`

const fadeSteps = 10

func (s *Server) registerCodeTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Search available client operations and live composition state paths. Use this to discover what the client can do before writing execute() code."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search term, e.g. 'bpm', 'layer', 'clip', 'opacity'")),
		),
		s.handleSearch,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("execute",
			mcp.WithDescription("Run an expression against the live client. Multi-step routines evaluate as a list of steps: [set_layer_opacity(1, 0.0), connect_clip(1, 2)]. See the quickstart prompt for the function reference."),
			mcp.WithString("code", mcp.Required(), mcp.Description("Expression to evaluate. Client functions are pre-bound.")),
		),
		s.handleExecute,
	)
}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(
		mcp.NewPrompt("quickstart",
			mcp.WithPromptDescription("VJ workflow guide for controlling the composition with this server"),
		),
		func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return mcp.NewGetPromptResult(
				"arenalink quickstart for VJ workflows",
				[]mcp.PromptMessage{
					mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(quickstart)),
				},
			), nil
		},
	)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	query, _ := req.GetArguments()["query"].(string)
	result := s.client.Search(query)

	sections := []string{}

	if len(result.Operations) == 0 {
		sections = append(sections, fmt.Sprintf("## Client operations\n(no operations match %q)", query))
	} else {
		lines := []string{"## Client operations"}
		for _, operation := range result.Operations {
			lines = append(lines, fmt.Sprintf("%s\n  -> %s", operation.Signature, operation.Description))
		}
		sections = append(sections, strings.Join(lines, "\n\n"))
	}

	if len(result.Paths) == 0 {
		sections = append(sections, fmt.Sprintf("## Composition state paths\n(no state keys match %q)", query))
	} else {
		lines := []string{"## Composition state paths"}
		for _, match := range result.Paths {
			if match.HasValue {
				lines = append(lines, fmt.Sprintf("%s  (value=%v)", match.Path, match.Value))
			} else {
				lines = append(lines, match.Path)
			}
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return textResult(strings.Join(sections, "\n\n")), nil
}

// handleExecute compiles the submitted expression against an environment
// that binds the live client's operations and runs it inline on this
// handler's goroutine. The receive loop runs independently, so a slow
// expression stalls only its own caller.
func (s *Server) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	code, _ := req.GetArguments()["code"].(string)

	env := s.executeEnv(ctx)
	program, err := expr.Compile(code, expr.Env(env))
	if err != nil {
		return errorResult(fmt.Sprintf("compile: %v", err)), nil
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return errorResult(fmt.Sprintf("eval: %v", err)), nil
	}
	if output == nil {
		return textResult("(no output)"), nil
	}
	return textResult(fmt.Sprintf("-> %v", output)), nil
}

func (s *Server) executeEnv(ctx context.Context) map[string]any {
	client := s.client
	return map[string]any{
		"state": func() map[string]any {
			return client.Tree().Snapshot()
		},
		"get": func(path string) any {
			value, ok := client.Tree().Resolve(path)
			if !ok {
				return nil
			}
			return value
		},
		"value": func(path string) any {
			value, ok := client.Tree().ResolveValue(path)
			if !ok {
				return nil
			}
			return value
		},
		"set": func(path string, value any) (string, error) {
			if err := client.SetParameter(path, value); err != nil {
				return "", err
			}
			return fmt.Sprintf("set %s = %v", path, value), nil
		},
		"set_and_wait": func(path string, value any) (any, error) {
			return client.SendAndWait(ctx, arena.ActionSet, path, value)
		},
		"trigger": func(path string) (string, error) {
			if err := client.SendCommand(arena.ActionTrigger, path, nil); err != nil {
				return "", err
			}
			return "triggered " + path, nil
		},
		"post": func(path string, body any) (string, error) {
			if err := client.SendCommand(arena.ActionPost, path, body); err != nil {
				return "", err
			}
			return "posted " + path, nil
		},
		"connect_clip": func(layer int, clip int) (string, error) {
			if err := client.ConnectClip(layer, clip); err != nil {
				return "", err
			}
			return fmt.Sprintf("clip fired at layer %d, clip %d", layer, clip), nil
		},
		"connect_column": func(column int) (string, error) {
			if err := client.ConnectColumn(column); err != nil {
				return "", err
			}
			return fmt.Sprintf("column %d fired", column), nil
		},
		"disconnect_all": func() (string, error) {
			if err := client.DisconnectAll(); err != nil {
				return "", err
			}
			return "blackout", nil
		},
		"set_layer_opacity": func(layer int, opacity float64) (string, error) {
			if err := client.SetLayerOpacity(layer, opacity); err != nil {
				return "", err
			}
			return fmt.Sprintf("layer %d opacity %v", layer, opacity), nil
		},
		"set_layer_bypass": func(layer int, bypassed bool) (string, error) {
			if err := client.SetLayerBypass(layer, bypassed); err != nil {
				return "", err
			}
			return fmt.Sprintf("layer %d bypassed=%v", layer, bypassed), nil
		},
		"set_bpm": func(bpm float64) (string, error) {
			if err := client.SetTempo(bpm); err != nil {
				return "", err
			}
			return fmt.Sprintf("bpm %v", bpm), nil
		},
		"set_crossfader": func(position float64) (string, error) {
			if err := client.SetCrossfader(position); err != nil {
				return "", err
			}
			return fmt.Sprintf("crossfader %v", position), nil
		},
		"add_video_effect": func(layer int, effectId string) (string, error) {
			if err := client.AddVideoEffect(layer, effectId); err != nil {
				return "", err
			}
			return fmt.Sprintf("effect %q added to layer %d", effectId, layer), nil
		},
		"fade_layer": func(layer int, to float64, ms int) (string, error) {
			return s.fadeLayer(ctx, layer, to, ms)
		},
		"subscribe": func(path string) (string, error) {
			if err := client.Subscribe(path); err != nil {
				return "", err
			}
			return "subscribed " + path, nil
		},
		"sleep": func(ms int) string {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(ms) * time.Millisecond):
			}
			return ""
		},
	}
}

// fadeLayer steps the layer's opacity from its mirrored value to the
// target over roughly ms milliseconds.
func (s *Server) fadeLayer(ctx context.Context, layer int, to float64, ms int) (string, error) {
	// mirror sequences are 0-based while operation indices are 1-based
	from := 1.0 - to
	opacityPath := fmt.Sprintf("/composition/layers/%d/video/opacity", layer-1)
	if current, ok := s.client.Tree().ResolveValue(opacityPath); ok {
		if f, isFloat := current.(float64); isFloat {
			from = f
		}
	}

	stepDelay := time.Duration(ms/fadeSteps) * time.Millisecond
	for i := 1; i <= fadeSteps; i += 1 {
		opacity := from + (to-from)*float64(i)/fadeSteps
		if err := s.client.SetLayerOpacity(layer, opacity); err != nil {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(stepDelay):
		}
	}
	return fmt.Sprintf("layer %d faded to %v", layer, to), nil
}
