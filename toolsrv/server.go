// Package toolsrv exposes a live arena client over MCP: a named tool per
// client operation, plus a search/execute pair for multi-step control from
// a single call.
package toolsrv

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openvj/arenalink/arena"
)

type Server struct {
	client    *arena.Client
	mcpServer *server.MCPServer
}

func NewServer(client *arena.Client, version string) *Server {
	s := &Server{
		client: client,
		mcpServer: server.NewMCPServer(
			"arenalink",
			version,
			server.WithToolCapabilities(true),
			server.WithPromptCapabilities(true),
			server.WithResourceCapabilities(false, true),
		),
	}
	s.registerTools()
	s.registerCodeTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// ServeStdio starts the server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ensureConnected connects lazily on first tool use.
func (s *Server) ensureConnected(ctx context.Context) error {
	if s.client.IsConnected() {
		return nil
	}
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf(
			"could not connect: %w. Is the media server running with its websocket API enabled?", err)
	}
	return nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_composition",
			mcp.WithDescription("Summary of the current composition state: deck names, layer count, and connected clip count per deck."),
		),
		s.handleGetComposition,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("send_command",
			mcp.WithDescription("Low-level raw command. Use get_composition or search first to find the right path."),
			mcp.WithString("action", mcp.Required(), mcp.Description("One of: get, set, subscribe, unsubscribe, trigger, post, remove")),
			mcp.WithString("path", mcp.Required(), mcp.Description("API path, e.g. /composition/layers/1/clips/1/connect")),
			mcp.WithString("value", mcp.Description("Optional value to send with the command")),
		),
		s.handleSendCommand,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_parameter",
			mcp.WithDescription("Set any parameter by its API path. Useful for opacity, speed, and other per-clip or per-layer values."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Full path, e.g. /composition/layers/1/master")),
			mcp.WithString("value", mcp.Required(), mcp.Description("Value to set")),
		),
		s.handleSetParameter,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("connect_clip",
			mcp.WithDescription("Trigger a clip to play (equivalent to pressing a clip cell)."),
			mcp.WithNumber("layer_index", mcp.Required(), mcp.Description("1-based layer index")),
			mcp.WithNumber("clip_index", mcp.Required(), mcp.Description("1-based clip index")),
		),
		s.handleConnectClip,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("connect_column",
			mcp.WithDescription("Fire an entire column (all layers simultaneously)."),
			mcp.WithNumber("column_index", mcp.Required(), mcp.Description("1-based column index")),
		),
		s.handleConnectColumn,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("disconnect_all",
			mcp.WithDescription("Stop all playing clips in the composition (blackout)."),
		),
		s.handleDisconnectAll,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_layer_opacity",
			mcp.WithDescription("Fade a layer in or out (0.0 = invisible, 1.0 = full opacity)."),
			mcp.WithNumber("layer_index", mcp.Required(), mcp.Description("1-based layer index")),
			mcp.WithNumber("opacity", mcp.Required(), mcp.Description("Opacity between 0.0 and 1.0")),
		),
		s.handleSetLayerOpacity,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_layer_bypass",
			mcp.WithDescription("Mute or unmute a layer. Bypassed layers produce no output but keep playing internally."),
			mcp.WithNumber("layer_index", mcp.Required(), mcp.Description("1-based layer index")),
			mcp.WithBoolean("bypassed", mcp.Required(), mcp.Description("true to mute, false to unmute")),
		),
		s.handleSetLayerBypass,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_bpm",
			mcp.WithDescription("Read the current tempo from the mirrored state."),
		),
		s.handleGetBpm,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_bpm",
			mcp.WithDescription("Change the global composition tempo."),
			mcp.WithNumber("bpm", mcp.Required(), mcp.Description("Tempo in BPM, e.g. 128.0")),
		),
		s.handleSetBpm,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_crossfader",
			mcp.WithDescription("Move the A/B crossfader (0.0 = full A, 1.0 = full B)."),
			mcp.WithNumber("position", mcp.Required(), mcp.Description("Position between 0.0 and 1.0")),
		),
		s.handleSetCrossfader,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("add_video_effect",
			mcp.WithDescription("Add a video effect to a layer. Use list_effects to discover effect ids."),
			mcp.WithNumber("layer_index", mcp.Required(), mcp.Description("1-based layer index")),
			mcp.WithString("effect_id", mcp.Required(), mcp.Description("Effect identifier, e.g. 'Glow'")),
		),
		s.handleAddVideoEffect,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_effects",
			mcp.WithDescription("All available video and audio effects grouped by category."),
		),
		s.handleListEffects,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_sources",
			mcp.WithDescription("All available sources (clips, generators, live inputs) grouped by type."),
		),
		s.handleListSources,
	)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource("arena://composition", "Live Composition State",
			mcp.WithResourceDescription("Full JSON mirror of the current composition. Read this before deciding what decks and layers exist."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleCompositionResource,
	)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
