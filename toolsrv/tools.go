package toolsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openvj/arenalink/arena"
)

// connected clip states reported by the remote's ParamState strings
var connectedStates = map[string]bool{
	"Connected":              true,
	"Connected & previewing": true,
}

func (s *Server) handleGetComposition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}

	snapshot := s.client.Tree().Snapshot()
	decks, _ := snapshot["decks"].([]any)
	layers, _ := snapshot["layers"].([]any)

	lines := []string{
		fmt.Sprintf("Composition — %d deck(s), %d layer(s)", len(decks), len(layers)),
		"",
	}
	for _, deck := range decks {
		mapping, ok := deck.(map[string]any)
		if !ok {
			continue
		}
		name := paramValue(mapping["name"], "<unnamed>")
		clipCount := 0
		if clips, ok := mapping["clips"].([]any); ok {
			for _, clip := range clips {
				if clipMapping, ok := clip.(map[string]any); ok {
					if state, ok := paramValue(clipMapping["connected"], "").(string); ok && connectedStates[state] {
						clipCount += 1
					}
				}
			}
		}
		lines = append(lines, fmt.Sprintf("  Deck: %v  (clips connected: %d)", name, clipCount))
	}
	if len(decks) == 0 {
		lines = append(lines, "  (no decks loaded)")
	}
	return textResult(strings.Join(lines, "\n")), nil
}

// paramValue unwraps a parameter mapping's "value" field, with a fallback
// when the node is absent or bare.
func paramValue(node any, fallback any) any {
	mapping, ok := node.(map[string]any)
	if !ok {
		if node == nil {
			return fallback
		}
		return node
	}
	if value, ok := mapping["value"]; ok {
		return value
	}
	return fallback
}

func (s *Server) handleSendCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	args := req.GetArguments()
	actionStr, _ := args["action"].(string)
	path, _ := args["path"].(string)
	action, err := arena.ParseAction(actionStr)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if err := s.client.SendCommand(action, path, args["value"]); err != nil {
		return errorResult(err.Error()), nil
	}
	msg := fmt.Sprintf("Sent: %s %s", strings.ToUpper(actionStr), path)
	if value, ok := args["value"]; ok && value != nil {
		msg += fmt.Sprintf(" = %v", value)
	}
	return textResult(msg), nil
}

func (s *Server) handleSetParameter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if err := s.client.SetParameter(path, args["value"]); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("Set %s = %v", path, args["value"])), nil
}

func (s *Server) handleConnectClip(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	layerIndex := intArg(req, "layer_index")
	clipIndex := intArg(req, "clip_index")
	if err := s.client.ConnectClip(layerIndex, clipIndex); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("Triggered clip at layer %d, clip %d", layerIndex, clipIndex)), nil
}

func (s *Server) handleConnectColumn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	columnIndex := intArg(req, "column_index")
	if err := s.client.ConnectColumn(columnIndex); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("Fired column %d", columnIndex)), nil
}

func (s *Server) handleDisconnectAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	if err := s.client.DisconnectAll(); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult("Disconnected all clips (blackout)"), nil
}

func (s *Server) handleSetLayerOpacity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	layerIndex := intArg(req, "layer_index")
	opacity := floatArg(req, "opacity")
	if err := s.client.SetLayerOpacity(layerIndex, opacity); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("Set layer %d opacity to %v", layerIndex, opacity)), nil
}

func (s *Server) handleSetLayerBypass(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	layerIndex := intArg(req, "layer_index")
	bypassed, _ := req.GetArguments()["bypassed"].(bool)
	if err := s.client.SetLayerBypass(layerIndex, bypassed); err != nil {
		return errorResult(err.Error()), nil
	}
	state := "active"
	if bypassed {
		state = "bypassed (muted)"
	}
	return textResult(fmt.Sprintf("Layer %d is now %s", layerIndex, state)), nil
}

func (s *Server) handleGetBpm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	param, err := s.client.Tempo()
	if err != nil {
		return textResult("tempo not yet mirrored"), nil
	}
	encoded, _ := json.MarshalIndent(param, "", "  ")
	return textResult(string(encoded)), nil
}

func (s *Server) handleSetBpm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	bpm := floatArg(req, "bpm")
	if err := s.client.SetTempo(bpm); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("Set BPM to %v", bpm)), nil
}

func (s *Server) handleSetCrossfader(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	position := floatArg(req, "position")
	if err := s.client.SetCrossfader(position); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("Set crossfader to %v", position)), nil
}

func (s *Server) handleAddVideoEffect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	layerIndex := intArg(req, "layer_index")
	effectId, _ := req.GetArguments()["effect_id"].(string)
	if err := s.client.AddVideoEffect(layerIndex, effectId); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("Added effect %q to layer %d", effectId, layerIndex)), nil
}

func (s *Server) handleListEffects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	data, err := s.client.ListEffects(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(formatDiscoveryTable(data)), nil
}

func (s *Server) handleListSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return errorResult(err.Error()), nil
	}
	data, err := s.client.ListSources(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(formatDiscoveryTable(data)), nil
}

// formatDiscoveryTable renders the effects/sources REST response. Entries
// carry an "idstring" identifier usable with add_video_effect.
func formatDiscoveryTable(data map[string]any) string {
	lines := []string{}
	for category, entries := range data {
		entryList, ok := entries.([]any)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("\n[%s]", category))
		for _, entry := range entryList {
			mapping, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name, _ := mapping["name"].(string)
			idstring, _ := mapping["idstring"].(string)
			lines = append(lines, fmt.Sprintf("  %-40s %s", strings.TrimSpace(name), idstring))
		}
	}
	if len(lines) == 0 {
		encoded, _ := json.MarshalIndent(data, "", "  ")
		return string(encoded)
	}
	return strings.Join(lines, "\n")
}

func (s *Server) handleCompositionResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}
	encoded, err := json.MarshalIndent(s.client.Tree().Snapshot(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "arena://composition",
			MIMEType: "application/json",
			Text:     string(encoded),
		},
	}, nil
}

func intArg(req mcp.CallToolRequest, name string) int {
	value, _ := req.GetArguments()[name].(float64)
	return int(value)
}

func floatArg(req mcp.CallToolRequest, name string) float64 {
	value, _ := req.GetArguments()[name].(float64)
	return value
}
