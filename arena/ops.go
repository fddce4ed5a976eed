package arena

import (
	"strings"

	"golang.org/x/exp/maps"

	"golang.org/x/exp/slices"
)

// Operation describes one client operation for introspection. The registry
// is static and enumerable so discovery is a lookup, not reflection over
// live objects.
type Operation struct {
	Name        string
	Signature   string
	Description string
}

var operations = map[string]Operation{
	"Connect": {
		Name:        "Connect",
		Signature:   "Connect(ctx) error",
		Description: "Dial the remote and mirror the initial composition snapshot. Re-issues retained subscriptions.",
	},
	"Disconnect": {
		Name:        "Disconnect",
		Signature:   "Disconnect()",
		Description: "Close the connection. Cached composition state stays readable.",
	},
	"SendCommand": {
		Name:        "SendCommand",
		Signature:   "SendCommand(action, target, value) error",
		Description: "Low-level raw command, fire-and-forget. Actions: get, set, subscribe, unsubscribe, trigger, post, remove.",
	},
	"SendAndWait": {
		Name:        "SendAndWait",
		Signature:   "SendAndWait(ctx, action, target, value) (any, error)",
		Description: "Send a command and block until the remote echoes a state update for the target path.",
	},
	"Subscribe": {
		Name:        "Subscribe",
		Signature:   "Subscribe(path) error",
		Description: "Subscribe to push updates for a parameter. Resolves to the by-id address form when known.",
	},
	"Unsubscribe": {
		Name:        "Unsubscribe",
		Signature:   "Unsubscribe(path) error",
		Description: "Stop push updates for a parameter.",
	},
	"SetParameter": {
		Name:        "SetParameter",
		Signature:   "SetParameter(path, value) error",
		Description: "Set any remote parameter by path. Useful for opacity, speed, and other per-clip or per-layer values.",
	},
	"SetLayerOpacity": {
		Name:        "SetLayerOpacity",
		Signature:   "SetLayerOpacity(layerIndex, opacity) error",
		Description: "Fade a layer in or out. 0.0 = invisible, 1.0 = full opacity. Layer index is 1-based.",
	},
	"SetLayerBypass": {
		Name:        "SetLayerBypass",
		Signature:   "SetLayerBypass(layerIndex, bypassed) error",
		Description: "Mute or unmute a layer. Bypassed layers produce no output but keep playing internally.",
	},
	"ConnectClip": {
		Name:        "ConnectClip",
		Signature:   "ConnectClip(layerIndex, clipIndex) error",
		Description: "Trigger a clip to play, equivalent to pressing a clip cell. Indices are 1-based.",
	},
	"ConnectColumn": {
		Name:        "ConnectColumn",
		Signature:   "ConnectColumn(columnIndex) error",
		Description: "Fire an entire column across all layers simultaneously.",
	},
	"DisconnectAll": {
		Name:        "DisconnectAll",
		Signature:   "DisconnectAll() error",
		Description: "Stop all playing clips in the composition (blackout).",
	},
	"AddVideoEffect": {
		Name:        "AddVideoEffect",
		Signature:   "AddVideoEffect(layerIndex, effectId) error",
		Description: "Add a video effect to a layer. Discover effect ids with ListEffects.",
	},
	"Tempo": {
		Name:        "Tempo",
		Signature:   "Tempo() (*Param, error)",
		Description: "Read the mirrored global tempo (bpm) parameter.",
	},
	"SetTempo": {
		Name:        "SetTempo",
		Signature:   "SetTempo(bpm) error",
		Description: "Change the global composition tempo. Uses by-id addressing once the id is known.",
	},
	"SetCrossfader": {
		Name:        "SetCrossfader",
		Signature:   "SetCrossfader(position) error",
		Description: "Move the A/B crossfader. 0.0 = full A, 1.0 = full B. Uses by-id addressing once the id is known.",
	},
	"BootstrapDeck": {
		Name:        "BootstrapDeck",
		Signature:   "BootstrapDeck(ctx, name, clipPaths) (int, error)",
		Description: "Create a deck, rename it, and populate it with clips in a grid. Returns the 1-based deck index.",
	},
	"ListEffects": {
		Name:        "ListEffects",
		Signature:   "ListEffects(ctx) (map, error)",
		Description: "List available video and audio effects grouped by category, from the REST discovery API.",
	},
	"ListSources": {
		Name:        "ListSources",
		Signature:   "ListSources(ctx) (map, error)",
		Description: "List available sources (clips, generators, live inputs) grouped by type.",
	},
}

// Operations enumerates the registry in name order.
func Operations() []Operation {
	names := maps.Keys(operations)
	slices.Sort(names)
	enumerated := make([]Operation, 0, len(names))
	for _, name := range names {
		enumerated = append(enumerated, operations[name])
	}
	return enumerated
}

func LookupOperation(name string) (Operation, bool) {
	operation, ok := operations[name]
	return operation, ok
}

// SearchResult holds one introspection query's hits: matching operations
// from the static registry and matching paths from the live mirror.
type SearchResult struct {
	Operations []Operation
	Paths      []PathMatch
}

// Search keyword-matches query against operation names, signatures, and
// descriptions, and against current composition state paths.
func (self *Client) Search(query string) *SearchResult {
	q := strings.ToLower(query)

	matched := []Operation{}
	for _, operation := range Operations() {
		if strings.Contains(strings.ToLower(operation.Name), q) ||
			strings.Contains(strings.ToLower(operation.Signature), q) ||
			strings.Contains(strings.ToLower(operation.Description), q) {
			matched = append(matched, operation)
		}
	}

	return &SearchResult{
		Operations: matched,
		Paths:      self.tree.SearchPaths(query),
	}
}
