package arena

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func testComposition() map[string]any {
	return map[string]any{
		"name": map[string]any{"id": float64(1), "value": "demo"},
		"layers": []any{
			map[string]any{
				"opacity": map[string]any{"id": float64(10), "value": 1.0},
			},
			map[string]any{
				"opacity": map[string]any{"id": float64(11), "value": 0.8},
			},
		},
		"tempocontroller": map[string]any{
			"tempo": map[string]any{"id": float64(42), "value": 120.0, "min": 20.0, "max": 500.0},
		},
	}
}

func TestResolveStripsWrapper(t *testing.T) {
	tree := NewStateTree()
	tree.ApplySnapshot(testComposition())

	withWrapper, ok := tree.Resolve("/composition/layers/1/opacity")
	assert.Equal(t, ok, true)
	bare, ok := tree.Resolve("/layers/1/opacity")
	assert.Equal(t, ok, true)
	assert.Equal(t, withWrapper, bare)

	value, ok := tree.ResolveValue("/composition/layers/1/opacity")
	assert.Equal(t, ok, true)
	assert.Equal(t, value, 0.8)
}

func TestResolveScalarLeaf(t *testing.T) {
	tree := NewStateTree()
	tree.ApplySnapshot(map[string]any{
		"layers": []any{
			map[string]any{"opacity": 1.0},
			map[string]any{"opacity": 0.8},
		},
	})

	value, ok := tree.Resolve("layers/1/opacity")
	assert.Equal(t, ok, true)
	assert.Equal(t, value, 0.8)
}

func TestResolveAbsentIsNotError(t *testing.T) {
	tree := NewStateTree()

	_, ok := tree.Resolve("/composition/layers/0/opacity")
	assert.Equal(t, ok, false)
}

func TestPatchAfterSnapshotWins(t *testing.T) {
	tree := NewStateTree()
	tree.ApplySnapshot(testComposition())

	tree.ApplyPatch("/composition/layers/1/opacity", 0.25)

	value, ok := tree.ResolveValue("/composition/layers/1/opacity")
	assert.Equal(t, ok, true)
	assert.Equal(t, value, 0.25)

	// parameter metadata survives a scalar patch
	id, ok := tree.ResolveId("/composition/layers/1/opacity")
	assert.Equal(t, ok, true)
	assert.Equal(t, id, int64(11))
}

func TestLastPatchWins(t *testing.T) {
	tree := NewStateTree()
	tree.ApplySnapshot(testComposition())

	tree.ApplyPatch("/composition/tempocontroller/tempo", 128.0)
	tree.ApplyPatch("/composition/tempocontroller/tempo", 140.0)

	value, ok := tree.ResolveValue("/composition/tempocontroller/tempo")
	assert.Equal(t, ok, true)
	assert.Equal(t, value, 140.0)
}

func TestPatchCreatesIntermediates(t *testing.T) {
	tree := NewStateTree()

	tree.ApplyPatch("/composition/layers/2/clips/0/connected", "Connected")

	value, ok := tree.Resolve("/layers/2/clips/0/connected")
	assert.Equal(t, ok, true)
	assert.Equal(t, value, "Connected")

	// the created sequence has the addressed length
	layers, ok := tree.Resolve("/layers")
	assert.Equal(t, ok, true)
	assert.Equal(t, len(layers.([]any)), 3)
}

func TestIdIndex(t *testing.T) {
	tree := NewStateTree()
	tree.ApplySnapshot(testComposition())

	path, ok := tree.ResolvePath(42)
	assert.Equal(t, ok, true)
	assert.Equal(t, path, "/composition/tempocontroller/tempo")

	id, ok := tree.ResolveId("/composition/layers/0/opacity")
	assert.Equal(t, ok, true)
	assert.Equal(t, id, int64(10))

	// a patch that introduces a new parameter mapping indexes its id
	tree.ApplyPatch("/composition/crossfader", map[string]any{
		"phase": map[string]any{"id": float64(77), "value": 0.5},
	})
	path, ok = tree.ResolvePath(77)
	assert.Equal(t, ok, true)
	assert.Equal(t, path, "/composition/crossfader/phase")

	// a snapshot replaces the index wholesale
	tree.ApplySnapshot(map[string]any{
		"layers": []any{},
	})
	_, ok = tree.ResolvePath(42)
	assert.Equal(t, ok, false)
}

func TestIdIndexEvictsReplacedIds(t *testing.T) {
	tree := NewStateTree()
	tree.ApplySnapshot(testComposition())
	tree.ApplyPatch("/composition/crossfader/phase", map[string]any{
		"id": float64(77), "value": 0.5,
	})

	// replacing a node with a mapping carrying a different id drops the
	// old id from the index
	tree.ApplyPatch("/composition/crossfader/phase", map[string]any{
		"id": float64(88), "value": 0.5,
	})
	_, ok := tree.ResolvePath(77)
	assert.Equal(t, ok, false)
	path, ok := tree.ResolvePath(88)
	assert.Equal(t, ok, true)
	assert.Equal(t, path, "/composition/crossfader/phase")

	// replacing a whole subtree evicts the ids of its descendants too
	tree.ApplyPatch("/composition/tempocontroller", map[string]any{
		"resync": map[string]any{"id": float64(43)},
	})
	_, ok = tree.ResolvePath(42)
	assert.Equal(t, ok, false)
	path, ok = tree.ResolvePath(43)
	assert.Equal(t, ok, true)
	assert.Equal(t, path, "/composition/tempocontroller/resync")

	// ids outside the patched path are untouched
	id, ok := tree.ResolveId("/composition/layers/0/opacity")
	assert.Equal(t, ok, true)
	assert.Equal(t, id, int64(10))
}

func TestSnapshotIsACopy(t *testing.T) {
	tree := NewStateTree()
	tree.ApplySnapshot(testComposition())

	snapshot := tree.Snapshot()
	snapshot["layers"].([]any)[0].(map[string]any)["opacity"] = 0.0

	value, ok := tree.ResolveValue("/composition/layers/0/opacity")
	assert.Equal(t, ok, true)
	assert.Equal(t, value, 1.0)
}

func TestParam(t *testing.T) {
	tree := NewStateTree()
	tree.ApplySnapshot(testComposition())

	param, err := tree.Param("/composition/tempocontroller/tempo")
	assert.Equal(t, err, nil)
	assert.Equal(t, param.Id, int64(42))
	assert.Equal(t, param.Value, 120.0)
	assert.Equal(t, param.Min, 20.0)
	assert.Equal(t, param.Max, 500.0)

	_, err = tree.Param("/composition/nonexistent")
	assert.NotEqual(t, err, nil)
}

func TestSearchPaths(t *testing.T) {
	tree := NewStateTree()
	tree.ApplySnapshot(testComposition())

	matches := tree.SearchPaths("tempo")
	paths := []string{}
	for _, match := range matches {
		paths = append(paths, match.Path)
	}
	assert.Equal(t, contains(paths, "/tempocontroller"), true)
	assert.Equal(t, contains(paths, "/tempocontroller/tempo"), true)

	matches = tree.SearchPaths("opacity")
	found := false
	for _, match := range matches {
		if match.Path == "/layers/1/opacity" {
			found = true
			assert.Equal(t, match.HasValue, true)
			assert.Equal(t, match.Value, 0.8)
		}
	}
	assert.Equal(t, found, true)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
