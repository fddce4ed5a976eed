package arena

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"golang.org/x/exp/maps"
)

const searchMaxDepth = 4
const searchMaxSeqItems = 5

// StateTree is the live in-memory mirror of the remote composition. The
// receive loop is the sole writer (ApplySnapshot/ApplyPatch); every other
// component only reads. A single coarse lock keeps a snapshot replace from
// interleaving with a patch.
type StateTree struct {
	stateLock sync.Mutex

	// the root IS the composition, with no wrapper key
	root map[string]any

	// id -> canonical remote path ("/composition/..."), maintained
	// incrementally so by-id reverse lookup stays O(1) as the tree grows
	idPaths map[int64]string
}

func NewStateTree() *StateTree {
	return &StateTree{
		root:    map[string]any{},
		idPaths: map[int64]string{},
	}
}

// ApplySnapshot atomically replaces the entire composition and rebuilds the
// id index. Pending requests are untouched; the session resolves them
// separately against the new tree.
func (self *StateTree) ApplySnapshot(root map[string]any) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if root == nil {
		root = map[string]any{}
	}
	self.root = root
	maps.Clear(self.idPaths)
	self.indexIds(root, "/"+RootSegment)
}

// ApplyPatch merges one incremental update into the mirror. Intermediate
// containers are created for previously-unknown slots. When the existing
// node is a parameter mapping (carries a "value" field) and the incoming
// value is a scalar, only the mapping's "value" field is patched so the
// parameter's id and range metadata survive; otherwise the node itself is
// replaced.
func (self *StateTree) ApplyPatch(path string, value any) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	segs := ParsePath(path).StripRoot()
	if len(segs) == 0 {
		return
	}
	self.root[segs[0]] = patchNode(self.root[segs[0]], segs[1:], value)

	// a replaced node may carry different ids than the one it displaced;
	// evict everything indexed under the patched path before re-indexing
	patchedPath := "/" + RootSegment + segs.String()
	for id, indexedPath := range self.idPaths {
		if indexedPath == patchedPath || strings.HasPrefix(indexedPath, patchedPath+"/") {
			delete(self.idPaths, id)
		}
	}
	patched, ok := segs.Walk(self.root)
	if ok {
		self.indexIds(patched, patchedPath)
	}
}

func patchNode(node any, segs Path, value any) any {
	if len(segs) == 0 {
		if current, ok := node.(map[string]any); ok {
			if _, hasValue := current["value"]; hasValue {
				if _, isMapping := value.(map[string]any); !isMapping {
					current["value"] = value
					return current
				}
			}
		}
		return value
	}

	seg := segs[0]
	rest := segs[1:]
	switch current := node.(type) {
	case map[string]any:
		current[seg] = patchNode(current[seg], rest, value)
		return current
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 {
			return current
		}
		for len(current) <= i {
			current = append(current, nil)
		}
		current[i] = patchNode(current[i], rest, value)
		return current
	default:
		if i, err := strconv.Atoi(seg); err == nil && 0 <= i {
			sequence := make([]any, i+1)
			sequence[i] = patchNode(nil, rest, value)
			return sequence
		}
		return map[string]any{seg: patchNode(nil, rest, value)}
	}
}

// indexIds walks a subtree recording every mapping that carries a numeric
// "id" field. Caller holds stateLock. ApplySnapshot clears and rebuilds the
// whole index; ApplyPatch re-indexes only the patched subtree, after
// evicting the entries previously recorded under it.
func (self *StateTree) indexIds(node any, path string) {
	switch current := node.(type) {
	case map[string]any:
		if id, ok := nodeId(current); ok {
			self.idPaths[id] = path
		}
		for key, child := range current {
			self.indexIds(child, path+"/"+key)
		}
	case []any:
		for i, child := range current {
			self.indexIds(child, path+"/"+strconv.Itoa(i))
		}
	}
}

func nodeId(node map[string]any) (int64, bool) {
	switch id := node["id"].(type) {
	case float64:
		return int64(id), true
	case int64:
		return id, true
	case int:
		return int64(id), true
	case json.Number:
		parsed, err := id.Int64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// Resolve walks the tree by path, stripping at most one leading wrapper
// segment. The returned node is a deep copy so callers can read it without
// racing the receive loop. ok is false when any segment is missing, which
// means not-yet-known, not an error.
func (self *StateTree) Resolve(path string) (any, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	node, ok := ParsePath(path).StripRoot().Walk(self.root)
	if !ok {
		return nil, false
	}
	return deepCopy(node), true
}

// ResolveValue is Resolve with parameter-mapping unwrap: when the resolved
// node is a mapping carrying a "value" field, the field is returned.
func (self *StateTree) ResolveValue(path string) (any, bool) {
	node, ok := self.Resolve(path)
	if !ok {
		return nil, false
	}
	if mapping, isMapping := node.(map[string]any); isMapping {
		if value, hasValue := mapping["value"]; hasValue {
			return value, true
		}
	}
	return node, true
}

// ResolveId returns the numeric id assigned by the remote to the parameter
// at path, if the mirror knows it yet.
func (self *StateTree) ResolveId(path string) (int64, bool) {
	node, ok := self.Resolve(path)
	if !ok {
		return 0, false
	}
	mapping, isMapping := node.(map[string]any)
	if !isMapping {
		return 0, false
	}
	return nodeId(mapping)
}

// ResolvePath is the reverse lookup over the incrementally maintained index.
func (self *StateTree) ResolvePath(id int64) (string, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	path, ok := self.idPaths[id]
	return path, ok
}

func (self *StateTree) Ids() []int64 {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return maps.Keys(self.idPaths)
}

// Snapshot returns a deep copy of the whole composition.
func (self *StateTree) Snapshot() map[string]any {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	snapshot, _ := deepCopy(self.root).(map[string]any)
	return snapshot
}

// Param is the typed view of a remote parameter mapping node.
type Param struct {
	Id        int64   `mapstructure:"id"`
	Value     any     `mapstructure:"value"`
	Min       float64 `mapstructure:"min"`
	Max       float64 `mapstructure:"max"`
	ValueType string  `mapstructure:"valuetype"`
}

func (self *StateTree) Param(path string) (*Param, error) {
	node, ok := self.Resolve(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedPath, path)
	}
	mapping, isMapping := node.(map[string]any)
	if !isMapping {
		return nil, fmt.Errorf("%w: %s is not a parameter", ErrUnresolvedPath, path)
	}
	var param Param
	if err := mapstructure.WeakDecode(mapping, &param); err != nil {
		return nil, fmt.Errorf("decode parameter %s: %w", path, err)
	}
	return &param, nil
}

// PathMatch is one SearchPaths hit. Value is the parameter value hint when
// the matched node is a parameter mapping.
type PathMatch struct {
	Path     string
	Value    any
	HasValue bool
}

// SearchPaths collects tree paths whose final segment contains the query,
// case-insensitive. The walk is depth-limited and expands only the leading
// items of each sequence to keep results readable on large compositions.
func (self *StateTree) SearchPaths(query string) []PathMatch {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	matches := []PathMatch{}
	searchNode(self.root, "", strings.ToLower(query), 0, &matches)
	return matches
}

func searchNode(node any, path string, query string, depth int, matches *[]PathMatch) {
	if searchMaxDepth < depth {
		return
	}
	switch current := node.(type) {
	case map[string]any:
		for key, child := range current {
			childPath := path + "/" + key
			if strings.Contains(strings.ToLower(key), query) {
				match := PathMatch{Path: childPath}
				if mapping, isMapping := child.(map[string]any); isMapping {
					if value, hasValue := mapping["value"]; hasValue {
						match.Value = deepCopy(value)
						match.HasValue = true
					}
				}
				*matches = append(*matches, match)
			}
			searchNode(child, childPath, query, depth+1, matches)
		}
	case []any:
		for i, child := range current {
			if searchMaxSeqItems <= i {
				break
			}
			searchNode(child, path+"/"+strconv.Itoa(i), query, depth+1, matches)
		}
	}
}

func deepCopy(node any) any {
	switch current := node.(type) {
	case map[string]any:
		copied := make(map[string]any, len(current))
		for key, child := range current {
			copied[key] = deepCopy(child)
		}
		return copied
	case []any:
		copied := make([]any, len(current))
		for i, child := range current {
			copied[i] = deepCopy(child)
		}
		return copied
	default:
		return current
	}
}
