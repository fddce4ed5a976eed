package arena

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/golang/glog"
)

// BootstrapDeck creates a new deck, renames it, and populates it with
// clips laid out in a grid. The deck add and rename are confirmed via
// SendAndWait before clips load; clip opens run concurrently with a
// bounded window to avoid flooding the socket. Returns the 1-based index
// of the new deck.
func (self *Client) BootstrapDeck(ctx context.Context, name string, clipPaths []string) (int, error) {
	glog.Infof("[c]bootstrap deck %q with %d clips\n", name, len(clipPaths))

	deckIdsBefore := map[int64]bool{}
	for _, id := range self.deckIds() {
		deckIdsBefore[id] = true
	}

	if _, err := self.SendAndWait(ctx, ActionPost, "/composition/decks/add", nil); err != nil {
		return 0, fmt.Errorf("add deck: %w", err)
	}

	// the new deck is the one whose id was not mirrored before the add;
	// fall back to the last deck when the diff finds nothing (dry run)
	deckIndex := 0
	decksAfter := self.deckIds()
	for i, id := range decksAfter {
		if !deckIdsBefore[id] {
			deckIndex = i + 1
			break
		}
	}
	if deckIndex == 0 {
		deckIndex = max(len(decksAfter), 1)
	}

	namePath := fmt.Sprintf("/composition/decks/%d/name", deckIndex)
	if _, err := self.SendAndWait(ctx, ActionSet, namePath, name); err != nil {
		return deckIndex, fmt.Errorf("rename deck %d: %w", deckIndex, err)
	}

	window := make(chan struct{}, self.settings.BootstrapWindowSize)
	var loadErr error
	var errLock sync.Mutex
	var wg sync.WaitGroup
	for i, clipPath := range clipPaths {
		wg.Add(1)
		go func(i int, clipPath string) {
			defer wg.Done()
			window <- struct{}{}
			defer func() {
				<-window
			}()

			column := (i % self.settings.GridWidth) + 1
			layer := (i / self.settings.GridWidth) + 1
			openPath := fmt.Sprintf("/composition/layers/%d/clips/%d/open", layer, column)
			// the remote expects a file:// url, not a bare path
			if err := self.SendCommand(ActionPost, openPath, fileUrl(clipPath)); err != nil {
				errLock.Lock()
				if loadErr == nil {
					loadErr = err
				}
				errLock.Unlock()
			}
		}(i, clipPath)
	}
	wg.Wait()
	if loadErr != nil {
		return deckIndex, fmt.Errorf("load clips: %w", loadErr)
	}

	glog.Infof("[c]deck %q bootstrapped at index %d\n", name, deckIndex)
	return deckIndex, nil
}

func (self *Client) deckIds() []int64 {
	node, ok := self.tree.Resolve("/composition/decks")
	if !ok {
		return nil
	}
	decks, ok := node.([]any)
	if !ok {
		return nil
	}
	ids := []int64{}
	for _, deck := range decks {
		if mapping, isMapping := deck.(map[string]any); isMapping {
			if id, hasId := nodeId(mapping); hasId {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func fileUrl(path string) string {
	u := &url.URL{
		Scheme: "file",
		Path:   path,
	}
	return u.String()
}
