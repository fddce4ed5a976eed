package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const defaultRestTimeout = 10 * time.Second
const defaultRestConnectTimeout = 5 * time.Second

// one-off discovery reads that do not need a live subscription

func defaultRestClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultRestConnectTimeout,
	}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultRestTimeout,
	}
}

var restClient = defaultRestClient()

// RestGet issues a one-shot GET against the remote's REST API, e.g.
// RestGet(ctx, "/effects").
func (self *Client) RestGet(ctx context.Context, apiPath string) (map[string]any, error) {
	url := RestUrl(self.host, self.port) + apiPath
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	response, err := restClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", url, response.StatusCode)
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return result, nil
}

// ListEffects returns all available video and audio effects grouped by
// category. Effect entries carry an "idstring" identifier usable with
// AddVideoEffect.
func (self *Client) ListEffects(ctx context.Context) (map[string]any, error) {
	return self.RestGet(ctx, "/effects")
}

// ListSources returns all available sources (clips, generators, live
// inputs) grouped by type.
func (self *Client) ListSources(ctx context.Context) (map[string]any, error) {
	return self.RestGet(ctx, "/sources")
}
