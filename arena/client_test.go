package arena

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func newTestClient(remote *testRemote) *Client {
	client := NewClientWithDefaults("127.0.0.1", 0)
	// point the session at the in-process remote
	client.session = NewSession(remote.url(), client.tree, client.pending, false, DefaultSessionSettings())
	return client
}

func TestClientSendAndWait(t *testing.T) {
	remote := newTestRemote(t, testComposition4Layers, true)
	client := newTestClient(remote)

	err := client.Connect(context.Background())
	assert.Equal(t, err, nil)
	defer client.Disconnect()

	value, err := client.SendAndWait(
		context.Background(),
		ActionSet,
		"/composition/layers/0/opacity",
		0.42,
	)
	assert.Equal(t, err, nil)
	assert.Equal(t, value, 0.42)

	// the echo patched the mirror too
	mirrored, ok := client.Tree().ResolveValue("/composition/layers/0/opacity")
	assert.Equal(t, ok, true)
	assert.Equal(t, mirrored, 0.42)
}

func TestClientSendAndWaitTimeout(t *testing.T) {
	// remote that never echoes
	remote := newTestRemote(t, testComposition4Layers, false)
	client := newTestClient(remote)

	err := client.Connect(context.Background())
	assert.Equal(t, err, nil)
	defer client.Disconnect()

	_, err = client.SendAndWaitWithTimeout(
		context.Background(),
		ActionSet,
		"/composition/layers/0/opacity",
		0.42,
		50*time.Millisecond,
	)
	assert.Equal(t, errors.Is(err, ErrTimeout), true)
	// no residual registration
	assert.Equal(t, client.pending.Size(), 0)
}

func TestClientByIdAddressing(t *testing.T) {
	remote := newTestRemote(t, testComposition4Layers, false)
	client := newTestClient(remote)

	err := client.Connect(context.Background())
	assert.Equal(t, err, nil)
	defer client.Disconnect()
	// drain the initial get
	remote.nextReceived(t)

	// tempo id 42 is mirrored, so the by-id form is used
	err = client.SetTempo(128)
	assert.Equal(t, err, nil)
	envelope := remote.nextReceived(t)
	assert.Equal(t, envelope["action"], "set")
	assert.Equal(t, envelope["parameter"], "/parameter/by-id/42")
	assert.Equal(t, envelope["value"], 128.0)

	// the crossfader id is not known yet, so the path is the fallback
	err = client.SetCrossfader(0.5)
	assert.Equal(t, err, nil)
	envelope = remote.nextReceived(t)
	assert.Equal(t, envelope["parameter"], "/composition/crossfader/phase")
}

func TestClientSubscribeRetained(t *testing.T) {
	remote := newTestRemote(t, testComposition4Layers, false)
	client := newTestClient(remote)

	err := client.Connect(context.Background())
	assert.Equal(t, err, nil)
	defer client.Disconnect()
	remote.nextReceived(t)

	err = client.Subscribe("/composition/tempocontroller/tempo")
	assert.Equal(t, err, nil)
	envelope := remote.nextReceived(t)
	assert.Equal(t, envelope["action"], "subscribe")
	assert.Equal(t, envelope["parameter"], "/parameter/by-id/42")
	assert.Equal(t, client.Subscriptions(), []string{"/parameter/by-id/42"})

	err = client.Unsubscribe("/composition/tempocontroller/tempo")
	assert.Equal(t, err, nil)
	envelope = remote.nextReceived(t)
	assert.Equal(t, envelope["action"], "unsubscribe")
	assert.Equal(t, len(client.Subscriptions()), 0)
}

func TestClientReconnectResubscribes(t *testing.T) {
	remote := newTestRemote(t, testComposition4Layers, false)
	client := newTestClient(remote)

	err := client.Connect(context.Background())
	assert.Equal(t, err, nil)
	defer client.Disconnect()
	remote.nextReceived(t)

	err = client.Subscribe("/composition/tempocontroller/tempo")
	assert.Equal(t, err, nil)
	remote.nextReceived(t)

	reconnector := NewReconnector(context.Background(), client, &ReconnectSettings{
		MaxAttempts: 5,
		MaxDelay:    10 * time.Millisecond,
		Jitter:      1 * time.Millisecond,
	})
	defer reconnector.Close()

	remote.dropConn()
	waitFor(t, func() bool {
		return client.IsConnected()
	})

	// the new connection saw the snapshot get and the re-subscribe
	sawGet := false
	sawSubscribe := false
	for i := 0; i < 2; i += 1 {
		envelope := remote.nextReceived(t)
		switch envelope["action"] {
		case "get":
			sawGet = true
		case "subscribe":
			sawSubscribe = true
			assert.Equal(t, envelope["parameter"], "/parameter/by-id/42")
		}
	}
	assert.Equal(t, sawGet, true)
	assert.Equal(t, sawSubscribe, true)
}

func TestClientDryRun(t *testing.T) {
	client := NewClient("127.0.0.1", 9999, true, DefaultClientSettings())

	err := client.Connect(context.Background())
	assert.Equal(t, err, nil)

	// send_and_wait short-circuits to a synthesized success, no socket
	value, err := client.SendAndWait(
		context.Background(),
		ActionSet,
		"/composition/layers/1/video/opacity",
		0.7,
	)
	assert.Equal(t, err, nil)
	assert.Equal(t, value, 0.7)
	assert.Equal(t, client.pending.Size(), 0)

	err = client.ConnectClip(1, 1)
	assert.Equal(t, err, nil)
}

func TestClientBootstrapDeckDryRun(t *testing.T) {
	client := NewClient("127.0.0.1", 9999, true, DefaultClientSettings())

	err := client.Connect(context.Background())
	assert.Equal(t, err, nil)

	deckIndex, err := client.BootstrapDeck(
		context.Background(),
		"test deck",
		[]string{"/clips/a.mov", "/clips/b.mov"},
	)
	assert.Equal(t, err, nil)
	// no mirrored decks to diff against, so the fallback index applies
	assert.Equal(t, deckIndex, 1)
}

func TestClientSearch(t *testing.T) {
	remote := newTestRemote(t, testComposition4Layers, false)
	client := newTestClient(remote)

	err := client.Connect(context.Background())
	assert.Equal(t, err, nil)
	defer client.Disconnect()

	result := client.Search("opacity")
	names := []string{}
	for _, operation := range result.Operations {
		names = append(names, operation.Name)
	}
	assert.Equal(t, contains(names, "SetLayerOpacity"), true)

	paths := []string{}
	for _, match := range result.Paths {
		paths = append(paths, match.Path)
	}
	assert.Equal(t, contains(paths, "/layers/0/opacity"), true)

	// registry matches work without any mirrored state
	offline := NewClient("127.0.0.1", 9999, true, DefaultClientSettings())
	result = offline.Search("tempo")
	names = []string{}
	for _, operation := range result.Operations {
		names = append(names, operation.Name)
	}
	assert.Equal(t, contains(names, "SetTempo"), true)
	assert.Equal(t, len(result.Paths), 0)
}
