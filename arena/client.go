package arena

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"golang.org/x/exp/maps"

	"golang.org/x/exp/slices"
)

// Client is the public operation surface over one remote composition: a
// state tree, a pending-request registry, and a transport session, owned
// together. No ambient singleton; each Client owns exactly one mirror.
type Client struct {
	host     string
	port     int
	settings *ClientSettings

	tree    *StateTree
	pending *PendingRegistry
	session *Session

	subsLock      sync.Mutex
	subscriptions map[string]bool
}

func NewClientWithDefaults(host string, port int) *Client {
	return NewClient(host, port, false, DefaultClientSettings())
}

func NewClient(host string, port int, dryRun bool, settings *ClientSettings) *Client {
	tree := NewStateTree()
	pending := NewPendingRegistry()
	return &Client{
		host:          host,
		port:          port,
		settings:      settings,
		tree:          tree,
		pending:       pending,
		session:       NewSession(WsUrl(host, port), tree, pending, dryRun, settings.SessionSettings),
		subscriptions: map[string]bool{},
	}
}

func (self *Client) Tree() *StateTree {
	return self.tree
}

func (self *Client) Session() *Session {
	return self.session
}

func (self *Client) IsConnected() bool {
	return self.session.IsConnected()
}

// Connect dials the remote and blocks until the initial composition
// snapshot is mirrored. Subscriptions retained from a previous connection
// are re-issued, which makes Connect directly usable as a reconnect.
func (self *Client) Connect(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, self.settings.ConnectTimeout)
	defer cancel()

	if err := self.session.Connect(connectCtx); err != nil {
		return err
	}

	self.subsLock.Lock()
	addresses := maps.Keys(self.subscriptions)
	self.subsLock.Unlock()
	slices.Sort(addresses)
	for _, address := range addresses {
		if err := self.SendCommand(ActionSubscribe, address, nil); err != nil {
			glog.Warningf("[c]resubscribe %s error = %v\n", address, err)
		}
	}
	return nil
}

func (self *Client) Disconnect() {
	self.session.Disconnect()
}

// SendCommand encodes and sends one command, fire-and-forget. A command
// the remote silently ignores (unknown path, wrong shape) produces no
// error here; that is a protocol limitation, not a transport failure.
func (self *Client) SendCommand(action Action, target string, value any) error {
	payload, err := EncodeCommand(action, target, value)
	if err != nil {
		return err
	}
	return self.session.Send(payload)
}

// SendAndWait sends a command and suspends until the remote echoes a state
// update for target, confirming it took effect. The pending entry is
// registered before the send so an echo arriving immediately cannot be
// missed. At most one outstanding wait per path (ErrAlreadyPending).
func (self *Client) SendAndWait(ctx context.Context, action Action, target string, value any) (any, error) {
	return self.SendAndWaitWithTimeout(ctx, action, target, value, self.settings.AckTimeout)
}

func (self *Client) SendAndWaitWithTimeout(
	ctx context.Context,
	action Action,
	target string,
	value any,
	timeout time.Duration,
) (any, error) {
	payload, err := EncodeCommand(action, target, value)
	if err != nil {
		return nil, err
	}

	if self.session.DryRun() {
		glog.Infof("[dry-run]send and wait %s\n", payload)
		return value, nil
	}

	pending, err := self.pending.Register(target, timeout)
	if err != nil {
		return nil, err
	}
	if err := self.session.Send(payload); err != nil {
		self.pending.remove(pending.path, pending)
		return nil, err
	}
	return pending.Await(ctx)
}

// parameterAddress converts a hierarchical path to the by-id address form
// when the mirror already knows the parameter's id, falling back to the
// path itself before the id is known.
func (self *Client) parameterAddress(path string) string {
	if id, ok := self.tree.ResolveId(path); ok {
		return ByIdAddress(id)
	}
	return path
}

// Subscribe registers for push updates on a parameter. The remote requires
// the by-id form for id-assigned controls; the address is retained so
// Connect can re-subscribe after a reconnect.
func (self *Client) Subscribe(path string) error {
	address := self.parameterAddress(path)
	self.subsLock.Lock()
	self.subscriptions[address] = true
	self.subsLock.Unlock()
	return self.SendCommand(ActionSubscribe, address, nil)
}

func (self *Client) Unsubscribe(path string) error {
	address := self.parameterAddress(path)
	self.subsLock.Lock()
	delete(self.subscriptions, address)
	self.subsLock.Unlock()
	return self.SendCommand(ActionUnsubscribe, address, nil)
}

func (self *Client) Subscriptions() []string {
	self.subsLock.Lock()
	defer self.subsLock.Unlock()

	addresses := maps.Keys(self.subscriptions)
	slices.Sort(addresses)
	return addresses
}

// typed convenience operations
// layer/clip/column indices are 1-based, matching the remote's UI

func (self *Client) SetParameter(path string, value any) error {
	return self.SendCommand(ActionSet, path, value)
}

func (self *Client) SetLayerOpacity(layerIndex int, opacity float64) error {
	return self.SendCommand(
		ActionSet,
		fmt.Sprintf("/composition/layers/%d/video/opacity", layerIndex),
		opacity,
	)
}

func (self *Client) SetLayerBypass(layerIndex int, bypassed bool) error {
	return self.SendCommand(
		ActionSet,
		fmt.Sprintf("/composition/layers/%d/bypassed", layerIndex),
		bypassed,
	)
}

// ConnectClip triggers a clip to play, equivalent to pressing the clip
// cell.
func (self *Client) ConnectClip(layerIndex int, clipIndex int) error {
	return self.SendCommand(
		ActionTrigger,
		fmt.Sprintf("/composition/layers/%d/clips/%d/connect", layerIndex, clipIndex),
		nil,
	)
}

// ConnectColumn fires an entire column across all layers at once.
func (self *Client) ConnectColumn(columnIndex int) error {
	return self.SendCommand(
		ActionPost,
		fmt.Sprintf("/composition/columns/%d/connect", columnIndex),
		nil,
	)
}

// DisconnectAll stops every playing clip (blackout).
func (self *Client) DisconnectAll() error {
	return self.SendCommand(ActionPost, "/composition/disconnect-all", nil)
}

func (self *Client) AddVideoEffect(layerIndex int, effectId string) error {
	return self.SendCommand(
		ActionPost,
		fmt.Sprintf("/composition/layers/%d/effects/video/add", layerIndex),
		effectId,
	)
}

// Tempo returns the mirrored tempo parameter.
func (self *Client) Tempo() (*Param, error) {
	return self.tree.Param("/composition/tempocontroller/tempo")
}

// SetTempo changes the global tempo. Tempo is an id-assigned control, so
// the by-id address is used once the id is mirrored; before that the
// hierarchical path is an accepted fallback.
func (self *Client) SetTempo(bpm float64) error {
	return self.SendCommand(
		ActionSet,
		self.parameterAddress("/composition/tempocontroller/tempo"),
		bpm,
	)
}

// SetCrossfader moves the A/B crossfader, 0.0 = full A, 1.0 = full B.
func (self *Client) SetCrossfader(position float64) error {
	return self.SendCommand(
		ActionSet,
		self.parameterAddress("/composition/crossfader/phase"),
		position,
	)
}
