package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/gorilla/websocket"
)

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (self ConnectionState) String() string {
	switch self {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(self))
	}
}

// CloseFunction is called when the socket closes unexpectedly. An explicit
// Disconnect does not fire it.
type CloseFunction = func(err error)

// UpdateFunction is called for each incremental update after it has been
// applied to the state tree. Snapshots fire it once with an empty path.
type UpdateFunction = func(path string, value any)

// Session owns one websocket connection to the remote endpoint: dial,
// receive loop, send, disconnect. Every inbound frame is applied to the
// shared state tree and then offered to the pending registry. The session
// never reconnects on its own; reconnect policy layers on top (see
// Reconnector).
type Session struct {
	instanceId Id
	url        string
	dryRun     bool
	settings   *SessionSettings

	tree    *StateTree
	pending *PendingRegistry

	stateLock sync.Mutex
	state     ConnectionState
	ws        *websocket.Conn
	closing   bool

	// gorilla allows one concurrent writer
	writeLock sync.Mutex

	closeCallbacks  *CallbackList[CloseFunction]
	updateCallbacks *CallbackList[UpdateFunction]
}

func NewSessionWithDefaults(url string, tree *StateTree, pending *PendingRegistry) *Session {
	return NewSession(url, tree, pending, false, DefaultSessionSettings())
}

func NewSession(
	url string,
	tree *StateTree,
	pending *PendingRegistry,
	dryRun bool,
	settings *SessionSettings,
) *Session {
	return &Session{
		instanceId:     NewId(),
		url:            url,
		dryRun:         dryRun,
		settings:       settings,
		tree:           tree,
		pending:        pending,
		closeCallbacks:  NewCallbackList[CloseFunction](),
		updateCallbacks: NewCallbackList[UpdateFunction](),
	}
}

func (self *Session) InstanceId() Id {
	return self.instanceId
}

func (self *Session) DryRun() bool {
	return self.dryRun
}

func (self *Session) State() ConnectionState {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return self.state
}

func (self *Session) IsConnected() bool {
	return self.State() == StateConnected
}

// AddCloseCallback returns a remove function.
func (self *Session) AddCloseCallback(callback CloseFunction) func() {
	return self.closeCallbacks.Add(callback)
}

// AddUpdateCallback returns a remove function.
func (self *Session) AddUpdateCallback(callback UpdateFunction) func() {
	return self.updateCallbacks.Add(callback)
}

// Connect dials the remote, starts the receive loop, requests the initial
// composition snapshot, and blocks until that snapshot arrives or the
// snapshot timeout elapses. Dial refusal and handshake timeout surface
// directly to the caller.
func (self *Session) Connect(ctx context.Context) error {
	self.stateLock.Lock()
	if self.state != StateDisconnected {
		state := self.state
		self.stateLock.Unlock()
		return fmt.Errorf("connect from %s", state)
	}
	self.state = StateConnecting
	self.closing = false
	self.stateLock.Unlock()

	if self.dryRun {
		glog.Infof("[s]%s dry run, would connect to %s\n", self.instanceId, self.url)
		self.stateLock.Lock()
		self.state = StateConnected
		self.stateLock.Unlock()
		return nil
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: self.settings.WsHandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, self.url, nil)
	if err != nil {
		self.stateLock.Lock()
		self.state = StateDisconnected
		self.stateLock.Unlock()
		return fmt.Errorf("connect %s: %w", self.url, err)
	}
	glog.Infof("[s]%s connected to %s\n", self.instanceId, self.url)

	self.stateLock.Lock()
	self.ws = ws
	self.state = StateConnected
	self.stateLock.Unlock()

	snapshotReady := make(chan struct{})
	readyOnce := &sync.Once{}
	ready := func() {
		readyOnce.Do(func() {
			close(snapshotReady)
		})
	}

	go self.receiveLoop(ws, ready)
	go self.pingLoop(ws)

	// the remote pushes the composition unsolicited on connect; the
	// explicit get covers servers that do not
	payload, err := EncodeCommand(ActionGet, "/"+RootSegment, nil)
	if err != nil {
		self.Disconnect()
		return err
	}
	if err := self.Send(payload); err != nil {
		self.Disconnect()
		return err
	}

	select {
	case <-snapshotReady:
		return nil
	case <-time.After(self.settings.SnapshotTimeout):
		self.Disconnect()
		return fmt.Errorf("initial snapshot: %w", ErrTimeout)
	case <-ctx.Done():
		self.Disconnect()
		return ctx.Err()
	}
}

// Send is a fire-and-forget write of an already-encoded command.
func (self *Session) Send(payload []byte) error {
	if self.dryRun {
		glog.Infof("[dry-run]%s send %s\n", self.instanceId, payload)
		return nil
	}

	self.stateLock.Lock()
	ws := self.ws
	connected := self.state == StateConnected
	self.stateLock.Unlock()
	if !connected || ws == nil {
		return ErrNotConnected
	}

	self.writeLock.Lock()
	defer self.writeLock.Unlock()

	ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	glog.V(2).Infof("[s]%s-> %s\n", self.instanceId, payload)
	return nil
}

// Disconnect closes the socket and fails outstanding pending requests. The
// state tree keeps its last-known contents so cached state stays readable
// while disconnected.
func (self *Session) Disconnect() {
	self.stateLock.Lock()
	ws := self.ws
	self.ws = nil
	self.closing = true
	wasConnected := self.state != StateDisconnected
	self.state = StateDisconnected
	self.stateLock.Unlock()

	if ws != nil {
		ws.Close()
	}
	self.pending.FailAll(ErrNotConnected)
	if wasConnected {
		glog.Infof("[s]%s disconnected\n", self.instanceId)
	}
}

func (self *Session) receiveLoop(ws *websocket.Conn, ready func()) {
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			self.handleClose(ws, err)
			return
		}
		self.handleFrame(message, ready)
	}
}

// handleFrame classifies one inbound frame and applies it to the mirror.
// Malformed frames are logged and dropped; a single corrupt frame must not
// take down the loop.
func (self *Session) handleFrame(message []byte, ready func()) {
	var frame map[string]any
	if err := json.Unmarshal(message, &frame); err != nil {
		glog.Warningf("[r]%s malformed frame dropped = %v\n", self.instanceId, err)
		return
	}

	if rawPath, ok := frame["path"].(string); ok {
		if value, hasValue := frame["value"]; hasValue {
			self.tree.ApplyPatch(rawPath, value)
			self.pending.Resolve(rawPath, value)
			for _, callback := range self.updateCallbacks.Get() {
				callback(rawPath, value)
			}
			glog.V(2).Infof("[r]%s<- %s\n", self.instanceId, rawPath)
			return
		}
	}

	// a full snapshot arrives as the bare composition object, no wrapper key
	_, hasLayers := frame["layers"]
	_, hasDecks := frame["decks"]
	if hasLayers || hasDecks {
		self.tree.ApplySnapshot(frame)
		self.pending.ResolveAll(func(path string) any {
			value, _ := self.tree.ResolveValue(path)
			return value
		})
		ready()
		for _, callback := range self.updateCallbacks.Get() {
			callback("", nil)
		}
		glog.V(2).Infof("[r]%s<- snapshot\n", self.instanceId)
		return
	}

	glog.Warningf("[r]%s unrecognized frame dropped\n", self.instanceId)
}

func (self *Session) handleClose(ws *websocket.Conn, err error) {
	self.stateLock.Lock()
	current := self.ws == ws
	closing := self.closing
	if current {
		self.ws = nil
		self.state = StateDisconnected
	}
	self.stateLock.Unlock()

	if !current {
		return
	}
	ws.Close()
	if closing {
		// explicit disconnect already failed the pending entries
		return
	}

	glog.Warningf("[r]%s connection closed = %v\n", self.instanceId, err)
	self.pending.FailAll(fmt.Errorf("connection closed: %w", err))
	for _, callback := range self.closeCallbacks.Get() {
		callback(err)
	}
}

// pingLoop keeps the connection alive across idle gaps. The remote only
// pushes frames on state changes, so without pings an intermediary can
// drop the socket as dead.
func (self *Session) pingLoop(ws *websocket.Conn) {
	for {
		self.stateLock.Lock()
		interval := self.settings.PingInterval
		writeTimeout := self.settings.WriteTimeout
		self.stateLock.Unlock()

		time.Sleep(interval)

		self.stateLock.Lock()
		current := self.ws == ws
		self.stateLock.Unlock()
		if !current {
			return
		}

		deadline := time.Now().Add(writeTimeout)
		if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			glog.V(2).Infof("[s]%s ping error = %v\n", self.instanceId, err)
			// force the receive loop out of ReadMessage so handleClose
			// fails the pending entries now, not at the TCP timeout
			ws.Close()
			return
		}
	}
}
