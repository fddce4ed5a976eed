package arena

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

var ErrNotConnected = errors.New("not connected")
var ErrAlreadyPending = errors.New("request already pending for path")
var ErrTimeout = errors.New("timeout")
var ErrUnresolvedPath = errors.New("path not present in composition state")

// Action is a wire-level command verb understood by the remote endpoint.
type Action string

const (
	ActionGet         Action = "get"
	ActionSet         Action = "set"
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionTrigger     Action = "trigger"
	ActionPost        Action = "post"
	ActionRemove      Action = "remove"
)

var allActions = []Action{
	ActionGet,
	ActionSet,
	ActionSubscribe,
	ActionUnsubscribe,
	ActionTrigger,
	ActionPost,
	ActionRemove,
}

// Structural actions address a location in the composition and carry a body.
// All other actions address a parameter and carry a value.
func (self Action) Structural() bool {
	switch self {
	case ActionPost, ActionRemove:
		return true
	default:
		return false
	}
}

func ParseAction(actionStr string) (Action, error) {
	for _, action := range allActions {
		if string(action) == actionStr {
			return action, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", actionStr)
}

// the two wire envelope shapes
// selecting the wrong shape for an action is silently ignored by the remote,
// so shape selection lives in exactly one place: EncodeCommand

type structuralEnvelope struct {
	Action Action `json:"action"`
	Path   string `json:"path"`
	Body   any    `json:"body,omitempty"`
}

type valueEnvelope struct {
	Action    Action `json:"action"`
	Parameter string `json:"parameter"`
	Value     any    `json:"value,omitempty"`
}

// EncodeCommand maps a logical command onto the correct wire envelope.
// post/remove produce {action, path, body}; get/set/subscribe/unsubscribe/
// trigger produce {action, parameter, value}. body/value are omitted when nil.
func EncodeCommand(action Action, target string, value any) ([]byte, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, errors.New("empty command target")
	}
	if action.Structural() {
		return json.Marshal(&structuralEnvelope{
			Action: action,
			Path:   target,
			Body:   value,
		})
	}
	return json.Marshal(&valueEnvelope{
		Action:    action,
		Parameter: target,
		Value:     value,
	})
}

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func (self Id) String() string {
	return ulid.ULID(self).String()
}
