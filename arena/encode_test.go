package arena

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestEncodeCommandEnvelopeShapes(t *testing.T) {
	// post/remove must always produce path+body; every value action must
	// always produce parameter+value. The wrong shape is silently ignored
	// by the remote, so this is checked for every supported action.
	for _, action := range allActions {
		payload, err := EncodeCommand(action, "/composition/layers/1/bypassed", true)
		assert.Equal(t, err, nil)

		var envelope map[string]any
		err = json.Unmarshal(payload, &envelope)
		assert.Equal(t, err, nil)
		assert.Equal(t, envelope["action"], string(action))

		_, hasPath := envelope["path"]
		_, hasBody := envelope["body"]
		_, hasParameter := envelope["parameter"]
		_, hasValue := envelope["value"]

		if action.Structural() {
			assert.Equal(t, hasPath, true)
			assert.Equal(t, hasBody, true)
			assert.Equal(t, hasParameter, false)
			assert.Equal(t, hasValue, false)
		} else {
			assert.Equal(t, hasParameter, true)
			assert.Equal(t, hasValue, true)
			assert.Equal(t, hasPath, false)
			assert.Equal(t, hasBody, false)
		}
	}
}

func TestEncodeCommandSetTempo(t *testing.T) {
	payload, err := EncodeCommand(ActionSet, "/composition/tempocontroller/tempo/value", 128)
	assert.Equal(t, err, nil)
	assert.Equal(
		t,
		string(payload),
		`{"action":"set","parameter":"/composition/tempocontroller/tempo/value","value":128}`,
	)
}

func TestEncodeCommandOmitsNil(t *testing.T) {
	payload, err := EncodeCommand(ActionTrigger, "/composition/layers/1/clips/2/connect", nil)
	assert.Equal(t, err, nil)
	assert.Equal(
		t,
		string(payload),
		`{"action":"trigger","parameter":"/composition/layers/1/clips/2/connect"}`,
	)

	payload, err = EncodeCommand(ActionPost, "/composition/decks/add", nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, string(payload), `{"action":"post","path":"/composition/decks/add"}`)
}

func TestEncodeCommandKeepsFalse(t *testing.T) {
	// false is a meaningful value (unbypass), not an omittable zero
	payload, err := EncodeCommand(ActionSet, "/composition/layers/2/bypassed", false)
	assert.Equal(t, err, nil)
	assert.Equal(
		t,
		string(payload),
		`{"action":"set","parameter":"/composition/layers/2/bypassed","value":false}`,
	)
}

func TestEncodeCommandRejectsUnknownAction(t *testing.T) {
	_, err := EncodeCommand(Action("update"), "/composition", nil)
	assert.NotEqual(t, err, nil)

	_, err = EncodeCommand(ActionGet, "", nil)
	assert.NotEqual(t, err, nil)
}
