package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ErrDecode is returned when stored action data cannot be turned back into
// a payload.
var ErrDecode = errors.New("decode action data")

// Encode serializes p for the action_data column.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("encode action: %w: nil payload", ErrUnknownAction)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s action: %w", p.Type(), err)
	}
	return data, nil
}

// Decode rebuilds the payload of type t from stored data and validates it.
// Unknown keys are ignored so that data written by newer versions still loads.
func Decode(t Type, data []byte) (Payload, error) {
	if _, err := ParseType(string(t)); err != nil {
		return nil, err
	}
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, t, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s: data is not an object", ErrDecode, t)
	}
	p, err := build(t, raw, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, t, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return p, nil
}

// FromArgs builds a payload from loose key/value arguments, such as command
// line flags. String values are converted to the field's type and unknown
// keys are rejected.
func FromArgs(t Type, args map[string]any) (Payload, error) {
	if _, err := ParseType(string(t)); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	p, err := build(t, args, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, t, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func build(t Type, in map[string]any, strict bool) (Payload, error) {
	switch t {
	case TypeFilter:
		var p Filter
		err := decodeInto(in, &p, strict)
		return p, err
	case TypeCrop:
		var p Crop
		err := decodeInto(in, &p, strict)
		return p, err
	case TypeResize:
		var p Resize
		err := decodeInto(in, &p, strict)
		return p, err
	case TypeRotate:
		var p Rotate
		err := decodeInto(in, &p, strict)
		return p, err
	case TypeFlip:
		var p Flip
		err := decodeInto(in, &p, strict)
		return p, err
	case TypeRestorePoint:
		var p RestorePoint
		err := decodeInto(in, &p, strict)
		return p, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, t)
	}
}

func decodeInto(in map[string]any, out any, strict bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: strict,
		ErrorUnused:      strict,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
