package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrAttributeSchema is returned when an attribute value does not match its declared type.
var ErrAttributeSchema = errors.New("attribute value does not match its type")

type AttributeType string

const (
	AttributeString AttributeType = "string"
	AttributeNumber AttributeType = "number"
	AttributeBool   AttributeType = "bool"
	AttributeList   AttributeType = "list"
)

// AttributeValue is a tagged product attribute. Exactly one payload field is
// meaningful, selected by Type. On the wire it is {"type": "...", "value": ...}.
type AttributeValue struct {
	Type   AttributeType
	Text   string
	Number float64
	Flag   bool
	Items  []string
}

// Attributes maps attribute names (colour, size, material ...) to typed values.
type Attributes map[string]AttributeValue

func StringAttr(s string) AttributeValue   { return AttributeValue{Type: AttributeString, Text: s} }
func NumberAttr(n float64) AttributeValue  { return AttributeValue{Type: AttributeNumber, Number: n} }
func BoolAttr(b bool) AttributeValue       { return AttributeValue{Type: AttributeBool, Flag: b} }
func ListAttr(items ...string) AttributeValue {
	if items == nil {
		items = []string{}
	}
	return AttributeValue{Type: AttributeList, Items: items}
}

type wireAttribute struct {
	Type  AttributeType   `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch v.Type {
	case AttributeString:
		payload = v.Text
	case AttributeNumber:
		payload = v.Number
	case AttributeBool:
		payload = v.Flag
	case AttributeList:
		items := v.Items
		if items == nil {
			items = []string{}
		}
		payload = items
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrAttributeSchema, v.Type)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireAttribute{Type: v.Type, Value: raw})
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var w wireAttribute
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrAttributeSchema, err)
	}
	if len(w.Value) == 0 || bytes.Equal(w.Value, []byte("null")) {
		return fmt.Errorf("%w: %q has no value", ErrAttributeSchema, w.Type)
	}

	out := AttributeValue{Type: w.Type}
	var err error
	switch w.Type {
	case AttributeString:
		err = json.Unmarshal(w.Value, &out.Text)
	case AttributeNumber:
		err = json.Unmarshal(w.Value, &out.Number)
	case AttributeBool:
		err = json.Unmarshal(w.Value, &out.Flag)
	case AttributeList:
		err = json.Unmarshal(w.Value, &out.Items)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrAttributeSchema, w.Type)
	}
	if err != nil {
		return fmt.Errorf("%w: %s is not a valid %s", ErrAttributeSchema, w.Value, w.Type)
	}
	*v = out
	return nil
}
