package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Member is one key of a JSON object with its undecoded value.
type Member struct {
	Key   string
	Value json.RawMessage
}

// Decode unmarshals the member value into v.
func (m Member) Decode(v any) error {
	return json.Unmarshal(m.Value, v)
}

// Object is a JSON object that keeps its members in document order, so
// records come out in the order the provider sent them.
type Object []Member

func (o *Object) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	members := Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		members = append(members, Member{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = members
	return nil
}

// DecodeJSON unmarshals body into v, reporting failures as *MalformedResponseError.
func DecodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &MalformedResponseError{Body: body, Err: err}
	}
	return nil
}
