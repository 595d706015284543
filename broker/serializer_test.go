package broker

import (
	"encoding/json"
	"testing"
)

type orderPlaced struct {
	Id string `json:"id"`
}

func TestJSONSerializer_Serialize(t *testing.T) {
	ser := JSONSerializer{}

	t.Run("it serializes a struct to JSON", func(t *testing.T) {
		b, err := ser.Serialize(&orderPlaced{Id: "123"})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		if string(b) != `{"id":"123"}` {
			t.Errorf("unexpected serialized payload: %s", b)
		}
	})

	t.Run("it passes a raw message through untouched", func(t *testing.T) {
		raw := json.RawMessage(`{"already":"serialized"}`)

		b, err := ser.Serialize(raw)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		if string(b) != string(raw) {
			t.Errorf("expected the raw payload to pass through untouched, got %s", b)
		}
	})

	t.Run("it returns an error for an unserializable value", func(t *testing.T) {
		if _, err := ser.Serialize(make(chan int)); err == nil {
			t.Error("expected an error for an unserializable value, got nil")
		}
	})
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		name string
		msg  interface{}
		exp  string
	}{
		{name: "struct value", msg: orderPlaced{}, exp: "broker.orderPlaced"},
		{name: "struct pointer", msg: &orderPlaced{}, exp: "broker.orderPlaced"},
		{name: "raw message", msg: json.RawMessage("{}"), exp: "json.RawMessage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeName(tt.msg); got != tt.exp {
				t.Errorf("got %q, expected %q", got, tt.exp)
			}
		})
	}
}
