package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type personArgs struct {
	PersonID int     `json:"person_id" jsonschema:"id of the person"`
	Name     *string `json:"name,omitempty"`
	Age      *int    `json:"age,omitempty"`
}

func TestDefineSchema(t *testing.T) {
	tool := Define("update", "Update a person", func(context.Context, personArgs) (any, error) { return "", nil })

	schema := tool.ParametersSchema()
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties missing: %v", schema)
	}
	for _, key := range []string{"person_id", "name", "age"} {
		if _, ok := props[key]; !ok {
			t.Errorf("property %q missing", key)
		}
	}
	id := props["person_id"].(map[string]any)
	if id["description"] != "id of the person" {
		t.Errorf("description not carried: %v", id)
	}
	if diff := cmp.Diff([]string{"person_id"}, tool.required); diff != "" {
		t.Errorf("required mismatch (-want +got):\n%s", diff)
	}
}

func TestDefineEmptyArgs(t *testing.T) {
	tool := Define("count", "Count", func(context.Context, struct{}) (any, error) { return 1, nil })
	if _, ok := tool.ParametersSchema()["properties"]; !ok {
		t.Fatalf("expected an empty properties map")
	}
	out, err := tool.Call(context.Background(), map[string]any{})
	if err != nil || out != 1 {
		t.Fatalf("unexpected call result %v %v", out, err)
	}
}

func TestDecodeCoercesNumbers(t *testing.T) {
	in, err := Decode[personArgs](map[string]any{"person_id": float64(7), "age": "35"}, []string{"person_id"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.PersonID != 7 || in.Age == nil || *in.Age != 35 || in.Name != nil {
		t.Fatalf("unexpected decode %+v", in)
	}
}

func TestDecodeRejectsFractionalIntegers(t *testing.T) {
	for _, args := range []map[string]any{
		{"person_id": 1.9},
		{"person_id": float64(1), "age": 30.5},
	} {
		if _, err := Decode[personArgs](args, []string{"person_id"}); err == nil || !strings.Contains(err.Error(), "expected an integer") {
			t.Errorf("Decode(%v) error = %v, want an integer error", args, err)
		}
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: ""},
		{in: "text", want: "text"},
		{in: []string{"a", "b"}, want: "a\n\nb"},
		{in: []byte("raw"), want: "raw"},
		{in: 42, want: "42"},
		{in: []int{1, 2}, want: "[1,2]"},
		{in: make(chan int), want: "%!v"},
	}
	for _, tt := range tests {
		got := Stringify(tt.in)
		if tt.want == "%!v" {
			if got == "" {
				t.Errorf("Stringify(chan) returned empty text")
			}
			continue
		}
		if got != tt.want {
			t.Errorf("Stringify(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
