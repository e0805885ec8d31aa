package safeunmarshal

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestTo_Structs(t *testing.T) {
	type TestStruct struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	tests := []struct {
		name    string
		input   []byte
		want    TestStruct
		wantErr error
	}{
		{
			name:  "valid struct",
			input: []byte(`{"name":"John","age":30}`),
			want:  TestStruct{Name: "John", Age: 30},
		},
		{
			name:  "struct with whitespace",
			input: []byte("  \n{\"name\": \"Jane\", \"age\": 25}\r\n"),
			want:  TestStruct{Name: "Jane", Age: 25},
		},
		{
			name:    "empty input",
			input:   []byte("   "),
			wantErr: ErrEmptyInput,
		},
		{
			name:    "trailing data",
			input:   []byte(`{"name":"John"} {"name":"Jane"}`),
			wantErr: ErrTrailingData,
		},
		{
			name:    "text before json is not extracted",
			input:   []byte(`Some text before {"name":"John"}`),
			wantErr: errAny,
		},
		{
			name:    "type mismatch",
			input:   []byte(`{"name":"John","age":"thirty"}`),
			wantErr: errAny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := To[TestStruct](tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("To() unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("To() = %+v, want %+v", got, tt.want)
				}
				return
			}
			if err == nil {
				t.Fatalf("To() expected error, got %+v", got)
			}
			if tt.wantErr != errAny && !errors.Is(err, tt.wantErr) {
				t.Errorf("To() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// errAny marks cases where any error is acceptable.
var errAny = errors.New("any error")

func TestTo_Arrays(t *testing.T) {
	got, err := To[[]json.RawMessage]([]byte(`[{"a":1}, {"b":2}]`))
	if err != nil {
		t.Fatalf("To() unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(got))
	}

	_, err = To[[]json.RawMessage]([]byte(`{"a":1}`))
	if !errors.Is(err, ErrExpectedJSONArray) {
		t.Errorf("expected ErrExpectedJSONArray, got %v", err)
	}
}

func TestToWithOptions_MaxInputSize(t *testing.T) {
	opts := UnmarshalOptions{MaxInputSize: 16}
	_, err := ToWithOptions[map[string]any]([]byte(`{"key":"`+strings.Repeat("x", 32)+`"}`), opts)
	if !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected ErrInputTooLarge, got %v", err)
	}

	if _, err := ToWithOptions[map[string]any]([]byte(`{"k":1}`), opts); err != nil {
		t.Fatalf("small input rejected: %v", err)
	}
}

func TestToWithOptions_UseNumber(t *testing.T) {
	got, err := ToWithOptions[map[string]any]([]byte(`{"limit":5}`), UnmarshalOptions{UseNumber: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := got["limit"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", got["limit"])
	}
	if n.String() != "5" {
		t.Errorf("expected 5, got %s", n)
	}
}

func TestIsJSONArray(t *testing.T) {
	cases := map[string]bool{
		`[1,2]`:      true,
		"  \n\t[ ]":  true,
		`{"a":[1]}`:  false,
		``:           false,
		`   `:        false,
		`"[quoted]"`: false,
	}
	for input, want := range cases {
		if got := IsJSONArray([]byte(input)); got != want {
			t.Errorf("IsJSONArray(%q) = %v, want %v", input, got, want)
		}
	}
}
