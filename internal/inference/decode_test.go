package inference

import (
	"testing"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
)

func TestDecodeSingleFormPrefersCommandList(t *testing.T) {
	dec, err := Decode([]byte(`{"action":"hold","commands":[{"action":"charge","parameters":["cavalry"]}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dec.Commands) != 1 || dec.Commands[0].Action != battle.ActionCharge {
		t.Errorf("decision = %+v, want the command list", dec)
	}
}

func TestDecodeParameterNormalisation(t *testing.T) {
	dec, err := Decode([]byte(`{"action":"RALLY","parameters":[" ranged ", 1e2, -3.25, true, null]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"ranged", "1e2", "-3.25", "true", ""}
	got := dec.Commands[0].Params
	if len(got) != len(want) {
		t.Fatalf("params = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("param %d = %q, want %q", i, got[i], want[i])
		}
	}
	if dec.Commands[0].Action != battle.ActionRally {
		t.Errorf("action = %v", dec.Commands[0].Action)
	}
}

func TestDecodeMissingParameters(t *testing.T) {
	dec, err := Decode([]byte(`{"action":"hold"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Commands[0].Selector() != "" || len(dec.Commands[0].Params) != 0 {
		t.Errorf("params = %q", dec.Commands[0].Params)
	}
}

func TestDecodeRejectsMalformedBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Kind
	}{
		{"trailing garbage", `{"action":"hold","parameters":["0"]}garbage`, KindMalformed},
		{"second object", `{"action":"hold"}{"action":"charge"}`, KindMalformed},
		{"null", `null`, KindMalformed},
		{"array", `[{"action":"hold"}]`, KindMalformed},
		{"string", `"hold"`, KindMalformed},
		{"empty", ``, KindMalformed},
		{"no commands", `{"reasoning":"thinking"}`, KindEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			if got := KindOf(err); got != tt.want {
				t.Errorf("kind = %v (%v), want %v", got, err, tt.want)
			}
		})
	}
}

func TestDecodeAllowsTrailingWhitespace(t *testing.T) {
	if _, err := Decode([]byte("  {\"action\":\"hold\"}\n\n")); err != nil {
		t.Errorf("decode: %v", err)
	}
}
