package inference

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
)

var (
	errNotObject    = errors.New("response is not a JSON object")
	errTrailingData = errors.New("trailing data after response object")
)

type wireCommand struct {
	Action     string            `json:"action"`
	Parameters []json.RawMessage `json:"parameters"`
}

// wireResponse accepts both the single-command form and the command list.
type wireResponse struct {
	wireCommand
	Commands  []wireCommand `json:"commands"`
	Reasoning string        `json:"reasoning"`
}

// Decode parses a reasoning service response body. Unrecognised action names
// are kept as battle.ActionUnknown so the translator can report and drop them.
func Decode(data []byte) (battle.Decision, error) {
	body := bytes.TrimSpace(data)
	if len(body) == 0 || body[0] != '{' {
		return battle.Decision{}, fail(KindMalformed, errNotObject)
	}

	var wr wireResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&wr); err != nil {
		return battle.Decision{}, fail(KindMalformed, err)
	}
	if dec.More() {
		return battle.Decision{}, fail(KindMalformed, errTrailingData)
	}

	wire := wr.Commands
	if len(wire) == 0 && strings.TrimSpace(wr.Action) != "" {
		wire = []wireCommand{wr.wireCommand}
	}

	out := battle.Decision{Rationale: strings.TrimSpace(wr.Reasoning)}
	for i, wc := range wire {
		name := strings.TrimSpace(wc.Action)
		if name == "" {
			continue
		}
		params, err := normalizeParams(wc.Parameters)
		if err != nil {
			return battle.Decision{}, fail(KindMalformed, fmt.Errorf("command %d: %w", i, err))
		}
		cmd := battle.Command{Params: params}
		if a, ok := battle.ParseAction(name); ok {
			cmd.Action = a
		} else {
			cmd.Raw = name
			log.Warn().Str("action", name).Int("index", i).Msg("Reasoning service returned unknown action")
		}
		out.Commands = append(out.Commands, cmd)
	}

	if len(out.Commands) == 0 {
		return battle.Decision{}, fail(KindEmpty, nil)
	}
	return out, nil
}

// normalizeParams turns string, number, bool and null parameters into strings.
func normalizeParams(raw []json.RawMessage) ([]string, error) {
	params := make([]string, 0, len(raw))
	for i, r := range raw {
		var v any
		d := json.NewDecoder(bytes.NewReader(r))
		d.UseNumber()
		if err := d.Decode(&v); err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		switch t := v.(type) {
		case nil:
			params = append(params, "")
		case string:
			params = append(params, strings.TrimSpace(t))
		case json.Number:
			params = append(params, t.String())
		case bool:
			if t {
				params = append(params, "true")
			} else {
				params = append(params, "false")
			}
		default:
			return nil, fmt.Errorf("parameter %d: unsupported type %T", i, v)
		}
	}
	return params, nil
}
