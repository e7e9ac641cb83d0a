package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"lautenbacher.net/ledfx/board"
)

// Response is the result of one successful generation. It is not
// modified after it has been returned.
type Response struct {
	PatternName        string         `json:"patternName"`
	CppCode            string         `json:"cppCode"`
	Explanation        string         `json:"explanation"`
	SimulationSequence board.Sequence `json:"simulationSequence"`
}

var requiredFields = []string{"patternName", "cppCode", "explanation", "simulationSequence"}

var (
	frameFields = []string{"durationMs", "states"}
	stateFields = []string{"pin", "state"}
)

// ParseResponse decodes the service reply. Any deviation from the
// expected shape yields ErrGenerationFailed.
func ParseResponse(text string) (*Response, error) {
	body := []byte(stripFences(text))
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("%w: response is not a JSON object: %w", ErrGenerationFailed, err)
	}
	if err := requireFields(top, requiredFields, "response"); err != nil {
		return nil, err
	}

	var frames []map[string]json.RawMessage
	if err := json.Unmarshal(top["simulationSequence"], &frames); err != nil {
		return nil, fmt.Errorf("%w: simulationSequence: %w", ErrGenerationFailed, err)
	}
	for i, f := range frames {
		where := fmt.Sprintf("simulationSequence[%d]", i)
		if err := requireFields(f, frameFields, where); err != nil {
			return nil, err
		}
		var states []map[string]json.RawMessage
		if err := json.Unmarshal(f["states"], &states); err != nil {
			return nil, fmt.Errorf("%w: %s.states: %w", ErrGenerationFailed, where, err)
		}
		for j, s := range states {
			if err := requireFields(s, stateFields, fmt.Sprintf("%s.states[%d]", where, j)); err != nil {
				return nil, err
			}
		}
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return &resp, nil
}

func requireFields(obj map[string]json.RawMessage, fields []string, where string) error {
	if obj == nil {
		return fmt.Errorf("%w: %s is null", ErrGenerationFailed, where)
	}
	for _, name := range fields {
		raw, ok := obj[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("%w: %s: missing field %q", ErrGenerationFailed, where, name)
		}
	}
	return nil
}

// stripFences removes a Markdown code fence some models wrap JSON in.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
