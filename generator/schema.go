package generator

import "github.com/google/generative-ai-go/genai"

// ResponseSchema is the JSON shape requested from the service.
func ResponseSchema() *genai.Schema {
	pinState := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"pin":   {Type: genai.TypeInteger},
			"state": {Type: genai.TypeInteger, Description: "0 for OFF/RELEASED, 1 for ON/PRESSED"},
		},
		Required: []string{"pin", "state"},
	}
	frame := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"durationMs": {Type: genai.TypeInteger, Description: "Duration of this frame in milliseconds"},
			"states":     {Type: genai.TypeArray, Items: pinState},
		},
		Required: []string{"durationMs", "states"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"patternName": {Type: genai.TypeString},
			"cppCode":     {Type: genai.TypeString},
			"explanation": {Type: genai.TypeString},
			"simulationSequence": {
				Type:        genai.TypeArray,
				Description: "A list of frames to animate the component states.",
				Items:       frame,
			},
		},
		Required: requiredFields,
	}
}
