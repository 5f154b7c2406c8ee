package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Shape names the JSON structure a caller expects from the LLM.
type Shape string

const (
	ShapeKeywordArray     Shape = "keyword array"
	ShapeEvaluationObject Shape = "evaluation object"
)

var codeFence = regexp.MustCompile("(?s)```(?i:json)?\\s*(.*?)```")

const keywordSchemaJSON = `{
	"type": "array",
	"items": {"type": "string"}
}`

const evaluationSchemaJSON = `{
	"type": "object",
	"required": ["matched_keywords", "missing_keywords", "rubric_scores", "overall_score", "feedback"],
	"properties": {
		"matched_keywords": {"$ref": "#/$defs/strings"},
		"missing_keywords": {"$ref": "#/$defs/strings"},
		"rubric_scores": {
			"type": "object",
			"required": ["content_quality", "structure_organization", "critical_thinking"],
			"properties": {
				"content_quality": {"$ref": "#/$defs/score"},
				"structure_organization": {"$ref": "#/$defs/score"},
				"critical_thinking": {"$ref": "#/$defs/score"}
			}
		},
		"overall_score": {"$ref": "#/$defs/score"},
		"keyword_coverage": {"$ref": "#/$defs/score"},
		"feedback": {"type": "string"},
		"strengths": {"$ref": "#/$defs/strings"},
		"areas_for_improvement": {"$ref": "#/$defs/strings"}
	},
	"$defs": {
		"strings": {"type": "array", "items": {"type": "string"}},
		"score": {"type": ["number", "string"]}
	}
}`

var (
	keywordSchema    = jsonschema.MustCompileString("keywords.schema.json", keywordSchemaJSON)
	evaluationSchema = jsonschema.MustCompileString("evaluation.schema.json", evaluationSchemaJSON)
)

// EvaluationPayload is the evaluation object as reported by the LLM, before
// any validation against the reference keyword set.
type EvaluationPayload struct {
	MatchedKeywords     []string      `json:"matched_keywords"`
	MissingKeywords     []string      `json:"missing_keywords"`
	RubricScores        RubricPayload `json:"rubric_scores"`
	OverallScore        Score         `json:"overall_score"`
	KeywordCoverage     *Score        `json:"keyword_coverage,omitempty"`
	Feedback            string        `json:"feedback"`
	Strengths           []string      `json:"strengths,omitempty"`
	AreasForImprovement []string      `json:"areas_for_improvement,omitempty"`
}

// RubricPayload holds the reported rubric dimensions.
type RubricPayload struct {
	ContentQuality        Score `json:"content_quality"`
	StructureOrganization Score `json:"structure_organization"`
	CriticalThinking      Score `json:"critical_thinking"`
}

// Score accepts a JSON number or a numeric string such as "85" or "85%".
type Score float64

func (s *Score) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "%")
		value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return fmt.Errorf("score %q is not numeric", text)
		}
		*s = Score(value)
		return nil
	}

	var value float64
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return err
	}
	*s = Score(value)
	return nil
}

// ParseKeywords reads a JSON array of strings out of raw LLM text. An object
// wrapping the array under "keywords" is accepted as well.
func ParseKeywords(raw string) ([]string, error) {
	value, err := locateJSON(raw, ShapeKeywordArray, '[', ']')
	if err != nil {
		return nil, err
	}

	if object, ok := value.(map[string]interface{}); ok {
		inner, found := object["keywords"]
		if !found {
			return nil, malformed(ShapeKeywordArray, raw, "object without keywords array", nil)
		}
		value = inner
	}

	if err := keywordSchema.Validate(value); err != nil {
		return nil, malformed(ShapeKeywordArray, raw, "unexpected shape", err)
	}

	items, _ := value.([]interface{})
	keywords := make([]string, 0, len(items))
	for _, item := range items {
		keywords = append(keywords, item.(string))
	}
	return keywords, nil
}

// ParseEvaluation reads the evaluation object out of raw LLM text. camelCase
// keys are accepted alongside snake_case ones.
func ParseEvaluation(raw string) (EvaluationPayload, error) {
	value, err := locateJSON(raw, ShapeEvaluationObject, '{', '}')
	if err != nil {
		return EvaluationPayload{}, err
	}

	value = snakeCaseKeys(value)
	if err := evaluationSchema.Validate(value); err != nil {
		return EvaluationPayload{}, malformed(ShapeEvaluationObject, raw, "unexpected shape", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return EvaluationPayload{}, malformed(ShapeEvaluationObject, raw, "re-encode", err)
	}

	var payload EvaluationPayload
	if err := json.Unmarshal(normalized, &payload); err != nil {
		return EvaluationPayload{}, malformed(ShapeEvaluationObject, raw, "decode", err)
	}
	return payload, nil
}

// ExtractJSONText isolates the JSON candidate inside raw LLM text: fenced
// content wins, then the greedy span from the first open to the last close.
func ExtractJSONText(raw string, open, close byte) (string, bool) {
	text := raw
	if match := codeFence.FindStringSubmatch(raw); match != nil {
		text = match[1]
	}
	text = strings.TrimSpace(text)

	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func locateJSON(raw string, shape Shape, open, close byte) (interface{}, error) {
	text := raw
	if match := codeFence.FindStringSubmatch(raw); match != nil {
		text = match[1]
	}
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "[") || strings.HasPrefix(text, "{") {
		if value, err := decodeGeneric(text); err == nil {
			return value, nil
		}
	}

	candidate, ok := ExtractJSONText(text, open, close)
	if !ok {
		return nil, malformed(shape, raw, "no json found", nil)
	}

	value, err := decodeGeneric(candidate)
	if err != nil {
		return nil, malformed(shape, raw, "invalid json", err)
	}
	return value, nil
}

func decodeGeneric(text string) (interface{}, error) {
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, fmt.Errorf("unexpected trailing content")
	}
	return value, nil
}

func snakeCaseKeys(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, inner := range typed {
			out[toSnakeCase(key)] = snakeCaseKeys(inner)
		}
		return out
	case []interface{}:
		for i := range typed {
			typed[i] = snakeCaseKeys(typed[i])
		}
		return typed
	default:
		return value
	}
}

func toSnakeCase(key string) string {
	var builder strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				builder.WriteByte('_')
			}
			builder.WriteRune(unicode.ToLower(r))
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func malformed(shape Shape, raw, reason string, cause error) *MalformedResponseError {
	return &MalformedResponseError{Shape: shape, Reason: reason, Raw: raw, Cause: cause}
}
