package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AnswerKind tags which variant of Answer is populated.
type AnswerKind string

const (
	AnswerNumber AnswerKind = "number"
	AnswerBool   AnswerKind = "boolean"
	AnswerJSON   AnswerKind = "json"
	AnswerString AnswerKind = "string"
)

// Answer is the typed value submitted for a quiz. Exactly one variant is set,
// selected by Kind. Numbers remember whether they were parsed as integers so
// that 4 is submitted as 4 and 4.5 as 4.5.
type Answer struct {
	Kind AnswerKind

	Int     int64
	Float   float64
	IsFloat bool
	Bool    bool
	JSON    json.RawMessage
	Str     string
}

func IntAnswer(n int64) Answer     { return Answer{Kind: AnswerNumber, Int: n} }
func FloatAnswer(f float64) Answer { return Answer{Kind: AnswerNumber, Float: f, IsFloat: true} }
func BoolAnswer(b bool) Answer     { return Answer{Kind: AnswerBool, Bool: b} }
func StringAnswer(s string) Answer { return Answer{Kind: AnswerString, Str: s} }

func JSONAnswer(raw json.RawMessage) Answer {
	return Answer{Kind: AnswerJSON, JSON: append(json.RawMessage(nil), raw...)}
}

// Equal reports whether two answers hold the same variant and value.
func (a Answer) Equal(b Answer) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case AnswerNumber:
		if a.IsFloat != b.IsFloat {
			return false
		}
		if a.IsFloat {
			return a.Float == b.Float
		}
		return a.Int == b.Int
	case AnswerBool:
		return a.Bool == b.Bool
	case AnswerJSON:
		return jsonEqual(a.JSON, b.JSON)
	case AnswerString:
		return a.Str == b.Str
	default:
		return true
	}
}

func (a Answer) String() string {
	switch a.Kind {
	case AnswerNumber:
		if a.IsFloat {
			return strconv.FormatFloat(a.Float, 'f', -1, 64)
		}
		return strconv.FormatInt(a.Int, 10)
	case AnswerBool:
		return strconv.FormatBool(a.Bool)
	case AnswerJSON:
		return string(a.JSON)
	case AnswerString:
		return a.Str
	default:
		return ""
	}
}

// MarshalJSON encodes the bare value, which is what submission endpoints expect.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerNumber:
		if a.IsFloat {
			return json.Marshal(a.Float)
		}
		return []byte(strconv.FormatInt(a.Int, 10)), nil
	case AnswerBool:
		return json.Marshal(a.Bool)
	case AnswerJSON:
		if len(a.JSON) == 0 {
			return []byte("null"), nil
		}
		return a.JSON, nil
	case AnswerString:
		return json.Marshal(a.Str)
	default:
		return nil, fmt.Errorf("answer has no variant")
	}
}

// UnmarshalJSON restores an answer from its bare JSON value, classifying it the
// same way ParseAnswer classifies a JSON literal.
func (a *Answer) UnmarshalJSON(b []byte) error {
	v, ok := classifyJSON(bytes.TrimSpace(b))
	if !ok {
		return fmt.Errorf("invalid answer json")
	}
	*a = v
	return nil
}

var finalAnswerRe = regexp.MustCompile(`(?is)FINAL_ANSWER:\s*(.+?)(?:\n|$)`)

// ExtractFinalAnswer returns the text following the FINAL_ANSWER: marker up to
// the end of that line. Without a marker it falls back to the last non-blank
// line, or the whole trimmed text.
func ExtractFinalAnswer(text string) string {
	if m := finalAnswerRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	trimmed := strings.TrimSpace(text)
	lines := strings.Split(trimmed, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return trimmed
}

// ParseAnswer infers the answer type. Order matters: JSON, then number, then
// boolean, falling back to the unmodified string.
func ParseAnswer(s string) Answer {
	if v, ok := classifyJSON([]byte(s)); ok {
		return v
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return FloatAnswer(f)
		}
	} else if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return IntAnswer(n)
	}
	switch strings.ToLower(s) {
	case "true":
		return BoolAnswer(true)
	case "false":
		return BoolAnswer(false)
	}
	return StringAnswer(s)
}

// ExtractAnswer is ExtractFinalAnswer followed by ParseAnswer.
func ExtractAnswer(text string) Answer {
	return ParseAnswer(ExtractFinalAnswer(text))
}

// classifyJSON decodes a complete JSON document and maps scalars onto the
// number/boolean/string variants; objects, arrays and null stay JSON.
func classifyJSON(b []byte) (Answer, bool) {
	if !json.Valid(b) {
		return Answer{}, false
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Answer{}, false
	}
	switch t := v.(type) {
	case json.Number:
		lit := t.String()
		if !strings.ContainsAny(lit, ".eE") {
			if n, err := t.Int64(); err == nil {
				return IntAnswer(n), true
			}
		}
		f, err := t.Float64()
		if err != nil {
			return Answer{}, false
		}
		return FloatAnswer(f), true
	case bool:
		return BoolAnswer(t), true
	case string:
		return StringAnswer(t), true
	default:
		return JSONAnswer(bytes.TrimSpace(b)), true
	}
}

func jsonEqual(a, b json.RawMessage) bool {
	var x, y bytes.Buffer
	if err := json.Compact(&x, a); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Compact(&y, b); err != nil {
		return false
	}
	return bytes.Equal(x.Bytes(), y.Bytes())
}
