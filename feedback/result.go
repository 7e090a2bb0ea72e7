package feedback

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Keys recognised in the model reply.
const (
	KeyScore         = "score"
	KeySummary       = "brief summary"
	KeySuggestions   = "specific suggestions"
	KeyCEFR          = "CEFR level"
	KeyTone          = "overall tone"
	KeyContentType   = "type of content"
	KeyPronunciation = "pronunciation"
	KeyCorrections   = "corrections"
)

// Keys is the ordered list of keys the prompt asks for.
var Keys = []string{
	KeyScore,
	KeySummary,
	KeySuggestions,
	KeyCEFR,
	KeyTone,
	KeyContentType,
	KeyPronunciation,
	KeyCorrections,
}

// Display defaults for keys the model left out.
const (
	DefaultScore         = "?"
	DefaultCEFR          = "Unknown"
	DefaultTone          = "Unknown"
	DefaultContentType   = "Unclassified"
	DefaultPronunciation = "Not evaluated"
	DefaultSummary       = "No summary provided."
	DefaultSuggestions   = "No suggestions provided."
)

// ErrMalformedResponse wraps every parse failure.
var ErrMalformedResponse = errors.New("feedback response is not a JSON object")

// Result is the decoded assessment. The zero value behaves like an empty
// reply: every accessor returns its default.
type Result struct {
	fields map[string]any
	issues []string
}

// Fallback is the result substituted when the reply cannot be parsed.
func Fallback() Result {
	return Result{fields: map[string]any{
		KeyScore:         DefaultScore,
		KeySummary:       "Could not extract summary.",
		KeySuggestions:   "N/A",
		KeyCEFR:          DefaultCEFR,
		KeyTone:          DefaultTone,
		KeyContentType:   DefaultContentType,
		KeyPronunciation: DefaultPronunciation,
		KeyCorrections:   []any{},
	}}
}

// Parse decodes raw as a single JSON object. Known keys holding a value of the
// wrong kind are dropped and reported by Issues; unknown keys are kept.
func Parse(raw string) (Result, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Result{}, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	if fields == nil {
		return Result{}, errors.Wrap(ErrMalformedResponse, "null document")
	}
	if _, err := dec.Token(); err != io.EOF {
		return Result{}, errors.Wrap(ErrMalformedResponse, "trailing data after object")
	}

	var issues []string
	for _, key := range Keys {
		value, ok := fields[key]
		if !ok || value == nil {
			delete(fields, key)
			continue
		}
		if !acceptable(key, value) {
			issues = append(issues, key+": unexpected value type")
			delete(fields, key)
		}
	}
	return Result{fields: fields, issues: issues}, nil
}

func acceptable(key string, value any) bool {
	switch key {
	case KeyScore:
		switch value.(type) {
		case json.Number, string:
			return true
		}
		return false
	case KeyCorrections:
		switch value.(type) {
		case []any, string:
			return true
		}
		return false
	default:
		_, isBool := value.(bool)
		return !isBool
	}
}

// Issues lists the known keys dropped during Parse.
func (r Result) Issues() []string {
	return r.issues
}

// Field renders key for display. Strings and numbers are returned as written,
// arrays joined one element per line and objects as compact JSON.
func (r Result) Field(key, fallback string) string {
	value, ok := r.fields[key]
	if !ok || value == nil {
		return fallback
	}
	return render(value)
}

func render(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			parts = append(parts, render(item))
		}
		return strings.Join(parts, "\n")
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
}

// Score is the display score, "?" when absent.
func (r Result) Score() string {
	return r.Field(KeyScore, DefaultScore)
}

// ScoreValue coerces the score to an int for the history. Anything that is
// not a number in int range or an integer string counts as 0.
func (r Result) ScoreValue() int {
	switch v := r.fields[KeyScore].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil && int64(int(i)) == i {
			return int(i)
		}
		f, err := v.Float64()
		if err != nil || math.IsNaN(f) || f >= math.MaxInt || f < math.MinInt {
			return 0
		}
		return int(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

func (r Result) CEFR() string          { return r.Field(KeyCEFR, DefaultCEFR) }
func (r Result) Tone() string          { return r.Field(KeyTone, DefaultTone) }
func (r Result) ContentType() string   { return r.Field(KeyContentType, DefaultContentType) }
func (r Result) Pronunciation() string { return r.Field(KeyPronunciation, DefaultPronunciation) }
func (r Result) Summary() string       { return r.Field(KeySummary, DefaultSummary) }
func (r Result) Suggestions() string   { return r.Field(KeySuggestions, DefaultSuggestions) }

// Corrections returns the correction list in reply order. A single string is
// split into sentences on ".".
func (r Result) Corrections() []string {
	out := []string{}
	switch v := r.fields[KeyCorrections].(type) {
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, render(item))
		}
	case string:
		for _, fragment := range strings.Split(v, ".") {
			if fragment = strings.TrimSpace(fragment); fragment != "" {
				out = append(out, fragment)
			}
		}
	}
	return out
}

// View is the display form of a Result.
type View struct {
	Score         string   `json:"score"`
	ScoreValue    int      `json:"scoreValue"`
	CEFR          string   `json:"cefrLevel"`
	Tone          string   `json:"tone"`
	ContentType   string   `json:"contentType"`
	Pronunciation string   `json:"pronunciation"`
	Summary       string   `json:"summary"`
	Suggestions   string   `json:"suggestions"`
	Corrections   []string `json:"corrections"`
}

func (r Result) View() View {
	return View{
		Score:         r.Score(),
		ScoreValue:    r.ScoreValue(),
		CEFR:          r.CEFR(),
		Tone:          r.Tone(),
		ContentType:   r.ContentType(),
		Pronunciation: r.Pronunciation(),
		Summary:       r.Summary(),
		Suggestions:   r.Suggestions(),
		Corrections:   r.Corrections(),
	}
}
