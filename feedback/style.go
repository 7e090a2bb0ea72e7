// Package feedback turns a transcript into a grammar assessment: it builds the
// instruction prompt, calls the text-generation model and parses the reply
// into a Result whose fields always have a display value.
package feedback

import "strings"

// Style selects the register of the feedback.
type Style string

const (
	StyleDefault  Style = "default"
	StyleTeacher  Style = "teacher"
	StyleBusiness Style = "business"
	StyleCasual   Style = "casual"
)

// DefaultRandomness is the temperature used when randomness is enabled.
const DefaultRandomness float32 = 0.7

var instructions = map[Style]string{
	StyleDefault:  "",
	StyleTeacher:  "Give clear academic grammar feedback as a language teacher.",
	StyleBusiness: "Tailor feedback for professional business communication.",
	StyleCasual:   "Give relaxed, friendly feedback like a language buddy.",
}

// Styles lists the selectable styles in display order.
func Styles() []Style {
	return []Style{StyleDefault, StyleTeacher, StyleBusiness, StyleCasual}
}

// ParseStyle normalises user input. Unrecognised values map to StyleDefault.
func ParseStyle(s string) Style {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := instructions[style]; ok {
		return style
	}
	return StyleDefault
}

// Instruction returns the extra prompt line for the style, or "" for the
// default and any unknown style.
func Instruction(style Style) string {
	return instructions[style]
}

// Temperature maps the randomness toggle to a sampling temperature.
func Temperature(randomness bool) float32 {
	if randomness {
		return DefaultRandomness
	}
	return 0
}

// BuildPrompt assembles the scoring prompt for one transcript.
func BuildPrompt(transcript string, style Style) string {
	var b strings.Builder
	b.WriteString("Evaluate the grammar quality of the following spoken text.\n")
	b.WriteString("Also classify the type of content: is it a song, movie dialogue, podcast, conversation between friends, news report, or something else?\n")
	b.WriteString("Comment on pronunciation clarity and speech fluency.\n")
	b.WriteString("Return ONLY a JSON object with these keys: ")
	for i, key := range Keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("'" + key + "'")
	}
	b.WriteString(".\n")
	b.WriteString(Instruction(style))
	b.WriteString("\n")
	b.WriteString("Do not include any explanation or introduction outside the JSON object.\n\n")
	b.WriteString(`"` + transcript + `"`)
	return b.String()
}
