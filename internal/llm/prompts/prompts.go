package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var embedded embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

// PromptVariant selects how strictly the analysis prompt asks the model to
// judge free-form answers.
type PromptVariant string

const (
	PromptStrict   PromptVariant = "strict"
	PromptStandard PromptVariant = "standard"
	PromptLenient  PromptVariant = "lenient"
)

var variants = []PromptVariant{PromptStrict, PromptStandard, PromptLenient}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if PromptVariant(v) == known {
			return true
		}
	}
	return false
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[PromptVariant]*template.Template
)

var funcs = template.FuncMap{"join": strings.Join}

// Load parses the analysis templates from fsys, or from the templates
// compiled into the binary when fsys is nil. Only the first call has any
// effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		if fsys == nil {
			fsys = embedded
		}
		parsed := make(map[PromptVariant]*template.Template, len(variants))
		for _, v := range variants {
			name := "templates/analysis_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(v)).Funcs(funcs).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			parsed[v] = tmpl
		}
		templates = parsed
	})
	return loadErr
}

// AnalysisData is the template input for one result.
type AnalysisData struct {
	Title       string
	Description string
	ScoringMode string
	Total       float64
	MaxPossible float64
	Percentage  int
	Level       string
	Questions   []QuestionData
	Categories  []CategoryData
}

// QuestionData describes one answered question. Answer is sanitized when
// the prompt is built.
type QuestionData struct {
	Number   int
	Type     string
	Category string
	Text     string
	Options  []string
	MaxScore float64
	Score    float64
	Answer   string
}

type CategoryData struct {
	Name       string
	Score      float64
	MaxScore   float64
	Percentage int
}

// BuildAnalysisPrompt renders the analysis prompt for variant.
func BuildAnalysisPrompt(variant PromptVariant, data AnalysisData) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	qs := make([]QuestionData, len(data.Questions))
	for i, q := range data.Questions {
		q.Answer = sanitizeAnswer(q.Answer)
		qs[i] = q
	}
	data.Questions = qs

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeAnswer strips tags that could break out of the answer block and
// caps very long answers.
func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
