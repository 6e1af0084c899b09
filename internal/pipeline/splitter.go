package pipeline

import (
	"regexp"
	"strings"

	"pliego-extract-go/internal/model"
)

// Section headers the model is instructed to emit.
const (
	HeaderCriteriosAdjudicacion = "Criterios de adjudicación"
	HeaderCriteriosSolvencia    = "Criterios de solvencia"
	HeaderCondicionesEspeciales = "Condiciones especiales de ejecución"
)

// headerPattern matches a header at a line start with optional markdown
// decoration: "### 2. **Criterios de solvencia**:" or "**2. Criterios de solvencia**".
// Group 1 holds the '#' marker, group 2 the list number and bold markers,
// group 3 the header, group 4 the rest of the line.
var headerPattern = regexp.MustCompile(
	`(?m)^[ \t]*(#{1,6}[ \t]*)?((?:\*\*)?(?:\d+\.[ \t]*)?(?:\*\*)?)(` +
		regexp.QuoteMeta(HeaderCriteriosAdjudicacion) + `|` +
		regexp.QuoteMeta(HeaderCriteriosSolvencia) + `|` +
		regexp.QuoteMeta(HeaderCondicionesEspeciales) +
		`)(?:\*\*)?[ \t]*:?(?:\*\*)?[ \t]*:?([^\n]*)`)

// unsafeChars matches everything except letters, digits, underscore,
// whitespace, '.', ',' and '-'.
var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\v\p{Z}.,\-]`)

// Sanitize removes markdown markers and punctuation other than '.', ',' and '-'.
func Sanitize(text string) string {
	return unsafeChars.ReplaceAllString(text, "")
}

// Splitter partitions a model answer into the three categories.
type Splitter struct {
	sanitizeFirst bool
}

// NewSplitter creates a Splitter. With sanitizeFirst the whole answer is
// sanitized before splitting; otherwise each section is sanitized after it is cut.
func NewSplitter(sanitizeFirst bool) *Splitter {
	return &Splitter{sanitizeFirst: sanitizeFirst}
}

type headerMatch struct {
	header     string
	lineStart  int
	valueStart int
}

// Split never fails: sections that are not found stay empty, and a header
// that appears twice keeps the last section.
func (s *Splitter) Split(text string) model.Categories {
	if s.sanitizeFirst {
		text = Sanitize(text)
	}

	var headers []headerMatch
	for _, m := range headerPattern.FindAllStringSubmatchIndex(text, -1) {
		hashed := m[2] >= 0
		decorated := m[5] > m[4]
		rest := text[m[8]:m[9]]
		if !hashed && !decorated && strings.TrimSpace(rest) != "" {
			// a sentence that merely starts with the header words
			continue
		}
		valueStart := m[1]
		if strings.TrimSpace(rest) != "" {
			valueStart = m[8]
		}
		headers = append(headers, headerMatch{
			header:     text[m[6]:m[7]],
			lineStart:  m[0],
			valueStart: valueStart,
		})
	}

	sections := make(map[string]string, 3)
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1].lineStart
		}
		value := strings.TrimSpace(text[h.valueStart:end])
		if !s.sanitizeFirst {
			value = strings.TrimSpace(Sanitize(value))
		}
		sections[h.header] = value
	}

	return model.Categories{
		CriteriosAdjudicacion: sections[HeaderCriteriosAdjudicacion],
		CriteriosSolvencia:    sections[HeaderCriteriosSolvencia],
		CondicionesEspeciales: sections[HeaderCondicionesEspeciales],
	}
}
