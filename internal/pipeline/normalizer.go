package pipeline

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// NormalizationPolicy selects how XML-looking content is handled.
type NormalizationPolicy string

const (
	// PolicyLenient strips non-ASCII runs, parses XML only when the text starts
	// with '<', and falls back to the cleaned text when parsing fails.
	PolicyLenient NormalizationPolicy = "lenient"
	// PolicyStrict always parses XML and reports ErrContentFormat on failure.
	PolicyStrict NormalizationPolicy = "strict"
)

// ParsePolicy converts a configuration value into a NormalizationPolicy.
func ParsePolicy(s string) (NormalizationPolicy, error) {
	switch p := NormalizationPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyLenient, PolicyStrict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown normalization policy %q", s)
	}
}

var nonASCII = regexp.MustCompile(`[^\x00-\x7F]+`)

// Normalizer turns raw document text into plain text.
type Normalizer struct {
	policy NormalizationPolicy
}

// NewNormalizer creates a Normalizer for the given policy. Unknown policies act as lenient.
func NewNormalizer(policy NormalizationPolicy) *Normalizer {
	if policy != PolicyStrict {
		policy = PolicyLenient
	}
	return &Normalizer{policy: policy}
}

// Policy returns the configured policy.
func (n *Normalizer) Policy() NormalizationPolicy {
	return n.policy
}

// Normalize returns the plain text of raw according to the policy.
func (n *Normalizer) Normalize(raw string) (string, error) {
	if n.policy == PolicyStrict {
		text, err := xmlText(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrContentFormat, err)
		}
		return text, nil
	}

	cleaned := strings.TrimSpace(nonASCII.ReplaceAllString(raw, " "))
	if !strings.HasPrefix(cleaned, "<") {
		return cleaned, nil
	}
	text, err := xmlText(cleaned)
	if err != nil {
		return cleaned, nil
	}
	return text, nil
}

// xmlText parses a single well-formed XML document and concatenates all of its
// character data in document order.
func xmlText(s string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(s))
	dec.Strict = true
	// the input is already decoded text, whatever the prolog claims
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }

	var b strings.Builder
	depth := 0
	roots := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return "", errors.New("junk after document element")
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth > 0 {
				b.Write(t)
			} else if strings.TrimSpace(string(t)) != "" {
				return "", errors.New("text outside of document element")
			}
		}
	}
	if roots == 0 {
		return "", errors.New("no element found")
	}
	return b.String(), nil
}
