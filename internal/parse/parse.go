// Package parse reads student profile updates from JSON, YAML or markdown
// documents.
package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lherron/roster/internal/domain"
)

// ProfileUpdate maps profile field names to new values. An empty value
// clears the field.
type ProfileUpdate map[string]string

// Format represents supported input formats
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "md"
)

// DetectFormat attempts to determine the format of the input data
// Returns an error if the format cannot be reliably determined
func DetectFormat(data []byte) (Format, error) {
	text := string(data)
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(text, "---\n") {
		return FormatMarkdown, nil
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var js json.RawMessage
		if err := json.Unmarshal(data, &js); err == nil {
			return FormatJSON, nil
		}
		return "", fmt.Errorf("input appears to be JSON but is invalid")
	}

	// YAML parser is very permissive - plain text is valid YAML
	var yamlTest interface{}
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		if _, ok := yamlTest.(map[string]interface{}); ok {
			return FormatYAML, nil
		}
	}

	// Anything else is a markdown body without front matter
	return FormatMarkdown, nil
}

// ParseJSON parses a JSON object of profile fields. Values must be strings
// or null.
func ParseJSON(data []byte) (ProfileUpdate, error) {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return build(raw)
}

// ParseYAML parses a YAML mapping of profile fields. Scalars are taken as
// written, so unquoted numbers and dates are accepted.
func ParseYAML(data []byte) (ProfileUpdate, error) {
	var raw map[string]*string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return build(raw)
}

// ParseMarkdown parses YAML front matter as profile fields and takes the
// body as medical notes. Without front matter the whole document is the body.
func ParseMarkdown(data []byte) (ProfileUpdate, error) {
	text := string(data)

	if !strings.HasPrefix(text, "---\n") {
		update := ProfileUpdate{}
		if body := strings.TrimSpace(text); body != "" {
			update[domain.FieldMedicalNotes] = body
		}
		return update, nil
	}

	parts := strings.SplitN(text[4:], "\n---\n", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid markdown front matter format")
	}

	update, err := ParseYAML([]byte(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse front matter: %w", err)
	}
	if body := strings.TrimSpace(parts[1]); body != "" {
		update[domain.FieldMedicalNotes] = body
	}
	return update, nil
}

// Parse parses profile data in the specified format.
// If format is empty, auto-detects the format.
func Parse(data []byte, format string) (ProfileUpdate, error) {
	detected := Format(format)
	if format == "" {
		var err error
		detected, err = DetectFormat(data)
		if err != nil {
			return nil, err
		}
	}

	var (
		update ProfileUpdate
		err    error
	)
	switch detected {
	case FormatJSON:
		update, err = ParseJSON(data)
	case FormatYAML, "yml":
		update, err = ParseYAML(data)
	case FormatMarkdown, "markdown":
		update, err = ParseMarkdown(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateProfile(update); err != nil {
		return nil, err
	}
	return update, nil
}

func build(raw map[string]*string) (ProfileUpdate, error) {
	update := make(ProfileUpdate, len(raw))
	for k, v := range raw {
		if v == nil {
			update[k] = ""
			continue
		}
		update[k] = *v
	}
	return update, nil
}
