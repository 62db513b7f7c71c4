package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// plainText trims message text and otherwise keeps it exactly as sent.
// Clients render it as text, never as markup.
func plainText(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// cleanName trims a display name and refuses it when the strict policy would
// have to change it, i.e. when it carries markup or entities.
func cleanName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if html.UnescapeString(strictPolicy.Sanitize(s)) != s {
		return "", ErrMarkupInName
	}
	return s, nil
}

func cleanOptionalName(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	clean, err := cleanName(*s)
	if err != nil || clean == "" {
		return nil, err
	}
	return &clean, nil
}
