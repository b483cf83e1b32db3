// Package i18n looks up user-facing texts by key and language.
package i18n

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales.yaml
var defaultLocales []byte

type Language struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type file struct {
	Languages []Language                   `yaml:"languages"`
	Messages  map[string]map[string]string `yaml:"messages"`
}

// Catalog holds every message in every language. Missing translations fall
// back to the default language, unknown keys to the key itself.
type Catalog struct {
	languages []Language
	messages  map[string]map[string]string
	fallback  string
}

// Load parses a catalog and checks that every message exists in fallback.
func Load(data []byte, fallback string) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse locales: %w", err)
	}

	fallback = strings.ToUpper(fallback)
	c := &Catalog{languages: f.Languages, messages: f.Messages, fallback: fallback}
	if !c.Has(fallback) {
		return nil, fmt.Errorf("default language %s is not in the catalog", fallback)
	}
	for key, tr := range f.Messages {
		if _, ok := tr[fallback]; !ok {
			return nil, fmt.Errorf("message %s has no %s text", key, fallback)
		}
	}
	return c, nil
}

// New returns the built-in catalog.
func New(fallback string) (*Catalog, error) {
	return Load(defaultLocales, fallback)
}

func (c *Catalog) Languages() []Language {
	return c.languages
}

func (c *Catalog) Default() string {
	return c.fallback
}

// Has reports whether code is one of the catalog's languages.
func (c *Catalog) Has(code string) bool {
	for _, l := range c.languages {
		if strings.EqualFold(l.Code, code) {
			return true
		}
	}
	return false
}

// T returns the message for key in lang, formatted with args when given.
func (c *Catalog) T(lang, key string, args ...any) string {
	tr, ok := c.messages[key]
	if !ok {
		return key
	}
	text, ok := tr[strings.ToUpper(lang)]
	if !ok {
		text = tr[c.fallback]
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}
