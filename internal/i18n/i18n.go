// Package i18n resolves user-facing strings by key from embedded TOML bundles.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"bada/internal/entity"
)

//go:embed locales/*.toml
var locales embed.FS

var supported = []language.Tag{
	language.English,
	language.Russian,
}

type Bundle struct {
	tag      language.Tag
	messages map[string]string
	fallback map[string]string
}

// Load picks the bundle closest to locale. An empty locale falls back to
// $LC_ALL, then $LANG, then English.
func Load(locale string) (*Bundle, error) {
	if strings.TrimSpace(locale) == "" {
		locale = os.Getenv("LC_ALL")
	}
	if strings.TrimSpace(locale) == "" {
		locale = os.Getenv("LANG")
	}
	tag := Match(locale)

	fallback, err := readBundle(language.English)
	if err != nil {
		return nil, err
	}
	b := &Bundle{tag: tag, messages: fallback, fallback: fallback}
	if tag != language.English {
		msgs, err := readBundle(tag)
		if err != nil {
			return nil, err
		}
		b.messages = msgs
	}
	return b, nil
}

// Match maps a POSIX or BCP 47 locale name onto one of the shipped bundles.
func Match(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	locale = strings.ReplaceAll(locale, "_", "-")
	want, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	matcher := language.NewMatcher(supported)
	_, idx, conf := matcher.Match(want)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

func readBundle(tag language.Tag) (map[string]string, error) {
	base, _ := tag.Base()
	data, err := locales.ReadFile("locales/" + base.String() + ".toml")
	if err != nil {
		return nil, fmt.Errorf("read %s bundle: %w", tag, err)
	}
	msgs := map[string]string{}
	if err := toml.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parse %s bundle: %w", tag, err)
	}
	return msgs, nil
}

func (b *Bundle) Language() language.Tag {
	return b.tag
}

// T resolves key. Keys missing from the active bundle come from English; keys
// missing there too resolve to themselves.
func (b *Bundle) T(key string) string {
	if v, ok := b.messages[key]; ok {
		return v
	}
	if v, ok := b.fallback[key]; ok {
		return v
	}
	return key
}

func (b *Bundle) Tf(key string, args ...any) string {
	return fmt.Sprintf(b.T(key), args...)
}

// KindTitle resolves the dialog title for an action on kind, e.g.
// KindTitle(entity.KindTask, "create") looks up "Task.createTitle".
func (b *Bundle) KindTitle(kind entity.Kind, action string) string {
	return b.T(kind.String() + "." + action + "Title")
}

// KindName is the lower-case noun for kind, resolved from "<Kind>.kind".
func (b *Bundle) KindName(kind entity.Kind) string {
	if !kind.Valid() {
		return kind.String()
	}
	return b.T(kind.String() + ".kind")
}
