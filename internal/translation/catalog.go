// Package translation loads string tables for key-form dialogue text.
//
// Tables live under <dir>/<locale>/<table>.yaml:
//
//	locale: en-US
//	table: dialogue
//	entries:
//	  Dialogue_1a2b: "Halt! Who goes there?"
package translation

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

type tableFile struct {
	Locale  string            `yaml:"locale"`
	Table   string            `yaml:"table"`
	Entries map[string]string `yaml:"entries"`
}

// Catalog holds string tables grouped by locale. It is safe for concurrent
// reads once loading is done.
type Catalog struct {
	fallback language.Tag
	locales  map[language.Tag]map[string]map[string]string
	tags     []language.Tag

	matcher   language.Matcher
	matchTags []language.Tag
}

// NewCatalog returns an empty catalog that falls back to the given locale.
func NewCatalog(fallback language.Tag) *Catalog {
	return &Catalog{
		fallback: fallback,
		locales:  make(map[language.Tag]map[string]map[string]string),
	}
}

// LoadDir loads every <locale>/<table>.yaml under dir.
func LoadDir(dir string, fallback language.Tag) (*Catalog, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("translation dir: %w", err)
	}
	return LoadFS(os.DirFS(dir), fallback)
}

func LoadFS(fsys fs.FS, fallback language.Tag) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob string tables: %w", err)
	}
	sort.Strings(paths)

	c := NewCatalog(fallback)
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read table %s: %w", p, err)
		}
		var f tableFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse table %s: %w", p, err)
		}
		if err := c.addFile(p, f); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) addFile(p string, f tableFile) error {
	localeFromPath := path.Base(path.Dir(p))
	tableFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))

	locale := strings.TrimSpace(f.Locale)
	if locale == "" {
		locale = localeFromPath
	}
	if locale != localeFromPath {
		return fmt.Errorf("table %s: locale %q must match path locale %q", p, locale, localeFromPath)
	}
	table := strings.TrimSpace(f.Table)
	if table == "" {
		table = tableFromPath
	}
	if table != tableFromPath {
		return fmt.Errorf("table %s: name %q must match file name %q", p, table, tableFromPath)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("table %s: parse locale %q: %w", p, locale, err)
	}
	if _, exists := c.locales[tag][table]; exists {
		return fmt.Errorf("table %s: %q already defined for %s", p, table, tag)
	}
	c.Add(tag, table, f.Entries)
	return nil
}

// Add merges entries into a table, replacing existing keys.
func (c *Catalog) Add(tag language.Tag, table string, entries map[string]string) {
	tables, ok := c.locales[tag]
	if !ok {
		tables = make(map[string]map[string]string)
		c.locales[tag] = tables
		c.tags = append(c.tags, tag)
		c.rebuildMatcher()
	}
	t, ok := tables[table]
	if !ok {
		t = make(map[string]string, len(entries))
		tables[table] = t
	}
	for k, v := range entries {
		t[strings.TrimSpace(k)] = v
	}
}

// Locales returns the loaded locales in load order.
func (c *Catalog) Locales() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Match picks the loaded locale closest to the preferences, which may be
// BCP 47 tags or Accept-Language header values.
func (c *Catalog) Match(prefs ...string) language.Tag {
	if len(c.tags) == 0 {
		return c.fallback
	}
	var want []language.Tag
	for _, p := range prefs {
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		want = append(want, tags...)
	}
	_, idx, conf := c.matcher.Match(want...)
	if conf == language.No {
		return c.fallback
	}
	return c.matchTags[idx]
}

func (c *Catalog) rebuildMatcher() {
	// the first supported tag is the matcher's default
	c.matchTags = []language.Tag{c.fallback}
	for _, t := range c.tags {
		if t != c.fallback {
			c.matchTags = append(c.matchTags, t)
		}
	}
	c.matcher = language.NewMatcher(c.matchTags)
}

// Localizer resolves keys for one locale against a scenario's tables.
// It implements scenario.Lookup.
type Localizer struct {
	catalog *Catalog
	locale  language.Tag
	tables  []string
}

// Localizer returns a lookup over the named tables of locale, searched in
// name, dialogue, selection order. Keys missing in locale fall back to the
// catalog's fallback locale.
func (c *Catalog) Localizer(locale language.Tag, tables scenario.Tables) *Localizer {
	var names []string
	for _, n := range []string{tables.Name, tables.Dialogue, tables.Selection} {
		if n != "" {
			names = append(names, n)
		}
	}
	return &Localizer{catalog: c, locale: locale, tables: names}
}

func (l *Localizer) Locale() language.Tag { return l.locale }

func (l *Localizer) Lookup(key string) (string, bool) {
	if s, ok := l.lookupIn(l.locale, key); ok {
		return s, true
	}
	if l.locale != l.catalog.fallback {
		return l.lookupIn(l.catalog.fallback, key)
	}
	return "", false
}

func (l *Localizer) lookupIn(tag language.Tag, key string) (string, bool) {
	tables := l.catalog.locales[tag]
	if tables == nil {
		return "", false
	}
	if len(l.tables) == 0 {
		for _, name := range sortedKeys(tables) {
			if s, ok := tables[name][key]; ok {
				return s, true
			}
		}
		return "", false
	}
	for _, name := range l.tables {
		if s, ok := tables[name][key]; ok {
			return s, true
		}
	}
	return "", false
}

func sortedKeys(m map[string]map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
