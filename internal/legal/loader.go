// Package legal serves the privacy policy and terms of service, parsed
// from embedded YAML on first use.
package legal

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed legal.yaml
var legalRawData []byte

// ErrNotFound is returned for an unknown document slug.
var ErrNotFound = errors.New("legal: document not found")

// Item is a bullet, optionally linking out.
type Item struct {
	Text string `yaml:"text"`
	URL  string `yaml:"url,omitempty"`
}

// Section is a numbered heading with its paragraphs and bullets.
type Section struct {
	Heading    string   `yaml:"heading"`
	Paragraphs []string `yaml:"paragraphs"`
	Items      []Item   `yaml:"items"`
}

// Document is one legal page.
type Document struct {
	Slug     string    `yaml:"-"`
	Title    string    `yaml:"title"`
	Updated  string    `yaml:"updated"`
	Sections []Section `yaml:"sections"`
}

// legalFile is the top-level structure of the embedded YAML.
type legalFile struct {
	Documents map[string]Document `yaml:"documents"`
}

// Documents provides lazy-loaded access to the embedded documents.
type Documents struct {
	once sync.Once
	raw  []byte
	docs map[string]Document
	err  error
}

// New creates a Documents that parses the embedded YAML on first access.
func New() *Documents {
	return &Documents{raw: legalRawData}
}

// Parse creates a Documents backed by raw YAML instead of the embedded file.
func Parse(raw []byte) *Documents {
	return &Documents{raw: raw}
}

// Get returns the document with the given slug ("privacy", "terms").
func (d *Documents) Get(slug string) (Document, error) {
	d.once.Do(d.load)
	if d.err != nil {
		return Document{}, d.err
	}
	doc, ok := d.docs[slug]
	if !ok {
		return Document{}, fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	return doc, nil
}

// Slugs returns the known document slugs in sorted order.
func (d *Documents) Slugs() ([]string, error) {
	d.once.Do(d.load)
	if d.err != nil {
		return nil, d.err
	}
	out := make([]string, 0, len(d.docs))
	for slug := range d.docs {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out, nil
}

// load parses the YAML data.
func (d *Documents) load() {
	var f legalFile
	if err := yaml.Unmarshal(d.raw, &f); err != nil {
		d.err = fmt.Errorf("legal: parse yaml: %w", err)
		return
	}
	d.docs = make(map[string]Document, len(f.Documents))
	for slug, doc := range f.Documents {
		if doc.Title == "" {
			d.err = fmt.Errorf("legal: document %q has no title", slug)
			return
		}
		doc.Slug = slug
		d.docs[slug] = doc
	}
}
