// Package loader reads constraint documents into validated packs and keeps
// a published pack current as its file changes.
//
// A document is YAML (JSON is accepted, being a subset):
//
//	version: "1.0"
//	constraints:
//	  - id: tdd.test-first
//	    title: Write the failing test first
//	    priority: 0.9
//	    trigger:
//	      keywords: [test, implement]
//	      file_patterns: ["**/*_test.go"]
//	      confidence_threshold: 0.4
//	    reminders:
//	      - Start from a failing test.
//	  - id: tdd.cycle
//	    title: Red, green, refactor
//	    priority: 0.8
//	    composition_type: sequential
//	    components:
//	      - {id: tdd.test-first, sequence_order: 1}
//	      - {id: tdd.refactor, sequence_order: 2}
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nvandessel/nudge/internal/constants"
	"github.com/nvandessel/nudge/internal/library"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/pathutil"
	"github.com/nvandessel/nudge/internal/sanitize"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a pack.
type Document struct {
	Version     string               `yaml:"version" json:"version"`
	Constraints []ConstraintDocument `yaml:"constraints" json:"constraints"`
}

// ConstraintDocument is one constraint entry. A non-empty CompositionType
// makes it composite.
type ConstraintDocument struct {
	ID        string          `yaml:"id" json:"id"`
	Title     string          `yaml:"title" json:"title"`
	Priority  float64         `yaml:"priority" json:"priority"`
	Trigger   TriggerDocument `yaml:"trigger" json:"trigger"`
	Reminders []string        `yaml:"reminders,omitempty" json:"reminders,omitempty"`

	CompositionType string                  `yaml:"composition_type,omitempty" json:"composition_type,omitempty"`
	Components      []ComponentDocument     `yaml:"components,omitempty" json:"components,omitempty"`
	Levels          []models.HierarchyLevel `yaml:"levels,omitempty" json:"levels,omitempty"`
}

// TriggerDocument is the trigger entry. A missing threshold takes the
// loader default.
type TriggerDocument struct {
	Keywords            []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	FilePatterns        []string `yaml:"file_patterns,omitempty" json:"file_patterns,omitempty"`
	ContextPatterns     []string `yaml:"context_patterns,omitempty" json:"context_patterns,omitempty"`
	AntiPatterns        []string `yaml:"anti_patterns,omitempty" json:"anti_patterns,omitempty"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold,omitempty" json:"confidence_threshold,omitempty"`
}

// ComponentDocument references a component of a composite.
type ComponentDocument struct {
	ID             string `yaml:"id" json:"id"`
	SequenceOrder  *int   `yaml:"sequence_order,omitempty" json:"sequence_order,omitempty"`
	HierarchyLevel *int   `yaml:"hierarchy_level,omitempty" json:"hierarchy_level,omitempty"`
}

// Option configures parsing.
type Option func(*options)

type options struct {
	defaultThreshold float64
}

// WithDefaultThreshold sets the threshold for triggers that declare none.
func WithDefaultThreshold(t float64) Option {
	return func(o *options) {
		o.defaultThreshold = t
	}
}

func newOptions(opts []Option) options {
	o := options{defaultThreshold: constants.DefaultConfidenceThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LoadFile reads and parses the document at path.
func LoadFile(path string, opts ...Option) (*library.Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading constraint document %s: %w", pathutil.RedactPath(path), err)
	}
	pack, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", pathutil.RedactPath(path), err)
	}
	return pack, nil
}

// Parse decodes a document and builds a validated pack. Unknown keys are
// rejected so typos do not silently disable a trigger.
func Parse(data []byte, opts ...Option) (*library.Pack, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return doc.Build(opts...)
}

// Decode decodes a document without validating it.
func Decode(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &models.ValidationError{Field: "document", Issue: "blank"}
		}
		return nil, &models.ValidationError{Field: "document", Issue: "malformed", Detail: err.Error()}
	}
	return &doc, nil
}

// Build converts the document into a pack.
func (d *Document) Build(opts ...Option) (*library.Pack, error) {
	o := newOptions(opts)

	cs := make([]models.Constraint, 0, len(d.Constraints))
	for _, cd := range d.Constraints {
		c, err := cd.toConstraint(o)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return library.Build(d.Version, cs)
}

func (cd ConstraintDocument) toConstraint(o options) (models.Constraint, error) {
	id := models.ConstraintID(strings.TrimSpace(cd.ID))

	threshold := o.defaultThreshold
	if cd.Trigger.ConfidenceThreshold != nil {
		threshold = *cd.Trigger.ConfidenceThreshold
	}
	trig := models.NewTrigger(
		cd.Trigger.Keywords,
		cd.Trigger.FilePatterns,
		cd.Trigger.ContextPatterns,
		cd.Trigger.AntiPatterns,
		&threshold,
	)
	title := sanitize.Title(cd.Title)
	reminders := sanitize.Reminders(cd.Reminders)

	if strings.TrimSpace(cd.CompositionType) == "" {
		if len(cd.Components) > 0 || len(cd.Levels) > 0 {
			return models.Constraint{}, &models.ValidationError{ConstraintID: id, Field: "composition_type", Issue: "missing"}
		}
		return models.NewAtomic(id, title, cd.Priority, trig, reminders)
	}

	ct, ok := models.ParseCompositionType(cd.CompositionType)
	if !ok {
		return models.Constraint{}, &models.ValidationError{
			ConstraintID: id,
			Field:        "composition_type",
			Issue:        "unknown",
			Detail:       cd.CompositionType,
		}
	}

	comp := models.Composition{Type: ct, Levels: cd.Levels}
	for _, ref := range cd.Components {
		comp.Components = append(comp.Components, models.ConstraintReference{
			ID:             models.ConstraintID(strings.TrimSpace(ref.ID)),
			SequenceOrder:  ref.SequenceOrder,
			HierarchyLevel: ref.HierarchyLevel,
		})
	}

	c, err := models.NewComposite(id, title, cd.Priority, trig, comp)
	if err != nil {
		return models.Constraint{}, err
	}
	c.Reminders = reminders
	return c, nil
}

// Encode renders a pack back into document form, e.g. for `nudge validate
// --json` or the library resource.
func Encode(p *library.Pack) *Document {
	doc := &Document{Version: p.Version()}
	for _, c := range p.Constraints() {
		threshold := c.Trigger.ConfidenceThreshold
		cd := ConstraintDocument{
			ID:       string(c.ID),
			Title:    c.Title,
			Priority: c.Priority,
			Trigger: TriggerDocument{
				Keywords:            c.Trigger.Keywords,
				FilePatterns:        c.Trigger.FilePatterns,
				ContextPatterns:     c.Trigger.ContextPatterns,
				AntiPatterns:        c.Trigger.AntiPatterns,
				ConfidenceThreshold: &threshold,
			},
			Reminders: c.Reminders,
		}
		if c.IsComposite() {
			cd.CompositionType = string(c.Composition.Type)
			cd.Levels = c.Composition.Levels
			for _, ref := range c.Composition.Components {
				cd.Components = append(cd.Components, ComponentDocument{
					ID:             string(ref.ID),
					SequenceOrder:  ref.SequenceOrder,
					HierarchyLevel: ref.HierarchyLevel,
				})
			}
		}
		doc.Constraints = append(doc.Constraints, cd)
	}
	return doc
}
