// Package species loads per-animal wander tuning.
package species

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arthurgeek/croptails/internal/wander"
)

const (
	Chicken = "chicken"
	Cow     = "cow"
)

// ErrUnknownSpecies is returned when a spawn names a species with no tuning.
var ErrUnknownSpecies = errors.New("species: unknown species")

// Tuning is the wander behaviour of one species.
type Tuning struct {
	Wander wander.WanderConfig `json:"wander" yaml:"wander" jsonschema:"description=Idle duration and walking speed bounds"`
	Cycles wander.WalkCycles   `json:"cycles" yaml:"cycles" jsonschema:"description=Paths walked per walking episode"`
}

// File is the on-disk layout of a species tuning document.
type File struct {
	Species map[string]Tuning `json:"species" yaml:"species" jsonschema:"description=Tuning keyed by lower-case species name"`
}

// Catalog resolves species names to tuning.
type Catalog struct {
	entries map[string]Tuning
}

// Defaults returns the built-in chicken and cow tuning.
func Defaults() *Catalog {
	base := Tuning{Wander: wander.DefaultWanderConfig(), Cycles: wander.DefaultWalkCycles()}
	return &Catalog{entries: map[string]Tuning{
		Chicken: base,
		Cow:     base,
	}}
}

// Load reads a YAML tuning file and layers it over the defaults. An empty
// path returns the defaults.
func Load(path string) (*Catalog, error) {
	catalog := Defaults()
	if path == "" {
		return catalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read species file: %w", err)
	}
	if err := catalog.Merge(data); err != nil {
		return nil, fmt.Errorf("species file %s: %w", path, err)
	}
	return catalog, nil
}

// Merge decodes a YAML document and overrides matching entries.
func (c *Catalog) Merge(data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	for name, tuning := range file.Species {
		if err := validate(tuning); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		c.entries[normalize(name)] = tuning
	}
	return nil
}

// Lookup returns the tuning for name, matched case-insensitively.
func (c *Catalog) Lookup(name string) (Tuning, error) {
	tuning, ok := c.entries[normalize(name)]
	if !ok {
		return Tuning{}, fmt.Errorf("%w: %q", ErrUnknownSpecies, name)
	}
	return tuning, nil
}

// Names lists the known species in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validate(t Tuning) error {
	w := t.Wander
	switch {
	case w.MinIdleTime < 0 || w.MinSpeed < 0 || t.Cycles.Min < 0:
		return errors.New("negative tuning value")
	case w.MaxIdleTime < w.MinIdleTime:
		return errors.New("max_idle_time below min_idle_time")
	case w.MaxSpeed < w.MinSpeed:
		return errors.New("max_speed below min_speed")
	case t.Cycles.Max < t.Cycles.Min:
		return errors.New("cycles.max below cycles.min")
	}
	return nil
}
