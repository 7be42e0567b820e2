package voteable

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk relation table.
type File struct {
	Voteables []Entry `yaml:"voteables"`
}

// Entry declares one registration. An empty Related means the votee itself.
type Entry struct {
	Votee          string `yaml:"votee"`
	Related        string `yaml:"related"`
	Up             int64  `yaml:"up"`
	Down           int64  `yaml:"down"`
	UpdateCounters *bool  `yaml:"update_counters"`
	ForeignKey     string `yaml:"foreign_key"`
}

// LoadFile reads a YAML relation table and builds the registry.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open voteables file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// Load decodes a YAML relation table and builds the registry.
func Load(r io.Reader) (*Registry, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode voteables: %w", err)
	}

	b := NewBuilder()
	for i, e := range file.Voteables {
		if err := b.RegisterEntry(e); err != nil {
			return nil, fmt.Errorf("voteables[%d]: %w", i, err)
		}
	}
	return b.Build(), nil
}

// RegisterEntry validates and registers a declared entry.
func (b *Builder) RegisterEntry(e Entry) error {
	if e.Votee == "" {
		return errors.New("votee is required")
	}

	related := e.Related
	if related == "" {
		related = e.Votee
	}
	if related == e.Votee && e.ForeignKey != "" {
		return errors.New("foreign_key is only valid for a related type")
	}

	var opts []Option
	if e.UpdateCounters != nil && !*e.UpdateCounters {
		opts = append(opts, WithoutCounters())
	}
	if e.ForeignKey != "" {
		opts = append(opts, WithForeignKey(e.ForeignKey))
	}

	b.Register(e.Votee, related, e.Up, e.Down, opts...)
	return nil
}
