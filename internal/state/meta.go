package state

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

const MimeType = "application/x-classroompresenter"

// Metadata is the sidecar stored beside a saved deck.
type Metadata struct {
	MimeType     string `yaml:"mime_type"`
	CurrentIndex int    `yaml:"current_index"`
}

// Metadata describes the deck as it stands.
func (d *Deck) Metadata() Metadata {
	return Metadata{MimeType: MimeType, CurrentIndex: d.pos}
}

// ReadMetadata returns the zero sidecar when path does not exist.
func ReadMetadata(path string) (Metadata, error) {
	var m Metadata
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}

func WriteMetadata(path string, m Metadata) error {
	if m.MimeType == "" {
		m.MimeType = MimeType
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
