package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/AaronLay10/SentientDialogue/internal/version"
)

// Asset is the persisted form of a Store. Lines keep GUID links; indices
// are rebuilt by Finalize after loading.
type Asset struct {
	Version   int             `json:"version"`
	Tables    Tables          `json:"tables"`
	Scenarios []AssetScenario `json:"scenarios"`
}

type AssetScenario struct {
	ID    int    `json:"id"`
	Lines []Line `json:"lines"`
}

// NewAsset snapshots the unresolved lines of s, scenarios ordered by ID.
func NewAsset(s *Store) *Asset {
	a := &Asset{Version: version.AssetFormat, Tables: s.Tables(), Scenarios: []AssetScenario{}}
	for _, id := range s.IDs() {
		lines, err := s.Lines(id)
		if err != nil {
			continue
		}
		if lines == nil {
			lines = []Line{}
		}
		a.Scenarios = append(a.Scenarios, AssetScenario{ID: id, Lines: lines})
	}
	return a
}

// Store builds a finalized Store from the asset.
func (a *Asset) Store() (*Store, *FinalizeReport, error) {
	if a.Version != version.AssetFormat {
		return nil, nil, fmt.Errorf("%w: %d", ErrAssetVersion, a.Version)
	}
	s := NewStore()
	s.SetTables(a.Tables)
	for _, sc := range a.Scenarios {
		s.AddScenario(sc.ID)
		for _, l := range sc.Lines {
			s.AddLine(sc.ID, l)
		}
	}
	return s, s.Finalize(), nil
}

// Write encodes the asset as indented JSON.
func (a *Asset) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("failed to encode asset: %w", err)
	}
	return nil
}

// ReadAsset decodes asset JSON without building a store.
func ReadAsset(r io.Reader) (*Asset, error) {
	var a Asset
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode asset: %w", err)
	}
	return &a, nil
}

// Encode writes s as indented asset JSON.
func Encode(w io.Writer, s *Store) error {
	return NewAsset(s).Write(w)
}

// Decode reads asset JSON and returns a finalized Store.
func Decode(r io.Reader) (*Store, error) {
	a, err := ReadAsset(r)
	if err != nil {
		return nil, err
	}
	s, _, err := a.Store()
	return s, err
}

func SaveFile(path string, s *Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create asset file: %w", err)
	}
	if err := Encode(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
