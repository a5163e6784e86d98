package dailyroute

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/megabin/megabin/internal/optimization"
)

// DepotSource resolves the depots available for a run.
type DepotSource interface {
	Depots(ctx context.Context) ([]optimization.DepotLocation, error)
}

// StaticDepots is a fixed depot list.
type StaticDepots []optimization.DepotLocation

// Depots returns a copy of the list.
func (s StaticDepots) Depots(_ context.Context) ([]optimization.DepotLocation, error) {
	return append([]optimization.DepotLocation(nil), s...), nil
}

type depotsFile struct {
	Depots []depotEntry `yaml:"depots"`
}

type depotEntry struct {
	ID        string   `yaml:"id"`
	Address   string   `yaml:"address"`
	Longitude *float64 `yaml:"longitude"`
	Latitude  *float64 `yaml:"latitude"`
}

// LoadDepotsFile reads a YAML depot list from path.
func LoadDepotsFile(path string) (StaticDepots, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open depots file: %w", err)
	}
	defer f.Close()

	return ParseDepots(f)
}

// ParseDepots decodes a YAML depot list of the form
//
//	depots:
//	  - id: north
//	    address: 1 Landfill Rd
//	    longitude: 28.05
//	    latitude: -26.10
func ParseDepots(r io.Reader) (StaticDepots, error) {
	var doc depotsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode depots: %w", err)
	}

	depots := make(StaticDepots, 0, len(doc.Depots))
	seen := make(map[string]bool, len(doc.Depots))
	for i, d := range doc.Depots {
		switch {
		case d.ID == "":
			return nil, fmt.Errorf("depots[%d]: missing id", i)
		case seen[d.ID]:
			return nil, fmt.Errorf("depots[%d]: duplicate id %q", i, d.ID)
		case d.Longitude == nil || d.Latitude == nil:
			return nil, fmt.Errorf("depots[%d]: missing coordinates", i)
		}
		seen[d.ID] = true
		depots = append(depots, optimization.DepotLocation{
			ID:       d.ID,
			Address:  d.Address,
			Location: optimization.Location{Longitude: *d.Longitude, Latitude: *d.Latitude},
		})
	}
	return depots, nil
}
