package solar

import (
	"embed"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed seeds/*.yaml
var seedFS embed.FS

// SeedEntry is one default location created when the registry has none for
// a country. Latitude/Longitude are optional; entries without coordinates
// are geocoded at bootstrap time when a geocoder is configured.
type SeedEntry struct {
	Name          string   `yaml:"name"`
	Latitude      *float64 `yaml:"latitude"`
	Longitude     *float64 `yaml:"longitude"`
	JoinKey       string   `yaml:"join_key"`
	Kind          string   `yaml:"kind"`
	CapacityWatts int64    `yaml:"capacity_watts"`
}

// SeedCatalog is the static bootstrap catalog for one country.
type SeedCatalog struct {
	Country string      `yaml:"country"`
	Entries []SeedEntry `yaml:"entries"`
}

// LoadSeedCatalog loads an embedded seed catalog by name ("nl", "be", "de").
func LoadSeedCatalog(name string) (SeedCatalog, error) {
	raw, err := seedFS.ReadFile("seeds/" + name + ".yaml")
	if err != nil {
		return SeedCatalog{}, fmt.Errorf("seed catalog %q: %w", name, err)
	}

	var catalog SeedCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return SeedCatalog{}, fmt.Errorf("seed catalog %q: %w", name, err)
	}
	if len(catalog.Entries) == 0 {
		return SeedCatalog{}, fmt.Errorf("seed catalog %q is empty", name)
	}
	return catalog, nil
}

// Key parses the entry's join key into the typed form the profile expects.
func (e SeedEntry) Key(kind JoinKeyKind) (JoinKeyValue, error) {
	if kind == JoinKeyNumeric {
		n, err := strconv.ParseInt(e.JoinKey, 10, 64)
		if err != nil {
			return JoinKeyValue{}, fmt.Errorf("seed %q: join key %q is not numeric: %w", e.Name, e.JoinKey, err)
		}
		return NumericKey(n), nil
	}
	return TextKey(e.JoinKey), nil
}

// LocationKindOrDefault maps the entry's kind string, defaulting to region.
func (e SeedEntry) LocationKindOrDefault() LocationKind {
	switch e.Kind {
	case string(KindNation):
		return KindNation
	case string(KindGridPoint):
		return KindGridPoint
	default:
		return KindRegion
	}
}

// HasCoordinates reports whether the entry carries a usable position.
func (e SeedEntry) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}
