package solar

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ObserverRule says how the observer name(s) for a run are determined.
// Either Fixed is non-empty, or DerivedPrefix is set and the name is built
// from the single distinct ObserverTag found in the input rows.
type ObserverRule struct {
	Fixed         []string
	DerivedPrefix string
}

// CountryProfile is the static per-country configuration selected once at
// the entry of a run. It replaces scattered per-country branches: every
// component reads the profile instead of switching on a country code.
type CountryProfile struct {
	Code          string         `validate:"required,len=2,lowercase"`
	JoinKeyName   string         `validate:"required"`
	JoinKeyKind   JoinKeyKind    `validate:"-"`
	LocationKinds []LocationKind `validate:"min=1"`
	Observers     ObserverRule

	// SeedCatalog names the embedded bootstrap catalog, empty when the
	// country has no bootstrap path.
	SeedCatalog string

	// DefaultCapacityWatts is the capacity given to bootstrapped locations
	// when their seed entry carries none.
	DefaultCapacityWatts int64
}

var profiles = map[string]CountryProfile{
	"gb": {
		Code:          "gb",
		JoinKeyName:   "gsp_id",
		JoinKeyKind:   JoinKeyNumeric,
		LocationKinds: []LocationKind{KindNation, KindGridPoint},
		Observers:     ObserverRule{DerivedPrefix: "pvlive_"},
	},
	"nl": {
		Code:                 "nl",
		JoinKeyName:          "region_id",
		JoinKeyKind:          JoinKeyNumeric,
		LocationKinds:        []LocationKind{KindNation, KindRegion},
		Observers:            ObserverRule{Fixed: []string{"nednl"}},
		SeedCatalog:          "nl",
		DefaultCapacityWatts: 20_000_000_000,
	},
	"be": {
		Code:                 "be",
		JoinKeyName:          "region",
		JoinKeyKind:          JoinKeyText,
		LocationKinds:        []LocationKind{KindNation, KindRegion},
		Observers:            ObserverRule{Fixed: []string{"elia"}},
		SeedCatalog:          "be",
		DefaultCapacityWatts: 10_000_000_000,
	},
	"de": {
		Code:                 "de",
		JoinKeyName:          "tso_zone",
		JoinKeyKind:          JoinKeyText,
		LocationKinds:        []LocationKind{KindRegion},
		Observers:            ObserverRule{Fixed: []string{"entsoe"}},
		SeedCatalog:          "de",
		DefaultCapacityWatts: 20_000_000_000,
	},
}

// ProfileFor returns the profile for a country code.
func ProfileFor(code string) (CountryProfile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return CountryProfile{}, fmt.Errorf("no country profile for %q", code)
	}
	if err := validate.Struct(p); err != nil {
		return CountryProfile{}, fmt.Errorf("invalid profile for %q: %w", code, err)
	}
	return p, nil
}

// SupportedCountries lists the country codes with a profile.
func SupportedCountries() []string {
	codes := make([]string, 0, len(profiles))
	for c := range profiles {
		codes = append(codes, c)
	}
	return codes
}

// ObserverNames resolves the observer name(s) required for a run. When the
// rule is data-derived, the input must carry exactly one distinct non-empty
// observer tag; anything else is a configuration problem.
func (p CountryProfile) ObserverNames(table ReadingTable) ([]string, error) {
	if len(p.Observers.Fixed) > 0 {
		return p.Observers.Fixed, nil
	}

	distinct := make(map[string]struct{})
	var first string
	for _, row := range table.Rows {
		tag := strings.TrimSpace(row.ObserverTag)
		if tag == "" {
			continue
		}
		if _, seen := distinct[tag]; !seen && len(distinct) == 0 {
			first = tag
		}
		distinct[tag] = struct{}{}
	}

	if len(distinct) != 1 {
		return nil, fmt.Errorf(
			"observer derivation for %q needs exactly one observer tag in the input, got %d",
			p.Code, len(distinct),
		)
	}

	return []string{p.Observers.DerivedPrefix + sanitizeObserverTag(first)}, nil
}

// sanitizeObserverTag turns a source regime like "In-Day" into a stable
// observer suffix like "in_day".
func sanitizeObserverTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.ReplaceAll(tag, "-", "_")
	return strings.ReplaceAll(tag, " ", "_")
}
