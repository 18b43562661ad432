package processor

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// COGMediaType is the media type of cloud optimized GeoTIFF assets.
const COGMediaType = "image/tiff; application=geotiff; profile=cloud-optimized"

// CollectionProfile names the assets of one collection that feed each
// product, and the classification values that count as clear.
type CollectionProfile struct {
	Collection         string            `json:"collection" yaml:"collection"`
	NIRBand            string            `json:"nir_band" yaml:"nir_band"`
	RedBand            string            `json:"red_band" yaml:"red_band"`
	TrueColorBand      string            `json:"true_color_band" yaml:"true_color_band"`
	ClassificationBand string            `json:"classification_band" yaml:"classification_band"`
	ClearValues        []int             `json:"clear_values" yaml:"clear_values"`
	Indices            map[string]string `json:"indices" yaml:"indices"`
	// AssetMediaType is the media type every asset must declare. Empty
	// accepts any media type.
	AssetMediaType string `json:"asset_media_type" yaml:"asset_media_type"`

	clear ClassSet
}

func (p *CollectionProfile) ClearSet() ClassSet {
	if p.clear == nil {
		return NewClassSet(p.ClearValues...)
	}
	return p.clear
}

func (p *CollectionProfile) validate() error {
	if strings.TrimSpace(p.Collection) == "" {
		return errors.Wrap(ErrValidation, "collection profile without collection id")
	}
	if p.NIRBand == "" || p.RedBand == "" {
		return errors.Wrapf(ErrValidation, "collection %s: nir_band and red_band are required", p.Collection)
	}
	if p.ClassificationBand != "" && len(p.ClearValues) == 0 {
		return errors.Wrapf(ErrValidation, "collection %s: classification_band requires clear_values", p.Collection)
	}
	for name, expr := range p.Indices {
		if _, err := ParseBandExpression(expr); err != nil {
			return errors.Wrapf(err, "collection %s index %s", p.Collection, name)
		}
	}
	return nil
}

// DefaultProfiles returns the built in profiles. Sentinel-2 L2A treats
// the scene classification values vegetation (4), not vegetated (5),
// water (6) and unclassified (7) as clear. 0 is the classification no
// data value; it is listed as clear so pixels masked out by the cropper
// never flag an item as cloudy. Index expressions only combine bands of
// one resolution (B8A, B05 and B11 are 20 m).
func DefaultProfiles() []*CollectionProfile {
	return []*CollectionProfile{
		{
			Collection:         "sentinel-2-l2a",
			NIRBand:            "B08",
			RedBand:            "B04",
			TrueColorBand:      "visual",
			ClassificationBand: "SCL",
			ClearValues:        []int{0, 4, 5, 6, 7},
			Indices: map[string]string{
				"ndre": "(B8A - B05) / (B8A + B05)",
				"ndmi": "(B8A - B11) / (B8A + B11)",
			},
			AssetMediaType: COGMediaType,
		},
	}
}

// ProfileLookup resolves the profile of a collection.
type ProfileLookup interface {
	Lookup(collection string) (*CollectionProfile, error)
}

// ProfileRegistry is an immutable collection id to profile map.
type ProfileRegistry struct {
	profiles map[string]*CollectionProfile
}

func NewProfileRegistry(profiles ...*CollectionProfile) (*ProfileRegistry, error) {
	r := &ProfileRegistry{profiles: make(map[string]*CollectionProfile, len(profiles))}
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[p.Collection]; dup {
			return nil, errors.Wrapf(ErrValidation, "duplicate collection profile %s", p.Collection)
		}
		cp := *p
		cp.ClearValues = append([]int(nil), p.ClearValues...)
		cp.clear = NewClassSet(cp.ClearValues...)
		r.profiles[p.Collection] = &cp
	}
	return r, nil
}

func (r *ProfileRegistry) Lookup(collection string) (*CollectionProfile, error) {
	if collection == "" {
		return nil, errors.Wrap(ErrUnsupportedCollection, "item has no collection")
	}
	p, ok := r.profiles[collection]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedCollection, "collection %s", collection)
	}
	return p, nil
}

func (r *ProfileRegistry) Collections() []string {
	out := make([]string, 0, len(r.profiles))
	for c := range r.profiles {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// SwappableProfiles serves lookups from a registry that can be replaced
// atomically, e.g. on configuration reload.
type SwappableProfiles struct {
	current atomic.Pointer[ProfileRegistry]
}

func NewSwappableProfiles(r *ProfileRegistry) *SwappableProfiles {
	s := &SwappableProfiles{}
	s.current.Store(r)
	return s
}

func (s *SwappableProfiles) Swap(r *ProfileRegistry) {
	s.current.Store(r)
}

func (s *SwappableProfiles) Lookup(collection string) (*CollectionProfile, error) {
	return s.current.Load().Lookup(collection)
}
