// Package region maps free-text listing locations to a target-region tag.
package region

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/procure-cli/internal/config"
	"github.com/sells-group/procure-cli/pkg/geocode"
)

// OutOfRegion is returned for locations outside every target region.
const OutOfRegion = "out-of-region"

// countyPatterns maps county-name substrings to regions. Checked before the
// city table so "Los Angeles County" wins over any city it contains.
var countyPatterns = []struct {
	pattern string
	region  string
}{
	{"los angeles county", "Los Angeles"},
	{"orange county", "Orange"},
	{"riverside county", "Riverside"},
	{"san bernardino county", "San Bernardino"},
	{"ventura county", "Ventura"},
}

// cityRegions maps known city names to regions.
var cityRegions = map[string]string{
	"los angeles":      "Los Angeles",
	"long beach":       "Los Angeles",
	"pasadena":         "Los Angeles",
	"glendale":         "Los Angeles",
	"burbank":          "Los Angeles",
	"santa monica":     "Los Angeles",
	"torrance":         "Los Angeles",
	"pomona":           "Los Angeles",
	"lancaster":        "Los Angeles",
	"palmdale":         "Los Angeles",
	"anaheim":          "Orange",
	"santa ana":        "Orange",
	"irvine":           "Orange",
	"huntington beach": "Orange",
	"garden grove":     "Orange",
	"fullerton":        "Orange",
	"costa mesa":       "Orange",
	"riverside":        "Riverside",
	"moreno valley":    "Riverside",
	"corona":           "Riverside",
	"temecula":         "Riverside",
	"murrieta":         "Riverside",
	"san bernardino":   "San Bernardino",
	"fontana":          "San Bernardino",
	"rancho cucamonga": "San Bernardino",
	"ontario":          "San Bernardino",
	"victorville":      "San Bernardino",
	"oxnard":           "Ventura",
	"thousand oaks":    "Ventura",
	"simi valley":      "Ventura",
	"ventura":          "Ventura",
}

// defaultBoxes are rough bounding boxes per region used by the geocode
// fallback when none are configured.
var defaultBoxes = []config.RegionBox{
	{Region: "Los Angeles", MinLat: 33.70, MaxLat: 34.85, MinLon: -118.95, MaxLon: -117.65},
	{Region: "Orange", MinLat: 33.38, MaxLat: 33.95, MinLon: -118.13, MaxLon: -117.41},
	{Region: "Riverside", MinLat: 33.42, MaxLat: 34.08, MinLon: -117.68, MaxLon: -114.43},
	{Region: "San Bernardino", MinLat: 33.87, MaxLat: 35.80, MinLon: -117.80, MaxLon: -114.13},
	{Region: "Ventura", MinLat: 33.98, MaxLat: 34.90, MinLon: -119.48, MaxLon: -118.63},
}

// Classifier resolves free-text locations to regions. Geocode lookups are
// cached by input string for the lifetime of the classifier.
type Classifier struct {
	cfg      config.RegionConfig
	geocoder geocode.Client
	boxes    []config.RegionBox

	mu    sync.Mutex
	cache map[string]string
}

// NewClassifier creates a Classifier. The geocoder may be nil, in which case
// the coordinate fallback is skipped and unmatched locations are out of region.
func NewClassifier(cfg config.RegionConfig, geocoder geocode.Client) *Classifier {
	boxes := cfg.Boxes
	if len(boxes) == 0 {
		boxes = defaultBoxes
	}
	return &Classifier{
		cfg:      cfg,
		geocoder: geocoder,
		boxes:    boxes,
		cache:    make(map[string]string),
	}
}

// Classify maps a location string to a region tag or OutOfRegion. First
// match wins: county patterns, then city names, then geocoding.
func (c *Classifier) Classify(ctx context.Context, location string) string {
	folded := foldLocation(location)
	if folded == "" {
		return OutOfRegion
	}

	for _, cp := range countyPatterns {
		if strings.Contains(folded, cp.pattern) {
			return cp.region
		}
	}

	for city, region := range cityRegions {
		if containsWord(folded, city) {
			return region
		}
	}

	return c.classifyByCoordinates(ctx, location)
}

// InRegion reports whether the location maps to any target region.
func (c *Classifier) InRegion(ctx context.Context, location string) bool {
	return c.Classify(ctx, location) != OutOfRegion
}

func (c *Classifier) classifyByCoordinates(ctx context.Context, location string) string {
	if c.geocoder == nil {
		return OutOfRegion
	}

	c.mu.Lock()
	if cached, ok := c.cache[location]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	region := c.geocodeRegion(ctx, location)

	c.mu.Lock()
	c.cache[location] = region
	c.mu.Unlock()
	return region
}

func (c *Classifier) geocodeRegion(ctx context.Context, location string) string {
	result, err := c.geocoder.Geocode(ctx, location)
	if err != nil {
		zap.L().Debug("geocode lookup failed",
			zap.String("location", location),
			zap.Error(err),
		)
		return OutOfRegion
	}
	if !result.Matched {
		return OutOfRegion
	}

	dist := haversineKM(c.cfg.ReferenceLat, c.cfg.ReferenceLon, result.Latitude, result.Longitude)
	if c.cfg.MaxRadiusKM > 0 && dist > c.cfg.MaxRadiusKM {
		return OutOfRegion
	}

	for _, box := range c.boxes {
		if result.Latitude >= box.MinLat && result.Latitude <= box.MaxLat &&
			result.Longitude >= box.MinLon && result.Longitude <= box.MaxLon {
			return box.Region
		}
	}
	return OutOfRegion
}

const earthRadiusKM = 6371.0

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldLocation lowercases and strips diacritics so "Cañada" matches "canada".
func foldLocation(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// containsWord reports whether needle appears in haystack on word boundaries,
// so "ventura" does not match inside "aventura".
func containsWord(haystack, needle string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		beforeOK := start == 0 || !isWordByte(haystack[start-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
