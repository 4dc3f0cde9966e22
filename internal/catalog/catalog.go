// Package catalog loads the resort list and the zip code table.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/beetlebot/skitrip-cli/internal/core"
	"github.com/beetlebot/skitrip-cli/internal/geo"
)

//go:embed data/resorts.yaml
var embeddedResorts []byte

//go:embed data/zips.yaml
var embeddedZips []byte

type resortFile struct {
	Resorts []core.Resort `yaml:"resorts"`
}

type zipFile struct {
	Zips map[string]geo.Location `yaml:"zips"`
}

// Catalog is read-only once loaded and safe for concurrent use.
type Catalog struct {
	resorts []core.Resort
	zips    map[string]geo.Location
}

// Load reads the catalog from the given files. An empty path selects the
// embedded sample data.
func Load(resortsPath, zipsPath string) (*Catalog, error) {
	resortsData, err := readOr(resortsPath, embeddedResorts)
	if err != nil {
		return nil, err
	}
	zipsData, err := readOr(zipsPath, embeddedZips)
	if err != nil {
		return nil, err
	}
	return Parse(resortsData, zipsData)
}

func Parse(resortsData, zipsData []byte) (*Catalog, error) {
	var rf resortFile
	if err := yaml.Unmarshal(resortsData, &rf); err != nil {
		return nil, fmt.Errorf("parse resorts: %w", err)
	}
	var zf zipFile
	if err := yaml.Unmarshal(zipsData, &zf); err != nil {
		return nil, fmt.Errorf("parse zips: %w", err)
	}

	for i, r := range rf.Resorts {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("resort %d has no name", i)
		}
	}
	if zf.Zips == nil {
		zf.Zips = map[string]geo.Location{}
	}
	return &Catalog{resorts: core.DedupeResorts(rf.Resorts), zips: zf.Zips}, nil
}

func readOr(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return data, nil
}

// Resorts returns the resorts of region, or every resort for "All" or "".
// Unknown regions yield an empty list.
func (c *Catalog) Resorts(region string) []core.Resort {
	region = strings.TrimSpace(region)
	all := region == "" || strings.EqualFold(region, core.AllRegions)

	var out []core.Resort
	for _, r := range c.resorts {
		if all || strings.EqualFold(r.Region, region) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Catalog) Zip(zip string) (geo.Location, bool) {
	loc, ok := c.zips[strings.TrimSpace(zip)]
	return loc, ok
}

// Regions lists the distinct regions in the catalog, sorted.
func (c *Catalog) Regions() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range c.resorts {
		if !seen[r.Region] {
			seen[r.Region] = true
			out = append(out, r.Region)
		}
	}
	sort.Strings(out)
	return out
}
