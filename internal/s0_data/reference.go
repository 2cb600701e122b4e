package s0_data

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/wonny/covid-report/pkg/config"
	"github.com/wonny/covid-report/pkg/httputil"
)

// RegionLookup maps fine geography codes to a coarse region name.
// Immutable after construction; build one per run and pass it explicitly.
type RegionLookup struct {
	name    string
	regions map[string]string
	names   map[string]string
}

// NewRegionLookup copies the given maps. names may be nil.
func NewRegionLookup(name string, regions map[string]string, names map[string]string) *RegionLookup {
	l := &RegionLookup{
		name:    name,
		regions: make(map[string]string, len(regions)),
		names:   make(map[string]string, len(names)),
	}
	for k, v := range regions {
		l.regions[k] = v
	}
	for k, v := range names {
		l.names[k] = v
	}
	return l
}

// Name identifies the lookup in logs and errors
func (l *RegionLookup) Name() string { return l.name }

// Len returns the number of mapped codes
func (l *RegionLookup) Len() int { return len(l.regions) }

// Region returns the coarse region for code
func (l *RegionLookup) Region(code string) (string, bool) {
	r, ok := l.regions[code]
	return r, ok
}

// DisplayName returns the human name of code, if the source file had one
func (l *RegionLookup) DisplayName(code string) (string, bool) {
	n, ok := l.names[code]
	return n, ok
}

// Regions returns the distinct region names, sorted
func (l *RegionLookup) Regions() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, r := range l.regions {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

// CodesIn returns the codes mapped to region, sorted
func (l *RegionLookup) CodesIn(region string) []string {
	out := make([]string, 0)
	for code, r := range l.regions {
		if r == region {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// PopulationTable maps geography codes to resident population. Immutable.
type PopulationTable struct {
	pop   map[string]float64
	names map[string]string
}

// NewPopulationTable copies the given maps. names may be nil.
func NewPopulationTable(pop map[string]float64, names map[string]string) *PopulationTable {
	p := &PopulationTable{
		pop:   make(map[string]float64, len(pop)),
		names: make(map[string]string, len(names)),
	}
	for k, v := range pop {
		p.pop[k] = v
	}
	for k, v := range names {
		p.names[k] = v
	}
	return p
}

// Population returns the population of code
func (p *PopulationTable) Population(code string) (float64, bool) {
	v, ok := p.pop[code]
	return v, ok
}

// Name returns the area name of code
func (p *PopulationTable) Name(code string) (string, bool) {
	n, ok := p.names[code]
	return n, ok
}

// Len returns the number of codes
func (p *PopulationTable) Len() int { return len(p.pop) }

// ParseLARegion parses local_authority_nhs_region.csv (la_gss, la_name, nhs_name)
func ParseLARegion(data []byte) (*RegionLookup, error) {
	c, err := ParseCSV("la_region", data, "la_gss", "la_name", "nhs_name")
	if err != nil {
		return nil, err
	}

	regions := make(map[string]string, len(c.Records))
	names := make(map[string]string, len(c.Records))
	for _, rec := range c.Records {
		code := c.Get(rec, "la_gss")
		if code == "" {
			continue
		}
		regions[code] = c.Get(rec, "nhs_name")
		names[code] = c.Get(rec, "la_name")
	}

	return NewRegionLookup("la_region", regions, names), nil
}

// ParseCCGRegion parses ccg_region.csv (CCG20CD, NHSER20NM). The file lists a
// CCG once per sub-area, so the first row per code wins.
func ParseCCGRegion(data []byte) (*RegionLookup, error) {
	c, err := ParseCSV("ccg_region", data, "CCG20CD", "NHSER20NM")
	if err != nil {
		return nil, err
	}

	regions := make(map[string]string, len(c.Records))
	names := make(map[string]string)
	hasName := c.Has("CCG20NM")
	for _, rec := range c.Records {
		code := c.Get(rec, "CCG20CD")
		if code == "" {
			continue
		}
		if _, dup := regions[code]; dup {
			continue
		}
		regions[code] = c.Get(rec, "NHSER20NM")
		if hasName {
			names[code] = c.Get(rec, "CCG20NM")
		}
	}

	return NewRegionLookup("ccg_region", regions, names), nil
}

// ParsePopulations parses region_populations.csv (Code, Name, All ages).
// Only 9-character ONS codes are kept; counts may carry thousands separators.
func ParsePopulations(data []byte) (*PopulationTable, error) {
	c, err := ParseCSV("populations", data, "Code", "Name", "All ages")
	if err != nil {
		return nil, err
	}

	pop := make(map[string]float64, len(c.Records))
	names := make(map[string]string, len(c.Records))
	for _, rec := range c.Records {
		code := c.Get(rec, "Code")
		if len(code) != 9 {
			continue
		}
		v, err := ParseCount(c.Get(rec, "All ages"))
		if err != nil {
			return nil, fmt.Errorf("populations: code %s: %w", code, err)
		}
		if math.IsNaN(v) {
			continue
		}
		pop[code] = v
		names[code] = c.Get(rec, "Name")
	}

	return NewPopulationTable(pop, names), nil
}

// Reference bundles the static lookup tables for one run
type Reference struct {
	LARegion    *RegionLookup
	CCGRegion   *RegionLookup
	Populations *PopulationTable
}

// Locator reads a reference file from disk or over HTTP
type Locator struct {
	client *httputil.Client
}

// NewLocator creates a Locator; client is used for http(s) locations
func NewLocator(client *httputil.Client) *Locator {
	return &Locator{client: client}
}

// Read returns the bytes at location
func (l *Locator) Read(ctx context.Context, location string) ([]byte, error) {
	if config.IsRemote(location) {
		if l.client == nil {
			return nil, fmt.Errorf("no HTTP client for %s", location)
		}
		return l.client.GetBytes(ctx, location)
	}
	return os.ReadFile(location)
}

// LoadReference loads every lookup table. Any failure is returned as is;
// schema mismatches are fatal to the caller.
func LoadReference(ctx context.Context, loc *Locator, cfg config.ReferenceConfig) (*Reference, error) {
	laData, err := loc.Read(ctx, cfg.LARegion)
	if err != nil {
		return nil, fmt.Errorf("load la_region from %s: %w", cfg.LARegion, err)
	}
	la, err := ParseLARegion(laData)
	if err != nil {
		return nil, err
	}

	ccgData, err := loc.Read(ctx, cfg.CCGRegion)
	if err != nil {
		return nil, fmt.Errorf("load ccg_region from %s: %w", cfg.CCGRegion, err)
	}
	ccg, err := ParseCCGRegion(ccgData)
	if err != nil {
		return nil, err
	}

	popData, err := loc.Read(ctx, cfg.Populations)
	if err != nil {
		return nil, fmt.Errorf("load populations from %s: %w", cfg.Populations, err)
	}
	pop, err := ParsePopulations(popData)
	if err != nil {
		return nil, err
	}

	return &Reference{LARegion: la, CCGRegion: ccg, Populations: pop}, nil
}
