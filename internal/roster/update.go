package roster

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/insider-scan/internal/fetcher"
)

// DefaultLegislatorsURL is the unitedstates/congress-legislators dataset,
// the public-domain source of the current federal roster.
const DefaultLegislatorsURL = "https://unitedstates.github.io/congress-legislators/legislators-current.yaml"

const legislatorsTTL = 24 * 60 * 60

// legislator mirrors one entry of legislators-current.yaml.
type legislator struct {
	Name struct {
		First        string `yaml:"first"`
		Last         string `yaml:"last"`
		OfficialFull string `yaml:"official_full"`
	} `yaml:"name"`
	Terms []struct {
		Type  string `yaml:"type"` // "sen" or "rep"
		State string `yaml:"state"`
		Party string `yaml:"party"`
	} `yaml:"terms"`
}

// Update fetches the current federal legislator list and writes it to path
// as a roster JSON file, sorted by state then name. Returns the entry count.
func Update(ctx context.Context, f fetcher.Fetcher, sourceURL, path string) (int, error) {
	if sourceURL == "" {
		sourceURL = DefaultLegislatorsURL
	}

	resp, err := f.Get(ctx, sourceURL, fetcher.WithTTL(legislatorsTTL))
	if err != nil {
		return 0, eris.Wrap(err, "roster: fetch legislators")
	}

	var people []legislator
	if err := yaml.Unmarshal(resp.Body, &people); err != nil {
		return 0, eris.Wrap(err, "roster: decode legislators yaml")
	}

	entries := make([]Entry, 0, len(people))
	for _, p := range people {
		if len(p.Terms) == 0 || p.Name.Last == "" {
			continue
		}
		latest := p.Terms[len(p.Terms)-1]
		chamber := "House"
		if latest.Type == "sen" {
			chamber = "Senate"
		}
		entries = append(entries, Entry{
			Name:      p.Name.Last + " " + p.Name.First,
			FirstName: p.Name.First,
			LastName:  p.Name.Last,
			State:     latest.State,
			Chamber:   chamber,
			Party:     latest.Party,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].State != entries[j].State {
			return entries[i].State < entries[j].State
		}
		return entries[i].Name < entries[j].Name
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "roster: create output dir")
	}
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return 0, eris.Wrap(err, "roster: encode roster")
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return 0, eris.Wrap(err, "roster: write roster file")
	}

	zap.L().Info("roster: updated",
		zap.Int("entries", len(entries)),
		zap.String("path", path),
	)
	return len(entries), nil
}
