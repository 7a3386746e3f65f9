// Package roster holds the affiliation roster of covered public officials
// and flags trades whose insider matches one. Flagging is pure annotation:
// it never removes or merges records.
package roster

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/insider-scan/internal/model"
)

// Entry is one public official in the roster.
type Entry struct {
	Name       string   `json:"name"` // "Last First" display form
	FirstName  string   `json:"first_name,omitempty"`
	LastName   string   `json:"last_name,omitempty"`
	State      string   `json:"state,omitempty"`
	Chamber    string   `json:"chamber,omitempty"`
	Party      string   `json:"party,omitempty"`
	SectorTags []string `json:"sector_tags,omitempty"`
}

// Roster is an immutable lookup table of officials keyed by normalized name
// variants. Build once, share read-only across a scan.
type Roster struct {
	entries []Entry
	// variants maps every normalized name form to the entry index.
	// Iteration for containment matching runs over keys sorted once at
	// build time so matches are deterministic.
	variants    map[string]int
	sortedNames []string
}

// Load reads a roster JSON file. A missing file yields an empty roster, not
// an error; scans run unflagged without one.
func Load(path string) (*Roster, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Debug("roster file not found, flagging disabled", zap.String("path", path))
			return New(nil), nil
		}
		return nil, eris.Wrap(err, "roster: read file")
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, eris.Wrap(err, "roster: decode file")
	}
	return New(entries), nil
}

// New builds a roster from entries, indexing each under its normalized
// display name and its "First Last" variant.
func New(entries []Entry) *Roster {
	r := &Roster{
		entries:  entries,
		variants: make(map[string]int),
	}
	for i, e := range entries {
		for _, v := range nameVariants(e) {
			if v == "" {
				continue
			}
			if _, exists := r.variants[v]; !exists {
				r.variants[v] = i
			}
		}
	}
	r.sortedNames = make([]string, 0, len(r.variants))
	for v := range r.variants {
		r.sortedNames = append(r.sortedNames, v)
	}
	sort.Strings(r.sortedNames)
	return r
}

// Len returns the number of roster entries.
func (r *Roster) Len() int { return len(r.entries) }

// Entries returns the roster entries in load order.
func (r *Roster) Entries() []Entry { return r.entries }

func nameVariants(e Entry) []string {
	variants := []string{NormalizeName(e.Name)}
	if e.FirstName != "" || e.LastName != "" {
		variants = append(variants,
			NormalizeName(e.FirstName+" "+e.LastName),
			NormalizeName(e.LastName+" "+e.FirstName),
		)
	}
	return variants
}

// Match finds the roster entry for an insider name: exact normalized match
// first, then containment in either direction. Containment scans names in
// sorted order, so ties resolve the same way every scan.
func (r *Roster) Match(insiderName string) (Entry, bool) {
	needle := NormalizeName(insiderName)
	if needle == "" {
		return Entry{}, false
	}

	if i, ok := r.variants[needle]; ok {
		return r.entries[i], true
	}

	for _, name := range r.sortedNames {
		if strings.Contains(needle, name) || strings.Contains(name, needle) {
			return r.entries[r.variants[name]], true
		}
	}
	return Entry{}, false
}

// Flag annotates trades whose insider matches a roster entry. The input
// slice is mutated in place and returned.
func (r *Roster) Flag(trades []model.StandardTrade) []model.StandardTrade {
	if r.Len() == 0 {
		return trades
	}

	flagged := 0
	for i := range trades {
		if e, ok := r.Match(trades[i].InsiderName); ok {
			trades[i].Affiliated = true
			trades[i].AffiliationName = e.Name
			flagged++
		}
	}
	if flagged > 0 {
		zap.L().Info("roster: flagged affiliated trades",
			zap.Int("flagged", flagged),
			zap.Int("total", len(trades)),
		)
	}
	return trades
}

var suffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName canonicalizes a person name for matching: diacritics
// stripped, lowercased, punctuation dropped, generational suffixes removed,
// whitespace collapsed.
func NormalizeName(name string) string {
	if folded, _, err := transform.String(stripMarks, name); err == nil {
		name = folded
	}
	name = strings.ToLower(name)

	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			sb.WriteRune(' ')
		}
	}

	words := strings.Fields(sb.String())
	kept := words[:0]
	for _, w := range words {
		if suffixes[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
