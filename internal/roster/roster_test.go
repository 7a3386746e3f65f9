package roster

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insider-scan/internal/model"
)

func testRoster() *Roster {
	return New([]Entry{
		{Name: "Pelosi Nancy", FirstName: "Nancy", LastName: "Pelosi", State: "CA", Chamber: "House", Party: "Democrat"},
		{Name: "Tuberville Tommy", FirstName: "Tommy", LastName: "Tuberville", State: "AL", Chamber: "Senate", Party: "Republican"},
	})
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "pelosi nancy", NormalizeName("Pelosi, Nancy"))
	assert.Equal(t, "pelosi nancy", NormalizeName("PELOSI  NANCY"))
	assert.Equal(t, "cardenas tony", NormalizeName("Cárdenas, Tony"))
	assert.Equal(t, "smith john", NormalizeName("Smith, John Jr."))
	assert.Equal(t, "doe jane", NormalizeName("Doe Jane III"))
	assert.Equal(t, "ocasio cortez alexandria", NormalizeName("Ocasio-Cortez, Alexandria"))
	assert.Equal(t, "", NormalizeName(""))
}

func TestRoster_Match_Exact(t *testing.T) {
	r := testRoster()

	e, ok := r.Match("Pelosi Nancy")
	require.True(t, ok)
	assert.Equal(t, "Pelosi Nancy", e.Name)

	e, ok = r.Match("Nancy Pelosi")
	require.True(t, ok)
	assert.Equal(t, "Pelosi Nancy", e.Name)
}

func TestRoster_Match_Containment(t *testing.T) {
	r := testRoster()

	// Middle names and honorifics do not defeat the match.
	e, ok := r.Match("Nancy Patricia Pelosi")
	require.True(t, ok)
	assert.Equal(t, "Pelosi Nancy", e.Name)

	_, ok = r.Match("Cook Timothy D")
	assert.False(t, ok)
}

func TestRoster_Match_Deterministic(t *testing.T) {
	r := testRoster()
	first, ok := r.Match("Nancy Patricia Pelosi")
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		e, ok := r.Match("Nancy Patricia Pelosi")
		require.True(t, ok)
		assert.Equal(t, first.Name, e.Name)
	}
}

func TestRoster_Flag(t *testing.T) {
	r := testRoster()
	trades := []model.StandardTrade{
		{Ticker: "AAPL", InsiderName: "Nancy Pelosi", TradeDate: time.Now()},
		{Ticker: "AAPL", InsiderName: "Cook Timothy D", TradeDate: time.Now()},
	}

	out := r.Flag(trades)
	require.Len(t, out, 2)
	assert.True(t, out[0].Affiliated)
	assert.Equal(t, "Pelosi Nancy", out[0].AffiliationName)
	assert.False(t, out[1].Affiliated)
}

func TestRoster_Flag_EmptyRosterNoOp(t *testing.T) {
	r := New(nil)
	trades := []model.StandardTrade{{InsiderName: "Nancy Pelosi"}}
	out := r.Flag(trades)
	assert.False(t, out[0].Affiliated)
}

func TestLoad_MissingFileYieldsEmptyRoster(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	entries := []Entry{{Name: "Pelosi Nancy", FirstName: "Nancy", LastName: "Pelosi"}}
	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	_, ok := r.Match("Nancy Pelosi")
	assert.True(t, ok)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
