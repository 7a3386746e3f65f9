package roster

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insider-scan/internal/fetcher"
)

const legislatorsYAML = `
- name:
    first: Nancy
    last: Pelosi
    official_full: Nancy Pelosi
  terms:
    - type: rep
      state: CA
      party: Democrat
    - type: rep
      state: CA
      party: Democrat
- name:
    first: Tommy
    last: Tuberville
  terms:
    - type: sen
      state: AL
      party: Republican
`

type stubFetcher struct {
	body []byte
	err  error
	url  string
}

func (s *stubFetcher) Get(_ context.Context, rawURL string, _ ...fetcher.RequestOption) (*fetcher.Response, error) {
	s.url = rawURL
	if s.err != nil {
		return nil, s.err
	}
	return &fetcher.Response{Body: s.body, StatusCode: 200}, nil
}

func (s *stubFetcher) PostForm(_ context.Context, _ string, _ url.Values, _ ...fetcher.RequestOption) (*fetcher.Response, error) {
	return nil, nil
}

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	f := &stubFetcher{body: []byte(legislatorsYAML)}

	n, err := Update(context.Background(), f, "", path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, DefaultLegislatorsURL, f.url)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []Entry
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 2)

	// Sorted by state then name: Tuberville (AL) before Pelosi (CA).
	assert.Equal(t, "Tuberville Tommy", entries[0].Name)
	assert.Equal(t, "Senate", entries[0].Chamber)
	assert.Equal(t, "Pelosi Nancy", entries[1].Name)
	assert.Equal(t, "House", entries[1].Chamber)
}

func TestUpdate_BadYAML(t *testing.T) {
	f := &stubFetcher{body: []byte("::not yaml::")}
	_, err := Update(context.Background(), f, "", filepath.Join(t.TempDir(), "roster.json"))
	assert.Error(t, err)
}

func TestUpdate_LoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	f := &stubFetcher{body: []byte(legislatorsYAML)}

	_, err := Update(context.Background(), f, "", path)
	require.NoError(t, err)

	r, err := Load(path)
	require.NoError(t, err)
	_, ok := r.Match("Tommy Tuberville")
	assert.True(t, ok)
}
