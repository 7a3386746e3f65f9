package htmltable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const screenerHTML = `
<html><body>
<table class="nav small"><tr><td>Home</td></tr></table>
<table class="tinytable data">
  <tr><th>Ticker</th><th>Insider Name</th><th>Trade Type</th></tr>
  <tr>
    <td><a href="/screener?s=AAPL">AAPL</a></td>
    <td>Cook   Timothy D</td>
    <td>P - Purchase</td>
  </tr>
  <tr>
    <td><a href="/screener?s=MSFT">MSFT</a></td>
    <td>Nadella Satya</td>
    <td>S - Sale</td>
  </tr>
</table>
</body></html>`

func TestParse_ExtractsTables(t *testing.T) {
	tables, err := Parse([]byte(screenerHTML))
	require.NoError(t, err)
	require.Len(t, tables, 2)

	data := FindByClass(tables, "tinytable")
	require.NotNil(t, data)
	assert.Equal(t, []string{"Ticker", "Insider Name", "Trade Type"}, data.Header())
	require.Len(t, data.Body(), 2)
	assert.Equal(t, "AAPL", data.Body()[0][0].Text)
	assert.Equal(t, []string{"/screener?s=AAPL"}, data.Body()[0][0].Links)
	// Whitespace runs inside a cell collapse.
	assert.Equal(t, "Cook Timothy D", data.Body()[0][1].Text)
}

func TestHeaderIndex(t *testing.T) {
	tables, err := Parse([]byte(screenerHTML))
	require.NoError(t, err)

	idx := FindByClass(tables, "tinytable").HeaderIndex()
	assert.Equal(t, 0, idx["ticker"])
	assert.Equal(t, 1, idx["insider name"])
	assert.Equal(t, 2, idx["trade type"])
}

func TestFindByClass_NoMatch(t *testing.T) {
	tables, err := Parse([]byte(screenerHTML))
	require.NoError(t, err)
	assert.Nil(t, FindByClass(tables, "absent"))
	// Class matching is on whole class names, not substrings.
	assert.NotNil(t, FindByClass(tables, "data"))
}

func TestLargest(t *testing.T) {
	tables, err := Parse([]byte(screenerHTML))
	require.NoError(t, err)

	largest := Largest(tables)
	require.NotNil(t, largest)
	assert.Equal(t, "tinytable data", largest.Class)

	assert.Nil(t, Largest(nil))
}

func TestExtractCell_BrSplitsLines(t *testing.T) {
	doc := `<table><tr><td>Cook Timothy D<br>Chief Executive Officer</td></tr></table>`
	tables, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, tables, 1)

	cell := tables[0].Rows[0][0]
	assert.Equal(t, "Cook Timothy D\nChief Executive Officer", cell.Text)
}

func TestExtractTable_NestedTablesSeparate(t *testing.T) {
	doc := `<table class="outer"><tr><td>
		<table class="inner"><tr><td>x</td></tr></table>
	</td></tr></table>`
	tables, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, tables, 2)

	outer := FindByClass(tables, "outer")
	require.NotNil(t, outer)
	require.Len(t, outer.Rows, 1)

	inner := FindByClass(tables, "inner")
	require.NotNil(t, inner)
	assert.Equal(t, "x", inner.Rows[0][0].Text)
}

func TestParse_NoTables(t *testing.T) {
	tables, err := Parse([]byte("<html><body><p>nothing</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, tables)
}
