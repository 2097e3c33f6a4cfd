package importer

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericParser_Parse(t *testing.T) {
	f, err := os.Open("testdata/generic.csv")
	require.NoError(t, err)
	defer f.Close()

	p := &GenericParser{}
	lines, err := p.Parse(f)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, "Wire from Globex", lines[0].Description)
	assert.Equal(t, "Globex Corp", lines[0].Payee)
	assert.Equal(t, "INV-2001", lines[0].Reference)
	assert.Equal(t, "TX-9001", lines[0].ExternalID)
	assert.Equal(t, "1200.00", lines[0].Amount.StringFixed(2))

	assert.Empty(t, lines[1].Reference)
	assert.True(t, lines[1].Amount.IsNegative())

	// US date and thousands separator.
	assert.Equal(t, 5, lines[2].Date.Day())
	assert.Equal(t, 2, int(lines[2].Date.Month()))
	assert.Equal(t, "-1250.00", lines[2].Amount.StringFixed(2))
}

func TestGenericParser_HeaderAliases(t *testing.T) {
	csv := "Posting Date,Memo,Amount\n2025-03-01,Coffee,-3.50\n"
	lines, err := (&GenericParser{}).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Coffee", lines[0].Description)
}

func TestGenericParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"missing amount column", "Date,Description\n2025-01-01,x\n", "missing amount column"},
		{"bad date", "Date,Amount,Description\n31/31/2025,1.00,x\n", "parsing date"},
		{"bad amount", "Date,Amount,Description\n2025-01-01,abc,x\n", "parsing amount"},
		{"ragged row", "Date,Amount,Description\n2025-01-01,1.00\n", "row 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&GenericParser{}).Parse(strings.NewReader(tt.csv))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestGenericParser_Empty(t *testing.T) {
	lines, err := (&GenericParser{}).Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, lines)
}
