package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Default(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	basic, err := c.Lookup("basic")
	require.NoError(t, err)
	assert.Equal(t, "9.9", basic.Amount.String())
	assert.Equal(t, 12, basic.Credits)

	plus, err := c.Lookup("plus")
	require.NoError(t, err)
	assert.Equal(t, "19.9", plus.Amount.String())
	assert.Equal(t, 30, plus.Credits)

	assert.Len(t, c.List(), 2)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("packages:\n  - id: mega\n    name: 100 credits\n    amount: \"49.00\"\n    credits: 100\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	p, err := c.Lookup("mega")
	require.NoError(t, err)
	assert.Equal(t, 100, p.Credits)

	_, err = c.Lookup("basic")
	assert.ErrorIs(t, err, ErrUnknownPackage)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":          "packages: []\n",
		"bad yaml":       "packages: [",
		"bad amount":     "packages:\n  - {id: a, amount: abc, credits: 1}\n",
		"zero credits":   "packages:\n  - {id: a, amount: \"1\", credits: 0}\n",
		"missing id":     "packages:\n  - {amount: \"1\", credits: 1}\n",
		"duplicate":      "packages:\n  - {id: a, amount: \"1\", credits: 1}\n  - {id: a, amount: \"2\", credits: 2}\n",
		"negative price": "packages:\n  - {id: a, amount: \"-1\", credits: 1}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
