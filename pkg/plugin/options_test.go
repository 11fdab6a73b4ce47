package plugin

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func TestOptionsFromMap_Sorted(t *testing.T) {
	l := OptionsFromMap(map[string]string{"b": "2", "a": "1"})
	require.Len(t, l, 2)
	assert.Equal(t, "a", l[0].Name)
	assert.Equal(t, "2", l.String("b"))
	assert.Empty(t, l.String("missing"))
}

func TestOptionList_Typed(t *testing.T) {
	l := OptionList{
		{Name: "limit", Value: "300"},
		{Name: "verbose", Value: "true"},
		{Name: "bad", Value: "x"},
	}

	n, err := l.Int("limit")
	require.NoError(t, err)
	assert.Equal(t, 300, n)

	b, err := l.Bool("verbose")
	require.NoError(t, err)
	assert.True(t, b)

	_, err = l.Int("bad")
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = l.Bool("bad")
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = l.Int("missing")
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestMerge(t *testing.T) {
	schema := OptionList{
		{Name: "limit", Value: "300", Type: TypeInteger},
		{Name: "engine", Value: "seed", Type: TypeString},
	}

	merged, err := Merge(schema, OptionList{{Name: "limit", Value: "10"}})
	require.NoError(t, err)
	assert.Equal(t, "10", merged.String("limit"))
	assert.Equal(t, "seed", merged.String("engine"))
	assert.Equal(t, "300", schema.String("limit"), "schema is not modified")

	_, err = Merge(schema, OptionList{{Name: "nope", Value: "1"}})
	assert.ErrorIs(t, err, ErrUnknownOption)

	_, err = Merge(schema, OptionList{{Name: "limit", Value: "many"}})
	assert.ErrorIs(t, err, ErrInvalidOption)
}
