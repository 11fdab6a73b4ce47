package finding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinding_Validate(t *testing.T) {
	t.Parallel()

	ok := Finding{OriginURL: "http://x/a", Plugin: "headers", Severity: Low}
	assert.NoError(t, ok.Validate())

	assert.ErrorIs(t, Finding{Plugin: "headers"}.Validate(), ErrMissingURL)
	assert.ErrorIs(t, Finding{OriginURL: "http://x/a"}.Validate(), ErrMissingPlugin)

	err := Finding{OriginURL: "http://x/a", Plugin: "p", Severity: "urgent"}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidSeverity))
	assert.Contains(t, err.Error(), "urgent")
}

func TestFinding_IsVulnerability(t *testing.T) {
	t.Parallel()

	assert.True(t, Finding{Severity: High}.IsVulnerability())
	assert.False(t, Finding{}.IsVulnerability())
}

func TestFinding_CloneDetachesAttributes(t *testing.T) {
	t.Parallel()

	orig := Finding{OriginURL: "http://x", Attributes: map[string]string{"mail": "a@x"}}
	c := orig.Clone()
	c.Attributes["mail"] = "b@x"

	assert.Equal(t, "a@x", orig.Attributes["mail"])
}

func TestFinding_String(t *testing.T) {
	t.Parallel()

	f := Finding{OriginURL: "http://x/a", Variable: "id", Description: "d", Plugin: "p"}
	assert.Equal(t, "[p] http://x/a (id): d", f.String())

	f.Variable = ""
	assert.Equal(t, "[p] http://x/a: d", f.String())
}
