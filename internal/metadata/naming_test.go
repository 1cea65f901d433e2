package metadata

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var vosNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{2,62}$`)

func TestDeriveVOSName_MatchesRequiredShape(t *testing.T) {
	name := DeriveVOSName(RepoTypeModel, "alice/my-model")
	assert.Regexp(t, vosNamePattern, name)
	assert.LessOrEqual(t, len(name), 63)
	assert.True(t, name[0] == 'm')
}

func TestDeriveVOSName_IsDeterministic(t *testing.T) {
	a := DeriveVOSName(RepoTypeDataset, "alice/my-dataset")
	b := DeriveVOSName(RepoTypeDataset, "alice/my-dataset")
	assert.Equal(t, a, b)
}

func TestDeriveVOSName_DisambiguatesSanitizationCollisions(t *testing.T) {
	a := DeriveVOSName(RepoTypeModel, "alice/a_b")
	b := DeriveVOSName(RepoTypeModel, "alice/a-b")
	assert.NotEqual(t, a, b, "sanitization collapses both ids to the same sanitized segment, the hash must disambiguate them")
}

func TestDeriveVOSName_UsesTypeCharPrefix(t *testing.T) {
	assert.True(t, DeriveVOSName(RepoTypeModel, "x/y")[0] == 'm')
	assert.True(t, DeriveVOSName(RepoTypeDataset, "x/y")[0] == 'd')
	assert.True(t, DeriveVOSName(RepoTypeSpace, "x/y")[0] == 's')
}
