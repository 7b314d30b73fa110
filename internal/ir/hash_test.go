package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterminism(t *testing.T) {
	h1, err := Hash(knapsackModel())
	require.NoError(t, err)
	h2, err := Hash(knapsackModel())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "Hash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashIgnoresDictOrder(t *testing.T) {
	a := knapsackModel()
	b := knapsackModel()
	b.Params[0].Values = DictOf("c", 4, "b", 3, "a", 2)

	assert.Equal(t, MustHash(a), MustHash(b))
}

func TestHashChangesWithContent(t *testing.T) {
	base := knapsackModel()

	changed := knapsackModel()
	changed.Params[2].Values = Number(7)

	renamed := knapsackModel()
	renamed.Constraints[0].Name = "capacity_limit"

	assert.NotEqual(t, MustHash(base), MustHash(changed))
	assert.NotEqual(t, MustHash(base), MustHash(renamed))
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t,
		hashWithDomain(DomainModel, data),
		hashWithDomain(DomainReport, data))
}

func TestHashValue(t *testing.T) {
	h1, err := HashValue(DomainReport, DictOf("ok", true))
	require.NoError(t, err)
	h2, err := HashValue(DomainReport, map[string]any{"ok": true})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
