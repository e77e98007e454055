package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	groups, err := parseCatalog(defaultCatalog)
	require.NoError(t, err)
	require.NotEmpty(t, groups)

	var dictionaryDefaults, perspectiveDefaults int
	for _, bg := range groups {
		if bg.DictionaryDefault {
			dictionaryDefaults++
		}
		if bg.PerspectiveDefault {
			perspectiveDefaults++
		}
		assert.False(t, bg.DictionaryDefault && bg.PerspectiveDefault, bg.Name)
	}
	assert.Positive(t, dictionaryDefaults)
	assert.Positive(t, perspectiveDefaults)
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	_, err := parseCatalog([]byte("basegroups:\n  - name: x\n    subject: spaceship\n    action: view\n"))
	assert.ErrorContains(t, err, "unknown subject")

	_, err = parseCatalog([]byte("basegroups:\n  - name: x\n    subject: dictionary\n    action: fly\n"))
	assert.ErrorContains(t, err, "unknown action")

	_, err = parseCatalog([]byte("basegroups:\n  - name: a\n    subject: dictionary\n    action: view\n  - name: b\n    subject: dictionary\n    action: view\n"))
	assert.ErrorContains(t, err, "duplicates")

	_, err = parseCatalog([]byte("basegroups:\n  - subject: dictionary\n    action: view\n"))
	assert.ErrorContains(t, err, "no name")
}
