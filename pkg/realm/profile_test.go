package realm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(s string) string { return s }

func TestMergeProfiles(t *testing.T) {
	t.Run("overlay scalar wins", func(t *testing.T) {
		base := Profile{"libdefaults": Profile{"default_realm": "A", "rdns": "false"}}
		overlay := Profile{"libdefaults": Profile{"default_realm": "B"}}

		merged := mergeProfiles(base, overlay)

		section := merged["libdefaults"].(Profile)
		assert.Equal(t, "B", section["default_realm"])
		assert.Equal(t, "false", section["rdns"])
	})

	t.Run("nested sections merge recursively", func(t *testing.T) {
		base := Profile{"realms": Profile{"X": Profile{"kdc": "a:88"}}}
		overlay := Profile{"realms": Profile{"X": Profile{"admin_server": "a:749"}}}

		merged := mergeProfiles(base, overlay)

		x := merged["realms"].(Profile)["X"].(Profile)
		assert.Equal(t, "a:88", x["kdc"])
		assert.Equal(t, "a:749", x["admin_server"])
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		base := Profile{"s": Profile{"k": "base"}}
		overlay := Profile{"s": Profile{"k": "overlay"}}

		_ = mergeProfiles(base, overlay)

		assert.Equal(t, "base", base["s"].(Profile)["k"])
	})

	t.Run("plain maps from yaml are accepted", func(t *testing.T) {
		base := Profile{"s": Profile{"k": "base"}}
		overlay := Profile{"s": map[string]any{"k2": "v2"}}

		merged := mergeProfiles(base, overlay)

		section := merged["s"].(Profile)
		assert.Equal(t, "base", section["k"])
		assert.Equal(t, "v2", section["k2"])
	})

	t.Run("nil overlay value drops the line", func(t *testing.T) {
		base := Profile{"s": Profile{"k": "v"}}
		overlay := Profile{"s": Profile{"k": nil}}

		merged := mergeProfiles(base, overlay)
		text, err := renderProfile(merged, identity)

		require.NoError(t, err)
		assert.NotContains(t, text, "k =")
	})
}

func TestRenderProfile(t *testing.T) {
	t.Run("sections and relations", func(t *testing.T) {
		p := Profile{
			"libdefaults": Profile{"default_realm": "TEST.LOCAL"},
			"realms": Profile{
				"TEST.LOCAL": Profile{
					"kdc": "localhost:1088",
				},
			},
		}

		text, err := renderProfile(p, identity)
		require.NoError(t, err)

		assert.Contains(t, text, "[libdefaults]\n\tdefault_realm = TEST.LOCAL\n")
		assert.Contains(t, text, "[realms]\n\tTEST.LOCAL = {\n\t\tkdc = localhost:1088\n\t}\n")
	})

	t.Run("sections emitted in sorted order", func(t *testing.T) {
		p := Profile{
			"realms":      Profile{},
			"libdefaults": Profile{},
			"dbmodules":   Profile{},
		}

		text, err := renderProfile(p, identity)
		require.NoError(t, err)

		db := strings.Index(text, "[dbmodules]")
		lib := strings.Index(text, "[libdefaults]")
		realms := strings.Index(text, "[realms]")
		assert.True(t, db < lib && lib < realms, "sections out of order:\n%s", text)
	})

	t.Run("string slices repeat the relation", func(t *testing.T) {
		p := Profile{"logging": Profile{"kdc": []string{"FILE:/a", "FILE:/b"}}}

		text, err := renderProfile(p, identity)
		require.NoError(t, err)

		assert.Contains(t, text, "kdc = FILE:/a\n")
		assert.Contains(t, text, "kdc = FILE:/b\n")
	})

	t.Run("substitution applies to names and values", func(t *testing.T) {
		subst := strings.NewReplacer("$realm", "TEST.LOCAL", "$port0", "1088").Replace
		p := Profile{"realms": Profile{"$realm": Profile{"kdc": "localhost:$port0"}}}

		text, err := renderProfile(p, subst)
		require.NoError(t, err)

		assert.Contains(t, text, "TEST.LOCAL = {")
		assert.Contains(t, text, "kdc = localhost:1088")
	})

	t.Run("non-map section is an error", func(t *testing.T) {
		_, err := renderProfile(Profile{"libdefaults": "oops"}, identity)
		assert.Error(t, err)
	})
}
