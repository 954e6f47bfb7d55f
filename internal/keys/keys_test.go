package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInspector_HelpTextPresent(t *testing.T) {
	for _, group := range Inspector.FullHelp() {
		for _, b := range group {
			require.NotEmpty(t, b.Keys())
			require.NotEmpty(t, b.Help().Key)
			require.NotEmpty(t, b.Help().Desc)
		}
	}
}

func TestInspector_NoDuplicateKeys(t *testing.T) {
	seen := map[string]string{}
	for _, group := range Inspector.FullHelp() {
		for _, b := range group {
			for _, k := range b.Keys() {
				prev, dup := seen[k]
				require.False(t, dup, "key %q bound to both %q and %q", k, prev, b.Help().Desc)
				seen[k] = b.Help().Desc
			}
		}
	}
}

func TestInspector_QuitIncludesCtrlC(t *testing.T) {
	require.Contains(t, Inspector.Quit.Keys(), "ctrl+c")
}
