package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mfcc-go/internal/conf"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := RootCommand(&conf.Settings{}, "test")

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"extract", "info", "serve"})
	assert.Equal(t, "test", root.Version)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	root := RootCommand(&conf.Settings{}, "test")

	for _, name := range []string{"config", "debug", "window", "hop", "macro", "width", "channel",
		"queue-depth", "retries", "infer-timeout", "model-type", "model", "threads"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag %s", name)
	}

	extract, _, err := root.Find([]string{"extract"})
	require.NoError(t, err)
	assert.NotNil(t, extract.Flags().Lookup("output"))
	assert.NotNil(t, extract.Flags().Lookup("format"))
	assert.Error(t, extract.Args(extract, nil))
}
