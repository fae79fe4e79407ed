package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "bgrealm", cmd.Use)
	assert.Contains(t, cmd.Long, "UserContainer")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"get", "list", "count", "put", "delete", "purge", "child", "watch", "schema", "scenario"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestChildSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"add", "update", "remove"} {
		sub, _, err := cmd.Find([]string{"child", name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("schema"))
}

func TestQueryFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"get", "list", "count", "delete", "watch"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			where := sub.Flags().Lookup("where")
			require.NotNil(t, where)
			assert.Equal(t, "w", where.Shorthand)
			assert.NotNil(t, sub.Flags().Lookup("order"))
		})
	}
}

func TestPutCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	putCmd, _, err := cmd.Find([]string{"put"})
	require.NoError(t, err)

	policy := putCmd.Flags().Lookup("policy")
	require.NotNil(t, policy)
	assert.Equal(t, "modified", policy.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "schema", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}
