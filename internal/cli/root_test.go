package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/learnsync/internal/offline"
	"github.com/roach88/learnsync/internal/remote"
	"github.com/roach88/learnsync/internal/testutil"
)

// cliEnv runs commands against one database and one in-process remote.
type cliEnv struct {
	db      string
	gateway *remote.MemoryGateway
	opts    []offline.Option
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	gw := remote.NewMemoryGateway()
	return &cliEnv{
		db:      filepath.Join(t.TempDir(), "learnsync.db"),
		gateway: gw,
		opts: []offline.Option{
			offline.WithGateway(gw),
			offline.WithIDGenerator(testutil.NewSequenceGenerator("item")),
			offline.WithResultIDs(testutil.NewSequenceGenerator("sync")),
		},
	}
}

// run executes the root command with args and returns stdout.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runContext(t, context.Background(), args...)
}

func (e *cliEnv) runContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommandWith(&RootOptions{ServiceOptions: e.opts})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--db", e.db}, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "learnsync", cmd.Use)
	assert.Contains(t, cmd.Long, "offline")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"}, {"enqueue"}, {"queue", "list"}, {"queue", "clear"}, {"sync"},
		{"conflicts", "list"}, {"conflicts", "resolve"}, {"history"},
		{"export"}, {"import"}, {"storage"}, {"run"},
	}

	for _, path := range commands {
		t.Run(filepath.Join(path...), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
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

	for _, name := range []string{"config", "db", "log-file", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestSyncCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	syncCmd, _, err := cmd.Find([]string{"sync"})
	require.NoError(t, err)

	for _, name := range []string{"policy", "retry-attempts", "retry-delay", "force"} {
		assert.NotNil(t, syncCmd.Flags().Lookup(name), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "--format", "xml", "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidLogFormat(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "--log-format", "xml", "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMissingConfigFile(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
