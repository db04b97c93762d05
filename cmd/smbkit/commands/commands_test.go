package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smberrors "github.com/marmos91/smbkit/pkg/errors"
	"github.com/marmos91/smbkit/pkg/transport/memory"
)

const testConfig = `logging:
  level: ERROR
client:
  session_timeout: 2s
credentials:
  - path: '\\fs\docs'
    domain: CORP
    username: alice
    password: secret
`

type result struct {
	stdout string
	stderr string
	err    error
}

// harness runs the root command against a seeded in-memory server.
type harness struct {
	t      *testing.T
	srv    *memory.Server
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := memory.NewServer()
	srv.AddShare("docs")
	srv.WriteFile("docs", "a.txt", []byte("hello world"))
	srv.WriteFile("docs", `sub\b.txt`, []byte("b"))

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0600))

	origServer, origPrompt := newDryRunServer, promptPassword
	newDryRunServer = func() *memory.Server { return srv }
	promptPassword = func(principal, path string) (string, error) {
		return "", errors.New("unexpected password prompt")
	}
	t.Cleanup(func() {
		newDryRunServer, promptPassword = origServer, origPrompt
		resetFlags(rootCmd)
	})

	return &harness{t: t, srv: srv, config: cfgPath}
}

func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", h.config, "--dry-run"}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"negative answer", &exitError{code: 1}, 1},
		{"wrapped exit status", fmt.Errorf("ls: %w", &exitError{code: 1}), 1},
		{"cancelled", smberrors.NewCancelledError("read", `\\fs\docs\a.txt`, context.Canceled), 130},
		{"failure", errors.New("boom"), 2},
		{"path invalid", smberrors.NewPathInvalidError("x", "bad"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}

	assert.True(t, IsSilent(&exitError{code: 1}))
	assert.False(t, IsSilent(errors.New("boom")))
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "version", "--short")
	require.NoError(t, res.err)
	assert.Equal(t, Version+"\n", res.stdout)

	res = h.run("", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "smbkit "+Version)
	assert.Contains(t, res.stdout, "Go version:")
}

func TestCat(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "cat", `\\fs\docs\a.txt`)
	require.NoError(t, res.err)
	assert.Equal(t, "hello world", res.stdout)

	res = h.run("", "cat", "--offset", "6", "--limit", "3", "smb://fs/docs/a.txt")
	require.NoError(t, res.err)
	assert.Equal(t, "wor", res.stdout)
}

func TestCatMissingFile(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "cat", `\\fs\docs\missing.txt`)
	require.Error(t, res.err)
	assert.True(t, smberrors.IsNotFoundError(res.err))
	assert.Equal(t, 2, ExitCode(res.err))
}

func TestExists(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "exists", `\\fs\docs\a.txt`)
	require.NoError(t, res.err)
	assert.Equal(t, "true\n", res.stdout)

	res = h.run("", "exists", `\\fs\docs\missing.txt`)
	assert.Equal(t, 1, ExitCode(res.err))
	assert.Equal(t, "false\n", res.stdout)

	res = h.run("", "exists", "-q", `\\fs\docs\missing.txt`)
	assert.Equal(t, 1, ExitCode(res.err))
	assert.Empty(t, res.stdout)

	res = h.run("", "exists", `\\fs\docs`)
	require.NoError(t, res.err)
	assert.Equal(t, "true\n", res.stdout)
}

func TestExistsRejectsInvalidPath(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "exists", `\\fs`)
	require.Error(t, res.err)
	assert.True(t, smberrors.IsPathInvalidError(res.err))
	assert.Equal(t, 2, ExitCode(res.err))
}

func TestStatJSON(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "-o", "json", "stat", `\\fs\docs\a.txt`)
	require.NoError(t, res.err)

	var entry fileEntry
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entry))
	assert.Equal(t, "a.txt", entry.Name)
	assert.Equal(t, "file", entry.Type)
	assert.Equal(t, int64(11), entry.Size)
}

func TestLs(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "-o", "json", "ls", `\\fs\docs`)
	require.NoError(t, res.err)

	var entries []fileEntry
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "file", entries[0].Type)
	assert.Equal(t, "sub", entries[1].Name)
	assert.Equal(t, "dir", entries[1].Type)

	res = h.run("", "ls", `\\fs\docs`)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "a.txt")
	assert.Contains(t, res.stdout, `sub\`)
}

func TestLsEmptyDirectory(t *testing.T) {
	h := newHarness(t)
	h.srv.Mkdir("docs", "empty")

	res := h.run("", "ls", `\\fs\docs\empty`)
	require.NoError(t, res.err)
	assert.Equal(t, "(empty)\n", res.stdout)
}

func TestPut(t *testing.T) {
	h := newHarness(t)

	res := h.run("new data", "put", "-", `\\fs\docs\new.txt`)
	require.NoError(t, res.err)
	data, ok := h.srv.ReadFile("docs", "new.txt")
	require.True(t, ok)
	assert.Equal(t, "new data", string(data))

	res = h.run(" more", "put", "--append", "-", `\\fs\docs\new.txt`)
	require.NoError(t, res.err)
	data, _ = h.srv.ReadFile("docs", "new.txt")
	assert.Equal(t, "new data more", string(data))

	res = h.run("short", "put", "-", `\\fs\docs\new.txt`)
	require.NoError(t, res.err)
	data, _ = h.srv.ReadFile("docs", "new.txt")
	assert.Equal(t, "short", string(data))
}

func TestPutLocalFile(t *testing.T) {
	h := newHarness(t)
	local := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(local, []byte("report"), 0644))

	res := h.run("", "put", local, "smb://fs/docs/report.txt")
	require.NoError(t, res.err)
	data, ok := h.srv.ReadFile("docs", "report.txt")
	require.True(t, ok)
	assert.Equal(t, "report", string(data))
}

func TestPutNoClobber(t *testing.T) {
	h := newHarness(t)

	res := h.run("x", "put", "--no-clobber", "-", `\\fs\docs\a.txt`)
	require.Error(t, res.err)
	assert.True(t, smberrors.IsAlreadyExistsError(res.err))

	data, _ := h.srv.ReadFile("docs", "a.txt")
	assert.Equal(t, "hello world", string(data))

	res = h.run("x", "put", "--append", "--no-clobber", "-", `\\fs\docs\a.txt`)
	require.Error(t, res.err)
}

func TestRm(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "rm", "-f", `\\fs\docs\a.txt`)
	require.NoError(t, res.err)
	_, ok := h.srv.ReadFile("docs", "a.txt")
	assert.False(t, ok)
	assert.Contains(t, res.stdout, `removed \\fs\docs\a.txt`)
}

func TestMkdir(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "mkdir", `\\fs\docs\one`)
	require.NoError(t, res.err)

	res = h.run("", "mkdir", "-p", `\\fs\docs\x\y\z`)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `created \\fs\docs\x\y\z`)

	res = h.run("", "exists", `\\fs\docs\x\y`)
	require.NoError(t, res.err)

	res = h.run("", "mkdir", "-p", `\\fs\docs\x\y`)
	require.NoError(t, res.err)
}

func TestFlagCredentialPrompts(t *testing.T) {
	h := newHarness(t)
	h.srv.AddShare("private")
	h.srv.WriteFile("private", "k.txt", []byte("key"))

	var asked []string
	promptPassword = func(principal, path string) (string, error) {
		asked = append(asked, principal+" "+path)
		return "hunter2", nil
	}

	res := h.run("", "-u", "bob", "-d", "CORP", "cat", `\\fs\private\k.txt`)
	require.NoError(t, res.err)
	assert.Equal(t, "key", res.stdout)
	assert.Equal(t, []string{`CORP\bob \\fs\private`}, asked)
}

func TestFlagPasswordRequiresUser(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "-p", "secret", "cat", `\\fs\docs\a.txt`)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "require --user")
}

func TestConfigShowMasksPasswords(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "session_timeout: 2s")
	assert.Contains(t, res.stdout, "alice")
	assert.Contains(t, res.stdout, "********")
	assert.NotContains(t, res.stdout, "secret")
}

func TestConfigSchema(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "config", "schema")
	require.NoError(t, res.err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &schema))
	assert.Contains(t, schema, "properties")
}

func TestConfigInit(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	res := h.run("", "config", "init", "--config", path)
	require.NoError(t, res.err)
	_, err := os.Stat(path)
	require.NoError(t, err)

	res = h.run("", "config", "init", "--config", path)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already exists")

	res = h.run("", "config", "init", "--config", path, "--force")
	require.NoError(t, res.err)
}

func TestMissingExplicitConfig(t *testing.T) {
	h := newHarness(t)
	h.config = filepath.Join(t.TempDir(), "absent.yaml")

	res := h.run("", "cat", `\\fs\docs\a.txt`)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "smbkit config init")
}
