package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := NewRootCommand()
	var out, diag bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&diag)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// run executes args against db and fails the test on error.
func run(t *testing.T, db string, args ...string) string {
	t.Helper()
	out, err := execute(t, append(args, "--db", db)...)
	require.NoError(t, err, "bgrealm %s", strings.Join(args, " "))
	return out
}

// lockedBuffer is a bytes.Buffer safe to read while a command writes to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "bgrealm.db")
}

func seedUsers(t *testing.T, db string) {
	t.Helper()
	run(t, db, "put", "User",
		`{"id":"u1","name":"Ann","age":31}`,
		`{"id":"u2","name":"Bob","age":25}`,
		`{"id":"u3","name":"Cid","age":40}`)
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestPutAndGet(t *testing.T) {
	db := tempDB(t)
	out := run(t, db, "put", "User", `{"id":"u1","name":"Ann","age":31}`)
	assert.Equal(t, "saved 1 record(s)\n", out)

	out = run(t, db, "get", "User", "--where", "id=u1")
	assert.Equal(t, `{"age":31,"id":"u1","name":"Ann"}`+"\n", out)
}

func TestGet_LastMatch(t *testing.T) {
	db := tempDB(t)
	seedUsers(t, db)

	out := run(t, db, "get", "User", "--order", "age")
	assert.Contains(t, out, `"name":"Cid"`)

	out = run(t, db, "get", "User", "--order=-age")
	assert.Contains(t, out, `"name":"Bob"`)
}

func TestGet_NoMatch(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, "get", "User", "--where", "id=nobody", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestGet_UnknownKind(t *testing.T) {
	out, err := execute(t, "get", "Nope", "--db", tempDB(t), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, CodeUnknown, decodeResponse(t, out).Error.Code)
}

func TestList(t *testing.T) {
	db := tempDB(t)
	seedUsers(t, db)

	out := run(t, db, "list", "User", "--where", "age>=30", "--order", "name")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Ann")
	assert.Contains(t, lines[1], "Cid")
}

func TestList_Window(t *testing.T) {
	db := tempDB(t)
	seedUsers(t, db)

	out := run(t, db, "list", "User", "--order", "age", "--offset", "1", "--limit", "5", "--format", "json")
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	users, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, users, 2)
	assert.Equal(t, "Ann", users[0].(map[string]any)["name"])

	_, err := execute(t, "list", "User", "--limit", "-1", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestList_Empty(t *testing.T) {
	out := run(t, tempDB(t), "list", "User", "--format", "json")
	assert.JSONEq(t, `{"status":"ok","data":[]}`, out)
}

func TestCount(t *testing.T) {
	db := tempDB(t)
	seedUsers(t, db)

	assert.Equal(t, "3\n", run(t, db, "count", "User"))
	assert.Equal(t, "1\n", run(t, db, "count", "User", "-w", "name!=Ann", "-w", "age>26"))

	out := run(t, db, "count", "User", "--format", "json")
	assert.JSONEq(t, `{"status":"ok","data":{"count":3}}`, out)
}

func TestPut_Policies(t *testing.T) {
	db := tempDB(t)
	run(t, db, "put", "User", `{"id":"u1","name":"Ann"}`)

	out, err := execute(t, "put", "User", `{"id":"u1","name":"Anna"}`, "--policy", "error", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, CodeDuplicate, decodeResponse(t, out).Error.Code)

	run(t, db, "put", "User", `{"id":"u1","name":"Anna"}`, "--policy", "all")
	assert.Contains(t, run(t, db, "get", "User", "-w", "id=u1"), "Anna")
}

func TestPut_InvalidInput(t *testing.T) {
	db := tempDB(t)

	_, err := execute(t, "put", "User", `{"id":"u1"}`, "--policy", "sometimes", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "put", "User", `[1,2]`, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "put", "User", `{"name":"no key"}`, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestDelete(t *testing.T) {
	db := tempDB(t)
	seedUsers(t, db)

	out := run(t, db, "delete", "User", "--where", "age<30")
	assert.Equal(t, "deleted 1 record(s)\n", out)
	assert.Equal(t, "2\n", run(t, db, "count", "User"))

	_, err := execute(t, "delete", "User", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out = run(t, db, "delete", "User", "--all", "--format", "json")
	assert.JSONEq(t, `{"status":"ok","data":{"deleted":2}}`, out)
}

func TestPurge(t *testing.T) {
	db := tempDB(t)
	seedUsers(t, db)
	run(t, db, "child", "add", "--id", "main", "--create", `{"id":"u9","name":"Zed"}`)

	_, err := execute(t, "purge", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	run(t, db, "purge", "--yes")
	assert.Equal(t, "0\n", run(t, db, "count", "User"))
	assert.Equal(t, "0\n", run(t, db, "count", "UserContainer"))
}

func TestChild(t *testing.T) {
	db := tempDB(t)

	_, err := execute(t, "child", "add", "--id", "main", `{"id":"u1","name":"Ann"}`, "--db", db)
	require.Error(t, err, "container does not exist yet")

	run(t, db, "child", "add", "--id", "main", "--create", `{"id":"u1","name":"Ann"}`, `{"id":"u2","name":"Bob"}`)
	run(t, db, "child", "add", "--id", "main", "--create", `{"id":"u3","name":"Cid"}`)
	run(t, db, "child", "update", "--id", "main", `{"id":"u2","name":"Bobby"}`)
	run(t, db, "child", "remove", "--id", "main", "u1")

	out := run(t, db, "get", "UserContainer", "--where", "id=main")
	assert.Equal(t, `{"id":"main","users":[{"id":"u2","name":"Bobby"},{"id":"u3","name":"Cid"}]}`+"\n", out)

	out, err = execute(t, "child", "remove", "--id", "main", "u1", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, decodeResponse(t, out).Error.Code)
}

func TestChild_UndeclaredList(t *testing.T) {
	_, err := execute(t, "child", "add", "--id", "main", "--list", "admins", `{"id":"u1"}`, "--db", tempDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWatch_Snapshot(t *testing.T) {
	db := tempDB(t)
	seedUsers(t, db)

	out := run(t, db, "watch", "User", "--order", "age", "--events", "1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Bob")
	assert.Equal(t, "---", lines[3])
}

func TestWatch_Changes(t *testing.T) {
	db := tempDB(t)
	seedUsers(t, db)

	out := run(t, db, "watch", "User", "--changes", "--events", "1", "--format", "json")
	resp := decodeResponse(t, out)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "initial", data["kind"])
	assert.Len(t, data["items"], 3)
}

func TestWatch_List(t *testing.T) {
	db := tempDB(t)
	run(t, db, "child", "add", "--id", "main", "--create", `{"id":"u1","name":"Ann"}`)

	out := run(t, db, "watch", "UserContainer", "-w", "id=main", "--list", "users", "--events", "1")
	assert.Equal(t, `initial [{"id":"u1","name":"Ann"}]`+"\n", out)
}

func TestWatch_EmptyStore(t *testing.T) {
	out := run(t, tempDB(t), "watch", "User", "--events", "1")
	assert.Equal(t, "---\n", out)
}

func TestWatch_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewRootCommand()
	out := &lockedBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(&lockedBuffer{})
	cmd.SetArgs([]string{"watch", "User", "--db", tempDB(t)})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "---") }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Equal(t, "User key=id\nUserContainer key=id lists=users\n", out)

	path := filepath.Join(t.TempDir(), "kinds.cue")
	require.NoError(t, os.WriteFile(path, []byte(`kind: Task: primaryKey: "id"`+"\n"), 0o644))
	out, err = execute(t, "schema", "--schema", path, "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":[{"name":"Task","primary_key":"id"}]}`, out)

	_, err = execute(t, "schema", "--schema", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "from-config.db")
	cfgPath := filepath.Join(dir, "bgrealm.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+db+"\nlog:\n  level: error\n"), 0o644))

	_, err := execute(t, "put", "User", `{"id":"u1"}`, "--config", cfgPath)
	require.NoError(t, err)
	_, err = os.Stat(db)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  paht: x.db\n"), 0o644))
	_, err = execute(t, "count", "User", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

const harnessData = "../harness/testdata"

func TestScenarioCommand(t *testing.T) {
	out, err := execute(t, "scenario", filepath.Join(harnessData, "scenarios"),
		"--golden", filepath.Join(harnessData, "golden"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ child-edits\n")
	assert.Contains(t, out, "✓ user-changes\n")
	assert.Contains(t, out, "Summary: 2 passed, 0 failed, 2 total")

	out, err = execute(t, "scenario", filepath.Join(harnessData, "scenarios"),
		"--golden", filepath.Join(harnessData, "golden"), "--filter", "child-*", "--format", "json")
	require.NoError(t, err, out)
	assert.JSONEq(t, `{"status":"ok","data":{"scenarios":[{"name":"child-edits","pass":true}],"passed":1,"failed":0,"total":1}}`, out)
}

func TestScenarioCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join(harnessData, "scenarios", "user-changes.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user-changes.yaml"), src, 0o644))

	_, err = execute(t, "scenario", dir, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(dir, "golden", "user-changes.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(harnessData, "golden", "user-changes.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "user-changes.golden"), []byte("scenario: stale\n"), 0o644))
	out, err := execute(t, "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ user-changes")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestScenarioCommand_Errors(t *testing.T) {
	_, err := execute(t, "scenario", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("name: a\n"), 0o644))
	_, err = execute(t, "scenario", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))
	out, err := execute(t, "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")

	out, err = execute(t, "scenario", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}
