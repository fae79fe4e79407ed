package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, content string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return scenario
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(parse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []TraceEvent{
		{Step: 0, Watch: "users", Change: "snapshot []"},
		{Step: 1, Watch: "users", Change: `snapshot [{"age":3,"id":"u1"}]`},
	}, result.Trace)
}

func TestRun_DeleteAllEmitsDeletions(t *testing.T) {
	result, err := Run(parse(t, `
name: purge
description: "delete_all empties a changeset watch"
setup:
  - op: put
    kind: User
    records: [{id: u1}, {id: u2}]
watches:
  - {name: users, mode: changes, kind: User}
steps:
  - op: delete_all
assertions:
  - {type: count, kind: User, count: 0}
  - {type: emissions, watch: users, count: 2}
`))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, `initial [{"id":"u1"} {"id":"u2"}]`, result.Trace[0].Change)
	assert.Equal(t, "update deleted=[0 1] inserted=[] modified=[]", result.Trace[1].Change)
}

func TestRun_CustomSchema(t *testing.T) {
	result, err := Run(parse(t, `
name: tasks
description: "kinds from inline CUE"
schema: |
  kind: Task: primaryKey: "id"
watches:
  - {name: tasks, mode: changes, kind: Task, order: [title]}
steps:
  - op: put
    kind: Task
    records: [{id: 1, title: b}, {id: 2, title: a}]
assertions:
  - type: state
    kind: Task
    order: [title]
    expect: [{id: 2, title: a}, {id: 1, title: b}]
`))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, `update deleted=[] inserted=[0:{"id":2,"title":"a"} 1:{"id":1,"title":"b"}] modified=[]`, result.Trace[1].Change)
}

func TestRun_InvalidSchema(t *testing.T) {
	scenario := parse(t, minimalScenario)
	scenario.Schema = "kind: {"

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile schema")
}

func TestRun_SetupFailure(t *testing.T) {
	scenario := parse(t, minimalScenario)
	scenario.Setup = []Step{{Op: OpPut, Kind: "Nope", Records: []map[string]any{{"id": "x"}}}}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (put)")
}

func TestRun_ExpectedError(t *testing.T) {
	tests := []struct {
		name      string
		policy    string
		expect    string
		pass      bool
		wantError string
	}{
		{name: "matches", policy: "error", expect: "duplicate key", pass: true},
		{name: "unexpected", policy: "error", pass: false, wantError: "unexpected error"},
		{name: "mismatch", policy: "error", expect: "not found", pass: false, wantError: `expected error containing "not found", got`},
		{name: "missing", policy: "all", expect: "duplicate key", pass: false, wantError: "got success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := parse(t, minimalScenario)
			scenario.Assertions = nil
			scenario.Steps = append(scenario.Steps, Step{
				Op:          OpPut,
				Kind:        "User",
				Records:     []map[string]any{{"id": "u1"}},
				Policy:      tt.policy,
				ExpectError: tt.expect,
			})

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.Equal(t, tt.pass, result.Pass, result.Errors)
			if tt.wantError != "" {
				require.Len(t, result.Errors, 1)
				assert.Contains(t, result.Errors[0], "step 2 (put)")
				assert.Contains(t, result.Errors[0], tt.wantError)
			}
		})
	}
}

func TestRun_FailedStepIsTraced(t *testing.T) {
	scenario := parse(t, minimalScenario)
	scenario.Steps = append(scenario.Steps, Step{
		Op:          OpPut,
		Kind:        "User",
		Records:     []map[string]any{{"id": "u1"}},
		Policy:      "error",
		ExpectError: "duplicate key",
	})

	result, err := Run(scenario)
	require.NoError(t, err)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, 2, last.Step)
	assert.Empty(t, last.Watch)
	assert.Contains(t, last.Change, "duplicate key")
}

func TestRun_FailingAssertions(t *testing.T) {
	result, err := Run(parse(t, minimalScenario+`
  - type: count
    kind: User
    count: 2
  - type: state
    kind: User
    expect: [{id: u2}]
  - type: emissions
    watch: users
    count: 5
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "assertion failed: count")
	assert.Contains(t, result.Errors[0], "expected: 2 User record(s)")
	assert.Contains(t, result.Errors[0], "actual: 1")
	assert.Contains(t, result.Errors[1], "assertion failed: state")
	assert.Contains(t, result.Errors[1], `{"id":"u2"}`)
	assert.Contains(t, result.Errors[2], "assertion failed: emissions")
	assert.Contains(t, result.Errors[2], "actual: 2")
}

func TestRun_WatchFailure(t *testing.T) {
	result, err := Run(parse(t, `
name: bad-watch
description: "a watch on an undeclared kind fails"
watches:
  - {name: ghosts, mode: array, kind: Ghost}
steps:
  - op: put
    kind: User
    records: [{id: u1}]
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "ghosts", result.Trace[0].Watch)
	assert.True(t, strings.HasPrefix(result.Trace[0].Change, "error: "), result.Trace[0].Change)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "watch ghosts at step 0")
	assert.Contains(t, result.Errors[0], "unknown kind")
}

func TestRun_OrderedWatchOnUnknownList(t *testing.T) {
	result, err := Run(parse(t, `
name: bad-list
description: "ordered watch on an undeclared list"
watches:
  - {name: pets, mode: ordered, kind: UserContainer, list: pets}
steps:
  - op: delete_all
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], `has no list "pets"`)
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("step %d failed", 3)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"step 3 failed"}, result.Errors)
}

func TestResult_Render(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{Step: 0, Watch: "users", Change: "initial []"},
		{Step: 1, Change: "boom"},
	}

	assert.Equal(t, "scenario: demo\n[0] users: initial []\n[1] ! boom\n", string(result.Render("demo")))
}
