package scenario

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/cowork/internal/config"
	"github.com/Iron-Ham/cowork/internal/coordination"
	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/session"
)

func newHub(t *testing.T) *coordination.Hub {
	t.Helper()
	hub, err := coordination.NewHub(context.Background(), coordination.Config{Settings: config.Default()},
		coordination.WithoutHeartbeat())
	if err != nil {
		t.Fatalf("NewHub() error = %v", err)
	}
	t.Cleanup(func() { _ = hub.Close() })
	return hub
}

func TestLoad_Testdata(t *testing.T) {
	tests := []struct {
		file      string
		wantSteps int
	}{
		{"lock_edit.yaml", 12},
		{"full_session.yaml", 6},
		{"review_call.yaml", 19},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			sc, err := Load(filepath.Join("testdata", tt.file))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(sc.Steps) != tt.wantSteps {
				t.Errorf("len(Steps) = %d, want %d", len(sc.Steps), tt.wantSteps)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		file    string
		wantErr string
	}{
		{"invalid_unknown_field.yaml", "colour"},
		{"invalid_reply.yaml", "parent"},
		{"missing.yaml", "reading scenario file"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := Load(filepath.Join("testdata", tt.file))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	create := Step{Action: ActionCreate, User: "alice"}

	tests := []struct {
		name      string
		sc        Scenario
		wantField string
	}{
		{
			name:      "no name",
			sc:        Scenario{Steps: []Step{create}},
			wantField: "name",
		},
		{
			name:      "no steps",
			sc:        Scenario{Name: "x"},
			wantField: "steps",
		},
		{
			name: "duplicate user",
			sc: Scenario{Name: "x", Steps: []Step{create}, Users: []session.Identity{
				{ID: "alice"}, {ID: "alice"},
			}},
			wantField: "users[1].id",
		},
		{
			name:      "unknown action",
			sc:        Scenario{Name: "x", Steps: []Step{create, {Action: "dance", User: "alice"}}},
			wantField: "steps[1].action",
		},
		{
			name:      "missing user",
			sc:        Scenario{Name: "x", Steps: []Step{{Action: ActionCreate}}},
			wantField: "steps[0].user",
		},
		{
			name: "undeclared user",
			sc: Scenario{Name: "x", Users: []session.Identity{{ID: "alice"}}, Steps: []Step{
				create, {Action: ActionJoin, User: "mallory"},
			}},
			wantField: "steps[1].user",
		},
		{
			name:      "unknown error kind",
			sc:        Scenario{Name: "x", Steps: []Step{create, {Action: ActionJoin, User: "bob", ExpectError: "boom"}}},
			wantField: "steps[1].expect_error",
		},
		{
			name:      "first step not create",
			sc:        Scenario{Name: "x", Steps: []Step{{Action: ActionJoin, User: "bob"}}},
			wantField: "steps[0].action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sc.Validate()
			var vErr *errors.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Validate() = %v, want a ValidationError", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}

	t.Run("undeclared user allowed when an error is expected", func(t *testing.T) {
		sc := Scenario{Name: "x", Users: []session.Identity{{ID: "alice"}}, Steps: []Step{
			create, {Action: ActionChat, User: "mallory", Content: "hi", ExpectError: "not_found"},
		}}
		if err := sc.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})
}

func TestRun_Testdata(t *testing.T) {
	for _, file := range []string{"lock_edit.yaml", "full_session.yaml", "review_call.yaml"} {
		t.Run(file, func(t *testing.T) {
			sc, err := Load(filepath.Join("testdata", file))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			res, err := Run(context.Background(), newHub(t), sc)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for _, f := range res.Failures() {
				t.Errorf("step %d (%s by %s) failed: expected %q, err = %v", f.Index, f.Action, f.User, f.Expected, f.Err)
			}
			if res.SessionID == "" {
				t.Error("SessionID is empty")
			}
		})
	}
}

func TestRun_ReportsUnexpectedOutcomes(t *testing.T) {
	sc := &Scenario{
		Name: "mismatches",
		Steps: []Step{
			{Action: ActionCreate, User: "alice"},
			{Action: ActionJoin, User: "bob", ExpectError: "conflict"},
			{Action: ActionJoin, User: "bob"},
			{Action: ActionEdit, User: "alice", File: "a.go", Text: "x", ExpectVersion: intPtr(3)},
		},
	}
	if err := sc.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	res, err := Run(context.Background(), newHub(t), sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Passed() {
		t.Fatal("Passed() = true, want false")
	}

	var failed []int
	for _, f := range res.Failures() {
		failed = append(failed, f.Index)
	}
	// Step 1 succeeded but expected an error; step 2 is an already-joined
	// conflict; step 3 applied version 0.
	want := []int{1, 2, 3}
	if len(failed) != len(want) {
		t.Fatalf("failed steps = %v, want %v", failed, want)
	}
	for i := range want {
		if failed[i] != want[i] {
			t.Errorf("failed steps = %v, want %v", failed, want)
			break
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	sc := &Scenario{Name: "x", Steps: []Step{{Action: ActionCreate, User: "alice"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, newHub(t), sc)
	if err == nil {
		t.Fatal("Run() with cancelled context should fail")
	}
	if len(res.Steps) != 0 {
		t.Errorf("Steps = %d, want 0", len(res.Steps))
	}
}

func intPtr(v int) *int { return &v }
