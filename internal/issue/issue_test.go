// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestId_StartsAtOne(t *testing.T) {
	if SourceDirNotFoundId != 1 {
		t.Errorf("SourceDirNotFoundId = %d, want 1", SourceDirNotFoundId)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{SourceDirNotFoundId, false, "Source directory not found"},
		{HookFailedId, false, "hook script failed"},
		{CommandFailedId, false, "Terraform exited with an error"},
		{LogErrorsDetectedId, false, "Terraform reported errors"},
		{TerraformNotFoundId, false, "Terraform executable not found"},
		{ShellNotFoundId, false, "No shell found"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{RunLockedId, false, "Another run is in progress"},
		{InvalidRequestId, false, "Invalid run arguments"},
		{TimeoutId, false, "timed out"},
		{Id(9999), true, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)
			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}
			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if issue.Id() != tt.id {
				t.Errorf("Get(%d).Id() = %d", tt.id, issue.Id())
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain %q", tt.id, tt.contains)
			}
		})
	}
}

func TestValues_SortedById(t *testing.T) {
	values := Values()
	if len(values) != len(issues) {
		t.Fatalf("len(Values()) = %d, want %d", len(values), len(issues))
	}
	for i, issue := range values {
		if issue.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, issue.Id(), i+1)
		}
	}
}

func TestIssue_LinksAreClones(t *testing.T) {
	issue := Get(CommandFailedId)
	links := issue.ExtLinks()
	if len(links) == 0 {
		t.Fatal("CommandFailed issue should carry an external link")
	}
	original := links[0]
	links[0] = "modified"
	if issue.ExtLinks()[0] != original {
		t.Error("ExtLinks() should return a clone")
	}
	if issue.DocLinks() != nil {
		t.Error("DocLinks() should be nil when no doc links are set")
	}
}

func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	rendered, err := Get(TerraformNotFoundId).Render("notty")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "--terraform") {
		t.Error("Render() output should contain the issue text")
	}
	if !strings.Contains(rendered, "## See also") || !strings.Contains(rendered, "terraform/install") {
		t.Errorf("Render() output should list the links, got:\n%s", rendered)
	}
}

func TestIssue_RenderWithGlamour(t *testing.T) {
	rendered, err := Get(RunLockedId).Render("notty")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "Another run is in progress") {
		t.Errorf("rendered issue should contain its heading, got:\n%s", rendered)
	}
}
