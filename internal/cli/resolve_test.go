package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/memsync-oss/memsync/internal/sync"
)

func TestPrintResult_PartialFailureIsNotACommandError(t *testing.T) {
	result := &sync.Result{
		Resolved: []sync.Resolved{{Label: "persona", Resolution: sync.SideFile}},
		Errors:   []sync.ResolutionError{{Label: "gone", Message: "no remote block for label"}},
	}

	var buf bytes.Buffer
	if err := printResult(&buf, "agent-1", result, false); err != nil {
		t.Fatalf("a completed batch must not return an error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"persona resolved to file", "gone: no remote block", "1 label(s) not resolved"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintResult_JSON(t *testing.T) {
	result := &sync.Result{
		Resolved: []sync.Resolved{{Label: "persona", Resolution: sync.SideBlock, Overridden: true}},
		Errors:   []sync.ResolutionError{},
	}

	var buf bytes.Buffer
	if err := printResult(&buf, "agent-1", result, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded sync.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Resolved) != 1 || !decoded.Resolved[0].Overridden {
		t.Errorf("unexpected decoded result: %+v", decoded)
	}
}

func TestResolutionInput_RejectsConflictingFlags(t *testing.T) {
	resolutionsJSON = `[{"label":"a","resolution":"file"}]`
	resolutionsFile = "resolutions.json"
	defer func() {
		resolutionsJSON = ""
		resolutionsFile = ""
	}()

	if _, err := resolutionInput(); err == nil {
		t.Error("expected an error when both flags are set")
	}
}

func TestResolutionInput_RequiresInput(t *testing.T) {
	resolutionsJSON = ""
	resolutionsFile = ""
	if _, err := resolutionInput(); err == nil {
		t.Error("expected an error with no resolutions given")
	}
}
