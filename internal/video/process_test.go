package video

import (
	"os"
	"path"
	"strings"
	"testing"
)

func TestValidateOutput(t *testing.T) {
	dir := t.TempDir()

	if err := validateOutput(path.Join(dir, "missing.mp4")); err == nil {
		t.Error("missing file passed validation")
	}

	tiny := path.Join(dir, "tiny.mp4")
	if err := os.WriteFile(tiny, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := validateOutput(tiny); err == nil || !strings.Contains(err.Error(), "too small") {
		t.Errorf("tiny file validation: %v", err)
	}

	garbage := path.Join(dir, "garbage.mp4")
	if err := os.WriteFile(garbage, make([]byte, 4096), 0644); err != nil {
		t.Fatal(err)
	}
	if err := validateOutput(garbage); err == nil {
		t.Error("undecodable file passed validation")
	}

	// A real clip carries positive dimensions, frame count and fps.
	clip := writeTestVideo(t, dir, 10)
	if err := validateOutput(clip); err != nil {
		t.Errorf("valid clip rejected: %v", err)
	}
}
