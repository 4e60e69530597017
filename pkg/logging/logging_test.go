package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetupAppendsToDayFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	for i, msg := range []string{"first session", "second session"} {
		log := logrus.New()
		path, closer, err := Setup(log, dir, "182")
		if err != nil {
			t.Fatalf("setup %d: %v", i, err)
		}
		if filepath.Base(path) != "182.log" {
			t.Fatalf("log file name: %s", path)
		}
		log.Info(msg)
		if err := closer.Close(); err != nil {
			t.Fatal(err)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "182.log"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	if !strings.Contains(out, "first session") || !strings.Contains(out, "second session") {
		t.Fatalf("log file should hold both sessions, got:\n%s", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected two lines, got:\n%s", out)
	}
}

func TestSetLevel(t *testing.T) {
	log := logrus.New()
	if err := SetLevel(log, "warn"); err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != logrus.WarnLevel {
		t.Fatalf("level: %v", log.GetLevel())
	}
	if err := SetLevel(log, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
