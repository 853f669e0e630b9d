package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Setenv("KMSG_HOME", "/custom/path")

	got := GetHome()
	if got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_UserDotDir(t *testing.T) {
	ResetHome()
	t.Setenv("KMSG_HOME", "")

	got := GetHome()
	if got == "" {
		t.Fatal("GetHome() returned empty string")
	}
	if userHome, err := os.UserHomeDir(); err == nil {
		want := filepath.Join(userHome, ".kmsg")
		if got != want {
			t.Errorf("GetHome() = %q, want %q", got, want)
		}
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Setenv("KMSG_HOME", "/first")

	first := GetHome()

	// Change env — should NOT affect cached value
	t.Setenv("KMSG_HOME", "/second")
	second := GetHome()

	if first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}
