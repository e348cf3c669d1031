package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithoutPathFallsBackToDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if c.RSA.Bits != Defaults().RSA.Bits || c.RSA.Workers != Defaults().RSA.Workers {
		t.Error("Load with no file present should match Defaults()")
	}
}

func TestLoadRejectsMissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound", err)
	}
}

func TestWriteDefaultThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigName)

	c := Defaults()
	c.RSA.Bits = 2048
	c.RSA.Workers = 4
	c.RSA.UseCRT = false
	c.Location.Latitude = 37.7750
	c.Location.Longitude = -122.4183

	if err := WriteDefault(path, c); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file at %s: %v", path, err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RSA.Bits != 2048 || got.RSA.Workers != 4 || got.RSA.UseCRT {
		t.Errorf("RSA section round trip mismatch: %+v", got.RSA)
	}
	if got.Location.Latitude != c.Location.Latitude || got.Location.Longitude != c.Location.Longitude {
		t.Errorf("Location section round trip mismatch: %+v", got.Location)
	}
	if got.Path() != path {
		t.Errorf("Path() = %q, want %q", got.Path(), path)
	}
}

func TestLoadLeavesUnmentionedSectionsAtDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigName)

	if err := os.WriteFile(path, []byte("[dhmrsa.RSA]\nBits = 3072\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RSA.Bits != 3072 {
		t.Errorf("RSA.Bits = %d, want 3072", got.RSA.Bits)
	}
	if got.DHM.Device != Defaults().DHM.Device {
		t.Errorf("DHM.Device = %q, want default %q", got.DHM.Device, Defaults().DHM.Device)
	}
}
