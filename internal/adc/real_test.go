//go:build linux

package adc

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIIOSamplerReadsAttribute(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "iio:device0", "name"), "other\n")
	writeFile(t, filepath.Join(root, "iio:device1", "name"), "ads1015\n")
	writeFile(t, filepath.Join(root, "iio:device1", "in_voltage2_raw"), "1234\n")

	s, err := NewIIOSampler(root, DefaultDevice)
	if err != nil {
		t.Fatalf("NewIIOSampler: %v", err)
	}
	defer s.Close()

	v, err := s.ReadRaw(2)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if v != 1234 {
		t.Errorf("expected 1234, got %d", v)
	}

	if _, err := s.ReadRaw(0); err == nil {
		t.Error("expected error for missing attribute")
	}
	if _, err := s.ReadRaw(NumChannels); err == nil {
		t.Error("expected error for out of range channel")
	}
}

func TestIIOSamplerBadValue(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "iio:device0", "name"), "ads1015")
	writeFile(t, filepath.Join(root, "iio:device0", "in_voltage0_raw"), "garbage")

	s, err := NewIIOSampler(root, DefaultDevice)
	if err != nil {
		t.Fatalf("NewIIOSampler: %v", err)
	}
	if _, err := s.ReadRaw(0); err == nil {
		t.Error("expected parse error")
	}
}

func TestIIOSamplerDeviceMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "iio:device0", "name"), "bmp280")

	if _, err := NewIIOSampler(root, DefaultDevice); err == nil {
		t.Error("expected error when device is not present")
	}
	if _, err := NewIIOSampler(filepath.Join(root, "missing"), DefaultDevice); err == nil {
		t.Error("expected error when root does not exist")
	}
}
