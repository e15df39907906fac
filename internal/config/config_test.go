package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"CONTENT_ACCESS_TOKEN": "tok",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Lanes != 5 {
			t.Errorf("Lanes = %d, want 5", cfg.Lanes)
		}
		if cfg.PreferredLocale != "en_US" {
			t.Errorf("PreferredLocale = %q, want en_US", cfg.PreferredLocale)
		}
		if cfg.DateLocale != "en_US" {
			t.Errorf("DateLocale = %q, want fallback to preferred locale", cfg.DateLocale)
		}
		if cfg.DownloadCaptions {
			t.Error("DownloadCaptions = true, want false")
		}
		if cfg.OutputDir != "./output" {
			t.Errorf("OutputDir = %q, want ./output", cfg.OutputDir)
		}
		if cfg.SettlePostClick != 1500*time.Millisecond {
			t.Errorf("SettlePostClick = %s, want 1.5s", cfg.SettlePostClick)
		}
		if cfg.FetchAttempts != 3 {
			t.Errorf("FetchAttempts = %d, want 3", cfg.FetchAttempts)
		}
		if cfg.S3.Enabled() {
			t.Error("S3 should be disabled without a bucket")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		captions := true
		cfg, err := Load(Overrides{
			EnvFile:         "nonexistent.env",
			OutputDir:       "/tmp/out",
			LogLevel:        "debug",
			PreferredLocale: "de_DE",
			Lanes:           2,
			Captions:        &captions,
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.OutputDir != "/tmp/out" {
			t.Errorf("OutputDir = %q, want /tmp/out", cfg.OutputDir)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.Lanes != 2 {
			t.Errorf("Lanes = %d, want 2", cfg.Lanes)
		}
		if !cfg.DownloadCaptions {
			t.Error("DownloadCaptions = false, want true")
		}
		if cfg.DateLocale != "de_DE" {
			t.Errorf("DateLocale = %q, want de_DE", cfg.DateLocale)
		}
	})

	t.Run("zero_lanes_rejected", func(t *testing.T) {
		restore := setEnvs(t, map[string]string{"LANES": "0"})
		defer restore()
		if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
			t.Error("expected error for LANES=0")
		}
	})
}

func TestLoadMissingToken(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"CONTENT_ACCESS_TOKEN": ""})
	defer cleanup()
	os.Unsetenv("CONTENT_ACCESS_TOKEN")

	if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
		t.Error("expected error when CONTENT_ACCESS_TOKEN is missing")
	}
}

func TestParseCourseID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12345", "12345", false},
		{" 42 ", "42", false},
		{"0", "", true},
		{"abc", "", true},
		{"12a", "", true},
		{"", "", true},
		{"../etc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCourseID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCourseID) {
					t.Errorf("ParseCourseID(%q) err = %v, want ErrInvalidCourseID", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCourseID(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseCourseID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
