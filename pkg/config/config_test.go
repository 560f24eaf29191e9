package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type checkedConfig struct {
	Port int `default:"0"`
}

func (c checkedConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be > 0")
	}
	return nil
}

type sampleConfig struct {
	Addr    string        `split_words:"true" default:":9090"`
	Timeout time.Duration `split_words:"true" default:"2s"`
	Tags    []string      `split_words:"true"`
}

func TestExportEnvironmentIfExistsMissingFile(t *testing.T) {
	if err := exportEnvironmentIfExists(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("exportEnvironmentIfExists() error = %v", err)
	}
}

func TestExportEnvironmentIfExistsSkipsDirectory(t *testing.T) {
	if err := exportEnvironmentIfExists(t.TempDir()); err != nil {
		t.Fatalf("exportEnvironmentIfExists() error = %v", err)
	}
}

func TestExportEnvironmentAndProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.env")
	body := "SAMPLETEST_ADDR=:7070\nSAMPLETEST_TIMEOUT=5s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("SAMPLETEST_ADDR")
		os.Unsetenv("SAMPLETEST_TIMEOUT")
	})

	if err := exportEnvironment(path); err != nil {
		t.Fatalf("exportEnvironment() error = %v", err)
	}

	conf, err := New[sampleConfig]("SAMPLETEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Addr != ":7070" || conf.Timeout != 5*time.Second {
		t.Fatalf("New() = %+v", conf)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Setenv("DEFAULTTEST_TAGS", "a,b")

	conf, err := New[sampleConfig]("DEFAULTTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Addr != ":9090" || conf.Timeout != 2*time.Second {
		t.Fatalf("New() = %+v", conf)
	}
	if len(conf.Tags) != 2 || conf.Tags[0] != "a" || conf.Tags[1] != "b" {
		t.Fatalf("Tags = %v", conf.Tags)
	}
}

func TestExportEnvironmentKeepsProcessValues(t *testing.T) {
	t.Setenv("PRECEDENCETEST_ADDR", ":8080")
	path := filepath.Join(t.TempDir(), "app.env")
	body := "PRECEDENCETEST_ADDR=:7070\nPRECEDENCETEST_TIMEOUT=9s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("PRECEDENCETEST_TIMEOUT") })

	if err := exportEnvironment(path); err != nil {
		t.Fatalf("exportEnvironment() error = %v", err)
	}

	conf, err := New[sampleConfig]("PRECEDENCETEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Addr != ":8080" || conf.Timeout != 9*time.Second {
		t.Fatalf("New() = %+v", conf)
	}
}

func TestNewRunsValidate(t *testing.T) {
	if _, err := New[checkedConfig]("CHECKEDTEST"); err == nil {
		t.Fatal("expected validation error for missing port")
	}

	t.Setenv("CHECKEDTEST_PORT", "9000")
	conf, err := New[checkedConfig]("CHECKEDTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Port != 9000 {
		t.Fatalf("Port = %d", conf.Port)
	}
}
