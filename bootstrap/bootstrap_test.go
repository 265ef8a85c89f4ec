package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"pkt.systems/nextvm/internal/appconfig"
)

type composeSpec struct {
	Services map[string]struct {
		Image   string   `yaml:"image"`
		Ports   []string `yaml:"ports"`
		Volumes []string `yaml:"volumes"`
	} `yaml:"services"`
}

func readCompose(t *testing.T, data []byte) composeSpec {
	t.Helper()
	var spec composeSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("unmarshal docker-compose.yaml: %v", err)
	}
	return spec
}

func TestDefaultFilesRendersBundle(t *testing.T) {
	files, err := DefaultFiles(Options{ImageTag: "v1.2.3"})
	if err != nil {
		t.Fatalf("DefaultFiles: %v", err)
	}
	spec := readCompose(t, files.ComposeYAML)
	svc, ok := spec.Services["nextvm"]
	if !ok {
		t.Fatalf("missing nextvm service")
	}
	if svc.Image != defaultServerImage+":v1.2.3" {
		t.Fatalf("unexpected image %q", svc.Image)
	}
	if len(svc.Ports) != 1 || svc.Ports[0] != "127.0.0.1:27580:27580" {
		t.Fatalf("unexpected ports %v", svc.Ports)
	}
	if !strings.Contains(string(files.Containerfile), "/etc/nextvm/"+containerConfigName) {
		t.Fatalf("containerfile does not reference config: %s", files.Containerfile)
	}
	var cfg appconfig.Config
	if err := yaml.Unmarshal(files.ConfigYAML, &cfg); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if cfg.Executor.WorkingDir != containerWorkDir || cfg.ConfigVersion != appconfig.CurrentConfigVersion {
		t.Fatalf("unexpected container config %+v", cfg)
	}
}

func TestDefaultFilesAppliesOverrides(t *testing.T) {
	port, err := ParseOverride("http.addr=0.0.0.0:8080")
	if err != nil {
		t.Fatalf("ParseOverride: %v", err)
	}
	timeout, err := ParseOverride("executor.timeout_seconds=30")
	if err != nil {
		t.Fatalf("ParseOverride: %v", err)
	}
	if _, ok := timeout.Value.(int); !ok {
		t.Fatalf("expected numeric override value, got %T", timeout.Value)
	}
	files, err := DefaultFiles(Options{Overrides: []ConfigOverride{port, timeout}})
	if err != nil {
		t.Fatalf("DefaultFiles: %v", err)
	}
	var cfg appconfig.Config
	if err := yaml.Unmarshal(files.ConfigYAML, &cfg); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if cfg.HTTP.Addr != "0.0.0.0:8080" || cfg.Executor.TimeoutSeconds != 30 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Executor.Endpoint != "" {
		t.Fatalf("expected container endpoint to follow the server address, got %q", cfg.Executor.Endpoint)
	}
	spec := readCompose(t, files.ComposeYAML)
	if got := spec.Services["nextvm"].Ports; len(got) != 1 || got[0] != "127.0.0.1:8080:8080" {
		t.Fatalf("unexpected ports %v", got)
	}
}

func TestParseOverrideRejectsMissingValue(t *testing.T) {
	if _, err := ParseOverride("executor.shell"); err == nil {
		t.Fatalf("expected error for override without '='")
	}
	if _, err := ParseOverride("=bash"); err == nil {
		t.Fatalf("expected error for override without path")
	}
}

func TestWriteBootstrap(t *testing.T) {
	outputDir := t.TempDir()
	paths, err := WriteBootstrap(outputDir, false, Options{ImageTag: "v1.2.3"})
	if err != nil {
		t.Fatalf("WriteBootstrap: %v", err)
	}
	for _, path := range []string{paths.ConfigPath, paths.ComposePath, paths.Containerfile, paths.EnvPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s: %v", path, err)
		}
	}
	if info, err := os.Stat(filepath.Join(outputDir, "work")); err != nil || !info.IsDir() {
		t.Fatalf("expected work directory")
	}
	if _, err := WriteBootstrap(outputDir, false, Options{}); err == nil {
		t.Fatalf("expected existing bundle to be refused")
	}
	if _, err := WriteBootstrap(outputDir, true, Options{}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestTagImage(t *testing.T) {
	tests := []struct {
		base string
		tag  string
		want string
	}{
		{base: "docker.io/pktsystems/nextvm", tag: "v1", want: "docker.io/pktsystems/nextvm:v1"},
		{base: "docker.io/pktsystems/nextvm:latest", tag: "v2", want: "docker.io/pktsystems/nextvm:v2"},
		{base: "localhost:5000/nextvm", tag: "", want: "localhost:5000/nextvm:v0.0.0-unknown"},
	}
	for _, tc := range tests {
		if got := tagImage(tc.base, tc.tag); got != tc.want {
			t.Fatalf("tagImage(%q, %q) = %q, want %q", tc.base, tc.tag, got, tc.want)
		}
	}
}
