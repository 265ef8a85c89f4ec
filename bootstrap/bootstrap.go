// Package bootstrap generates a container deployment bundle: a config file
// tuned for running inside a container, a Containerfile and a compose file.
package bootstrap

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"pkt.systems/nextvm/internal/appconfig"
	"pkt.systems/nextvm/internal/version"
)

// Files represents generated bootstrap artifacts.
type Files struct {
	ConfigYAML    []byte
	ComposeYAML   []byte
	Containerfile []byte
}

// Options controls optional bootstrap behaviors.
type Options struct {
	// ImageTag tags the server image. Empty uses the build version.
	ImageTag  string
	Overrides []ConfigOverride
}

// Paths reports where bootstrap wrote its outputs.
type Paths struct {
	ConfigPath    string
	ComposePath   string
	Containerfile string
	EnvPath       string
	WorkDir       string
}

const (
	containerConfigName = "config-for-container.yaml"
	composeEnvName      = ".env"
	containerWorkDir    = "/home/nextvm"
	defaultServerImage  = "docker.io/pktsystems/nextvm"
)

// ConfigOverride sets a dotted config path, such as "executor.shell", in the
// generated config.
type ConfigOverride struct {
	Path  string
	Value any
}

// ParseOverride parses "path=value". The value is decoded as YAML so numbers
// and booleans keep their type.
func ParseOverride(raw string) (ConfigOverride, error) {
	path, value, ok := strings.Cut(raw, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return ConfigOverride{}, fmt.Errorf("invalid config override %q: expected path=value", raw)
	}
	var decoded any
	if err := yaml.Unmarshal([]byte(value), &decoded); err != nil || decoded == nil {
		decoded = value
	}
	return ConfigOverride{Path: path, Value: decoded}, nil
}

type templateData struct {
	ConfigFile  string
	ServerImage string
	WorkDir     string
	Port        string
}

// ContainerConfig returns the config used inside the container. The executor
// endpoint is left empty so it follows http.addr and http.base_path.
func ContainerConfig() (appconfig.Config, error) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		return appconfig.Config{}, err
	}
	cfg.ConfigVersion = appconfig.CurrentConfigVersion
	cfg.HTTP.Addr = ":27580"
	cfg.Executor.Mode = appconfig.ExecutorModeHTTP
	cfg.Executor.Endpoint = ""
	cfg.Executor.WorkingDir = containerWorkDir
	cfg.Executor.TimeoutSeconds = 120
	return cfg, nil
}

// DefaultFiles renders the bundle for opts.
func DefaultFiles(opts Options) (Files, error) {
	cfg, err := ContainerConfig()
	if err != nil {
		return Files{}, err
	}
	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return Files{}, err
	}
	if len(opts.Overrides) > 0 {
		if configYAML, err = applyOverridesToYAML(configYAML, opts.Overrides); err != nil {
			return Files{}, err
		}
		if err := yaml.Unmarshal(configYAML, &cfg); err != nil {
			return Files{}, fmt.Errorf("config overrides: %w", err)
		}
	}
	tplData := templateData{
		ConfigFile:  containerConfigName,
		ServerImage: tagImage(defaultServerImage, resolveImageTag(opts.ImageTag)),
		WorkDir:     cfg.Executor.WorkingDir,
		Port:        listenPort(cfg.HTTP.Addr),
	}
	composeYAML, err := renderTemplate("templates/docker-compose.yaml.tmpl", tplData)
	if err != nil {
		return Files{}, err
	}
	containerfile, err := renderTemplate("templates/Containerfile.tmpl", tplData)
	if err != nil {
		return Files{}, err
	}
	return Files{
		ConfigYAML:    configYAML,
		ComposeYAML:   composeYAML,
		Containerfile: containerfile,
	}, nil
}

// WriteBootstrap renders the bundle and writes it to outputDir together with
// a compose .env carrying the caller's UID and GID.
func WriteBootstrap(outputDir string, overwrite bool, opts Options) (Paths, error) {
	if strings.TrimSpace(outputDir) == "" {
		return Paths{}, fmt.Errorf("output directory is required")
	}
	files, err := DefaultFiles(opts)
	if err != nil {
		return Paths{}, err
	}
	paths := Paths{
		ConfigPath:    filepath.Join(outputDir, containerConfigName),
		ComposePath:   filepath.Join(outputDir, "docker-compose.yaml"),
		Containerfile: filepath.Join(outputDir, "Containerfile"),
		EnvPath:       filepath.Join(outputDir, composeEnvName),
		WorkDir:       filepath.Join(outputDir, "work"),
	}
	if !overwrite {
		for _, path := range []string{paths.ConfigPath, paths.ComposePath, paths.Containerfile, paths.EnvPath} {
			if _, err := os.Stat(path); err == nil {
				return Paths{}, fmt.Errorf("file already exists: %s", path)
			}
		}
	}
	if err := os.MkdirAll(paths.WorkDir, 0o755); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.ConfigPath, files.ConfigYAML, 0o644); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.ComposePath, files.ComposeYAML, 0o644); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.Containerfile, files.Containerfile, 0o644); err != nil {
		return Paths{}, err
	}
	content := fmt.Sprintf("UID=%d\nGID=%d\n", os.Getuid(), os.Getgid())
	if err := os.WriteFile(paths.EnvPath, []byte(content), 0o600); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func renderTemplate(name string, data templateData) ([]byte, error) {
	raw, err := readEmbeddedFile(name)
	if err != nil {
		return nil, err
	}
	tpl, err := template.New(filepath.Base(name)).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func listenPort(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return "27580"
	}
	return port
}

func applyOverridesToYAML(configYAML []byte, overrides []ConfigOverride) ([]byte, error) {
	if len(overrides) == 0 {
		return configYAML, nil
	}
	var data map[string]any
	if err := yaml.Unmarshal(configYAML, &data); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		if err := setOverrideValue(data, override.Path, override.Value); err != nil {
			return nil, err
		}
	}
	return yaml.Marshal(data)
}

func setOverrideValue(root map[string]any, path string, value any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config override path is required")
	}
	parts := strings.Split(path, ".")
	node := root
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return fmt.Errorf("invalid config override path %q", path)
		}
		if i == len(parts)-1 {
			node[part] = value
			return nil
		}
		next, ok := node[part]
		if !ok || next == nil {
			child := map[string]any{}
			node[part] = child
			node = child
			continue
		}
		child, ok := toStringMap(next)
		if !ok {
			return fmt.Errorf("config override %q: %q is not a map", path, part)
		}
		node[part] = child
		node = child
	}
	return nil
}

func toStringMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			ks, ok := key.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func resolveImageTag(override string) string {
	if value := strings.TrimSpace(override); value != "" {
		return value
	}
	value := strings.TrimSpace(version.Current())
	if value == "" {
		return "v0.0.0-unknown"
	}
	return value
}

func tagImage(base, tag string) string {
	base = stripImageTag(base)
	if base == "" {
		return ""
	}
	if strings.TrimSpace(tag) == "" {
		tag = "v0.0.0-unknown"
	}
	return base + ":" + tag
}

func stripImageTag(image string) string {
	image = strings.TrimSpace(image)
	if image == "" {
		return ""
	}
	if at := strings.LastIndex(image, "@"); at != -1 {
		image = image[:at]
	}
	lastSlash := strings.LastIndex(image, "/")
	lastColon := strings.LastIndex(image, ":")
	if lastColon > lastSlash {
		return image[:lastColon]
	}
	return image
}
