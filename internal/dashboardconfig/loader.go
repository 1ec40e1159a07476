package dashboardconfig

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Load reads a dashboard YAML and returns Config with raw bytes.
// An empty path loads the embedded default.
// ⭐ SSOT: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	if path == "" {
		return Parse(defaultYAML)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read dashboard config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML bytes
func Parse(data []byte) (*Config, []byte, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, nil, fmt.Errorf("decode dashboard config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, data, err
	}

	return &cfg, data, nil
}

// Default returns the embedded configuration
func Default() *Config {
	cfg, _, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded dashboard config is invalid: %v", err))
	}
	return cfg
}

// DefaultYAML returns a copy of the embedded YAML
func DefaultYAML() []byte {
	return append([]byte(nil), defaultYAML...)
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 slice 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
