package compose

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envPrefix is the only environment-variable namespace the config
// manager overlays onto file-loaded configuration, mirroring the
// teacher's DOFFY_ prefix convention in libs/core/config.go.
const envPrefix = "COMPOSE_"

// ConfigManager loads and flattens JSON configuration, same shape as the
// teacher's ConfigManager, plus a .env loading step ahead of the
// environment overlay.
type ConfigManager interface {
	Load(configPath string) error
	Get(key string) interface{}
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	Set(key string, value interface{})
	Has(key string) bool
	Unmarshal(target interface{}) error
}

type configManager struct {
	data map[string]interface{}
}

// NewConfigManager returns an empty ConfigManager.
func NewConfigManager() ConfigManager {
	return &configManager{data: make(map[string]interface{})}
}

// Load reads configPath's JSON (or the default config.json /
// config/config.json if configPath is empty), flattens it, loads any
// .env file found in the working directory via godotenv, and finally
// overlays COMPOSE_-prefixed environment variables over the result.
func (cm *configManager) Load(configPath string) error {
	_ = godotenv.Load() // no .env file is not an error

	if configPath == "" {
		for _, path := range []string{"config.json", "config/config.json"} {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("compose: read config file: %w", err)
		}
		var nested map[string]interface{}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return fmt.Errorf("compose: parse config file: %w", err)
		}
		cm.data = flatten(nested)
	}

	cm.loadFromEnv()
	return nil
}

func (cm *configManager) loadFromEnv() {
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], envPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(parts[0], envPrefix))
		key = strings.ReplaceAll(key, "_", ".")
		cm.data[key] = parts[1]
	}
}

func flatten(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range m {
		if child, ok := v.(map[string]interface{}); ok {
			for nk, nv := range flatten(child) {
				result[k+"."+nk] = nv
			}
			continue
		}
		result[k] = v
	}
	return result
}

func nest(flat map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for key, value := range flat {
		parts := strings.Split(key, ".")
		current := result
		for i, part := range parts {
			if i == len(parts)-1 {
				current[part] = value
				continue
			}
			next, ok := current[part].(map[string]interface{})
			if !ok {
				next = make(map[string]interface{})
				current[part] = next
			}
			current = next
		}
	}
	return result
}

func (cm *configManager) Get(key string) interface{} { return cm.data[key] }

func (cm *configManager) GetString(key string) string {
	if v, ok := cm.data[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func (cm *configManager) GetInt(key string) int {
	switch v := cm.data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return 0
}

func (cm *configManager) GetBool(key string) bool {
	switch v := cm.data[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case int:
		return v != 0
	}
	return false
}

// GetDuration parses a Go duration string (e.g. "30s"), falling back to
// treating a bare integer as seconds.
func (cm *configManager) GetDuration(key string) time.Duration {
	v, ok := cm.data[key]
	if !ok {
		return 0
	}
	s := fmt.Sprintf("%v", v)
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func (cm *configManager) Set(key string, value interface{}) { cm.data[key] = value }

func (cm *configManager) Has(key string) bool {
	_, ok := cm.data[key]
	return ok
}

func (cm *configManager) Unmarshal(target interface{}) error {
	data, err := json.Marshal(nest(cm.data))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// LoadBootConfig reads a module's boot-sequencer overrides
// ("boot.initTimeout", "boot.validateDependencies") out of cm, falling
// back to DefaultModuleConfig for anything unset.
func LoadBootConfig(cm ConfigManager) ModuleConfig {
	cfg := DefaultModuleConfig()
	if cm.Has("boot.initTimeout") {
		if d := cm.GetDuration("boot.initTimeout"); d > 0 {
			cfg.InitTimeout = d
		}
	}
	if cm.Has("boot.validateDependencies") {
		cfg.ValidateDependencies = cm.GetBool("boot.validateDependencies")
	}
	return cfg
}
