package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/agentd-ai/agentd/pkg/types"
)

// Defaults applied before any config source is read.
const (
	DefaultPort                  = 4497
	DefaultMaxConcurrentCommands = 4
	DefaultCommandTimeout        = 2 * time.Minute
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/agentd/)
// 2. Project config (.agentd/)
// 3. AGENTD_CONFIG file
// 4. AGENTD_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := defaults()

	loaded := make(map[string]bool)
	loadOnce := func(path, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Global config
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "agentd.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "agentd.jsonc"), globalPath)

	// 2. Project config
	if directory != "" {
		projectDir := filepath.Join(directory, ".agentd")
		loadOnce(filepath.Join(directory, "agentd.json"), directory)
		loadOnce(filepath.Join(directory, "agentd.jsonc"), directory)
		loadOnce(filepath.Join(projectDir, "agentd.json"), projectDir)
		loadOnce(filepath.Join(projectDir, "agentd.jsonc"), projectDir)
	}

	// 3. AGENTD_CONFIG file override
	if configPath := os.Getenv("AGENTD_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	// 4. AGENTD_CONFIG_CONTENT inline JSON
	if content := os.Getenv("AGENTD_CONFIG_CONTENT"); content != "" {
		var inline types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), &inline); err == nil {
			mergeConfig(config, &inline)
		}
	}

	// 5. Environment variables (highest priority)
	applyEnvOverrides(config)

	if config.DataDir == "" {
		config.DataDir = GetPaths().StoragePath()
	}
	return config, nil
}

func defaults() *types.Config {
	return &types.Config{
		ApprovalPolicy:        types.ApprovalOnRequest,
		MaxConcurrentCommands: DefaultMaxConcurrentCommands,
		CommandTimeoutMS:      int(DefaultCommandTimeout / time.Millisecond),
		Server:                types.ServerConfig{Port: DefaultPort},
		Log:                   types.LogConfig{Level: "info"},
	}
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.ApprovalPolicy.Valid() {
		target.ApprovalPolicy = source.ApprovalPolicy
	}
	if source.Sandbox != nil {
		target.Sandbox = source.Sandbox
	}
	if source.PolicyDir != "" {
		target.PolicyDir = source.PolicyDir
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.MaxConcurrentCommands > 0 {
		target.MaxConcurrentCommands = source.MaxConcurrentCommands
	}
	if source.CommandTimeoutMS > 0 {
		target.CommandTimeoutMS = source.CommandTimeoutMS
	}
	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.Server.EnableCORS {
		target.Server.EnableCORS = true
	}
	if source.Log.Level != "" {
		target.Log.Level = source.Log.Level
	}
	if source.Log.Pretty {
		target.Log.Pretty = true
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if v := os.Getenv("AGENTD_APPROVAL_POLICY"); v != "" {
		if policy, err := types.ParseApprovalPolicy(v); err == nil {
			config.ApprovalPolicy = policy
		}
	}
	if v := os.Getenv("AGENTD_POLICY_DIR"); v != "" {
		config.PolicyDir = v
	}
	if v := os.Getenv("AGENTD_DATA_DIR"); v != "" {
		config.DataDir = v
	}
	if v := os.Getenv("AGENTD_LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv("AGENTD_SANDBOX_MODE"); v != "" {
		switch types.SandboxMode(v) {
		case types.SandboxReadOnly:
			p := types.ReadOnlyPolicy()
			config.Sandbox = &p
		case types.SandboxWorkspaceWrite:
			p := types.WorkspaceWritePolicy()
			config.Sandbox = &p
		case types.SandboxDangerFullAccess:
			p := types.FullAccessPolicy()
			config.Sandbox = &p
		}
	}
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
