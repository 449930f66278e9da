package types

// Config is the merged agentd configuration.
type Config struct {
	// ApprovalPolicy is the default approval policy for new turns.
	ApprovalPolicy ApprovalPolicy `json:"approvalPolicy,omitempty"`
	// Sandbox is the default sandbox policy for new turns.
	Sandbox *SandboxPolicy `json:"sandbox,omitempty"`
	// PolicyDir holds the command policy rule files (*.policy).
	PolicyDir string `json:"policyDir,omitempty"`
	// DataDir is where threads and turns are persisted.
	DataDir string `json:"dataDir,omitempty"`
	// MaxConcurrentCommands bounds parallel command execution per turn.
	MaxConcurrentCommands int `json:"maxConcurrentCommands,omitempty"`
	// CommandTimeoutMS is the per-command timeout in milliseconds.
	CommandTimeoutMS int `json:"commandTimeoutMS,omitempty"`

	Server ServerConfig `json:"server,omitempty"`
	Log    LogConfig    `json:"log,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port       int  `json:"port,omitempty"`
	EnableCORS bool `json:"enableCORS,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Pretty bool   `json:"pretty,omitempty"`
}
