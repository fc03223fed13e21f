package config

// Config represents the main project configuration (memsync.yaml)
type Config struct {
	Remote  RemoteConfig  `yaml:"remote" json:"remote"`
	Memory  MemoryConfig  `yaml:"memory" json:"memory"`
	Sync    SyncConfig    `yaml:"sync" json:"sync"`
	Journal JournalConfig `yaml:"journal" json:"journal"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RemoteConfig configures the block store API
type RemoteConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// MemoryConfig configures the local memory file tree
type MemoryConfig struct {
	Root string `yaml:"root" json:"root"`
}

// SyncConfig configures reconciliation behavior
type SyncConfig struct {
	Policy string `yaml:"policy" json:"policy"` // three-way, file-wins
}

// JournalConfig configures run history storage
type JournalConfig struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite, memory
	Path   string `yaml:"path" json:"path"`     // file path for sqlite
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"` // debug, info, warn, error
	File  string `yaml:"file,omitempty" json:"file,omitempty"`
}
