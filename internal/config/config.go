package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/openmined/rclonebox/internal/utils"
)

var (
	home, _                 = os.UserHomeDir()
	DefaultDataDir          = filepath.Join(home, ".rclonebox")
	DefaultConfigPath       = filepath.Join(DefaultDataDir, "config.json")
	DefaultLogFilePath      = filepath.Join(DefaultDataDir, "logs", "rclonebox.log")
	DefaultRclonePath       = "rclone"
	DefaultControlPlaneAddr = "localhost:7939"
	DefaultControlPlaneURL  = "http://" + DefaultControlPlaneAddr
	DefaultReconcileSeconds = 10
)

var ErrInvalidConfig = errors.New("invalid config")

// CacheDirMode selects where rclone keeps its VFS cache for mounts
type CacheDirMode string

const (
	CacheDirDefault CacheDirMode = "default" // <data_dir>/cache
	CacheDirSystem  CacheDirMode = "system"  // let rclone decide
	CacheDirCustom  CacheDirMode = "custom"  // cache_dir
)

type ControlPlaneConfig struct {
	Addr  string `json:"addr" mapstructure:"addr" validate:"required,hostname_port"`
	Token string `json:"token,omitempty" mapstructure:"token"`
}

type Config struct {
	DataDir          string             `json:"data_dir" mapstructure:"data_dir" validate:"required"`
	RclonePath       string             `json:"rclone_path" mapstructure:"rclone_path" validate:"required"`
	RcloneConfigPath string             `json:"rclone_config_path,omitempty" mapstructure:"rclone_config_path"`
	CacheDirMode     CacheDirMode       `json:"cache_dir_mode" mapstructure:"cache_dir_mode" validate:"oneof=default system custom"`
	CacheDirPath     string             `json:"cache_dir,omitempty" mapstructure:"cache_dir"`
	AutoMount        bool               `json:"auto_mount" mapstructure:"auto_mount"`
	UnmountOnExit    bool               `json:"unmount_on_exit" mapstructure:"unmount_on_exit"`
	ReconcileSeconds int                `json:"reconcile_seconds" mapstructure:"reconcile_seconds" validate:"gte=0,lte=3600"`
	ControlPlane     ControlPlaneConfig `json:"control_plane" mapstructure:"control_plane"`
	Path             string             `json:"-" mapstructure:"-"`
}

// Default returns a config with every field at its default value
func Default() *Config {
	return &Config{
		DataDir:          DefaultDataDir,
		RclonePath:       DefaultRclonePath,
		CacheDirMode:     CacheDirDefault,
		ReconcileSeconds: DefaultReconcileSeconds,
		ControlPlane: ControlPlaneConfig{
			Addr: DefaultControlPlaneAddr,
		},
		Path: DefaultConfigPath,
	}
}

// Validate fills defaults, checks field constraints and normalizes paths.
// Relative rclone paths are resolved against the data dir; a bare binary
// name such as "rclone" is left for PATH lookup.
func (c *Config) Validate() error {
	if c.CacheDirMode == "" {
		c.CacheDirMode = CacheDirDefault
	}
	if c.ControlPlane.Addr == "" {
		c.ControlPlane.Addr = DefaultControlPlaneAddr
	}
	if c.RclonePath == "" {
		c.RclonePath = DefaultRclonePath
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, describeValidation(err))
	}

	var err error
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("%w: data dir: %w", ErrInvalidConfig, err)
	}
	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("%w: config path: %w", ErrInvalidConfig, err)
		}
	}

	if strings.ContainsAny(c.RclonePath, `/\`) {
		c.RclonePath = utils.ResolvePathFrom(c.DataDir, c.RclonePath)
	}
	c.RcloneConfigPath = utils.ResolvePathFrom(c.DataDir, c.RcloneConfigPath)
	c.CacheDirPath = utils.ResolvePathFrom(c.DataDir, c.CacheDirPath)

	return nil
}

// CacheDir returns the --cache-dir value for mounts, or "" to omit the flag
func (c *Config) CacheDir() string {
	defaultDir := filepath.Join(c.DataDir, "cache")
	switch c.CacheDirMode {
	case CacheDirSystem:
		return ""
	case CacheDirCustom:
		if c.CacheDirPath != "" {
			return c.CacheDirPath
		}
		return defaultDir
	default:
		return defaultDir
	}
}

// ReconcileInterval is how often mount state is reconciled against the OS
func (c *Config) ReconcileInterval() time.Duration {
	if c.ReconcileSeconds <= 0 {
		return time.Duration(DefaultReconcileSeconds) * time.Second
	}
	return time.Duration(c.ReconcileSeconds) * time.Second
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.Path = path

	return cfg, cfg.Validate()
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
