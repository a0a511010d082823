package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables layered over
// the built-in defaults. Keys map to env vars with dots replaced by
// underscores, e.g. accelerator.num_drives -> ACCELERATOR_NUM_DRIVES.
func Load() (*Config, error) {
	v := viper.New()

	// Register defaults per leaf key so environment overrides are
	// picked up during Unmarshal.
	defaults := Default()
	v.SetDefault("accelerator.num_drives", defaults.Accelerator.NumDrives)
	v.SetDefault("accelerator.hash_seed", defaults.Accelerator.HashSeed)
	v.SetDefault("accelerator.block_size", defaults.Accelerator.BlockSize)
	v.SetDefault("accelerator.wait_timeout", defaults.Accelerator.WaitTimeout)
	v.SetDefault("drive.queue_depth", defaults.Drive.QueueDepth)
	v.SetDefault("drive.latency.read", defaults.Drive.Latency.Read)
	v.SetDefault("drive.latency.write", defaults.Drive.Latency.Write)
	v.SetDefault("drive.latency.truncate", defaults.Drive.Latency.Truncate)
	v.SetDefault("drive.latency.rename", defaults.Drive.Latency.Rename)
	v.SetDefault("drive.latency.default", defaults.Drive.Latency.Default)
	v.SetDefault("balancer.max_pending_ops", defaults.Balancer.MaxPendingOps)
	v.SetDefault("monitor.enabled", defaults.Monitor.Enabled)
	v.SetDefault("monitor.interval", defaults.Monitor.Interval)
	v.SetDefault("mount.mountpoint", defaults.Mount.Mountpoint)
	v.SetDefault("mount.fs_name", defaults.Mount.FSName)
	v.SetDefault("mount.allow_other", defaults.Mount.AllowOther)
	v.SetDefault("mount.foreground", defaults.Mount.Foreground)
	v.SetDefault("mount.debug", defaults.Mount.Debug)

	// Configure environment variable reading
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal and validate
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
