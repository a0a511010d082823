package config

import "time"

// Config is the root configuration for the entire application. All
// options are fixed at accelerator construction; there is no hot
// reload.
type Config struct {
	Accelerator AcceleratorConfig `mapstructure:"accelerator"`
	Drive       DriveConfig       `mapstructure:"drive"`
	Balancer    BalancerConfig    `mapstructure:"balancer"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Mount       MountConfig       `mapstructure:"mount"`
}

type AcceleratorConfig struct {
	NumDrives   int           `mapstructure:"num_drives" validate:"required,min=1"`
	HashSeed    string        `mapstructure:"hash_seed" validate:"required"`
	BlockSize   int           `mapstructure:"block_size" validate:"required,min=512"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout" validate:"required"`
}

type DriveConfig struct {
	QueueDepth int           `mapstructure:"queue_depth" validate:"required,min=1"`
	Latency    LatencyConfig `mapstructure:"latency"`
}

// LatencyConfig is the artificial per-op latency profile applied by a
// drive worker before executing a request.
type LatencyConfig struct {
	Read     time.Duration `mapstructure:"read"`
	Write    time.Duration `mapstructure:"write"`
	Truncate time.Duration `mapstructure:"truncate"`
	Rename   time.Duration `mapstructure:"rename"`
	Default  time.Duration `mapstructure:"default"`
}

type BalancerConfig struct {
	MaxPendingOps int64 `mapstructure:"max_pending_ops" validate:"required,min=1"`
}

type MonitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"required"`
}

type MountConfig struct {
	Mountpoint string `mapstructure:"mountpoint"`
	FSName     string `mapstructure:"fs_name"`
	AllowOther bool   `mapstructure:"allow_other"`
	Foreground bool   `mapstructure:"foreground"`
	Debug      bool   `mapstructure:"debug"`
}

func Default() Config {
	return Config{
		Accelerator: AcceleratorConfig{
			NumDrives:   16,
			HashSeed:    "default_seed",
			BlockSize:   4096,
			WaitTimeout: 5 * time.Second,
		},
		Drive: DriveConfig{
			QueueDepth: 1000,
			Latency: LatencyConfig{
				Read:     2 * time.Millisecond,
				Write:    3 * time.Millisecond,
				Truncate: 2 * time.Millisecond,
				Rename:   2 * time.Millisecond,
				Default:  1 * time.Millisecond,
			},
		},
		Balancer: BalancerConfig{
			MaxPendingOps: 1000,
		},
		Monitor: MonitorConfig{
			Enabled:  true,
			Interval: 5 * time.Second,
		},
		Mount: MountConfig{
			FSName:     "stripefs",
			Foreground: true,
		},
	}
}
