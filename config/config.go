package config

import (
	stderrors "errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wippyai/simhook/bridge"
	"github.com/wippyai/simhook/engine"
	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/hook"
	"github.com/wippyai/simhook/internal/simguest"
	"github.com/wippyai/simhook/sim"
)

// EnvPrefix prefixes every environment override: SIMHOOK_LIB,
// SIMHOOK_MEMORY_LIMIT_MB, SIMHOOK_THRESHOLDS_AREA_NMI2 and so on.
const EnvPrefix = "SIMHOOK"

// DefaultFileName is the config file looked up in the home directory when
// no file is given.
const DefaultFileName = ".simhook"

// Random configures the parameter sweep.
type Random struct {
	Seed    uint64 `mapstructure:"seed" yaml:"seed"`
	Count   int    `mapstructure:"count" yaml:"count"`
	Workers int    `mapstructure:"workers" yaml:"workers"`
}

// Config is the resolved configuration of a simhook run.
type Config struct {
	LibraryDir         string         `mapstructure:"lib" yaml:"lib"`
	Modules            []string       `mapstructure:"modules" yaml:"modules"`
	ImplementationSet  string         `mapstructure:"impl" yaml:"impl"`
	MemoryLimitMB      uint32         `mapstructure:"memory_limit_mb" yaml:"memory_limit_mb"`
	CacheDir           string         `mapstructure:"cache_dir" yaml:"cache_dir"`
	CloseOnContextDone bool           `mapstructure:"close_on_context_done" yaml:"close_on_context_done"`
	Reference          bool           `mapstructure:"reference" yaml:"reference"`
	Reset              string         `mapstructure:"reset" yaml:"reset"`
	LogLevel           string         `mapstructure:"log_level" yaml:"log_level"`
	Output             string         `mapstructure:"output" yaml:"output"`
	Thresholds         sim.Thresholds `mapstructure:"thresholds" yaml:"thresholds"`
	Random             Random         `mapstructure:"random" yaml:"random"`
}

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"lib":             "lib",
	"module":          "modules",
	"impl":            "impl",
	"memory-limit-mb": "memory_limit_mb",
	"cache-dir":       "cache_dir",
	"reference":       "reference",
	"reset":           "reset",
	"log-level":       "log_level",
	"output":          "output",
	"seed":            "random.seed",
	"count":           "random.count",
	"workers":         "random.workers",
}

// Loader layers defaults, a YAML file, SIMHOOK_* environment variables and
// bound flags, later layers winning.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader holding the defaults.
func NewLoader() *Loader {
	v := viper.New()
	thr := sim.DefaultThresholds()

	v.SetDefault("lib", "")
	v.SetDefault("modules", []string{})
	v.SetDefault("impl", engine.DefaultImplementationSet)
	v.SetDefault("memory_limit_mb", 0)
	v.SetDefault("cache_dir", "")
	v.SetDefault("close_on_context_done", false)
	v.SetDefault("reference", false)
	v.SetDefault("reset", hook.ResetRestart.String())
	v.SetDefault("log_level", "warn")
	v.SetDefault("output", OutputText)
	v.SetDefault("thresholds.area_nmi2", thr.AreaNmi2)
	v.SetDefault("thresholds.distance_nmi", thr.DistanceNmi)
	v.SetDefault("thresholds.semi_major_nmi", thr.SemiMajorNmi)
	v.SetDefault("thresholds.major_to_minor", thr.MajorToMinor)
	v.SetDefault("thresholds.min_angle_deg", thr.MinAngleDeg)
	v.SetDefault("random.seed", 820305)
	v.SetDefault("random.count", 10)
	v.SetDefault("random.workers", 1)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// BindFlags binds every known flag present in fs. Flags only override the
// other layers when set.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindMalformedInput, err, "bind flag --"+name)
		}
	}
	return nil
}

// Load reads file, or $HOME/.simhook.yaml when file is empty, and returns
// the merged configuration. A missing default file is not an error.
func (l *Loader) Load(file string) (*Config, error) {
	if file != "" {
		l.v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(home)
		}
		l.v.SetConfigName(DefaultFileName)
		l.v.SetConfigType("yaml")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !stderrors.As(err, &notFound) {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Path(file).
				Detail("read config").
				Cause(err).
				Build()
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FileUsed returns the config file that was read, if any.
func (l *Loader) FileUsed() string { return l.v.ConfigFileUsed() }

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := hook.ParseResetPolicy(c.Reset); err != nil {
		return err
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return errors.New(errors.PhaseConfig, errors.KindMalformedInput).
			Value(c.Output).
			Detail("unknown output format %q (want text, json or yaml)", c.Output).
			Build()
	}
	if c.MemoryLimitMB > maxMemoryMB {
		return errors.New(errors.PhaseConfig, errors.KindMalformedInput).
			Value(c.MemoryLimitMB).
			Detail("memory limit %d MB exceeds the 32-bit address space", c.MemoryLimitMB).
			Build()
	}
	if c.Random.Workers < 1 {
		return errors.New(errors.PhaseConfig, errors.KindMalformedInput).
			Value(c.Random.Workers).
			Detail("workers must be at least 1").
			Build()
	}
	return nil
}

const maxMemoryMB = 4096

// mbToPages converts megabytes to 64 KiB wasm pages.
func mbToPages(mb uint32) uint32 {
	return mb * 16
}

// HookConfig converts the configuration into a facade configuration whose
// guest console writes to stdout. Reference adds the embedded reference
// guest after the library modules.
func (c *Config) HookConfig(stdout, stderr io.Writer) (hook.Config, error) {
	policy, err := hook.ParseResetPolicy(c.Reset)
	if err != nil {
		return hook.Config{}, err
	}
	var sources []engine.Source
	if c.Reference {
		sources = append(sources, simguest.Source())
	}
	return hook.Config{
		Bridge: bridge.Config{Config: engine.Config{
			LibraryDir:         c.LibraryDir,
			Modules:            c.Modules,
			Sources:            sources,
			ImplementationSet:  c.ImplementationSet,
			MemoryLimitPages:   mbToPages(c.MemoryLimitMB),
			CacheDir:           c.CacheDir,
			CloseOnContextDone: c.CloseOnContextDone,
			Stdout:             stdout,
			Stderr:             stderr,
		}},
		Reset: policy,
	}, nil
}
