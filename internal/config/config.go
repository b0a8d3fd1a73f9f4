package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel     = LogLevelWarning
	DefaultEnvPrefix    = "SENSORCTL"
	DefaultMasterClock  = 24000000
	DefaultCaptureFPS   = 75 // 7.5 fps x10
	DefaultCaptureLines = 1968
	DefaultFrameLimit   = 4
	DefaultManualGain   = 0x10
	DefaultMaxGain      = 0xf8
	DefaultBandFilter   = 50
	DefaultFlashLevel   = 0x1c
	DefaultAddress      = 0x3c
	DefaultRetries      = 2
	DefaultJournalDB    = "/var/lib/sensorctl/journal.db"
	DefaultFlashSettle  = 50 * time.Millisecond
	DefaultCaptureHold  = 150 * time.Millisecond
)

type Config struct {
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
	LogLevel string `mapstructure:"log_level"`

	// Sensor transport
	Bus      string `mapstructure:"bus"`
	Address  int    `mapstructure:"address"`
	Retries  int    `mapstructure:"retries"`
	Simulate bool   `mapstructure:"simulate"`

	// Exposure translation
	MasterClock  int        `mapstructure:"master_clock"`
	CaptureFPS   int        `mapstructure:"capture_fps"`
	CaptureLines int        `mapstructure:"capture_lines"`
	FrameLimit   int        `mapstructure:"frame_limit"`
	GainPolicy   GainPolicy `mapstructure:"gain_policy"`
	ManualGain   int        `mapstructure:"manual_gain"`
	MaxGain      int        `mapstructure:"max_gain"`
	BandFilter   int        `mapstructure:"band_filter"`
	NightMode    int        `mapstructure:"night_mode"`
	LowSpeed     bool       `mapstructure:"low_speed"`
	AutoWB       bool       `mapstructure:"auto_wb"`

	// Resolutions
	PreviewWidth  int `mapstructure:"preview_width"`
	PreviewHeight int `mapstructure:"preview_height"`
	CaptureWidth  int `mapstructure:"capture_width"`
	CaptureHeight int `mapstructure:"capture_height"`

	// Flash
	FlashMode   FlashMode     `mapstructure:"flash_mode"`
	FlashLevel  int           `mapstructure:"flash_level"`
	FlashPin    string        `mapstructure:"flash_pin"`
	FlashSettle time.Duration `mapstructure:"flash_settle"`

	CaptureHold time.Duration `mapstructure:"capture_hold"`

	// Journal and telemetry
	Journal       bool   `mapstructure:"journal"`
	JournalDB     string `mapstructure:"journal_db"`
	MetricsListen string `mapstructure:"metrics_listen"`

	// Args holds the positional arguments left after flag parsing
	Args []string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("bus", "")
	v.SetDefault("address", DefaultAddress)
	v.SetDefault("retries", DefaultRetries)
	v.SetDefault("master_clock", DefaultMasterClock)
	v.SetDefault("capture_fps", DefaultCaptureFPS)
	v.SetDefault("capture_lines", DefaultCaptureLines)
	v.SetDefault("frame_limit", DefaultFrameLimit)
	v.SetDefault("gain_policy", string(GainPolicyAuto))
	v.SetDefault("manual_gain", DefaultManualGain)
	v.SetDefault("max_gain", DefaultMaxGain)
	v.SetDefault("band_filter", DefaultBandFilter)
	v.SetDefault("night_mode", 0)
	v.SetDefault("auto_wb", true)
	v.SetDefault("preview_width", 800)
	v.SetDefault("preview_height", 600)
	v.SetDefault("capture_width", 2592)
	v.SetDefault("capture_height", 1936)
	v.SetDefault("flash_mode", string(FlashModeNone))
	v.SetDefault("flash_level", DefaultFlashLevel)
	v.SetDefault("flash_settle", DefaultFlashSettle)
	v.SetDefault("capture_hold", DefaultCaptureHold)
	v.SetDefault("journal_db", DefaultJournalDB)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("sensorctl", pflag.ContinueOnError)

	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.String("bus", "", "I2C bus name (empty selects the first bus)")
	fs.Int("address", DefaultAddress, "7-bit I2C address of the sensor")
	fs.Int("retries", DefaultRetries, "Extra attempts for a failed register transaction")
	fs.Bool("simulate", false, "Use an in-memory register file instead of the I2C bus")
	fs.Int("capture-fps", DefaultCaptureFPS, "Nominal capture frame rate x10")
	fs.Int("frame-limit", DefaultFrameLimit, "Maximum frames a capture exposure may span")
	fs.String("gain-policy", string(GainPolicyAuto), "Capture gain policy (auto, manual)")
	fs.Int("manual-gain", DefaultManualGain, "Capture gain used by the manual policy")
	fs.Int("band-filter", DefaultBandFilter, "Mains frequency for banding (50 or 60)")
	fs.Int("night-mode", 0, "Night mode exposure factor (0 disables)")
	fs.Bool("low-speed", false, "Halve the capture frame rate")
	fs.String("flash-mode", string(FlashModeNone), "Flash mode (none, on, auto)")
	fs.String("flash-pin", "", "GPIO driving the flash LED")
	fs.Duration("capture-hold", DefaultCaptureHold, "Time spent in capture mode during a roundtrip")
	fs.Bool("journal", false, "Record transitions in the journal database")
	fs.String("journal-db", DefaultJournalDB, "Path to the journal database")
	fs.String("metrics-listen", "", "Address serving Prometheus metrics (empty disables)")

	return fs
}

func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix, args: os.Args[1:]}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	// Flags use dashes, keys use underscores
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, bindErr)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	configPath := o.configPath
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName("sensorctl")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath("$HOME/.config/sensorctl")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	config.Args = fs.Args()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the loaded values against what the sensor can accept
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	invalid := func(field string, value any) error {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value any
		}{field, value})
	}

	switch {
	case c.MasterClock <= 0:
		return invalid("master_clock", c.MasterClock)
	case c.CaptureFPS <= 0:
		return invalid("capture_fps", c.CaptureFPS)
	case c.CaptureLines <= 0 || c.CaptureLines > 0xffff:
		return invalid("capture_lines", c.CaptureLines)
	case c.FrameLimit <= 0:
		return invalid("frame_limit", c.FrameLimit)
	case c.GainPolicy != GainPolicyAuto && c.GainPolicy != GainPolicyManual:
		return invalid("gain_policy", c.GainPolicy)
	case c.ManualGain <= 0 || c.ManualGain > 0xff:
		return invalid("manual_gain", c.ManualGain)
	case c.MaxGain <= 0 || c.MaxGain > 0xff:
		return invalid("max_gain", c.MaxGain)
	case c.GainPolicy == GainPolicyManual && c.ManualGain > c.MaxGain:
		return invalid("manual_gain", c.ManualGain)
	case c.BandFilter != 50 && c.BandFilter != 60:
		return invalid("band_filter", c.BandFilter)
	case c.NightMode < 0:
		return invalid("night_mode", c.NightMode)
	case c.Address <= 0 || c.Address > 0x7f:
		return invalid("address", c.Address)
	case c.Retries < 0:
		return invalid("retries", c.Retries)
	case c.FlashMode != FlashModeNone && c.FlashMode != FlashModeOn && c.FlashMode != FlashModeAuto:
		return invalid("flash_mode", c.FlashMode)
	case c.FlashLevel < 0 || c.FlashLevel > 0xff:
		return invalid("flash_level", c.FlashLevel)
	case c.Journal && c.JournalDB == "":
		return invalid("journal_db", c.JournalDB)
	}

	return nil
}
