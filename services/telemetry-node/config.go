package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeSynthetic = "synthetic"
	ModeHardware  = "hardware"

	StoreCSV       = "csv"
	StoreMemory    = "memory"
	StoreTimescale = "timescale"
)

// Config zapouzdřuje veškeré nastavení uzlu.
// Pořadí vrstev: defaulty -> YAML soubor (CONFIG_FILE) -> ENV proměnné.
type Config struct {
	HTTPPort  string `yaml:"http_port"`
	StaticDir string `yaml:"static_dir"`

	// Mode: "synthetic" (simulace) nebo "hardware" (IIO čidlo).
	Mode      string  `yaml:"mode"`
	IIODevice string  `yaml:"iio_device"`
	BaseTemp  float64 `yaml:"base_temp"`
	BaseHum   float64 `yaml:"base_hum"`

	ReadInterval time.Duration `yaml:"read_interval"`
	LogInterval  time.Duration `yaml:"log_interval"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	ClockWait    time.Duration `yaml:"clock_wait"`

	// Store: "csv", "memory" nebo "timescale". V simulovaném režimu se ignoruje.
	Store            string `yaml:"store"`
	DataFile         string `yaml:"data_file"`
	DataFileMaxBytes int64  `yaml:"data_file_max_bytes"`
	MemoryCapacity   int    `yaml:"memory_capacity"`
	PostgresURL      string `yaml:"postgres_url"`

	HistoryHoursBack   int  `yaml:"history_hours_back"`
	HistoryStepMinutes int  `yaml:"history_step_minutes"`
	HistoryMaxSamples  int  `yaml:"history_max_samples"`
	HistoryRaw         bool `yaml:"history_raw"`

	DeviceID      string  `yaml:"device_id"`
	DeviceMAC     string  `yaml:"device_mac"`
	RestartReason string  `yaml:"restart_reason"`
	AlertTempMin  float64 `yaml:"alert_temp_min"`
	AlertTempMax  float64 `yaml:"alert_temp_max"`

	// ActuatorGPIO: sysfs soubor value reléového výstupu. Prázdné = stav jen v paměti.
	ActuatorGPIO string `yaml:"actuator_gpio"`

	SinkURL         string        `yaml:"sink_url"`
	SinkQueue       int           `yaml:"sink_queue"`
	SinkTimeout     time.Duration `yaml:"sink_timeout"`
	MQTTBroker      string        `yaml:"mqtt_broker"`
	MQTTClientID    string        `yaml:"mqtt_client_id"`
	MQTTTopicPrefix string        `yaml:"mqtt_topic_prefix"`
	ValkeyAddr      string        `yaml:"valkey_addr"`

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`
	LogMQTT   bool   `yaml:"log_mqtt"`
}

// DefaultConfig jsou hodnoty pro lokální vývoj (simulace, bez sinků).
func DefaultConfig() Config {
	return Config{
		HTTPPort:           "8080",
		Mode:               ModeSynthetic,
		IIODevice:          "/sys/bus/iio/devices/iio:device0",
		BaseTemp:           24.0,
		BaseHum:            55.0,
		ReadInterval:       10 * time.Second,
		LogInterval:        5 * time.Minute,
		ReadTimeout:        3 * time.Second,
		ClockWait:          10 * time.Second,
		Store:              StoreCSV,
		DataFile:           "./data/data.csv",
		DataFileMaxBytes:   4 << 20,
		MemoryCapacity:     2016, // týden po 5 minutách
		HistoryHoursBack:   DefaultHistoryQuery.HoursBack,
		HistoryStepMinutes: DefaultHistoryQuery.StepMinutes,
		HistoryMaxSamples:  10080,
		RestartReason:      "power-on",
		AlertTempMin:       5.0,
		AlertTempMax:       35.0,
		SinkQueue:          64,
		SinkTimeout:        5 * time.Second,
		MQTTClientID:       "telemetry-node",
		MQTTTopicPrefix:    "telemetry",
		LogFormat:          "json",
		LogLevel:           "info",
	}
}

// LoadConfig načte konfiguraci. Nečitelné ENV hodnoty neshodí start,
// jen se vrátí ve warnings a použije se předchozí hodnota.
// Chyba se vrací pro nečitelný CONFIG_FILE nebo neplatnou kombinaci nastavení.
func LoadConfig() (Config, []string, error) {
	cfg := DefaultConfig()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return cfg, nil, err
		}
	}

	env := envLoader{}
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
	cfg.Mode = strings.ToLower(getEnv("MODE", cfg.Mode))
	cfg.IIODevice = getEnv("IIO_DEVICE", cfg.IIODevice)
	cfg.BaseTemp = env.getFloat("BASE_TEMP", cfg.BaseTemp)
	cfg.BaseHum = env.getFloat("BASE_HUM", cfg.BaseHum)

	cfg.ReadInterval = env.getDuration("READ_INTERVAL", cfg.ReadInterval)
	cfg.LogInterval = env.getDuration("LOG_INTERVAL", cfg.LogInterval)
	cfg.ReadTimeout = env.getDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.ClockWait = env.getDuration("CLOCK_WAIT", cfg.ClockWait)

	cfg.Store = strings.ToLower(getEnv("STORE", cfg.Store))
	cfg.DataFile = getEnv("DATA_FILE", cfg.DataFile)
	cfg.DataFileMaxBytes = int64(env.getInt("DATA_FILE_MAX_BYTES", int(cfg.DataFileMaxBytes)))
	cfg.MemoryCapacity = env.getInt("MEMORY_CAPACITY", cfg.MemoryCapacity)
	cfg.PostgresURL = getEnv("POSTGRES_URL", cfg.PostgresURL)

	cfg.HistoryHoursBack = env.getInt("HISTORY_HOURS_BACK", cfg.HistoryHoursBack)
	cfg.HistoryStepMinutes = env.getInt("HISTORY_STEP_MINUTES", cfg.HistoryStepMinutes)
	cfg.HistoryMaxSamples = env.getInt("HISTORY_MAX_SAMPLES", cfg.HistoryMaxSamples)
	cfg.HistoryRaw = env.getBool("HISTORY_RAW", cfg.HistoryRaw)

	cfg.DeviceID = getEnv("DEVICE_ID", cfg.DeviceID)
	cfg.DeviceMAC = getEnv("DEVICE_MAC", cfg.DeviceMAC)
	cfg.RestartReason = getEnv("RESTART_REASON", cfg.RestartReason)
	cfg.AlertTempMin = env.getFloat("ALERT_TEMP_MIN", cfg.AlertTempMin)
	cfg.AlertTempMax = env.getFloat("ALERT_TEMP_MAX", cfg.AlertTempMax)
	cfg.ActuatorGPIO = getEnv("ACTUATOR_GPIO", cfg.ActuatorGPIO)

	cfg.SinkURL = getEnv("SINK_URL", cfg.SinkURL)
	cfg.SinkQueue = env.getInt("SINK_QUEUE", cfg.SinkQueue)
	cfg.SinkTimeout = env.getDuration("SINK_TIMEOUT", cfg.SinkTimeout)
	cfg.MQTTBroker = getEnv("MQTT_BROKER", cfg.MQTTBroker)
	cfg.MQTTClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTTClientID)
	cfg.MQTTTopicPrefix = getEnv("MQTT_TOPIC_PREFIX", cfg.MQTTTopicPrefix)
	cfg.ValkeyAddr = getEnv("VALKEY_ADDR", cfg.ValkeyAddr)

	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.LogMQTT = env.getBool("LOG_MQTT", cfg.LogMQTT)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, env.warnings, err
	}
	return cfg, env.warnings, nil
}

func loadYAML(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("nelze načíst CONFIG_FILE %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("neplatný YAML v %s: %w", path, err)
	}
	return nil
}

// applyDefaults doplní prázdné hodnoty, které nemají smysl jako nula.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.HTTPPort == "" {
		c.HTTPPort = def.HTTPPort
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.Store == "" {
		c.Store = def.Store
	}
	if c.HistoryHoursBack <= 0 {
		c.HistoryHoursBack = def.HistoryHoursBack
	}
	if c.HistoryStepMinutes <= 0 {
		c.HistoryStepMinutes = def.HistoryStepMinutes
	}
	if c.SinkQueue <= 0 {
		c.SinkQueue = def.SinkQueue
	}
	if c.MQTTClientID == "" {
		c.MQTTClientID = def.MQTTClientID
	}
	if c.MQTTTopicPrefix == "" {
		c.MQTTTopicPrefix = def.MQTTTopicPrefix
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

func (c Config) validate() error {
	var errs []error
	switch c.Mode {
	case ModeSynthetic, ModeHardware:
	default:
		errs = append(errs, fmt.Errorf("MODE musí být %q nebo %q, ne %q", ModeSynthetic, ModeHardware, c.Mode))
	}
	switch c.Store {
	case StoreCSV, StoreMemory, StoreTimescale:
	default:
		errs = append(errs, fmt.Errorf("STORE musí být csv, memory nebo timescale, ne %q", c.Store))
	}
	if c.ReadInterval <= 0 || c.LogInterval <= 0 {
		errs = append(errs, errors.New("READ_INTERVAL a LOG_INTERVAL musí být kladné"))
	}
	// Bez timeoutu by zaseknuté čidlo nebo sink zablokovaly smyčku navždy.
	if c.ReadTimeout <= 0 {
		errs = append(errs, errors.New("READ_TIMEOUT musí být kladný"))
	}
	if c.SinkTimeout <= 0 {
		errs = append(errs, errors.New("SINK_TIMEOUT musí být kladný"))
	}
	if c.HistoryHoursBack > maxHoursBack {
		errs = append(errs, fmt.Errorf("HISTORY_HOURS_BACK smí být nejvýš %d", maxHoursBack))
	}
	if c.HistoryMaxSamples <= 0 || c.HistoryMaxSamples > maxHistorySamples {
		errs = append(errs, fmt.Errorf("HISTORY_MAX_SAMPLES musí být v rozsahu 1..%d", maxHistorySamples))
	} else if c.HistoryDefaults().Count() > c.HistoryMaxSamples {
		errs = append(errs, errors.New("výchozí dotaz historie překračuje HISTORY_MAX_SAMPLES"))
	}
	if c.Mode == ModeHardware && c.Store == StoreTimescale && c.PostgresURL == "" {
		errs = append(errs, errors.New("STORE=timescale vyžaduje POSTGRES_URL"))
	}
	if c.Mode == ModeHardware && c.Store == StoreMemory && c.MemoryCapacity <= 0 {
		errs = append(errs, errors.New("MEMORY_CAPACITY musí být kladné"))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT musí být json nebo text, ne %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// HistoryDefaults vrací defaultní dotaz pro /api/history.
func (c Config) HistoryDefaults() HistoryQuery {
	return HistoryQuery{HoursBack: c.HistoryHoursBack, StepMinutes: c.HistoryStepMinutes}
}

// Sampler vrací časování a prahy pro Sampler.
func (c Config) Sampler() SamplerConfig {
	return SamplerConfig{
		ReadInterval: c.ReadInterval,
		LogInterval:  c.LogInterval,
		ReadTimeout:  c.ReadTimeout,
		AlertMin:     c.AlertTempMin,
		AlertMax:     c.AlertTempMax,
	}
}

// getEnv je pomocná funkce. Pokud klíč v OS neexistuje, vrátí fallback.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// envLoader čte typované ENV proměnné a sbírá varování o nečitelných hodnotách.
type envLoader struct {
	warnings []string
}

func (e *envLoader) warn(key, value string, fallback any) {
	e.warnings = append(e.warnings, fmt.Sprintf("%s=%q nelze přečíst, používám %v", key, value, fallback))
}

func (e *envLoader) getDuration(key string, fallback time.Duration) time.Duration {
	s, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		e.warn(key, s, fallback)
		return fallback
	}
	return d
}

func (e *envLoader) getInt(key string, fallback int) int {
	s, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		e.warn(key, s, fallback)
		return fallback
	}
	return n
}

func (e *envLoader) getFloat(key string, fallback float64) float64 {
	s, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		e.warn(key, s, fallback)
		return fallback
	}
	return f
}

func (e *envLoader) getBool(key string, fallback bool) bool {
	s, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		e.warn(key, s, fallback)
		return fallback
	}
	return b
}
