package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bloodsheltie/internal/domain/sync"
)

const (
	defaultLogLevel       = "info"
	defaultEnv            = "local"
	defaultConfigDir      = ".sheltie"
	defaultDataFile       = "sheltie.db"
	defaultDumpDir        = "dump"
	defaultTimezone       = "Local"
	defaultSessionTimeout = 60
)

type Config struct {
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	ConfigDir      string `mapstructure:"config_dir"`
	DataPath       string `mapstructure:"data_path"`
	DumpDir        string `mapstructure:"dump_dir"`
	Timezone       string `mapstructure:"timezone"`
	SessionTimeout int    `mapstructure:"session_timeout_seconds"`
	DecodeWorkers  int    `mapstructure:"decode_workers"`
	ResetPolicy    string `mapstructure:"reset_policy"`
	ServerAddress  string `mapstructure:"server_address"`
	APIKey         string `mapstructure:"api_key"`
	EnableTLS      bool   `mapstructure:"enable_tls"`
	CACertPath     string `mapstructure:"ca_cert_path"`
}

// MustLoad загружает конфигурацию клиента и паникует при ошибке
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает окружение, необязательный .env и файл конфигурации,
// уже подключённый к viper
func Load() (*Config, error) {
	// .env ищем рядом с местом запуска, затем уровнем выше
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("ошибка загрузки .env файла: %w", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("TIMEZONE", defaultTimezone)
	viper.SetDefault("SESSION_TIMEOUT_SECONDS", defaultSessionTimeout)
	viper.SetDefault("DECODE_WORKERS", sync.DefaultWorkers)
	viper.SetDefault("RESET_POLICY", string(sync.ResetAbort))
	viper.SetDefault("ENABLE_TLS", false)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, defaultDataFile)
	}
	dumpDir := viper.GetString("DUMP_DIR")
	if dumpDir == "" {
		dumpDir = filepath.Join(configDir, defaultDumpDir)
	}

	config := &Config{
		Env:            viper.GetString("APP_ENV"),
		LogLevel:       viper.GetString("LOG_LEVEL"),
		ConfigDir:      configDir,
		DataPath:       dataPath,
		DumpDir:        dumpDir,
		Timezone:       viper.GetString("TIMEZONE"),
		SessionTimeout: viper.GetInt("SESSION_TIMEOUT_SECONDS"),
		DecodeWorkers:  viper.GetInt("DECODE_WORKERS"),
		ResetPolicy:    viper.GetString("RESET_POLICY"),
		ServerAddress:  viper.GetString("SERVER_ADDRESS"),
		APIKey:         viper.GetString("API_KEY"),
		EnableTLS:      viper.GetBool("ENABLE_TLS"),
		CACertPath:     viper.GetString("CA_CERT_PATH"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("session_timeout_seconds должен быть положительным: %d", c.SessionTimeout)
	}
	if c.DecodeWorkers <= 0 {
		return fmt.Errorf("decode_workers должен быть положительным: %d", c.DecodeWorkers)
	}
	if _, err := sync.ParseResetPolicy(c.ResetPolicy); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location часовой пояс пользовательского времени записей
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("неверный часовой пояс %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SyncConfig параметры сервиса синхронизации
func (c *Config) SyncConfig() (*sync.ServiceConfig, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	policy, err := sync.ParseResetPolicy(c.ResetPolicy)
	if err != nil {
		return nil, err
	}

	return &sync.ServiceConfig{
		SessionTimeout: time.Duration(c.SessionTimeout) * time.Second,
		Workers:        c.DecodeWorkers,
		Timezone:       loc,
		ResetPolicy:    policy,
	}, nil
}

// HasServer настроен ли сервер для push
func (c *Config) HasServer() bool {
	return c.ServerAddress != ""
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
