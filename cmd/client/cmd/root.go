// cmd/client/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"
	"golang.org/x/term"

	"bloodsheltie/cmd/client/cmd/fixture"
	"bloodsheltie/cmd/client/cmd/push"
	"bloodsheltie/cmd/client/cmd/record"
	"bloodsheltie/cmd/client/cmd/sync"
	"bloodsheltie/cmd/client/cmd/tag"
	"bloodsheltie/internal/app/client"
	"bloodsheltie/internal/app/client/config"
	"bloodsheltie/internal/utils/logger"
)

var (
	cfgFile    string
	cfg        *config.Config
	log        *slog.Logger
	app        *client.App
	debug      bool
	jsonOutput bool
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "sheltie",
	Short: "sheltie - синхронизация журналов приёмника CGM",
	Long: `sheltie читает журналы приёмника непрерывного мониторинга глюкозы,
декодирует показания сенсора, калибровки и события пользователя
и сохраняет их локально.

Каждая синхронизация запрашивает только страницы новее метки синхронизации,
поэтому повторный запуск дешёвый. Сохранённые данные можно отправить на сервер
командой push.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Ошибка:"), err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	// Цвет только для терминала
	color.NoColor = color.NoColor || jsonOutput || !term.IsTerminal(int(os.Stdout.Fd()))

	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	log = logger.NewWithLevel(cfg.Env, cfg.LogLevel)

	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(client.WithApp(ctx, app))

	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if app == nil {
		return nil
	}
	return app.Close()
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Ищем конфиг в стандартных местах
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		viper.AddConfigPath(filepath.Join(home, ".sheltie"))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return config.Load()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера (host:port)")

	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(fixture.FixtureCmd)
	rootCmd.AddCommand(push.PushCmd)

	rootCmd.AddCommand(tag.TagCmd)
	tag.TagCmd.AddCommand(tag.ShowCmd)
	tag.TagCmd.AddCommand(tag.ResetCmd)

	rootCmd.AddCommand(record.RecordCmd)
	record.RecordCmd.AddCommand(record.ListCmd)
	record.RecordCmd.AddCommand(record.DevicesCmd)
}
