package sync

import (
	"fmt"

	"github.com/spf13/cobra"

	"bloodsheltie/cmd/client/cmd/output"
	"bloodsheltie/internal/app/client"
)

var (
	dumpDir    string
	syncStatus bool
	remote     bool
	runsLimit  int
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизировать приёмник",
	Long: `Синхронизация журналов приёмника.

Запрашиваются только страницы новее метки синхронизации. Метка продвигается
только если сессия завершилась успешно; при ошибке, тайм-ауте или сбросе
приёмника она остаётся прежней.

С флагом --status показывается журнал последних сессий.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if syncStatus {
			return showStatus(cmd, app, jsonOutput)
		}

		run := app.Sync
		if remote {
			run = app.SyncRemote
		}

		res, syncErr := run(cmd.Context(), dumpDir)
		if res == nil {
			return fmt.Errorf("ошибка синхронизации: %w", syncErr)
		}

		if jsonOutput {
			if err := output.JSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			output.Result(cmd.OutOrStdout(), res, syncErr)
		}

		if syncErr != nil {
			return fmt.Errorf("синхронизация прервана: %w", syncErr)
		}
		return nil
	},
}

func showStatus(cmd *cobra.Command, app *client.App, jsonOutput bool) error {
	devices, err := app.Devices(cmd.Context())
	if err != nil {
		return fmt.Errorf("ошибка получения приёмников: %w", err)
	}

	w := cmd.OutOrStdout()
	for _, d := range devices {
		runs, err := app.SyncRuns(cmd.Context(), d.SerialNumber, runsLimit)
		if err != nil {
			return fmt.Errorf("ошибка получения журнала %s: %w", d.SerialNumber, err)
		}

		if jsonOutput {
			if err := output.JSON(w, runs); err != nil {
				return err
			}
			continue
		}

		fmt.Fprintf(w, "=== %s (%d записей) ===\n", d.SerialNumber, d.RecordCount)
		output.Runs(w, runs)
		fmt.Fprintln(w)
	}

	if len(devices) == 0 && !jsonOutput {
		fmt.Fprintln(w, "Синхронизаций ещё не было")
	}
	return nil
}

func init() {
	SyncCmd.Flags().StringVarP(&dumpDir, "dump", "d", "", "каталог выгрузки приёмника (по умолчанию DUMP_DIR)")
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать журнал сессий")
	SyncCmd.Flags().BoolVar(&remote, "remote", false, "сохранять сразу на сервер")
	SyncCmd.Flags().IntVar(&runsLimit, "runs", 10, "сколько сессий показывать в --status")
}
