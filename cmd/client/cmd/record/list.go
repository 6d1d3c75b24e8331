// cmd/client/cmd/record/list.go
package record

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bloodsheltie/cmd/client/cmd/output"
	"bloodsheltie/internal/app/client"
	"bloodsheltie/internal/domain/record"
	"bloodsheltie/internal/domain/sync"
)

var (
	listSerial string
	listType   string
	listSince  string
	limit      int
	offset     int
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список записей",
	Long: `Просмотр сохранённых записей с фильтрацией по приёмнику, категории и времени.

Категории: glucose_read, calibration_read, user_event.
Поддерживается пагинация через флаги --limit и --offset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		filter := sync.RecordFilter{
			SerialNumber: listSerial,
			Limit:        limit,
			Offset:       offset,
		}
		if listType != "" {
			t, err := record.ParseType(listType)
			if err != nil {
				return err
			}
			filter.Type = &t
		}
		if listSince != "" {
			since, err := time.Parse(time.RFC3339, listSince)
			if err != nil {
				return fmt.Errorf("неверное время --since: %w", err)
			}
			filter.Since = since
		}

		records, err := app.ListRecords(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("ошибка получения списка записей: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(cmd.OutOrStdout(), records)
		}
		return output.Records(cmd.OutOrStdout(), records)
	},
}

var DevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Список приёмников",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		devices, err := app.Devices(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения приёмников: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(cmd.OutOrStdout(), devices)
		}
		output.Devices(cmd.OutOrStdout(), devices)
		return nil
	},
}

func init() {
	ListCmd.Flags().StringVarP(&listSerial, "serial", "s", "", "серийный номер приёмника")
	ListCmd.Flags().StringVarP(&listType, "type", "t", "", "фильтр по категории записи")
	ListCmd.Flags().StringVar(&listSince, "since", "", "только записи не раньше (RFC3339)")
	ListCmd.Flags().IntVar(&limit, "limit", 50, "ограничение количества записей")
	ListCmd.Flags().IntVar(&offset, "offset", 0, "смещение для пагинации")
}
