package push

import (
	"fmt"

	"github.com/spf13/cobra"

	"bloodsheltie/cmd/client/cmd/output"
	"bloodsheltie/internal/app/client"
)

var serial string

var PushCmd = &cobra.Command{
	Use:   "push",
	Short: "Отправить сохранённые данные на сервер",
	Long: `Отправляет на сервер записи, метку синхронизации и журнал сессий.
Записи уходят раньше метки, повторная отправка не создаёт дубликатов.

Требуется SERVER_ADDRESS (или --server) и API_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		res, err := app.Push(cmd.Context(), serial)
		if err != nil {
			return fmt.Errorf("ошибка отправки: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Отправлено: приёмников %d, записей %d, меток %d, сессий %d\n",
			res.Devices, res.Records, res.Tags, res.Runs)
		return nil
	},
}

func init() {
	PushCmd.Flags().StringVarP(&serial, "serial", "s", "", "только этот приёмник")
}
