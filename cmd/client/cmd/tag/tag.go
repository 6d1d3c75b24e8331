package tag

import (
	"fmt"

	"github.com/spf13/cobra"

	"bloodsheltie/cmd/client/cmd/output"
	"bloodsheltie/internal/app/client"
)

var TagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Метки синхронизации",
	Long:  `Просмотр и сброс меток синхронизации приёмников.`,
}

var ShowCmd = &cobra.Command{
	Use:   "show SERIAL",
	Short: "Показать метку приёмника",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		tag, err := app.Status(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ошибка получения метки: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(cmd.OutOrStdout(), tag)
		}
		output.Tag(cmd.OutOrStdout(), args[0], tag)
		return nil
	},
}

var ResetCmd = &cobra.Command{
	Use:   "reset SERIAL",
	Short: "Сбросить метку приёмника",
	Long: `Удаляет метку синхронизации. Следующая синхронизация запросит все страницы;
уже сохранённые записи не дублируются.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		if err := app.ResetTag(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("ошибка сброса метки: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Метка %s сброшена\n", args[0])
		return nil
	},
}
