package record

import "github.com/spf13/cobra"

var RecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Сохранённые записи",
	Long:  `Просмотр записей и приёмников в локальном хранилище.`,
}
