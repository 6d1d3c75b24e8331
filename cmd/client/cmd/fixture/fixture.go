package fixture

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bloodsheltie/internal/app/client"
	"bloodsheltie/internal/infrastructure/transport/dump"
)

var (
	outDir        string
	serial        string
	readings      int
	calibrations  int
	events        int
	displayOffset time.Duration
	seed          uint64
)

var FixtureCmd = &cobra.Command{
	Use:   "fixture",
	Short: "Создать синтетическую выгрузку приёмника",
	Long: `Пишет каталог выгрузки в формате приёмника: device.json и страницы журналов.
Показания сенсора идут каждые 5 минут и заканчиваются текущим моментом.
Выгрузку можно синхронизировать командой sync --dump.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		dir := outDir
		if dir == "" {
			dir = app.Config().DumpDir
		}

		opts := dump.FixtureOptions{
			SerialNumber:  serial,
			Start:         time.Now().UTC().Add(-time.Duration(readings) * 5 * time.Minute).Truncate(time.Second),
			Readings:      readings,
			Calibrations:  calibrations,
			Events:        events,
			DisplayOffset: displayOffset,
			Seed:          seed,
		}
		if err := app.WriteFixture(dir, opts); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Выгрузка %s записана в %s\n", serial, dir)
		return nil
	},
}

func init() {
	FixtureCmd.Flags().StringVarP(&outDir, "out", "o", "", "каталог выгрузки (по умолчанию DUMP_DIR)")
	FixtureCmd.Flags().StringVar(&serial, "serial", "SM00000001", "серийный номер приёмника")
	FixtureCmd.Flags().IntVar(&readings, "readings", 288, "число показаний сенсора")
	FixtureCmd.Flags().IntVar(&calibrations, "calibrations", 2, "число калибровок")
	FixtureCmd.Flags().IntVar(&events, "events", 4, "число событий пользователя")
	FixtureCmd.Flags().DurationVar(&displayOffset, "display-offset", 0, "смещение отображаемого времени приёмника")
	FixtureCmd.Flags().Uint64Var(&seed, "seed", 1, "зерно генератора")
}
