// SellerDesk CLI — операторский инструмент управления
// расписаниями и ручных прогонов планировщика.
//
// Использование:
//
//	sellerdesk [--json] <command> [flags]
//
// Команды:
//
//	schedule     Управление расписаниями
//	jobs         Каталог типов задач
//	tick         Один проход планировщика вручную
//	retry-sweep  Перевзвод зависших элементов работы
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sellerdesk/sellerdesk/internal/cli"
	"github.com/sellerdesk/sellerdesk/internal/config"
	"github.com/sellerdesk/sellerdesk/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "sellerdesk",
		Short:         "SellerDesk CLI — job scheduling operations tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	// Логи в stderr, чтобы не мешать табличному и JSON-выводу.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: telemetry.LogLevel(),
	}))

	envFn := func() *cli.Env {
		return cli.NewEnv(config.Load(), cli.NewOutput(jsonOutput), logger)
	}

	rootCmd.AddCommand(
		cli.NewScheduleCmd(envFn),
		cli.NewJobsCmd(envFn),
		cli.NewTickCmd(envFn),
		cli.NewRetrySweepCmd(envFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
