package cli

import (
	"github.com/spf13/cobra"

	"github.com/sellerdesk/sellerdesk/internal/domain"
)

// NewJobsCmd создаёт группу команд каталога типов задач.
func NewJobsCmd(envFn func() *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Job type catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known job types",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			defer env.Close()

			types := domain.JobTypes()

			headers := []string{"TYPE", "NAME", "KIND", "DEFAULT_FREQUENCY"}
			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{t.Type, t.Name, t.Kind, string(t.DefaultFrequency)}
			}

			env.out.Print(headers, rows, types)
			return nil
		},
	})

	return cmd
}
