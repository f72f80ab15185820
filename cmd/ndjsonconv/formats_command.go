package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ndjsonconv/internal/formats"
)

func newFormatsCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "formats",
		Short:       "List supported output formats",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := formatRows(formats.Infos())
			if jsonOutput {
				return writeJSON(cmd, infos)
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.Format,
					strings.Join(info.Aliases, ", "),
					strings.Join(info.Tasks, ", "),
					info.Description,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Format", "Aliases", "Tasks", "Description"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the format list as JSON")
	return cmd
}

type formatRow struct {
	Format      string   `json:"format"`
	Aliases     []string `json:"aliases"`
	Tasks       []string `json:"tasks"`
	Description string   `json:"description"`
}

func formatRows(infos []formats.Info) []formatRow {
	out := make([]formatRow, 0, len(infos))
	for _, info := range infos {
		row := formatRow{
			Format:      string(info.Format),
			Aliases:     append([]string{}, info.Aliases...),
			Tasks:       make([]string, len(info.Tasks)),
			Description: info.Description,
		}
		for i, task := range info.Tasks {
			row.Tasks[i] = string(task)
		}
		out = append(out, row)
	}
	return out
}
