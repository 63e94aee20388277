package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/roster/internal/cli/appctx"
	"github.com/lherron/roster/internal/merge"
)

type relationInfo struct {
	Name      string `json:"name" yaml:"name"`
	Table     string `json:"table" yaml:"table"`
	OtherKey  string `json:"other_key,omitempty" yaml:"other_key,omitempty"`
	Unique    bool   `json:"unique" yaml:"unique"`
	ReportKey string `json:"report_key" yaml:"report_key"`
}

func newRelationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relations",
		Short: "List the dependent relations a merge moves",
		Args:  cobra.NoArgs,
		RunE: appctx.WithApp(appctx.Options{}, func(app *appctx.App, cmd *cobra.Command, args []string) error {
			catalog := merge.DefaultCatalog()
			infos := make([]relationInfo, 0, len(catalog))
			rows := make([][]string, 0, len(catalog))
			for _, rel := range catalog {
				infos = append(infos, relationInfo{
					Name:      rel.Name,
					Table:     rel.Table,
					OtherKey:  rel.OtherKey,
					Unique:    rel.Unique,
					ReportKey: rel.ReportKey,
				})
				unique := "no"
				if rel.Unique {
					unique = "yes"
				}
				key := rel.OtherKey
				if key == "" {
					key = "-"
				}
				rows = append(rows, []string{rel.ReportKey, rel.Table, key, unique})
			}
			r, err := newRenderer(app, cmd)
			if err != nil {
				return err
			}
			return r.Render(infos, []string{"REPORT KEY", "TABLE", "OTHER KEY", "UNIQUE"}, rows)
		}),
	}
}
