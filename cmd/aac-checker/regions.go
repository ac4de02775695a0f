package main

import (
	"fmt"

	"github.com/ngmaloney/aac-checker/internal/region"
	"github.com/spf13/cobra"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the regions accepted by --region",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		for _, r := range region.Catalog() {
			if r.BBox != nil {
				fmt.Fprintf(w, "%s\t(emprise %.1f,%.1f %.1f,%.1f)\n", r.Name, r.BBox.Min.X(), r.BBox.Min.Y(), r.BBox.Max.X(), r.BBox.Max.Y())
				continue
			}
			fmt.Fprintln(w, r.Name)
		}
	},
}
