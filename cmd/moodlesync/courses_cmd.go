package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCoursesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "Fetch moodle courses and print what would be imported",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateMoodle(); err != nil {
				return err
			}

			courses, err := newProvider(cfg, log).ListCourses(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSHORTNAME\tFORMAT\tMODULES\tLESSONS\tUSERS\tNAME")
			for _, c := range courses {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
					c.ID, c.ShortName, c.Format, len(c.Program), c.LessonCount(), len(c.Users), c.FullName)
			}
			return tw.Flush()
		},
	}
}
