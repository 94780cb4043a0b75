package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/finedu/internal/app"
	"github.com/p-n-ai/finedu/internal/catalog"
	"github.com/p-n-ai/finedu/internal/course"
	"github.com/p-n-ai/finedu/internal/report"
	"github.com/p-n-ai/finedu/internal/service"
)

// withService opens the service, runs the catalog worker for the duration of
// fn, and closes everything afterwards.
func withService(ctx context.Context, open opener, fn func(svc *service.Service) error) error {
	svc, err := open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	stop := svc.StartWorker(ctx)
	defer stop()

	return fn(svc)
}

func newReconcileCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Generate missing seed courses and list the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), open, func(svc *service.Service) error {
				err := svc.App.Reconcile(cmd.Context())
				printCatalog(cmd, svc.App.Snapshot().Courses)
				if err != nil {
					return errors.New(app.UserMessage(err))
				}
				return nil
			})
		},
	}
}

func printCatalog(cmd *cobra.Command, courses []course.Course) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDIFFICULTY\tLESSONS")
	for _, c := range courses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.ID, c.Title, c.Difficulty, len(c.Lessons))
	}
	tw.Flush()
}

func newGenerateCmd(open opener) *cobra.Command {
	var difficulty string

	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate an on-demand course for a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := course.ParseDifficulty(difficulty)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), open, func(svc *service.Service) error {
				c, err := svc.App.RequestCourse(cmd.Context(), args[0], d)
				if errors.Is(err, catalog.ErrDuplicateTopic) || catalog.IsGenerationError(err) {
					return errors.New(app.UserMessage(err))
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d lessons\n", c.ID, c.Title, len(c.Lessons))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", string(course.Beginner), "course level (beginner|intermediate)")
	return cmd
}

func newPointsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "points",
		Short: "Show the points total and the daily series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), open, func(svc *service.Service) error {
				_, days := svc.App.Points()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total: %d\n", svc.App.TotalPoints())

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DAY\tPOINTS")
				for _, d := range days {
					fmt.Fprintf(tw, "%s\t%d\n", d.Date, d.Points)
				}
				return tw.Flush()
			})
		},
	}
}

func newExportCmd(open opener) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the points history as an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), open, func(svc *service.Service) error {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				events, days := svc.App.Points()
				if err := report.WritePoints(f, events, days, svc.App.Location()); err != nil {
					f.Close()
					return fmt.Errorf("writing %s: %w", out, err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("closing %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d events to %s\n", len(events), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "pontos.xlsx", "output file")
	return cmd
}
