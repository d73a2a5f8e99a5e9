package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lewtec/marcador/internal/repository"
	"github.com/spf13/cobra"
)

// PrintRows writes a tab separated table, with a header when there is more
// than one column.
func PrintRows(w io.Writer, columns []string, rows [][]string) {
	if len(columns) > 1 {
		fmt.Fprintln(w, strings.Join(columns, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Queries the annotation database",
	Long: `Without flags, print how far the project is. With --user, list the
annotations of a user, newest first. With --history, list the past versions
of an annotation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		annotations := repository.NewAnnotationRepository(p.DB)

		if id, _ := cmd.Flags().GetInt64("history"); id != 0 {
			items, err := annotations.History(ctx, id)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					item.Action,
					strconv.Itoa(len(item.Result)),
					item.Comment,
					item.CreatedAt.Format(time.RFC3339),
				})
			}
			PrintRows(out, []string{"id", "action", "regions", "comment", "created_at"}, rows)
			return nil
		}

		if user, _ := cmd.Flags().GetString("user"); cmd.Flags().Changed("user") {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			list, err := annotations.ListByUser(ctx, user, limit, offset)
			if err != nil {
				return err
			}
			total, err := annotations.CountByUser(ctx, user)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list))
			for _, a := range list {
				rows = append(rows, []string{
					strconv.FormatInt(a.ID, 10),
					strconv.FormatInt(a.TaskID, 10),
					strconv.Itoa(len(a.Result)),
					strconv.FormatBool(a.WasCancelled),
					strconv.FormatFloat(a.LeadTime, 'f', 1, 64),
					a.CreatedAt.Format(time.RFC3339),
				})
			}
			PrintRows(out, []string{"id", "task", "regions", "cancelled", "lead_time", "created_at"}, rows)
			fmt.Fprintf(out, "%d of %d annotations by %s\n", len(list), total, user)
			return nil
		}

		stats, err := annotations.GetStats(ctx)
		if err != nil {
			return err
		}
		PrintRows(out, []string{"metric", "value"}, [][]string{
			{"tasks", strconv.FormatInt(stats.Tasks, 10)},
			{"annotated", strconv.FormatInt(stats.AnnotatedTasks, 10)},
			{"skipped", strconv.FormatInt(stats.SkippedTasks, 10)},
			{"annotations", strconv.FormatInt(stats.TotalAnnotations, 10)},
			{"drafts", strconv.FormatInt(stats.TotalDrafts, 10)},
			{"users", strconv.FormatInt(stats.TotalUsers, 10)},
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().Int64("history", 0, "Annotation to list the history of")
	queryCmd.Flags().Int("limit", 20, "Maximum amount of annotations listed")
	queryCmd.Flags().Int("offset", 0, "Annotations skipped before listing")
}
