package main

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/lewtec/marcador/internal/export"
	"github.com/lewtec/marcador/internal/repository"
	"github.com/spf13/cobra"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <output>",
	Short: "Write the tasks and their annotations to a file",
	Long: `Write every task with its annotations as JSON, or one task per line with
--format jsonl. The output file is only replaced once the export is complete.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}
		onlyAnnotated, _ := cmd.Flags().GetBool("only-annotated")
		withPredictions, _ := cmd.Flags().GetBool("predictions")

		p, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		output, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		n, err := export.Export(cmd.Context(), repository.NewTaskRepository(p.DB),
			osfs.New(filepath.Dir(output)), filepath.Base(output), export.Options{
				Format:          format,
				OnlyAnnotated:   onlyAnnotated,
				WithPredictions: withPredictions,
			})
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d tasks exported to %s\n", n, output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("format", "f", "json", "Output format, json or jsonl")
	exportCmd.Flags().Bool("only-annotated", false, "Leave out tasks nobody annotated")
	exportCmd.Flags().Bool("predictions", false, "Include model predictions")
}
