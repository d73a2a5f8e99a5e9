package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/lewtec/marcador/internal/ingest"
	"github.com/lewtec/marcador/internal/repository"
	"github.com/spf13/cobra"
)

const defaultImagesDir = "images"

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <folder|tasks.json>...",
	Short: "Create tasks from folders of images or task files",
	Long: `Import every image found under the given folders into the images directory
of the project, named after their content so the same image is never imported
twice, and create one task per image.

JSON files are read as a list of tasks:
  [{"data": {...}, "predictions": [...], "allow_postpone": false}]`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
			return err
		}
		for i, input := range args {
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("on %dth argument: %w", i+1, err)
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		imagesDir, _ := cmd.Flags().GetString("images")
		if imagesDir == "" {
			imagesDir = p.path(defaultImagesDir)
		}
		if err := os.MkdirAll(imagesDir, 0o755); err != nil {
			return err
		}
		jobs, _ := cmd.Flags().GetUint("jobs")

		repo := repository.NewTaskRepository(p.DB)
		var folders []string
		total := 0
		for _, input := range args {
			if strings.EqualFold(filepath.Ext(input), ".json") {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				res, err := ingest.Tasks(cmd.Context(), repo, f)
				f.Close()
				if err != nil {
					return fmt.Errorf("while importing '%s': %w", input, err)
				}
				total += res.Created
				continue
			}
			folders = append(folders, input)
		}
		if len(folders) > 0 {
			res, err := ingest.Images(cmd.Context(), repo, osfs.New(imagesDir), folders, int(jobs))
			if err != nil {
				return err
			}
			total += res.Created
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d tasks imported\n", total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringP("images", "i", "", "Directory images are stored in, defaults to images/ next to the config")
	importCmd.Flags().UintP("jobs", "j", 1, "Amount of concurrent ingestors")
}
