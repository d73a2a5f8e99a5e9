package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/repository"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [folder]",
	Short: "Initialize a new annotation project",
	Long: `Initialize a new annotation project in a folder by creating:
- A sample configuration file (config.yaml)
- An empty SQLite database (annotations.db)
- The images directory imported images are stored in

Example:
  marcador init ./project
  marcador import -c ./project/config.yaml ./photos`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := "."
		if len(args) == 1 {
			folder = args[0]
		}
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return fmt.Errorf("failed to create project folder: %w", err)
		}

		configFile := filepath.Join(folder, "config.yaml")
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Printf("Creating default config: %s", configFile)
			if err := os.WriteFile(configFile, []byte(annotation.SampleConfig), 0o644); err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
		} else {
			log.Printf("Config file already exists: %s", configFile)
		}

		databaseFile := filepath.Join(folder, defaultDatabase)
		if _, err := os.Stat(databaseFile); os.IsNotExist(err) {
			log.Printf("Creating empty database: %s", databaseFile)
		}
		db, err := repository.Open(databaseFile)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer db.Close()

		imagesDir := filepath.Join(folder, defaultImagesDir)
		if _, err := os.Stat(imagesDir); os.IsNotExist(err) {
			log.Printf("Creating images directory: %s", imagesDir)
			if err := os.MkdirAll(imagesDir, 0o755); err != nil {
				return fmt.Errorf("failed to create images directory: %w", err)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Initialization complete! Next steps:")
		fmt.Fprintf(cmd.OutOrStdout(), "  1. Review and customize your config file: %s\n", configFile)
		fmt.Fprintf(cmd.OutOrStdout(), "  2. Import images: marcador import -c %s <folder>\n", configFile)
		fmt.Fprintf(cmd.OutOrStdout(), "  3. Annotate: marcador session -c %s <script.yaml>\n", configFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
