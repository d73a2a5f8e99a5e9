package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/repository"
	"github.com/spf13/cobra"
)

const defaultDatabase = "annotations.db"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marcador",
	Short: "Annotate regions of images from the terminal",
	Long: strings.TrimSpace(`
Draw boxes, polygons, points and masks on images, keep them as drafts and
submit them to a local annotation database that can be exported later.
    `),
	SilenceUsage: true,
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "Project config file")
	rootCmd.PersistentFlags().StringP("database", "d", "", "Database file, defaults to the one named in the config")
	rootCmd.PersistentFlags().StringP("user", "u", "", "Name recorded on annotations, defaults to $USER")
}

// project is an opened annotation project.
type project struct {
	Config     *annotation.Config
	ConfigFile string
	Database   string
	DB         *sql.DB
	User       string
}

func (p *project) Close() error {
	return p.DB.Close()
}

// Dir is the folder holding the config, relative paths in the config are
// resolved against it.
func (p *project) Dir() string {
	return filepath.Dir(p.ConfigFile)
}

func (p *project) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.Dir(), name)
}

func openProject(cmd *cobra.Command) (*project, error) {
	configFile, _ := cmd.Flags().GetString("config")
	config, err := annotation.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	annotation.SetLanguage(config.Language)

	p := &project{Config: config, ConfigFile: configFile}

	p.Database, _ = cmd.Flags().GetString("database")
	if p.Database == "" {
		p.Database = config.Database
		if p.Database == "" {
			p.Database = defaultDatabase
		}
		p.Database = p.path(p.Database)
	}

	p.User, _ = cmd.Flags().GetString("user")
	if p.User == "" {
		p.User = os.Getenv("USER")
	}
	if p.User == "" {
		p.User = "annotator"
	}

	p.DB, err = repository.Open(p.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return p, nil
}
