package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/replay"
	"github.com/lewtec/marcador/internal/repository"
	"github.com/spf13/cobra"
)

const watchDebounce = 200 * time.Millisecond

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session <script.yaml>",
	Short: "Run an editing session from a script of user actions",
	Long: `Open an editor session on the project database and play a script of user
actions against it: loading tasks, picking tools, dragging and clicking on the
canvas, pressing hotkeys, submitting, skipping and saving drafts.

Example script:
  steps:
    - load: next
    - tool: rectangle
      control: label
      labels: [car]
    - drag: [[10, 10], [120, 80]]
    - do: submit

With --watch the script runs again every time it is saved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		scriptFile := args[0]
		run := func(ctx context.Context) error {
			script, err := replay.LoadScript(scriptFile)
			if err != nil {
				return fmt.Errorf("failed to load script: %w", err)
			}
			runner, err := replay.New(p.Config, repository.NewBackend(p.DB, p.User))
			if err != nil {
				return err
			}
			defer runner.Close()
			runner.ImagesDir = p.path(defaultImagesDir)
			if lang, _ := cmd.Flags().GetString("language"); lang != "" {
				ctx = annotation.WithLocalizer(ctx, annotation.GetLocalizerForLanguages(lang))
			}
			sum, err := runner.Run(ctx, script)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		}

		if err := run(cmd.Context()); err != nil {
			return err
		}
		if watch, _ := cmd.Flags().GetBool("watch"); !watch {
			return nil
		}
		return watchScript(cmd.Context(), scriptFile, func() {
			if err := run(cmd.Context()); err != nil {
				log.Printf("session: %s", err)
			}
		})
	},
}

func printSummary(w io.Writer, sum *replay.Summary) {
	if sum.NoTask {
		fmt.Fprintf(w, "no more tasks; %d steps, %d ignored\n", sum.Steps, sum.Ignored)
		return
	}
	fmt.Fprintf(w, "task %d (%d/%d): %d regions; %d steps, %d ignored\n",
		sum.TaskID, sum.QueuePosition, sum.QueueTotal, sum.Regions, sum.Steps, sum.Ignored)
}

// watchScript calls fn after every change of filename until ctx is done.
func watchScript(ctx context.Context, filename string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// editors replace files on save, so the folder is watched
	if err := watcher.Add(filepath.Dir(filename)); err != nil {
		return err
	}
	target := filepath.Clean(filename)
	log.Printf("session: watching %s", filename)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			switch {
			case event.Op&fsnotify.Create == fsnotify.Create, event.Op&fsnotify.Write == fsnotify.Write:
				pending = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("session: watcher error: %s", err)
		case <-pending:
			pending = nil
			log.Printf("session: %s changed, running it again", filename)
			fn()
		}
	}
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.Flags().BoolP("watch", "w", false, "Run the script again whenever it changes")
	sessionCmd.Flags().StringP("language", "l", "", "Language of the messages, defaults to the one of the config")
}
