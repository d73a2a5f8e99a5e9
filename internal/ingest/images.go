// Package ingest fills the task queue: image folders become one task per
// image, task files bring tasks with their predictions.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v6"
	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/domain"
)

// ImageData is the task data of an ingested image.
type ImageData struct {
	Image    string `json:"image"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Original string `json:"original,omitempty"`
	// Source is the hash of the original file, so it is not decoded again
	// on the next import.
	Source string `json:"source,omitempty"`
}

// Result counts what an ingest did.
type Result struct {
	Created   int
	Duplicate int
	Failed    int
}

type ingested struct {
	path      string
	data      ImageData
	duplicate bool
	err       error
}

// Images walks the input folders, stores every decodable image in images
// under its content hash and creates a task for each one not seen before.
// jobs images are decoded at once.
func Images(ctx context.Context, repo domain.TaskRepository, images billy.Filesystem, inputs []string, jobs int) (*Result, error) {
	if jobs < 1 {
		jobs = 1
	}
	known, sources, err := knownImages(ctx, repo)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	crawledFilepaths := make(chan string, 10) // pipeline
	results := make(chan ingested, 10)

	var wg sync.WaitGroup
	ingestWorker := func(queue chan string) {
		defer wg.Done()
		for path := range queue {
			results <- ingestFile(path, images, sources)
		}
	}
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go ingestWorker(crawledFilepaths)
	}

	walkErr := make(chan error, 1)
	go func() {
		defer close(crawledFilepaths)
		for _, input := range inputs {
			err := filepath.WalkDir(input, func(path string, info fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() {
					return nil
				}
				select {
				case crawledFilepaths <- path:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil {
				walkErr <- fmt.Errorf("while walking '%s': %w", input, err)
				return
			}
		}
		walkErr <- nil
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	ret := &Result{}
	var createErr error
	for res := range results {
		if createErr != nil {
			continue
		}
		if res.err != nil {
			log.Printf("ingest: skipping '%s': %s", res.path, res.err)
			ret.Failed++
			continue
		}
		if res.duplicate || known[res.data.Image] {
			log.Printf("ingest: '%s' already imported as %s", res.path, res.data.Image)
			ret.Duplicate++
			continue
		}
		data, err := json.Marshal(res.data)
		if err != nil {
			createErr = err
			cancel()
			continue
		}
		if _, err := repo.Create(ctx, data); err != nil {
			createErr = fmt.Errorf("while creating task for '%s': %w", res.path, err)
			cancel()
			continue
		}
		known[res.data.Image] = true
		ret.Created++
	}
	if createErr != nil {
		return nil, createErr
	}
	if err := <-walkErr; err != nil {
		return nil, err
	}
	log.Printf("ingest: %d tasks created, %d duplicates, %d files skipped", ret.Created, ret.Duplicate, ret.Failed)
	return ret, nil
}

// ingestFile is called from several workers; sources is only read.
func ingestFile(path string, images billy.Filesystem, sources map[string]string) ingested {
	hash, err := annotation.HashFile(path)
	if err != nil {
		return ingested{path: path, err: err}
	}
	if name, ok := sources[hash]; ok {
		return ingested{path: path, data: ImageData{Image: name, Source: hash}, duplicate: true}
	}
	img, err := annotation.DecodeImage(path)
	if err != nil {
		return ingested{path: path, err: err}
	}
	log.Printf("ingest: found image '%s'", path)
	name, err := annotation.IngestImage(img, images)
	if err != nil {
		return ingested{path: path, err: fmt.Errorf("while storing image: %w", err)}
	}
	b := img.Bounds()
	return ingested{path: path, data: ImageData{
		Image:    name,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Original: path,
		Source:   hash,
	}}
}

// knownImages returns the stored image names and, by original file hash,
// the image each source file became.
func knownImages(ctx context.Context, repo domain.TaskRepository) (map[string]bool, map[string]string, error) {
	tasks, err := repo.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("while listing tasks: %w", err)
	}
	known := make(map[string]bool, len(tasks))
	sources := make(map[string]string, len(tasks))
	for _, t := range tasks {
		var data ImageData
		if err := json.Unmarshal(t.Data, &data); err != nil || data.Image == "" {
			continue
		}
		known[data.Image] = true
		if data.Source != "" {
			sources[data.Source] = data.Image
		}
	}
	return known, sources, nil
}
