package annotation

import (
	"crypto/sha256"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/go-git/go-billy/v6"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// ImageSize is the natural size of an image, EXIF orientation applied.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func DecodeImage(filepath string) (image.Image, error) {
	return imaging.Open(filepath, imaging.AutoOrientation(true))
}

// MeasureImage returns the size the viewport uses as natural size.
func MeasureImage(filepath string) (*ImageSize, error) {
	m, err := DecodeImage(filepath)
	if err != nil {
		return nil, fmt.Errorf("while decoding '%s': %w", filepath, err)
	}
	b := m.Bounds()
	return &ImageSize{Width: b.Dx(), Height: b.Dy()}, nil
}

// IngestImage stores img as a PNG named after its content hash and returns
// that name. Ingesting the same image twice yields the same file.
func IngestImage(img image.Image, fs billy.Filesystem) (string, error) {
	tempFile := fmt.Sprintf("%s.png", uuid.New())
	f, err := fs.Create(tempFile)
	if err != nil {
		return "", err
	}
	hasher := sha256.New()
	w := io.MultiWriter(f, hasher)
	err = png.Encode(w, img)
	if err != nil {
		f.Close()
		fs.Remove(tempFile)
		return "", err
	}
	err = f.Close()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%x.png", hasher.Sum(nil))
	if _, err := fs.Stat(name); err == nil {
		fs.Remove(tempFile)
		return name, nil
	}
	err = fs.Rename(tempFile, name)
	if err != nil {
		fs.Remove(tempFile)
		// a concurrent ingest of the same image won
		if _, statErr := fs.Stat(name); statErr == nil {
			return name, nil
		}
		return "", err
	}
	return name, nil
}
