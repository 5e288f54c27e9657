package imgcap

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// imageExts are the extensions, lowercase and without the dot, picked up when
// listing a directory.
var imageExts = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"bmp":  {},
}

// IsImagePath reports whether path has one of the image extensions scanned
// for in directories. The comparison is case-insensitive.
func IsImagePath(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	_, ok := imageExts[ext]
	return ok
}

// CollectImagePaths expands paths into a flat list of files to caption.
// Files are included verbatim. Directories contribute their image files,
// descending into subdirectories only when recursive is set. The order is
// argument order and then lexical order within each directory.
func CollectImagePaths(paths []string, recursive bool) ([]string, error) {
	var images []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			images = append(images, p)
			continue
		}

		var found []string
		if recursive {
			found, err = walkImages(p)
		} else {
			found, err = listImages(p)
		}
		if err != nil {
			return nil, err
		}
		images = append(images, found...)
	}

	return images, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() || !IsImagePath(e.Name()) {
			continue
		}
		images = append(images, filepath.Join(dir, e.Name()))
	}

	return images, nil
}

func walkImages(root string) ([]string, error) {
	var images []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImagePath(path) {
			images = append(images, path)
		}

		return nil
	})

	return images, err
}
