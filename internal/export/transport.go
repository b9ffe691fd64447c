package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"roomcal/internal/ics"
)

const dateStamp = "20060102"

// Filename derives the document name for a room, e.g.
// "Smith 201", "Spring 2025" -> Smith_201_Spring_2025_20250110.ics.
func Filename(room, term string, generated time.Time) string {
	return ics.Sanitize(room+" "+term+" "+generated.Format(dateStamp)) + ".ics"
}

// BundleName derives the archive name for a multi-room export.
func BundleName(term string, generated time.Time) string {
	return ics.Sanitize("rooms "+term+" "+generated.Format(dateStamp)) + ".zip"
}

// uniqueFilenames suffixes names that collide after sanitizing, such as
// "Smith 201" and "Smith-201".
func uniqueFilenames(docs []RoomDocument) {
	used := make(map[string]int, len(docs))
	for i := range docs {
		name := docs[i].Filename
		n := used[name]
		used[name] = n + 1
		if n == 0 {
			continue
		}
		base := strings.TrimSuffix(name, ".ics")
		for {
			n++
			candidate := base + "_" + strconv.Itoa(n) + ".ics"
			if used[candidate] == 0 {
				used[candidate] = 1
				docs[i].Filename = candidate
				break
			}
		}
	}
}

// WriteFiles writes each document into dir and returns the written paths.
// Files are written atomically via a temp file and rename.
func WriteFiles(dir string, res *Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(res.Documents))
	for _, d := range res.Documents {
		p := filepath.Join(dir, d.Filename)
		if err := writeAtomic(p, d.Body); err != nil {
			return paths, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// WriteBundle writes every document of res into a zip archive.
func WriteBundle(w io.Writer, res *Result) error {
	zw := zip.NewWriter(w)
	for _, d := range res.Documents {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     d.Filename,
			Method:   zip.Deflate,
			Modified: res.GeneratedAt,
		})
		if err != nil {
			zw.Close()
			return err
		}
		if _, err := fw.Write(d.Body); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

// WriteBundleFile writes the archive for res into dir under BundleName.
func WriteBundleFile(dir string, res *Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, BundleName(res.Term, res.GeneratedAt))

	tmp, err := os.CreateTemp(dir, ".roomcal-bundle-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := WriteBundle(tmp, res); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, p); err != nil {
		return "", err
	}
	return p, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".roomcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
