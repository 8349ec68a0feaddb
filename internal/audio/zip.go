package audio

import (
	"archive/zip"
	"bytes"
)

// File is one named entry destined for an archive.
type File struct {
	Name string
	Data []byte
}

// ZipFiles packages the given files into a single zip archive.
func ZipFiles(files []File) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, f := range files {
		entry, err := w.Create(f.Name)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		if _, err := entry.Write(f.Data); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
