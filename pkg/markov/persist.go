package markov

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// archiveEntryName is the name of the single entry written by SaveTo. Load
// does not rely on it and always reads the first entry.
const archiveEntryName = "memory.dat"

// Load reads a model from a zip archive previously written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFile, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFile, err)
	}
	return LoadFrom(f, info.Size())
}

// LoadFrom reads a model from a zip archive of the given size. The first
// entry of the archive is decoded regardless of its name.
func LoadFrom(r io.ReaderAt, size int64) (*Model, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadArchive, err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrReadFirstEntry, errNoEntries)
	}
	entry, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFirstEntry, err)
	}
	defer func(entry io.ReadCloser) {
		_ = entry.Close()
	}(entry)

	return Decode(entry)
}

// Save writes the model to path as a zip archive holding one deflated
// entry with the binary encoding. The file is written in place; if saving
// fails partway the file is left incomplete.
func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateFile, err)
	}
	if err = m.SaveTo(f); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrCreateFile, err)
	}

	m.log().Info("Model saved",
		slog.String("path", path),
		slog.Int("contexts", len(m.chains)),
	)
	return nil
}

// SaveTo writes the model archive to w.
func (m *Model) SaveTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:   archiveEntryName,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateEntry, err)
	}
	if err = m.Encode(entry); err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrCreateEntry, err)
	}
	return nil
}
