// Package files lists folders and packs them into archives for sending.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/deckshare/localsend-bridge/internal/diskspace"
	"github.com/deckshare/localsend-bridge/internal/util/buffers"
)

// ErrInvalidFolder is returned for an empty path or one that is not a
// directory.
var ErrInvalidFolder = errors.New("invalid folder path")

// archiveSpaceMargin is the free space required per input byte. Zip
// overhead on incompressible data stays well below it.
const archiveSpaceMargin = 1.05

// Entry is one file found under a folder.
type Entry struct {
	Path        string `json:"path"`        // absolute path
	DisplayPath string `json:"displayPath"` // folder name + relative path
	FileName    string `json:"fileName"`
	Size        int64  `json:"-"`
}

// Listing is the recursive content of a folder.
type Listing struct {
	FolderName string  `json:"folderName"`
	Files      []Entry `json:"files"`
}

// ListFolder walks folder recursively and returns every regular file.
func ListFolder(folder string) (Listing, error) {
	if err := validateFolder(folder); err != nil {
		return Listing{}, err
	}
	root := filepath.Clean(folder)
	base := filepath.Base(root)

	listing := Listing{FolderName: base, Files: []Entry{}}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		listing.Files = append(listing.Files, Entry{
			Path:        abs,
			DisplayPath: filepath.Join(base, rel),
			FileName:    d.Name(),
			Size:        info.Size(),
		})
		return nil
	})
	if err != nil {
		return Listing{}, fmt.Errorf("failed to list folder: %w", err)
	}
	return listing, nil
}

func validateFolder(folder string) error {
	if strings.TrimSpace(folder) == "" {
		return ErrInvalidFolder
	}
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return ErrInvalidFolder
	}
	return nil
}

// Archive describes a prepared upload.
type Archive struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	FileType string `json:"file_type"`
}

// ProgressFunc receives bytes written so far and the total to write.
type ProgressFunc func(done, total int64)

// PrepareFolderUpload packs folder into <outDir>/<folder name>.zip. Entries
// are rooted at the folder name so the receiver recreates the folder.
func PrepareFolderUpload(ctx context.Context, folder, outDir string, progress ProgressFunc) (Archive, error) {
	listing, err := ListFolder(folder)
	if err != nil {
		return Archive{}, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Archive{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	var total int64
	for _, f := range listing.Files {
		total += f.Size
	}

	if err := diskspace.CheckAvailableSpace(outDir, total, archiveSpaceMargin); err != nil {
		return Archive{}, err
	}

	name := listing.FolderName + ".zip"
	outPath := filepath.Join(outDir, name)
	tmp, err := os.CreateTemp(outDir, "."+name+".*.tmp")
	if err != nil {
		return Archive{}, fmt.Errorf("failed to create archive: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	zw := zip.NewWriter(tmp)
	var done int64
	for _, f := range listing.Files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			cleanup()
			return Archive{}, err
		}
		n, err := addFile(zw, f, func(written int64) {
			if progress != nil {
				progress(done+written, total)
			}
		})
		if err != nil {
			zw.Close()
			cleanup()
			return Archive{}, err
		}
		done += n
	}

	if err := zw.Close(); err != nil {
		cleanup()
		return Archive{}, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Archive{}, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return Archive{}, fmt.Errorf("failed to move archive into place: %w", err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return Archive{}, fmt.Errorf("archive not created: %w", err)
	}
	return Archive{
		Path:     outPath,
		FileName: name,
		Size:     info.Size(),
		FileType: "application/zip",
	}, nil
}

func addFile(zw *zip.Writer, f Entry, progress func(int64)) (int64, error) {
	src, err := os.Open(f.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = filepath.ToSlash(f.DisplayPath)
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return 0, fmt.Errorf("failed to add %s: %w", f.DisplayPath, err)
	}
	n, err := buffers.Copy(dst, &progressReader{r: src, fn: progress})
	if err != nil {
		return n, fmt.Errorf("failed to compress %s: %w", f.DisplayPath, err)
	}
	return n, nil
}

type progressReader struct {
	r  io.Reader
	n  int64
	fn func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.n += int64(n)
	if n > 0 {
		p.fn(p.n)
	}
	return n, err
}
