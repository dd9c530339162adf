package steps

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	// StepTypeCompress — тип шага упаковки в zip-архив.
	StepTypeCompress = "compress"

	configArchive = "archive"
	configFiles   = "files"
	configLevel   = "level"
)

// CompressStep — упаковывает файлы в zip-архив.
//
// Конфигурация:
//
//	{
//	    "archive": "build.zip",
//	    "files": [
//	        {"src": ["**"], "cwd": "dest/build/", "dest": ""}
//	    ],
//	    "level": "store"   // "store" — без сжатия, по умолчанию deflate
//	}
//
// src — шаблоны относительно cwd; "**" совпадает с любым числом директорий.
// dest — префикс пути внутри архива.
//
// Outputs:
//
//	{"archive": "build.zip", "files": 12, "bytes": 40960}
type CompressStep struct{}

// NewCompressStep создаёт новый CompressStep.
func NewCompressStep() *CompressStep {
	return &CompressStep{}
}

// Type возвращает тип шага.
func (s *CompressStep) Type() string {
	return StepTypeCompress
}

// fileSet — одна группа файлов для архива.
type fileSet struct {
	Src  []string
	Cwd  string
	Dest string
}

// archiveEntry — файл на диске и его имя в архиве.
type archiveEntry struct {
	path string
	name string
}

// Execute собирает архив.
func (s *CompressStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	options, err := req.RenderOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, StepTypeCompress, err)
	}

	archive := GetConfigString(options, configArchive)
	if archive == "" {
		return nil, fmt.Errorf("%w: %s: archive is required", ErrInvalidConfig, StepTypeCompress)
	}
	sets, err := parseFileSets(options)
	if err != nil {
		return nil, err
	}

	root := req.workDir()
	archivePath := resolveDir(root, archive)

	entries, err := collectEntries(root, sets, archivePath)
	if err != nil {
		return nil, err
	}

	method := zip.Deflate
	if GetConfigString(options, configLevel) == "store" {
		method = zip.Store
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	size, err := writeArchive(ctx, archivePath, entries, method)
	if err != nil {
		os.Remove(archivePath)
		return nil, err
	}

	req.Logger().Info("archive created", "archive", archive, "files", len(entries), "bytes", size)

	return NewResponse(map[string]any{
		"archive": archive,
		"files":   len(entries),
		"bytes":   size,
	}), nil
}

// parseFileSets разбирает опцию files.
func parseFileSets(options map[string]any) ([]fileSet, error) {
	raw, ok := options[configFiles].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s: files is required", ErrInvalidConfig, StepTypeCompress)
	}

	sets := make([]fileSet, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s: files[%d] must be an object", ErrInvalidConfig, StepTypeCompress, i)
		}
		set := fileSet{
			Src:  GetConfigStrings(m, "src"),
			Cwd:  GetConfigString(m, "cwd"),
			Dest: GetConfigString(m, "dest"),
		}
		if len(set.Src) == 0 {
			return nil, fmt.Errorf("%w: %s: files[%d].src is required", ErrInvalidConfig, StepTypeCompress, i)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// collectEntries обходит cwd каждой группы и отбирает файлы по шаблонам.
// Сам архив в него не попадает.
func collectEntries(root string, sets []fileSet, archivePath string) ([]archiveEntry, error) {
	absArchive, _ := filepath.Abs(archivePath)
	seen := make(map[string]bool)
	var entries []archiveEntry

	for _, set := range sets {
		base := resolveDir(root, set.Cwd)
		if base == "" {
			base = "."
		}

		err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if abs, _ := filepath.Abs(p); abs == absArchive {
				return nil
			}

			rel, err := filepath.Rel(base, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if !matchAny(set.Src, rel) {
				return nil
			}

			name := path.Join(strings.TrimPrefix(filepath.ToSlash(set.Dest), "/"), rel)
			if seen[name] {
				return nil
			}
			seen[name] = true
			entries = append(entries, archiveEntry{path: p, name: name})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("collect files from %s: %w", base, err)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}

// writeArchive пишет zip-архив и возвращает его размер.
func writeArchive(ctx context.Context, archivePath string, entries []archiveEntry, method uint16) (int64, error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return 0, fmt.Errorf("%w: %v", ErrStepCancelled, err)
		}
		if err := addFile(zw, e, method); err != nil {
			zw.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finalize archive: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	return info.Size(), nil
}

// addFile добавляет один файл в архив.
func addFile(zw *zip.Writer, e archiveEntry, method uint16) error {
	src, err := os.Open(e.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", e.path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", e.path, err)
	}
	header.Name = e.name
	header.Method = method

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", e.name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write %s: %w", e.name, err)
	}
	return nil
}

// matchAny проверяет путь по списку шаблонов.
// Шаблон с префиксом "!" исключает совпавшие пути.
func matchAny(patterns []string, rel string) bool {
	matched := false
	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			if matchGlob(neg, rel) {
				matched = false
			}
			continue
		}
		if matchGlob(p, rel) {
			matched = true
		}
	}
	return matched
}

// matchGlob сопоставляет путь (через "/") с шаблоном,
// где "**" совпадает с любым числом сегментов.
func matchGlob(pattern, rel string) bool {
	if pattern == "**" {
		return true
	}
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		parts := strings.Split(rel, "/")
		for i := range parts {
			if matchGlob(rest, strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		parts := strings.Split(rel, "/")
		for i := 1; i < len(parts); i++ {
			if m, _ := path.Match(prefix, strings.Join(parts[:i], "/")); m {
				return true
			}
		}
		return false
	}
	m, _ := path.Match(pattern, rel)
	return m
}
