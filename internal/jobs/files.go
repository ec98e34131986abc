package jobs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"whisper-transcriber/internal/domain"
	"whisper-transcriber/internal/logging"
)

// ErrNoFiles is returned when a run is requested with an empty queue.
var ErrNoFiles = errors.New("no files queued")

// MediaExtensions is the allow-list of accepted containers, lower case.
var MediaExtensions = []string{
	".mp4", ".mov", ".mkv", ".avi", ".webm",
	".m4a", ".mp3", ".wav", ".aac", ".flac", ".ogg",
}

// IsMediaPath reports whether path carries an accepted extension (case-insensitive).
func IsMediaPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range MediaExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// FileQueue is the ordered pending set of inputs. It is frozen while a run
// holds its snapshot.
type FileQueue struct {
	mu     sync.Mutex
	files  []domain.MediaFile
	frozen bool
	stat   func(string) (os.FileInfo, error)
}

// NewFileQueue creates an empty pending set.
func NewFileQueue() *FileQueue {
	return &FileQueue{stat: os.Stat}
}

// Add appends accepted paths and silently skips the rest: unknown extensions,
// non-regular files, and paths already queued.
func (q *FileQueue) Add(paths ...string) ([]domain.MediaFile, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.frozen {
		return nil, ErrRunActive
	}

	added := make([]domain.MediaFile, 0, len(paths))
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !IsMediaPath(path) {
			logging.Log.Debug().Str("path", path).Msg("skip unsupported extension")
			continue
		}
		info, err := q.stat(path)
		if err != nil || !info.Mode().IsRegular() {
			logging.Log.Debug().Str("path", path).Msg("skip non-regular file")
			continue
		}
		if q.contains(path) {
			continue
		}
		file := domain.MediaFile{Path: path, Name: filepath.Base(path)}
		q.files = append(q.files, file)
		added = append(added, file)
	}
	return added, nil
}

// Clear empties the pending set.
func (q *FileQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.frozen {
		return ErrRunActive
	}
	q.files = nil
	return nil
}

// Files returns a copy of the pending set.
func (q *FileQueue) Files() []domain.MediaFile {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.MediaFile(nil), q.files...)
}

// Freeze returns the run snapshot and rejects edits until Thaw.
func (q *FileQueue) Freeze() ([]domain.MediaFile, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.frozen {
		return nil, ErrRunActive
	}
	if len(q.files) == 0 {
		return nil, ErrNoFiles
	}
	q.frozen = true
	return append([]domain.MediaFile(nil), q.files...), nil
}

// Thaw re-enables edits after a run ends.
func (q *FileQueue) Thaw() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frozen = false
}

func (q *FileQueue) contains(path string) bool {
	for _, f := range q.files {
		if f.Path == path {
			return true
		}
	}
	return false
}
