package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	// FilePrefix and FileExtension make up the name of every remote player
	// save file: RemotePlayer<N>.miniplayersave
	FilePrefix    = "RemotePlayer"
	FileExtension = ".miniplayersave"
)

// Loader reads the raw contents of a save file.
type Loader interface {
	LoadFile(path string) (string, error)
}

// FileLoader reads save files from the local filesystem.
type FileLoader struct{}

func (FileLoader) LoadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ListFunc enumerates the save files that currently exist.
type ListFunc func() ([]string, error)

// ListSaveFiles returns the remote player save files in dir, sorted by name.
func ListSaveFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, FilePrefix+"*"+FileExtension))
}

// FindExistingSaveFile returns the first file whose stored token matches token.
// Files that can't be read or whose first line isn't a valid token are skipped.
func FindExistingSaveFile(files []string, token Token, loader Loader, logger logrus.FieldLogger) (string, bool) {
	for _, file := range files {
		stored, err := readStoredToken(file, loader)
		if err != nil {
			logger.Warnf("skipping remote player file %s: %v", file, err)
			continue
		}
		if stored.Equal(token) {
			return file, true
		}
	}
	return "", false
}

func readStoredToken(path string, loader Loader) (Token, error) {
	content, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	firstLine, _, _ := strings.Cut(content, "\n")
	return ParseToken(strings.TrimSpace(firstLine))
}

// Store maps identity tokens to save files in a single directory. One Store is
// shared by every session on a server.
type Store struct {
	dir     string
	list    ListFunc
	logger  logrus.FieldLogger
	lookups *gocache.Cache

	// Serializes persists so that two new identities never reserve the same file.
	persistMu sync.Mutex

	// Loader is used for every save file read. Defaults to FileLoader.
	Loader Loader
}

// NewStore creates a Store for the save files in dir. Resolved token -> file
// mappings are remembered for lookupTTL; a remembered file is still checked
// before it's used.
func NewStore(dir string, list ListFunc, logger logrus.FieldLogger, lookupTTL time.Duration) *Store {
	if list == nil {
		list = func() ([]string, error) { return ListSaveFiles(dir) }
	}
	return &Store{
		dir:     dir,
		list:    list,
		logger:  logger,
		lookups: gocache.New(lookupTTL, 2*lookupTTL),
		Loader:  FileLoader{},
	}
}

// Lookup returns the save file belonging to token, if there is one.
func (s *Store) Lookup(token Token) (string, bool) {
	key := token.String()
	if cached, ok := s.lookups.Get(key); ok {
		path := cached.(string)
		if stored, err := readStoredToken(path, s.Loader); err == nil && stored.Equal(token) {
			return path, true
		}
		s.lookups.Delete(key)
	}

	files, err := s.list()
	if err != nil {
		s.logger.Errorf("failed to enumerate remote player files: %v", err)
		return "", false
	}

	path, ok := FindExistingSaveFile(files, token, s.Loader, s.logger)
	if ok {
		s.lookups.SetDefault(key, path)
		s.logger.Debugf("remote player file found for %s: %s", token, filepath.Base(path))
	}
	return path, ok
}

// Load returns the player data stored for token, without the token line. A
// token that has never been saved returns an empty string.
func (s *Store) Load(token Token) (string, error) {
	if len(token) == 0 {
		return "", ErrNoHardwareAddress
	}

	path, ok := s.Lookup(token)
	if !ok {
		return "", nil
	}

	content, err := s.Loader.LoadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read remote player file %s: %w", path, err)
	}

	_, playerData, found := strings.Cut(content, "\n")
	if !found {
		return "", nil
	}
	return strings.TrimSuffix(playerData, "\n"), nil
}

// Persist writes playerData to the save file belonging to token, creating a
// new file if the token has none yet. The whole file is rewritten. The path of
// the written file is returned.
func (s *Store) Persist(token Token, playerData string) (string, error) {
	if len(token) == 0 {
		return "", ErrNoHardwareAddress
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	path, ok := s.Lookup(token)
	if !ok {
		var err error
		if path, err = s.reserveFile(); err != nil {
			return "", err
		}
	}

	lines := []string{token.String()}
	if playerData != "" {
		lines = append(lines, strings.Split(strings.TrimSuffix(playerData, "\n"), "\n")...)
	}
	contents := strings.Join(lines, "\n") + "\n"

	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		if !ok {
			_ = os.Remove(path)
		}
		return "", fmt.Errorf("problem writing remote player to file %s: %w", path, err)
	}

	s.lookups.SetDefault(token.String(), path)
	return path, nil
}

// reserveFile creates an empty save file named after the number of save files
// currently enumerated. The count alone can collide with a file created after
// the enumeration (by another process, or a stale listing), so the name is
// claimed with O_EXCL and the index bumped until the claim succeeds.
func (s *Store) reserveFile() (string, error) {
	files, err := s.list()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate remote player files: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create save directory %s: %w", s.dir, err)
	}

	for index := len(files); ; index++ {
		path := filepath.Join(s.dir, fmt.Sprintf("%s%d%s", FilePrefix, index, FileExtension))

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			s.logger.Debugf("remote player file %s already exists, trying next index", filepath.Base(path))
			continue
		} else if err != nil {
			return "", fmt.Errorf("failed to create remote player file %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to create remote player file %s: %w", path, err)
		}
		return path, nil
	}
}
