package property

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidValue is returned for values that cannot be represented by a field.
var ErrInvalidValue = errors.New("invalid property value")

// FSStore keeps every entity as a directory below Root. Scalars are files,
// lists are newline-delimited files and mappings are directories with one
// file per key.
type FSStore struct {
	Root string
}

// NewFSStore returns a store rooted at dir. The directory is created lazily.
func NewFSStore(dir string) *FSStore {
	return &FSStore{Root: dir}
}

func (s *FSStore) dir(p Path) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(append([]string{s.Root}, p...)...), nil
}

func (s *FSStore) file(p Path, field string) (string, error) {
	d, err := s.dir(p)
	if err != nil {
		return "", err
	}
	if err := validateName(field); err != nil {
		return "", err
	}
	return filepath.Join(d, field), nil
}

func (s *FSStore) Create(ctx context.Context, entity Path) error {
	d, err := s.dir(entity)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d), 0o755); err != nil {
		return wrapIO("create", entity, err)
	}
	if err := os.Mkdir(d, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", entity, ErrExists)
		}
		return wrapIO("create", entity, err)
	}
	return nil
}

func (s *FSStore) Ensure(ctx context.Context, entity Path) error {
	d, err := s.dir(entity)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return wrapIO("ensure", entity, err)
	}
	return nil
}

func (s *FSStore) Exists(ctx context.Context, entity Path) (bool, error) {
	d, err := s.dir(entity)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(d)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, wrapIO("stat", entity, err)
	}
	return info.IsDir(), nil
}

func (s *FSStore) Remove(ctx context.Context, entity Path) error {
	d, err := s.dir(entity)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(d); err != nil {
		return wrapIO("remove", entity, err)
	}
	return nil
}

func (s *FSStore) Children(ctx context.Context, entity Path) ([]string, error) {
	d, err := s.dir(entity)
	if err != nil {
		return nil, err
	}
	return readNames(d, entity, true)
}

// readNames lists visible entries of dir; os.ReadDir already sorts by name.
func readNames(dir string, p Path, dirs bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, wrapIO("list", p, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || e.IsDir() != dirs {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *FSStore) GetScalar(ctx context.Context, entity Path, field string) (string, bool, error) {
	f, err := s.file(entity, field)
	if err != nil {
		return "", false, err
	}
	return readValue(f, entity)
}

func readValue(file string, p Path) (string, bool, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, wrapIO("read", p, err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

func (s *FSStore) SetScalar(ctx context.Context, entity Path, field, value string) error {
	f, err := s.file(entity, field)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(f, value+"\n"); err != nil {
		return wrapIO("write "+field, entity, err)
	}
	return nil
}

func (s *FSStore) UnsetScalar(ctx context.Context, entity Path, field string) error {
	f, err := s.file(entity, field)
	if err != nil {
		return err
	}
	if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapIO("unset "+field, entity, err)
	}
	return nil
}

// writeFileAtomic replaces file through a rename so readers never observe a
// partial write. The parent directory must exist.
func writeFileAtomic(file, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(file), ".cinv-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, file); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

func (s *FSStore) ListItems(ctx context.Context, entity Path, field string) ([]string, error) {
	f, err := s.file(entity, field)
	if err != nil {
		return nil, err
	}
	return readLines(f, entity)
}

func readLines(file string, p Path) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, wrapIO("read", p, err)
	}
	items := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return items, nil
}

func writeLines(file string, items []string) error {
	if len(items) == 0 {
		return writeFileAtomic(file, "")
	}
	return writeFileAtomic(file, strings.Join(items, "\n")+"\n")
}

func (s *FSStore) ListAppend(ctx context.Context, entity Path, field, value string) error {
	if value == "" || strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("list %s item %q: %w", field, value, ErrInvalidValue)
	}
	f, err := s.file(entity, field)
	if err != nil {
		return err
	}
	items, err := readLines(f, entity)
	if err != nil {
		return err
	}
	if err := writeLines(f, append(items, value)); err != nil {
		return wrapIO("append "+field, entity, err)
	}
	return nil
}

func (s *FSStore) ListPop(ctx context.Context, entity Path, field string) (string, bool, error) {
	f, err := s.file(entity, field)
	if err != nil {
		return "", false, err
	}
	items, err := readLines(f, entity)
	if err != nil {
		return "", false, err
	}
	if len(items) == 0 {
		return "", false, nil
	}
	last := items[len(items)-1]
	if err := writeLines(f, items[:len(items)-1]); err != nil {
		return "", false, wrapIO("pop "+field, entity, err)
	}
	return last, true, nil
}

func (s *FSStore) mapFile(entity Path, field, key string) (string, error) {
	d, err := s.file(entity, field)
	if err != nil {
		return "", err
	}
	if err := validateName(key); err != nil {
		return "", err
	}
	return filepath.Join(d, key), nil
}

func (s *FSStore) MapKeys(ctx context.Context, entity Path, field string) ([]string, error) {
	d, err := s.file(entity, field)
	if err != nil {
		return nil, err
	}
	return readNames(d, entity, false)
}

func (s *FSStore) MapGet(ctx context.Context, entity Path, field, key string) (string, bool, error) {
	f, err := s.mapFile(entity, field, key)
	if err != nil {
		return "", false, err
	}
	return readValue(f, entity)
}

func (s *FSStore) MapSet(ctx context.Context, entity Path, field, key, value string) error {
	f, err := s.mapFile(entity, field, key)
	if err != nil {
		return err
	}
	// The entity itself must already exist; only the field directory is created.
	if err := os.Mkdir(filepath.Dir(f), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return wrapIO("mkdir "+field, entity, err)
	}
	if err := writeFileAtomic(f, value+"\n"); err != nil {
		return wrapIO("write "+field+"/"+key, entity, err)
	}
	return nil
}

func (s *FSStore) MapDelete(ctx context.Context, entity Path, field, key string) (bool, error) {
	f, err := s.mapFile(entity, field, key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, wrapIO("delete "+field+"/"+key, entity, err)
	}
	return true, nil
}

func (s *FSStore) Close() error {
	return nil
}
