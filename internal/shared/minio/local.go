package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore 本地目录文件存储，开发和测试环境使用
//
// 文件通过 URLPrefix 下的静态路由访问，见 Handler。
type LocalStore struct {
	dir       string
	urlPrefix string
}

// DefaultURLPrefix 本地文件的访问路径前缀
const DefaultURLPrefix = "/files/"

// NewLocalStore 创建本地存储，目录不存在时自动创建
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "data/uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPrefix: DefaultURLPrefix}, nil
}

// Dir 存储根目录
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(ctx context.Context, obj Object) (*Stored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := ObjectKey(obj.Prefix, obj.Filename)
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create dir for %s: %w", key, err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(f, obj.Body); err != nil {
		f.Close()
		os.Remove(full)
		return nil, fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", key, err)
	}
	return &Stored{Key: key, URL: s.urlPrefix + strings.TrimPrefix(key, "/")}, nil
}

func (s *LocalStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

func (s *LocalStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// path key 对应的本地路径，不允许跳出存储根目录
func (s *LocalStore) path(key string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

var _ FileStore = (*LocalStore)(nil)
