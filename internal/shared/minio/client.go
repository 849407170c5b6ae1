// Package objstore 文件存储：MinIO 对象存储，未配置时落到本地目录
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pocketfiler/internal/config"
	"pocketfiler/pkg/logging"
)

var log = logging.Default("objstore")

// Object 待上传的文件
type Object struct {
	Prefix      string // 如 "contracts/12"
	Filename    string
	Body        io.Reader
	Size        int64
	ContentType string
}

// Stored 上传结果
type Stored struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("objstore: object not found")

// FileStore 文件存储接口
type FileStore interface {
	Put(ctx context.Context, obj Object) (*Stored, error)
	// Download 读取对象，调用方负责关闭；不存在时返回 ErrObjectNotFound
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove 删除对象，不存在时不报错
	Remove(ctx context.Context, key string) error
}

// ObjectKey 生成对象 key：<prefix>/<uuid>-<安全文件名>
func ObjectKey(prefix, filename string) string {
	name := sanitizeFilename(filename)
	key := uuid.NewString() + "-" + name
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// BaseName 从 ObjectKey 生成的 key 中还原（已清洗的）文件名
func BaseName(key string) string {
	name := path.Base(key)
	if len(name) > 37 && name[36] == '-' {
		if _, err := uuid.Parse(name[:36]); err == nil {
			return name[37:]
		}
	}
	return name
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == "_" {
		return "file"
	}
	return name
}

// Client MinIO 客户端封装
type Client struct {
	mc        *minio.Client
	bucket    string
	publicURL string
	urlExpiry time.Duration
}

// NewClient 创建 MinIO 客户端
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "pocketfiler"
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}

	return &Client{
		mc:        mc,
		bucket:    bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		urlExpiry: expiry,
	}, nil
}

// EnsureBucket 确保 bucket 存在
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		log.Info("created bucket", "bucket", c.bucket)
	}
	return nil
}

// Put 上传对象并返回访问地址
func (c *Client) Put(ctx context.Context, obj Object) (*Stored, error) {
	key := ObjectKey(obj.Prefix, obj.Filename)
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.mc.PutObject(ctx, c.bucket, key, obj.Body, obj.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	u, err := c.URL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Stored{Key: key, URL: u}, nil
}

// URL 配置了 PublicURL 时返回公开地址，否则返回预签名地址
func (c *Client) URL(ctx context.Context, key string) (string, error) {
	if c.publicURL != "" {
		return c.publicURL + "/" + path.Join(c.bucket, key), nil
	}
	u, err := c.mc.PresignedGetObject(ctx, c.bucket, key, c.urlExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Download 下载对象，调用方负责关闭返回的 ReadCloser
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	// GetObject 不会立即返回错误
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	return obj, nil
}

// Remove 删除对象
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

var _ FileStore = (*Client)(nil)
