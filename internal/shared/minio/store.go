package objstore

import (
	"context"
	"net/http"
	"time"

	"pocketfiler/internal/config"
)

// New 按配置创建文件存储：配置了 MinIO endpoint 时使用 MinIO，否则使用本地目录
func New(ctx context.Context, cfg config.MinIOConfig) (FileStore, error) {
	if cfg.Endpoint == "" {
		log.Info("minio not configured, using local file storage", "dir", cfg.LocalDir)
		return NewLocalStore(cfg.LocalDir)
	}

	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("connected to minio", "endpoint", cfg.Endpoint, "bucket", c.bucket)
	return c, nil
}

// Handler 本地存储的静态文件路由，其它实现返回 nil
func Handler(fs FileStore) http.Handler {
	local, ok := fs.(*LocalStore)
	if !ok {
		return nil
	}
	return http.StripPrefix(local.urlPrefix, http.FileServer(http.Dir(local.dir)))
}
