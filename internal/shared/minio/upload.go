package objstore

import (
	"context"
	"fmt"
	"mime/multipart"
)

// PutFile 上传 multipart 表单中的文件
func PutFile(ctx context.Context, fs FileStore, prefix string, fh *multipart.FileHeader) (*Stored, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return fs.Put(ctx, Object{
		Prefix:      prefix,
		Filename:    fh.Filename,
		Body:        f,
		Size:        fh.Size,
		ContentType: contentType,
	})
}
