package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"

	"pocketfiler/internal/shared/apperr"
)

// 内存中保留的 multipart 大小，超出部分落盘
const multipartMemory = 8 << 20

// ParseMultipart 解析 multipart 表单并限制请求体大小
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Wrap(apperr.KindValidation, err, "Uploaded file is too large.")
		}
		return apperr.Wrap(apperr.KindValidation, err, "Invalid multipart form.")
	}
	return nil
}

// FormFiles 返回字段下的全部文件，兼容 "files" 与 "files[]" 两种写法
func FormFiles(r *http.Request, field string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	if files := r.MultipartForm.File[field]; len(files) > 0 {
		return files
	}
	return r.MultipartForm.File[field+"[]"]
}

// FormFile 返回字段下的第一个文件
func FormFile(r *http.Request, field string) *multipart.FileHeader {
	files := FormFiles(r, field)
	if len(files) == 0 {
		return nil
	}
	return files[0]
}
