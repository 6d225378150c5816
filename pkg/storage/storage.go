package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"shipdesk/pkg/config"
)

const (
	// TypeLocal 本地文件系统存储
	TypeLocal = "local"
	// TypeS3 Amazon S3 或兼容的存储后端
	TypeS3 = "s3"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("storage: object not found")

// SaveOptions 控制对象的存放位置
//
// Category 用于组织目录，Extension 为不含点的扩展名，BaseName 为空时自动生成。
type SaveOptions struct {
	Category  string
	Extension string
	BaseName  string
}

// Storage 上传文件的二进制存储。返回的 key 保存在业务记录中，
// 之后用于读取与删除。
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewStorage 根据配置实例化存储后端
func NewStorage(cfg config.StorageConfig) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", TypeLocal:
		return NewLocalStorage(cfg.LocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
