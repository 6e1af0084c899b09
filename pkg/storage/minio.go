// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"pliego-extract-go/internal/config"
	"pliego-extract-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(ctx context.Context, cfg config.MinIOConfig) error {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}
	MinioClient = client
	return nil
}

// ObjectName returns the object key of a run file: "<prefix>/<base name>".
func ObjectName(prefix, filePath string) string {
	return path.Join(prefix, filepath.Base(filePath))
}

// ArchiveFiles 将本地文件上传到存储桶的 prefix 目录下，返回对象名列表。
func ArchiveFiles(ctx context.Context, bucketName, prefix string, files ...string) ([]string, error) {
	if MinioClient == nil {
		return nil, fmt.Errorf("minio client is not initialized")
	}
	var objects []string
	for _, file := range files {
		objectName := ObjectName(prefix, file)
		contentType := "application/octet-stream"
		switch filepath.Ext(file) {
		case ".json":
			contentType = "application/json"
		case ".log":
			contentType = "text/plain"
		}
		info, err := MinioClient.FPutObject(ctx, bucketName, objectName, file, minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return objects, fmt.Errorf("上传 '%s' 失败: %w", file, err)
		}
		log.Infof("已归档 '%s' 到 %s/%s (%d bytes)", file, bucketName, objectName, info.Size)
		objects = append(objects, objectName)
	}
	return objects, nil
}

// GetPresignedURL generates a presigned URL for a given object.
func GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	if MinioClient == nil {
		return "", fmt.Errorf("minio client is not initialized")
	}
	presignedURL, err := MinioClient.PresignedGetObject(ctx, bucketName, objectName, expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}
