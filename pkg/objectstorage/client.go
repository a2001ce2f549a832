// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package objectstorage stores cached repository file content in a
// MinIO/S3 bucket. Object keys follow
// {repository_id}/{commit_sha}/{object_id}.
package objectstorage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

// Client wraps the MinIO SDK for content-cache blobs
type Client struct {
	client *minio.Client
	bucket string
}

// NewClient creates a storage client and makes sure the bucket exists
func NewClient(cfg *config.ObjectStorageConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.NewError().WithCode(errors.CodeLackOfConfig).
			WithMessage("object storage config is nil")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.WrapError(err, "create object storage client", errors.CodeInitializeError)
	}

	client := &Client{
		client: mc,
		bucket: cfg.GetBucket(),
	}

	ctx := context.Background()
	exists, err := mc.BucketExists(ctx, client.bucket)
	if err != nil {
		log.Warnf("objectstorage: failed to check bucket existence: %v", err)
	} else if !exists {
		if err := mc.MakeBucket(ctx, client.bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			log.Warnf("objectstorage: failed to create bucket %s: %v", client.bucket, err)
		} else {
			log.Infof("objectstorage: created bucket %s", client.bucket)
		}
	}

	log.Infof("objectstorage: initialized endpoint=%s bucket=%s", cfg.Endpoint, client.bucket)
	return client, nil
}

// ObjectKey builds the canonical key for a cached file
func ObjectKey(repositoryID, commitSHA, objectID string) string {
	return fmt.Sprintf("%s/%s/%s", repositoryID, commitSHA, objectID)
}

// Put uploads one blob and returns its sha256 hex digest
func (c *Client) Put(ctx context.Context, key string, content []byte) (string, error) {
	digest := fmt.Sprintf("%x", sha256.Sum256(content))
	_, err := c.client.PutObject(ctx, c.bucket, key,
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", errors.WrapError(err, fmt.Sprintf("upload object %s", key), errors.CodeObjectStorageError)
	}
	return digest, nil
}

// Get downloads one blob
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	object, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.WrapError(err, fmt.Sprintf("get object %s", key), errors.CodeObjectStorageError)
	}
	defer object.Close()

	var content bytes.Buffer
	if _, err := io.Copy(&content, object); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.NewError().WithCode(errors.RequestDataNotExisted).
				WithMessagef("object %s not found", key)
		}
		return nil, errors.WrapError(err, fmt.Sprintf("read object %s", key), errors.CodeObjectStorageError)
	}
	return content.Bytes(), nil
}

// Delete removes one blob. Missing objects are not an error so deletes
// stay idempotent for the GC.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return errors.WrapError(err, fmt.Sprintf("delete object %s", key), errors.CodeObjectStorageError)
	}
	return nil
}

// DeletePrefix removes every blob under a prefix, returning the number
// deleted
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	objectCh := c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return deleted, errors.WrapError(object.Err, fmt.Sprintf("list objects under %s", prefix), errors.CodeObjectStorageError)
		}
		if err := c.Delete(ctx, object.Key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// Exists checks whether a blob is present
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.WrapError(err, fmt.Sprintf("stat object %s", key), errors.CodeObjectStorageError)
	}
	return true, nil
}
