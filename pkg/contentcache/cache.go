// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package contentcache keeps a commit-scoped snapshot of repository
// files: metadata rows in the store, bytes in object storage, and a
// tree summary for listing.
package contentcache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/chunker"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/objectstorage"
)

// BlobStore is the object-storage surface the cache needs.
type BlobStore interface {
	Put(ctx context.Context, key string, content []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// TreeSummary carries both listing shapes.
type TreeSummary struct {
	FlatPaths []string    `json:"flat_paths"`
	Tree      []*TreeNode `json:"tree"`
}

// TreeNode is one directory or file in the hierarchical listing.
type TreeNode struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"` // directory | file
	SizeBytes int64       `json:"size_bytes,omitempty"`
	Children  []*TreeNode `json:"children,omitempty"`
}

// Service is the read-through content cache
type Service struct {
	facade  *database.ContentCacheFacade
	store   BlobStore
	scanner *chunker.Scanner
}

// NewService creates a content cache service
func NewService(facade *database.ContentCacheFacade, store BlobStore, scanner *chunker.Scanner) *Service {
	return &Service{facade: facade, store: store, scanner: scanner}
}

// Ensure populates the cache for (repository, commit) from a local
// working tree. Idempotent: a ready cache with a tree summary is left
// alone; partial caches are completed, reusing objects whose content
// hash is unchanged.
func (s *Service) Ensure(ctx context.Context, repositoryID, commitSHA, repoDir string) error {
	cache, err := s.facade.GetCache(ctx, repositoryID, commitSHA)
	if err != nil {
		return errors.WrapError(err, "load content cache", errors.InternalError)
	}
	if cache != nil && cache.Status == constant.CacheStatusReady && len(cache.TreeSummary) > 0 {
		return nil
	}

	if cache == nil {
		cache = &model.RepoContentCache{
			ID:           uuid.NewString(),
			RepositoryID: repositoryID,
			CommitSHA:    commitSHA,
			Status:       constant.CacheStatusUploading,
		}
		if err := s.facade.CreateCache(ctx, cache); err != nil {
			return errors.WrapError(err, "create content cache", errors.InternalError)
		}
	} else if err := s.facade.UpdateCache(ctx, cache.ID, map[string]interface{}{
		"status": constant.CacheStatusUploading,
	}); err != nil {
		return errors.WrapError(err, "mark content cache uploading", errors.InternalError)
	}

	files, err := s.scanner.Scan(repoDir)
	if err != nil {
		s.markFailed(ctx, cache.ID)
		return err
	}

	existing, err := s.facade.ListObjects(ctx, cache.ID, "")
	if err != nil {
		s.markFailed(ctx, cache.ID)
		return errors.WrapError(err, "list cache objects", errors.InternalError)
	}
	existingByPath := make(map[string]*model.RepoContentObject, len(existing))
	for _, obj := range existing {
		existingByPath[obj.Path] = obj
	}

	failed := 0
	for _, file := range files {
		if err := s.uploadOne(ctx, cache, file, existingByPath[file.Path]); err != nil {
			log.Warnf("contentcache: upload %s failed: %v", file.Path, err)
			failed++
		}
	}

	// Any failed upload keeps the cache out of ready. A majority
	// failure marks the cache failed; a minority leaves it uploading so
	// the next Ensure retries just the failed objects via the hash-skip
	// path above.
	if failed > 0 {
		if failed*2 > len(files) {
			s.markFailed(ctx, cache.ID)
		}
		return errors.NewError().WithCode(errors.CodeObjectStorageError).
			WithMessagef("content cache %s: %d of %d uploads failed", cache.ID, failed, len(files))
	}

	summary := buildTreeSummary(files)
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		s.markFailed(ctx, cache.ID)
		return errors.WrapError(err, "encode tree summary", errors.InternalError)
	}
	if err := s.facade.UpdateCache(ctx, cache.ID, map[string]interface{}{
		"status":       constant.CacheStatusReady,
		"tree_summary": summaryJSON,
	}); err != nil {
		s.markFailed(ctx, cache.ID)
		return errors.WrapError(err, "write tree summary", errors.InternalError)
	}
	return nil
}

func (s *Service) uploadOne(ctx context.Context, cache *model.RepoContentCache, file chunker.SourceFile, existing *model.RepoContentObject) error {
	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return err
	}
	digest := fmt.Sprintf("%x", sha256.Sum256(content))

	if existing != nil && existing.Status == constant.ObjectStatusReady && existing.ContentHash == digest {
		return nil
	}

	if existing == nil {
		object := &model.RepoContentObject{
			ID:        uuid.NewString(),
			CacheID:   cache.ID,
			Path:      file.Path,
			ObjectKey: objectstorage.ObjectKey(cache.RepositoryID, cache.CommitSHA, uuid.NewString()),
			SizeBytes: file.Size,
			Status:    constant.ObjectStatusUploading,
		}
		if err := s.facade.CreateObjects(ctx, []*model.RepoContentObject{object}); err != nil {
			return err
		}
		existing = object
	}

	if _, err := s.store.Put(ctx, existing.ObjectKey, content); err != nil {
		_ = s.facade.UpdateObject(ctx, existing.ID, map[string]interface{}{
			"status": constant.ObjectStatusFailed,
		})
		return err
	}
	return s.facade.UpdateObject(ctx, existing.ID, map[string]interface{}{
		"status":       constant.ObjectStatusReady,
		"content_hash": digest,
		"size_bytes":   file.Size,
	})
}

func (s *Service) markFailed(ctx context.Context, cacheID string) {
	if err := s.facade.UpdateCache(ctx, cacheID, map[string]interface{}{
		"status": constant.CacheStatusFailed,
	}); err != nil {
		log.Errorf("contentcache: mark cache %s failed: %v", cacheID, err)
	}
}

// GetFile reads one cached file's bytes. NotReady and NotFound are
// distinct failures.
func (s *Service) GetFile(ctx context.Context, repositoryID, commitSHA, path string) ([]byte, error) {
	cache, err := s.facade.GetCache(ctx, repositoryID, commitSHA)
	if err != nil {
		return nil, errors.WrapError(err, "load content cache", errors.InternalError)
	}
	if cache == nil {
		return nil, errors.NewError().WithCode(errors.RequestDataNotExisted).
			WithMessagef("no content cache for %s@%s", repositoryID, commitSHA)
	}
	if cache.Status != constant.CacheStatusReady {
		return nil, errors.NewError().WithCode(errors.CodeCacheNotReady).
			WithMessagef("content cache for %s@%s is %s", repositoryID, commitSHA, cache.Status)
	}

	object, err := s.facade.GetObjectByPath(ctx, cache.ID, path)
	if err != nil {
		return nil, errors.WrapError(err, "load cache object", errors.InternalError)
	}
	if object == nil || object.Status != constant.ObjectStatusReady {
		return nil, errors.NewError().WithCode(errors.RequestDataNotExisted).
			WithMessagef("path %s not cached", path)
	}

	content, err := s.store.Get(ctx, object.ObjectKey)
	if err != nil {
		return nil, err
	}
	if err := s.facade.TouchCache(ctx, cache.ID); err != nil {
		log.Warnf("contentcache: touch cache %s: %v", cache.ID, err)
	}
	return content, nil
}

// ListTree returns the cached tree summary
func (s *Service) ListTree(ctx context.Context, repositoryID, commitSHA string) (*TreeSummary, error) {
	cache, err := s.facade.GetCache(ctx, repositoryID, commitSHA)
	if err != nil {
		return nil, errors.WrapError(err, "load content cache", errors.InternalError)
	}
	if cache == nil {
		return nil, errors.NewError().WithCode(errors.RequestDataNotExisted).
			WithMessagef("no content cache for %s@%s", repositoryID, commitSHA)
	}
	if cache.Status != constant.CacheStatusReady || len(cache.TreeSummary) == 0 {
		return nil, errors.NewError().WithCode(errors.CodeCacheNotReady).
			WithMessagef("content cache for %s@%s is %s", repositoryID, commitSHA, cache.Status)
	}

	var summary TreeSummary
	if err := json.Unmarshal(cache.TreeSummary, &summary); err != nil {
		return nil, errors.WrapError(err, "decode tree summary", errors.InternalError)
	}
	return &summary, nil
}

// buildTreeSummary produces the flat sorted path list and the
// hierarchical tree in one pass
func buildTreeSummary(files []chunker.SourceFile) *TreeSummary {
	paths := make([]string, 0, len(files))
	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
		sizes[f.Path] = f.Size
	}
	sort.Strings(paths)

	root := &TreeNode{Type: "directory"}
	nodes := map[string]*TreeNode{"": root}
	for _, path := range paths {
		parts := strings.Split(path, "/")
		prefix := ""
		parent := root
		for i, part := range parts {
			key := prefix + part
			node, ok := nodes[key]
			if !ok {
				node = &TreeNode{Name: part, Type: "directory"}
				if i == len(parts)-1 {
					node.Type = "file"
					node.SizeBytes = sizes[path]
				}
				nodes[key] = node
				parent.Children = append(parent.Children, node)
			}
			parent = node
			prefix = key + "/"
		}
	}

	return &TreeSummary{FlatPaths: paths, Tree: root.Children}
}

// DeleteAll removes a cache's blobs then its rows, in that order so a
// crash leaves only re-deletable leftovers
func (s *Service) DeleteAll(ctx context.Context, cache *model.RepoContentCache) error {
	objects, err := s.facade.ListObjects(ctx, cache.ID, "")
	if err != nil {
		return errors.WrapError(err, "list cache objects", errors.InternalError)
	}
	for _, object := range objects {
		if object.Status == constant.ObjectStatusDeleted {
			continue
		}
		if err := s.store.Delete(ctx, object.ObjectKey); err != nil {
			return err
		}
		if err := s.facade.UpdateObject(ctx, object.ID, map[string]interface{}{
			"status": constant.ObjectStatusDeleted,
		}); err != nil {
			return errors.WrapError(err, "mark object deleted", errors.InternalError)
		}
	}
	if err := s.facade.DeleteCache(ctx, cache.ID); err != nil {
		return errors.WrapError(err, "delete cache rows", errors.InternalError)
	}
	log.Infof("contentcache: deleted cache %s (%s@%s, %d objects)",
		cache.ID, cache.RepositoryID, cache.CommitSHA, len(objects))
	return nil
}
