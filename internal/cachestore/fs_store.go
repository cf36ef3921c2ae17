package cachestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// NewStore 构建磁盘缓存，整个进程复用一份实例。
func NewStore() Store {
	return &fileStore{
		locks: make(map[string]*entryLock),
	}
}

// fileStore 通过 entryLock 避免同一 outputPath 并发写入；锁表按条目
// 引用计数回收，互不相关的路径不会互相阻塞。
type fileStore struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) ReadMetadata(metadataPath string) (Metadata, bool) {
	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return Metadata{}, false
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		// 损坏的 sidecar 视为无缓存，下一次抓取会重建它。
		return Metadata{}, false
	}
	if meta.LastFetchedAtMs <= 0 {
		return Metadata{}, false
	}
	return meta, true
}

func (s *fileStore) WriteContentAndMetadata(outputPath, metadataPath string, content []byte, meta Metadata) error {
	unlock := s.lockEntry(outputPath)
	defer unlock()

	if err := writeFileAtomic(outputPath, content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}

	// sidecar 必须在正文之后写：崩溃窗口内宁可丢元数据（触发一次多余的
	// 全量抓取），也不能让元数据描述一份从未写入的正文。
	if err := writeMetadataFile(metadataPath, meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *fileStore) WriteMetadata(outputPath, metadataPath string, meta Metadata) error {
	unlock := s.lockEntry(outputPath)
	defer unlock()

	if err := writeMetadataFile(metadataPath, meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *fileStore) ContentExists(outputPath string) bool {
	info, err := os.Stat(outputPath)
	return err == nil && !info.IsDir()
}

func (s *fileStore) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func writeMetadataFile(metadataPath string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(metadataPath, data)
}

// writeFileAtomic 先写临时文件再 rename，失败时清理临时文件。
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".llms-keep-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Chmod(tempName, 0o644); err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}
