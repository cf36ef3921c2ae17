package cachestore

import "time"

// Metadata 是 sidecar JSON 的持久化结构，字段名与磁盘格式一一对应。
// 校验令牌缺失时序列化为 null 而非空字符串。
type Metadata struct {
	ETag            *string `json:"etag"`
	LastModified    *string `json:"lastModified"`
	LastFetchedAtMs int64   `json:"lastFetchedAtMs"`
}

// NewMetadata 由校验令牌与抓取时间构造 Metadata，空令牌映射为 null。
func NewMetadata(etag, lastModified string, fetchedAt time.Time) Metadata {
	meta := Metadata{LastFetchedAtMs: fetchedAt.UnixMilli()}
	if etag != "" {
		meta.ETag = &etag
	}
	if lastModified != "" {
		meta.LastModified = &lastModified
	}
	return meta
}

// ETagValue 返回令牌字符串，null 时为空串。
func (m Metadata) ETagValue() string {
	if m.ETag == nil {
		return ""
	}
	return *m.ETag
}

// LastModifiedValue 返回令牌字符串，null 时为空串。
func (m Metadata) LastModifiedValue() string {
	if m.LastModified == nil {
		return ""
	}
	return *m.LastModified
}

// LastFetchedAt 将毫秒时间戳还原为 time.Time。
func (m Metadata) LastFetchedAt() time.Time {
	return time.UnixMilli(m.LastFetchedAtMs)
}

// Touched 返回仅刷新时间戳、保留全部校验令牌的副本，供 304 场景使用。
func (m Metadata) Touched(at time.Time) Metadata {
	m.LastFetchedAtMs = at.UnixMilli()
	return m
}

// Store 负责缓存条目（正文 + sidecar）的读写。同一 outputPath 的写入
// 必须串行化；不同条目之间互不阻塞。
type Store interface {
	// ReadMetadata 读取 sidecar。文件缺失或损坏时返回 (zero, false)，
	// 永不因此报错——损坏元数据等价于“没有缓存”。
	ReadMetadata(metadataPath string) (Metadata, bool)

	// WriteContentAndMetadata 按需创建父目录，先原子写正文、后原子写
	// sidecar。sidecar 写失败必须向调用方传播，不允许吞掉。
	WriteContentAndMetadata(outputPath, metadataPath string, content []byte, meta Metadata) error

	// WriteMetadata 仅重写 sidecar（304 续期场景），复用与
	// WriteContentAndMetadata 相同的条目锁以避免写交错。
	WriteMetadata(outputPath, metadataPath string, meta Metadata) error

	// ContentExists 报告正文文件当前是否落盘。
	ContentExists(outputPath string) bool
}
