package freshness

// OutcomeKind 标记一次 EnsureFresh 的结论，取值直接用于结构化日志。
type OutcomeKind string

const (
	// OutcomeFresh TTL 未过期，直接复用本地副本，未发起网络请求。
	OutcomeFresh OutcomeKind = "fresh"
	// OutcomeRevalidated 上游返回 304，仅续期时间戳。
	OutcomeRevalidated OutcomeKind = "revalidated"
	// OutcomeUpdated 上游返回新正文，本地副本与元数据已替换。
	OutcomeUpdated OutcomeKind = "updated"
	// OutcomeServedStale 抓取失败但存在旧副本，按原样提供。
	OutcomeServedStale OutcomeKind = "stale"
	// OutcomeFailed 抓取失败且无可用副本。
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome 描述一次刷新决策的结果。Path 指向解析后的本地文件；
// StaleReason 仅在 OutcomeServedStale 时携带底层抓取错误。
type Outcome struct {
	Kind        OutcomeKind
	Path        string
	StaleReason error
}
