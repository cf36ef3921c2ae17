package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Validators 携带上次成功抓取留下的校验令牌。
type Validators struct {
	ETag         string
	LastModified string
}

// Present 表示是否存在任一可用于条件请求的令牌。
func (v Validators) Present() bool {
	return v.ETag != "" || v.LastModified != ""
}

// Options 控制单次抓取行为，逐调用传入、不做保存。
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	Validators   Validators
	MaxRedirects int
}

// Result 描述一次抓取的结论：304 时 NotModified 为 true 且 Body 为空，
// 200 时携带完整正文与响应头里的新校验令牌。
type Result struct {
	NotModified bool
	Body        []byte
	Validators  Validators
}

// Fetcher 封装共享 http.Client，重定向由自身循环控制而非 client 自动跟随。
type Fetcher struct {
	client *http.Client
}

// New 基于传入 client 构建 Fetcher；nil 时使用共享调优 transport。
// 无论来源如何，client 的自动重定向都会被关闭。
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Transport: defaultTransport.Clone()}
	} else {
		cloned := *client
		client = &cloned
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Fetcher{client: client}
}

// Fetch 执行一次条件 GET。超时以 context deadline 实现，到期会立刻中止
// 底层连接；重定向按 Location 逐跳解析，超过 MaxRedirects 返回 ErrRedirectLoop。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	current, err := parseAbsoluteURL(rawURL)
	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	hops := 0
	for {
		resp, err := f.do(ctx, current, opts)
		if err != nil {
			return nil, classifyTransportError(err)
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			drainAndClose(resp.Body)
			if location == "" {
				return nil, &StatusError{Code: resp.StatusCode}
			}
			hops++
			if hops > opts.MaxRedirects {
				return nil, fmt.Errorf("%w: %d hops", ErrRedirectLoop, hops)
			}
			next, err := current.Parse(location)
			if err != nil {
				return nil, fmt.Errorf("%w: bad redirect location %q", ErrInvalidURL, location)
			}
			current = next
			continue
		}

		return consumeResponse(resp, opts.Validators)
	}
}

func (f *Fetcher) do(ctx context.Context, target *url.URL, opts Options) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, err
	}

	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	if opts.Validators.ETag != "" {
		req.Header.Set("If-None-Match", opts.Validators.ETag)
	}
	if opts.Validators.LastModified != "" {
		req.Header.Set("If-Modified-Since", opts.Validators.LastModified)
	}

	return f.client.Do(req)
}

func consumeResponse(resp *http.Response, prior Validators) (*Result, error) {
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return &Result{
			NotModified: true,
			Validators:  mergeValidators(resp.Header, prior),
		}, nil
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, classifyTransportError(err)
		}
		return &Result{
			Body: body,
			Validators: Validators{
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			},
		}, nil
	default:
		return nil, &StatusError{Code: resp.StatusCode}
	}
}

// mergeValidators 在 304 响应上优先采用响应头里的令牌，缺失时沿用旧值。
func mergeValidators(header http.Header, prior Validators) Validators {
	merged := prior
	if etag := header.Get("ETag"); etag != "" {
		merged.ETag = etag
	}
	if last := header.Get("Last-Modified"); last != "" {
		merged.LastModified = last
	}
	return merged
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return parsed, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 32*1024))
	body.Close()
}
