package binance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"trade-gate/internal/config"
	"trade-gate/internal/core"
)

type authType int

const (
	authNone authType = iota
	authAPIKey
	authSigned
)

// transport 负责签名、发送请求并按统一错误分类执行指数退避重试。
// 每次尝试都会在参数副本上追加新的时间戳并重新签名，绝不复用过期签名。
type transport struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	recvWindow time.Duration
	retry      config.RetryConfig
	retryCodes map[int]bool
	httpClient *http.Client
	logger     *zap.Logger
}

func newTransport(cfg config.ExchangeConfig, baseURL string, logger *zap.Logger) *transport {
	timeout := cfg.Rest.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	retryCodes := make(map[int]bool, len(cfg.Retry.RetryableCodes))
	for _, code := range cfg.Retry.RetryableCodes {
		retryCodes[code] = true
	}

	return &transport{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		recvWindow: cfg.Rest.RecvWindow,
		retry:      cfg.Retry,
		retryCodes: retryCodes,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// send 发送请求直至成功、不可重试或超出重试预算。
func (t *transport) send(ctx context.Context, method, path string, params *Params, auth authType) ([]byte, error) {
	operation := method + " " + path

	attempt := 0
	delay := t.retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := t.retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := t.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	var deadline time.Time
	if t.retry.MaxElapsed > 0 {
		deadline = time.Now().Add(t.retry.MaxElapsed)
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		attempt++
		start := time.Now()
		body, err := t.sendOnce(ctx, method, path, params, auth)
		latency := time.Since(start)
		if err == nil {
			if attempt > 1 {
				t.logger.Info("接口重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", latency),
				)
			}
			return body, nil
		}

		if !t.retryable(err) || attempt >= maxAttempts {
			t.logger.Error("接口调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", latency),
				zap.Error(err),
			)
			return nil, err
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			t.logger.Error("接口调用超出重试时间预算",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return nil, err
		}

		t.logger.Warn("接口调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (t *transport) sendOnce(ctx context.Context, method, path string, params *Params, auth authType) ([]byte, error) {
	operation := method + " " + path

	var query string
	switch auth {
	case authSigned:
		query = t.signedQuery(params)
	default:
		if params != nil {
			query = params.Encode()
		}
	}

	urlStr := t.baseURL + path
	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet || method == http.MethodDelete {
		if query != "" {
			urlStr += "?" + query
		}
		req, err = http.NewRequestWithContext(ctx, method, urlStr, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, urlStr, strings.NewReader(query))
	}
	if err != nil {
		return nil, err
	}

	if method != http.MethodGet && method != http.MethodDelete {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if auth != authNone {
		req.Header.Set("X-MBX-APIKEY", t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &core.NetworkError{Op: operation, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.NetworkError{Op: operation, Err: err}
	}

	if resp.StatusCode/100 != 2 {
		return nil, classifyResponse(resp.StatusCode, body, operation)
	}

	return body, nil
}

// signedQuery 在参数副本上追加时间戳与接收窗口，签名后拼接完整查询串。
// 被签名的串与返回串的前缀逐字节一致。
func (t *transport) signedQuery(params *Params) string {
	p := params.Clone()
	p.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if t.recvWindow > 0 {
		p.Set("recvWindow", strconv.FormatInt(t.recvWindow.Milliseconds(), 10))
	}
	encoded := p.Encode()
	return encoded + "&signature=" + Sign(t.apiSecret, encoded)
}

func (t *transport) retryable(err error) bool {
	var netErr *core.NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var exErr *core.ExchangeError
	if errors.As(err, &exErr) {
		return t.retryCodes[exErr.Code]
	}
	return false
}
