package binance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"trade-gate/internal/core"
)

// apiError 是交易所非 2xx 响应携带的结构化错误体。
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// classifyResponse 将非 2xx 响应映射到统一错误类型。
// 认证类错误与订单不存在永不重试；无法解析的 429/5xx 视为网络层故障。
func classifyResponse(status int, body []byte, op string) error {
	var apiErr apiError
	parsed := json.Unmarshal(body, &apiErr) == nil && (apiErr.Code != 0 || apiErr.Msg != "")

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		msg := strings.TrimSpace(string(body))
		if parsed {
			return &core.AuthError{Code: apiErr.Code, Message: apiErr.Msg}
		}
		return &core.AuthError{Message: msg}
	}

	if parsed {
		switch apiErr.Code {
		case core.CodeInvalidTimestamp, core.CodeInvalidSignature, core.CodeRejectedAPIKey:
			return &core.AuthError{Code: apiErr.Code, Message: apiErr.Msg}
		case core.CodeOrderNotFound, core.CodeCancelRejected:
			return &core.NotFoundError{Resource: "order", Ref: apiErr.Msg}
		case core.CodeBadSymbol:
			return &core.NotFoundError{Resource: "symbol", Ref: apiErr.Msg}
		default:
			return &core.ExchangeError{Code: apiErr.Code, HTTPStatus: status, Message: apiErr.Msg}
		}
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return &core.NetworkError{Op: op, Err: fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(body)))}
	}

	return &core.ExchangeError{HTTPStatus: status, Message: strings.TrimSpace(string(body))}
}
