package core

import "fmt"

// 统一沿用币安的数字错误码约定，模拟后端与 REST 后端共享同一套语义。
const (
	CodeInternalError      = -1001
	CodeTooManyRequests    = -1003
	CodeTimeout            = -1007
	CodeInvalidTimestamp   = -1021
	CodeInvalidSignature   = -1022
	CodeBadSymbol          = -1121
	CodeNewOrderRejected   = -2010
	CodeCancelRejected     = -2011
	CodeOrderNotFound      = -2013
	CodeRejectedAPIKey     = -2015
	CodeMarginInsufficient = -2019
)

// ValidationError 表示请求未通过本地校验，不会触发任何后端调用，也绝不重试。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// AuthError 表示凭证、签名或时间戳问题，重试无法恢复。
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("authentication rejected (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("authentication rejected: %s", e.Message)
}

// NetworkError 包装传输层故障，例如超时、DNS 失败或连接被拒绝，可安全重试。
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ExchangeError 表示交易所返回的结构化业务拒绝，保留原始错误码与消息。
type ExchangeError struct {
	Code       int
	HTTPStatus int
	Message    string
}

func (e *ExchangeError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("exchange rejected request (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("exchange rejected request: %s", e.Message)
}

// NotFoundError 表示订单或交易对不存在。
type NotFoundError struct {
	Resource string
	Ref      string
}

func (e *NotFoundError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.Ref)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}
