package ccxt

import (
	"context"
	"errors"
	"net"
	"strings"

	ccxtgo "github.com/ccxt/ccxt/go/v4"

	"trade-gate/internal/core"
)

// classifyError 把 ccxt 与底层网络错误归一化为统一错误类型，并判断是否可重试。
// 认证失败与订单不存在永不重试，限流与交易所维护视为暂时性网络故障。
func classifyError(op string, err error) (error, bool) {
	if err == nil {
		return nil, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxtgo.Error
	if errors.As(err, &ccxtErr) {
		message := strings.TrimSpace(ccxtErr.Message)
		switch ccxtErr.Type {
		case ccxtgo.AuthenticationErrorErrType,
			ccxtgo.PermissionDeniedErrType,
			ccxtgo.AccountSuspendedErrType,
			ccxtgo.InvalidNonceErrType:
			return &core.AuthError{Message: message}, false
		case ccxtgo.OrderNotFoundErrType:
			return &core.NotFoundError{Resource: "order", Ref: message}, false
		case ccxtgo.BadSymbolErrType:
			return &core.NotFoundError{Resource: "symbol", Ref: message}, false
		case ccxtgo.InsufficientFundsErrType:
			return &core.ExchangeError{Code: core.CodeMarginInsufficient, Message: message}, false
		case ccxtgo.InvalidOrderErrType, ccxtgo.BadRequestErrType:
			return &core.ExchangeError{Code: core.CodeNewOrderRejected, Message: message}, false
		case ccxtgo.NetworkErrorErrType,
			ccxtgo.RequestTimeoutErrType,
			ccxtgo.ExchangeNotAvailableErrType,
			ccxtgo.OnMaintenanceErrType,
			ccxtgo.RateLimitExceededErrType,
			ccxtgo.DDoSProtectionErrType,
			ccxtgo.BadResponseErrType,
			ccxtgo.NullResponseErrType:
			return &core.NetworkError{Op: op, Err: err}, true
		default:
			return &core.ExchangeError{Message: message}, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &core.NetworkError{Op: op, Err: err}, true
	}

	return err, false
}
