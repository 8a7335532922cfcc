package contracts

import (
	"errors"
	"fmt"
)

// ⭐ SSOT: 도메인 에러와 결과 코드는 여기서만 정의

var (
	ErrNoop              = errors.New("nothing to do")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal order status transition")
	ErrSendOrderFailed   = errors.New("send order failed")
	ErrCancelOrderFailed = errors.New("cancel order failed")
	ErrInvalidTrade      = errors.New("invalid trade")
	ErrOrphanTrade       = errors.New("trade has no matching order")
	ErrSecurityNotFound  = errors.New("security not found")
	ErrPositionMismatch  = errors.New("trade does not belong to position")
	ErrPositionClosed    = errors.New("position is closed")
	ErrCloseTimeout      = errors.New("timed out waiting for position to close")
)

func invalidOrder(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrder, reason)
}

// ResultCode is the user-visible outcome of an operation
type ResultCode string

const (
	ResultOK                ResultCode = "ok"
	ResultNoop              ResultCode = "no-op"
	ResultInvalidOrder      ResultCode = "invalid-order"
	ResultOrderNotFound     ResultCode = "order-not-found"
	ResultIllegalTransition ResultCode = "illegal-transition"
	ResultSendOrderFailed   ResultCode = "send-order-failed"
	ResultCancelOrderFailed ResultCode = "cancel-order-failed"
	ResultInvalidTrade      ResultCode = "invalid-trade"
	ResultOrphanTrade       ResultCode = "orphan-trade"
	ResultSecurityNotFound  ResultCode = "security-not-found"
	ResultPositionMismatch  ResultCode = "position-mismatch"
	ResultPositionClosed    ResultCode = "position-closed"
	ResultTimeout           ResultCode = "timeout"
	ResultInternalError     ResultCode = "internal-error"
)

var resultCodes = []struct {
	err  error
	code ResultCode
}{
	{ErrNoop, ResultNoop},
	{ErrInvalidOrder, ResultInvalidOrder},
	{ErrOrderNotFound, ResultOrderNotFound},
	{ErrIllegalTransition, ResultIllegalTransition},
	{ErrSendOrderFailed, ResultSendOrderFailed},
	{ErrCancelOrderFailed, ResultCancelOrderFailed},
	{ErrInvalidTrade, ResultInvalidTrade},
	{ErrOrphanTrade, ResultOrphanTrade},
	{ErrSecurityNotFound, ResultSecurityNotFound},
	{ErrPositionMismatch, ResultPositionMismatch},
	{ErrPositionClosed, ResultPositionClosed},
	{ErrCloseTimeout, ResultTimeout},
}

// ResultOf maps an error returned by the core to its result code
func ResultOf(err error) ResultCode {
	if err == nil {
		return ResultOK
	}
	for _, rc := range resultCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return ResultInternalError
}
