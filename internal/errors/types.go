package errors

import "errors"

// 错误分类，使用 errors.Is 判断
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrDiscovery          = errors.New("discovery error")
	ErrConnection         = errors.New("connection error")
	ErrAuthentication     = errors.New("authentication failed")
	ErrSessionAcquisition = errors.New("session acquisition failed")
	ErrUnexpectedTask     = errors.New("unexpected task error")
	ErrCaseFailure        = errors.New("test case failed")
)

// Class 返回错误所属的分类名称，用作日志和指标标签
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrDiscovery):
		return "discovery"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrSessionAcquisition):
		return "session"
	case errors.Is(err, ErrUnexpectedTask):
		return "unexpected"
	case errors.Is(err, ErrCaseFailure):
		return "case"
	default:
		return "other"
	}
}

// IsConfiguration 运行前的参数错误，直接终止
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
