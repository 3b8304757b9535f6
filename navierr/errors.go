// Package navierr 面向用户的错误：稳定的错误码与本地化提示
package navierr

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

type Code string

const (
	CodeInvalidCoordinate Code = "INVALID_COORDINATE"
	CodeEmptyRoutePoints  Code = "EMPTY_ROUTE_POINTS"
	CodeMissingAPIKey     Code = "MISSING_API_KEY"
	CodeFeedUnavailable   Code = "FEED_UNAVAILABLE"
	CodeGraphUnavailable  Code = "GRAPH_UNAVAILABLE"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInternal          Code = "INTERNAL"
)

var messages = map[string]map[Code]string{
	"ko": {
		CodeInvalidCoordinate: "좌표가 올바르지 않습니다",
		CodeEmptyRoutePoints:  "경로 좌표가 비어 있습니다",
		CodeMissingAPIKey:     "API 키가 설정되지 않았습니다",
		CodeFeedUnavailable:   "데이터를 불러올 수 없습니다. 잠시 후 다시 시도해 주세요",
		CodeGraphUnavailable:  "지도 데이터를 불러올 수 없습니다",
		CodeInvalidArgument:   "요청이 올바르지 않습니다",
		CodeInternal:          "일시적인 오류가 발생했습니다",
	},
	"en": {
		CodeInvalidCoordinate: "The coordinate is invalid",
		CodeEmptyRoutePoints:  "The route has no points",
		CodeMissingAPIKey:     "The API key is not configured",
		CodeFeedUnavailable:   "The data feed is unavailable, please try again later",
		CodeGraphUnavailable:  "The map data is unavailable",
		CodeInvalidArgument:   "The request is invalid",
		CodeInternal:          "A temporary error occurred",
	},
}

// 默认提示语言
const DefaultLang = "ko"

type Error struct {
	Code Code
	Err  error
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// 本地化提示，未知语言回退到默认语言
func (e *Error) Message(lang string) string {
	table, ok := messages[lang]
	if !ok {
		table = messages[DefaultLang]
	}
	if msg, ok := table[e.Code]; ok {
		return msg
	}
	return messages[DefaultLang][CodeInternal]
}

// 取出错误链中的错误码，非navierr错误返回CodeInternal
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func ConnectCode(err error) connect.Code {
	switch CodeOf(err) {
	case CodeInvalidCoordinate, CodeEmptyRoutePoints, CodeInvalidArgument:
		return connect.CodeInvalidArgument
	case CodeMissingAPIKey:
		return connect.CodeFailedPrecondition
	case CodeFeedUnavailable, CodeGraphUnavailable:
		return connect.CodeUnavailable
	default:
		return connect.CodeInternal
	}
}

// 转换为connect错误，附带本地化提示
func ToConnect(err error, lang string) *connect.Error {
	var e *Error
	if !errors.As(err, &e) {
		return connect.NewError(connect.CodeInternal, err)
	}
	ce := connect.NewError(ConnectCode(err), errors.New(e.Message(lang)))
	ce.Meta().Set("x-error-code", string(e.Code))
	return ce
}
