package authgate

import (
	"context"
)

// HTTPFramework abstracts the framework-specific request/response surface so
// the middleware logic is written once and mounted on either Fiber or net/http.

type HTTPFramework interface {
	GetRequestHeader(r interface{}, key string) string
	SetResponseHeader(w interface{}, key, value string)
	GetRequestParam(r interface{}, key string) string
	WriteResponse(w interface{}, status int, body []byte) error
	GetRequestContext(r interface{}) context.Context
	SetContextValue(r interface{}, key, value interface{})
	GetContextValue(r interface{}, key interface{}) interface{}
	GetRequestPath(r interface{}) string
}
