// internal/pkg/httpx/response.go
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"stockflow/internal/pkg/logger"
)

// ErrorBody 是所有接口统一的错误响应
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorMapping 把一个领域错误映射到 HTTP 状态码和错误码
type ErrorMapping struct {
	Err    error
	Status int
	Code   string
}

// WriteJSON 写出 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError 按映射表输出错误，未命中的错误视为 500
func WriteError(w http.ResponseWriter, r *http.Request, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			WriteJSON(w, m.Status, ErrorBody{Code: m.Code, Message: err.Error()})
			return
		}
	}
	logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unhandled request error")
	WriteJSON(w, http.StatusInternalServerError, ErrorBody{Code: "Internal", Message: "internal error"})
}

// BadRequest 输出参数错误
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Code: "BadRequest", Message: msg})
}

// DecodeJSON 解析请求体，拒绝未知字段
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
