package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/middleware"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをdstにデコードする。
// 不正なJSON、未知のフィールド、空ボディはINVALID_REQUESTとして扱う。
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.NewInvalidRequestError()
	}
	return nil
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	if repository.IsTransient(err) {
		slog.Warn("store unavailable", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewServiceUnavailableError())
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidID, model.ErrCodeInvalidVoteKind,
		model.ErrCodeInvalidStatus, model.ErrCodeInvalidRole, model.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case model.ErrCodeAlreadyFinalized:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeSessionNotFound, model.ErrCodeProposalNotFound, model.ErrCodeMemberNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyVoted, model.ErrCodeSessionClosed, model.ErrCodeSessionAlreadyOpen,
		model.ErrCodeProposalNotEligible, model.ErrCodeProposalNotEditable,
		model.ErrCodeEmailTaken, model.ErrCodeAdminExists:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// currentMember は認証済みメンバーを返す。存在しない場合は401を書き込みfalseを返す。
func currentMember(w http.ResponseWriter, r *http.Request) (*model.Member, bool) {
	member, ok := middleware.MemberFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return member, true
}
