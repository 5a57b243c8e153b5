package generator

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shouni/yandex-foundation-kit/pkg/domain"
)

// errorEnvelope は非 2xx で返るエラーボディです。
// operation API は {code, message, details} を、LLM API は {"error": {...}} を返します。
type errorEnvelope struct {
	Code    domain.StatusCode `json:"code"`
	Message string            `json:"message"`
	Details []json.RawMessage `json:"details"`
	Error   *struct {
		GRPCCode   domain.StatusCode `json:"grpcCode"`
		HTTPCode   int               `json:"httpCode"`
		Message    string            `json:"message"`
		HTTPStatus string            `json:"httpStatus"`
		Details    []json.RawMessage `json:"details"`
	} `json:"error"`
}

// decodeServiceError は非 2xx のボディを ServiceError に変換します。形が合わなければ DecodeError です。
func decodeServiceError(resp *domain.RawResponse) error {
	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return &domain.DecodeError{StatusCode: resp.StatusCode, Raw: string(resp.Body), Err: err}
	}

	switch {
	case env.Error != nil && env.Error.Message != "":
		code := env.Error.GRPCCode.String()
		if code == "" && env.Error.HTTPCode != 0 {
			code = strconv.Itoa(env.Error.HTTPCode)
		}
		return &domain.ServiceError{
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    env.Error.Message,
			Details:    env.Error.Details,
		}
	case env.Message != "":
		return &domain.ServiceError{
			StatusCode: resp.StatusCode,
			Code:       env.Code.String(),
			Message:    env.Message,
			Details:    env.Details,
		}
	}
	return &domain.DecodeError{
		StatusCode: resp.StatusCode,
		Raw:        string(resp.Body),
		Err:        errors.New("error envelope has no message"),
	}
}

// decodeOperation はオペレーションのエンベロープを読み取ります。
func decodeOperation(resp *domain.RawResponse) (*domain.Operation, error) {
	if !resp.IsSuccess() {
		return nil, decodeServiceError(resp)
	}

	var op domain.Operation
	if err := json.Unmarshal(resp.Body, &op); err != nil {
		return nil, &domain.DecodeError{StatusCode: resp.StatusCode, Raw: string(resp.Body), Err: err}
	}
	if strings.TrimSpace(op.ID) == "" {
		return nil, &domain.DecodeError{
			StatusCode: resp.StatusCode,
			Raw:        string(resp.Body),
			Err:        errors.New("operation id is missing"),
		}
	}
	return &op, nil
}

// decodeCompletion は同期テキスト生成の結果を読み取ります。
func decodeCompletion(resp *domain.RawResponse) (*domain.CompletionResult, error) {
	if !resp.IsSuccess() {
		return nil, decodeServiceError(resp)
	}

	var res domain.CompletionResult
	if err := json.Unmarshal(resp.Body, &res); err != nil {
		return nil, &domain.DecodeError{StatusCode: resp.StatusCode, Raw: string(resp.Body), Err: err}
	}
	if len(res.Result.Alternatives) == 0 {
		return nil, &domain.ProtocolViolationError{Reason: "completion result has no alternatives"}
	}
	return &res, nil
}
