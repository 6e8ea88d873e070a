package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/rushteam/survkit/core"
	"github.com/rushteam/survkit/logging"
	"github.com/rushteam/survkit/predictor"
)

const maxBodyBytes = 4 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// PassengerInput 是单条预测请求体。数值字段只做取值范围校验，
// 是否齐全由特征对齐阶段判断（缺失的字段可由在线特征补全）。
type PassengerInput struct {
	Name        string `json:"name" validate:"required,max=256"`
	PassengerID *int64 `json:"passenger_id,omitempty" validate:"omitempty,gte=1"`

	Pclass             *int     `json:"Pclass,omitempty" validate:"omitempty,oneof=1 2 3"`
	Sex                *string  `json:"Sex,omitempty"`
	Age                *float64 `json:"Age,omitempty" validate:"omitempty,gte=0,lte=120"`
	SibSp              *int     `json:"SibSp,omitempty" validate:"omitempty,gte=0"`
	Parch              *int     `json:"Parch,omitempty" validate:"omitempty,gte=0"`
	Fare               *float64 `json:"Fare,omitempty" validate:"omitempty,gte=0"`
	Embarked           *string  `json:"Embarked,omitempty"`
	CabinAssigned      *int     `json:"Cabin_Assigned,omitempty" validate:"omitempty,oneof=0 1"`
	NameSize           *int     `json:"Name_Size,omitempty" validate:"omitempty,gte=0"`
	TicketNumberCounts *int     `json:"TicketNumberCounts,omitempty" validate:"omitempty,gte=0"`
	FamilySize         *int     `json:"Family_Size,omitempty" validate:"omitempty,gte=0"`
	FamilySizeGrouped  *string  `json:"Family_Size_Grouped,omitempty"`

	Title           *string `json:"Title,omitempty"`
	TicketLocation  *string `json:"TicketLocation,omitempty"`
	AgeCut          *int    `json:"Age_Cut,omitempty"`
	FareCut         *int    `json:"Fare_Cut,omitempty"`
	NameLengthGroup *int    `json:"Name_Length_Group,omitempty"`
}

// Record 把请求转为领域记录，未提供的字段不出现在记录中
func (in *PassengerInput) Record() (core.Record, error) {
	m := make(map[string]any, 20)
	put := func(key string, v any) {
		switch x := v.(type) {
		case *int64:
			if x != nil {
				m[key] = *x
			}
		case *int:
			if x != nil {
				m[key] = *x
			}
		case *float64:
			if x != nil {
				m[key] = *x
			}
		case *string:
			if x != nil {
				m[key] = *x
			}
		}
	}
	put("passenger_id", in.PassengerID)
	put("Pclass", in.Pclass)
	put("Sex", in.Sex)
	put("Age", in.Age)
	put("SibSp", in.SibSp)
	put("Parch", in.Parch)
	put("Fare", in.Fare)
	put("Embarked", in.Embarked)
	put("Cabin_Assigned", in.CabinAssigned)
	put("Name_Size", in.NameSize)
	put("TicketNumberCounts", in.TicketNumberCounts)
	put("Family_Size", in.FamilySize)
	put("Family_Size_Grouped", in.FamilySizeGrouped)
	put("Title", in.Title)
	put("TicketLocation", in.TicketLocation)
	put("Age_Cut", in.AgeCut)
	put("Fare_Cut", in.FareCut)
	put("Name_Length_Group", in.NameLengthGroup)
	return core.RecordFromMap(m)
}

// BatchRequest 批量预测请求
type BatchRequest struct {
	Items []PassengerInput `json:"items" validate:"required,min=1,dive"`
}

// PredictResponse 在结果之外附带两位小数的生还概率
type PredictResponse struct {
	*core.PredictionResult
	Probability float64 `json:"probability"`
}

func newPredictResponse(res *core.PredictionResult) *PredictResponse {
	return &PredictResponse{
		PredictionResult: res,
		Probability:      math.Round(res.ProbSurvive*100) / 100,
	}
}

// BatchItemResponse 与请求条目一一对应，Result 和 Error 二选一
type BatchItemResponse struct {
	Result *PredictResponse `json:"result,omitempty"`
	Error  *ErrorBody       `json:"error,omitempty"`
}

// ErrorBody 统一的错误响应体
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PassengerInput
	if !decodeRequest(w, r, &req) {
		return
	}
	rec, err := req.Record()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, err.Error(), nil)
		return
	}
	res, err := s.predictor.Predict(r.Context(), req.Name, rec)
	if err != nil {
		status, body := errorBody(err)
		writeError(w, r, status, body.Code, body.Message, body.Details)
		return
	}
	writeJSON(w, http.StatusOK, newPredictResponse(res))
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if len(req.Items) > s.maxBatch {
		writeError(w, r, http.StatusRequestEntityTooLarge, core.ErrorCodeInvalidInput,
			fmt.Sprintf("batch of %d items exceeds limit %d", len(req.Items), s.maxBatch), nil)
		return
	}

	out := make([]BatchItemResponse, len(req.Items))
	items := make([]predictor.BatchItem, 0, len(req.Items))
	index := make([]int, 0, len(req.Items))
	for i := range req.Items {
		rec, err := req.Items[i].Record()
		if err != nil {
			out[i].Error = &ErrorBody{Code: core.ErrorCodeInvalidInput, Message: err.Error()}
			continue
		}
		items = append(items, predictor.BatchItem{Subject: req.Items[i].Name, Record: rec})
		index = append(index, i)
	}

	results, err := s.predictor.PredictBatch(r.Context(), items)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, core.ErrorCodeUnavailable, err.Error(), nil)
		return
	}
	for j, res := range results {
		i := index[j]
		if res.Err != nil {
			_, body := errorBody(res.Err)
			out[i].Error = &body
			continue
		}
		out[i].Result = newPredictResponse(res.Result)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleModel(w http.ResponseWriter, _ *http.Request) {
	a := s.predictor.Artifact()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":             a.Name(),
		"version":          a.Version(),
		"capability":       a.Capability().String(),
		"expected_columns": a.ExpectedColumns(),
		"estimators":       len(a.Estimators()),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist := s.predictor.History()
	if hist == nil {
		writeError(w, r, http.StatusNotImplemented, core.ErrorCodeNotSupported, "history store is disabled", nil)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, "limit must be an integer in [1, 1000]", nil)
			return
		}
		limit = n
	}
	entries, err := hist.Recent(r.Context(), limit)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("backend", hist.Name()).Msg("history query failed")
		writeError(w, r, http.StatusInternalServerError, core.ErrorCodeInternalError, "history query failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	hist := s.predictor.History()
	if hist == nil {
		writeError(w, r, http.StatusNotImplemented, core.ErrorCodeNotSupported, "history store is disabled", nil)
		return
	}
	entry, err := hist.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case core.IsStoreNotFound(err):
		writeError(w, r, http.StatusNotFound, core.ErrorCodeNotFound, "history entry not found", nil)
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("backend", hist.Name()).Msg("history query failed")
		writeError(w, r, http.StatusInternalServerError, core.ErrorCodeInternalError, "history query failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// decodeRequest 解码并校验请求体，失败时已写出响应
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, "read body: "+err.Error(), nil)
		return false
	}
	if len(body) > maxBodyBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, core.ErrorCodeInvalidInput, "request body too large", nil)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid JSON: "+err.Error(), nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, err.Error(), nil)
			return false
		}
		fields := make([]string, 0, len(verrs))
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Namespace())
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		writeError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, strings.Join(msgs, "; "),
			map[string]any{"fields": fields})
		return false
	}
	return true
}

// errorBody 把领域错误映射为 HTTP 状态码和响应体。
// 输入问题（类别非法、缺列、取值类型不符）返回 422，模型错误返回 500。
func errorBody(err error) (int, ErrorBody) {
	var (
		verr *core.ValidationError
		mf   *core.MissingFeatureError
		te   *core.FeatureTypeError
		ie   *core.InferenceError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, ErrorBody{
			Code:    core.ErrorCodeInvalidCategory,
			Message: verr.Error(),
			Details: map[string]any{"violations": verr.Violations},
		}
	case errors.As(err, &mf):
		return http.StatusUnprocessableEntity, ErrorBody{
			Code:    core.ErrorCodeMissingFeature,
			Message: mf.Error(),
			Details: map[string]any{"missing_columns": mf.Columns, "blocked_inputs": mf.BlockedInputs},
		}
	case errors.As(err, &te):
		return http.StatusUnprocessableEntity, ErrorBody{
			Code:    core.ErrorCodeFeatureType,
			Message: te.Error(),
			Details: map[string]any{"fields": te.Fields(), "mismatches": te.Mismatches},
		}
	case errors.As(err, &ie):
		return http.StatusInternalServerError, ErrorBody{
			Code:    core.ErrorCodeInference,
			Message: ie.Error(),
		}
	}
	if de := core.GetDomainError(err); de != nil {
		return http.StatusInternalServerError, ErrorBody{Code: de.Code, Message: de.Message}
	}
	return http.StatusInternalServerError, ErrorBody{Code: core.ErrorCodeInternalError, Message: err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	writeJSON(w, status, errorResponse{
		Error:     ErrorBody{Code: code, Message: message, Details: details},
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}
