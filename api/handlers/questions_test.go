package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/intelflow/agent"
	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/api"
	"github.com/BaSui01/intelflow/entity"
	"github.com/BaSui01/intelflow/testutil/fixtures"
	"github.com/BaSui01/intelflow/types"
	"github.com/BaSui01/intelflow/workflow"
)

// =============================================================================
// 🧪 测试编排器
// =============================================================================

// newTestOrchestrator 构建挂了脚本化供应商的编排器，Cleanup 时自动关停
func newTestOrchestrator(t *testing.T, opts ...workflow.Option) *workflow.Orchestrator {
	t.Helper()

	deps := agent.Deps{
		Registry: fixtures.ScriptedRegistry(),
		Guard:    guardrails.NewEvaluator(nil, nil),
		Merger:   entity.NewMerger(nil),
		Logger:   zap.NewNop(),
	}
	router := workflow.NewRouter(deps, agent.DefaultConfig())
	o := workflow.NewOrchestrator(router, workflow.Config{DefaultBudget: 10 * time.Second}, zaptest.NewLogger(t), opts...)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func postQuestion(t *testing.T, h *QuestionHandler, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleSubmit(rr, req)
	return rr
}

// =============================================================================
// 🧪 QuestionHandler 测试
// =============================================================================

func TestQuestionHandler_Submit(t *testing.T) {
	o := newTestOrchestrator(t)
	h := NewQuestionHandler(o, zaptest.NewLogger(t))

	rr := postQuestion(t, h, api.QuestionRequest{
		Organization: fixtures.AcmeOrganization,
		Question:     "Who are the decision makers and what are they investing in?",
	})

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var accepted api.RunAccepted
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	assert.NotEmpty(t, accepted.RunID)
	assert.Equal(t, types.RunInProgress, accepted.Status)

	// 受理响应携带完整计划：解析焦点开头，综述焦点收尾
	require.NotEmpty(t, accepted.FocusAreas)
	assert.Equal(t, types.FocusCompanyResolution, accepted.FocusAreas[0])
	assert.Equal(t, types.FocusSynthesis, accepted.FocusAreas[len(accepted.FocusAreas)-1])

	// 运行立即可在注册表查到
	run, ok := o.Runs().Get(accepted.RunID)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, run.Wait(ctx))
	assert.Equal(t, types.RunComplete, run.Status())
}

func TestQuestionHandler_Submit_ChitChat(t *testing.T) {
	o := newTestOrchestrator(t)
	h := NewQuestionHandler(o, zap.NewNop())

	rr := postQuestion(t, h, api.QuestionRequest{
		Organization: fixtures.AcmeOrganization,
		Question:     "hello there",
	})

	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted api.RunAccepted
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	assert.Equal(t, []types.FocusArea{types.FocusSynthesis}, accepted.FocusAreas)
}

func TestQuestionHandler_Submit_InvalidRequests(t *testing.T) {
	o := newTestOrchestrator(t)
	h := NewQuestionHandler(o, zap.NewNop())

	tests := []struct {
		name         string
		request      api.QuestionRequest
		expectedCode types.ErrorCode
	}{
		{
			name:         "missing organization",
			request:      api.QuestionRequest{Question: "Who leads procurement?"},
			expectedCode: types.ErrInvalidRequest,
		},
		{
			name:         "missing question",
			request:      api.QuestionRequest{Organization: "Acme"},
			expectedCode: types.ErrInvalidRequest,
		},
		{
			name: "unknown focus area",
			request: api.QuestionRequest{
				Organization: "Acme",
				Question:     "Who leads procurement?",
				Focus:        []string{"astrology"},
			},
			expectedCode: types.ErrInvalidRequest,
		},
		{
			name: "malformed budget",
			request: api.QuestionRequest{
				Organization: "Acme",
				Question:     "Who leads procurement?",
				Budget:       "quickly",
			},
			expectedCode: types.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postQuestion(t, h, tt.request)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.expectedCode), resp.Error.Code)
		})
	}
}

func TestQuestionHandler_Submit_MalformedJSON(t *testing.T) {
	o := newTestOrchestrator(t)
	h := NewQuestionHandler(o, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleSubmit(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQuestionHandler_Submit_WrongContentType(t *testing.T) {
	o := newTestOrchestrator(t)
	h := NewQuestionHandler(o, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewBufferString("organization=Acme"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.HandleSubmit(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQuestionHandler_Submit_MethodNotAllowed(t *testing.T) {
	o := newTestOrchestrator(t)
	h := NewQuestionHandler(o, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/questions", nil)
	rr := httptest.NewRecorder()
	h.HandleSubmit(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestQuestionHandler_Submit_AfterShutdown(t *testing.T) {
	o := newTestOrchestrator(t)
	h := NewQuestionHandler(o, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Shutdown(ctx))

	rr := postQuestion(t, h, api.QuestionRequest{
		Organization: "Acme",
		Question:     "Who are the decision makers?",
	})

	// 关停中的编排器拒绝新提交，错误自带 503
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
}
