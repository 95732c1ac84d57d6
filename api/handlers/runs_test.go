package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
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
	"github.com/BaSui01/intelflow/internal/archive"
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/testutil/fixtures"
	"github.com/BaSui01/intelflow/testutil/mocks"
	"github.com/BaSui01/intelflow/types"
	"github.com/BaSui01/intelflow/workflow"
)

// =============================================================================
// 🧪 测试替身
// =============================================================================

// gatedRegistry 与 ScriptedRegistry 相同，但综述供应商阻塞到 release
// 关闭为止，让运行可靠地停留在进行中。
func gatedRegistry(release <-chan struct{}) *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register(fixtures.ScriptedSearcher("tavily"))
	registry.Register(fixtures.ScriptedDirectory("linkedin"))
	registry.Register(mocks.NewFakeSynthesizer("gemini").WithSynthesizeFunc(
		func(ctx context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &provider.SynthesisResponse{
				Text:  req.Organization + " is lining up suppliers and leadership sign-off for a manufacturing expansion planned across the next two quarters.",
				Model: "fake-synth-1",
			}, nil
		}))
	return registry
}

func newGatedOrchestrator(t *testing.T, release <-chan struct{}) *workflow.Orchestrator {
	t.Helper()

	deps := agent.Deps{
		Registry: gatedRegistry(release),
		Guard:    guardrails.NewEvaluator(nil, nil),
		Merger:   entity.NewMerger(nil),
		Logger:   zap.NewNop(),
	}
	router := workflow.NewRouter(deps, agent.DefaultConfig())
	o := workflow.NewOrchestrator(router, workflow.Config{DefaultBudget: 10 * time.Second}, zaptest.NewLogger(t))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

// fakeRunArchive 内存版归档端口，免数据库
type fakeRunArchive struct {
	records map[string]*archive.RunRecord
	list    []archive.RunRecord
	getErr  error
	listErr error
	gotOpts archive.ListOptions
}

func (f *fakeRunArchive) GetRun(_ context.Context, id string) (*archive.RunRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRunArchive) ListRuns(_ context.Context, opts archive.ListOptions) ([]archive.RunRecord, error) {
	f.gotOpts = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

// archivedRecord 构造一条完整的归档运行，响应契约已按存储格式序列化
func archivedRecord(t *testing.T, id string) *archive.RunRecord {
	t.Helper()

	synthesis := "Globex Industrial Group is consolidating suppliers ahead of a plant expansion led by its operations leadership."
	resp := &types.Response{
		Organization: "Globex Industrial Group",
		FocusAreas:   []string{"company_resolution", "decision_makers", "synthesis"},
		DecisionMakers: []types.ResponsePerson{{
			Name:       "Dana Voss",
			Title:      "Chief Operating Officer",
			SourceURL:  "https://globex.example/leadership",
			Confidence: 0.95,
		}},
		Synthesis:        &synthesis,
		Status:           types.RunComplete,
		MeetingReadiness: &types.MeetingReadiness{Score: 58, Fit: 20, Access: 23, Need: 10, Timing: 5},
	}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	score := 58
	created := time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)
	finished := created.Add(38 * time.Second)
	return &archive.RunRecord{
		ID:             id,
		Organization:   resp.Organization,
		Question:       "Who signs off on supplier consolidation?",
		Status:         string(types.RunComplete),
		FocusAreas:     `["company_resolution","decision_makers","synthesis"]`,
		Response:       string(raw),
		ReadinessScore: &score,
		CreatedAt:      created,
		FinishedAt:     &finished,
		DurationMS:     38000,
	}
}

func getRun(h *RunHandler, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id, nil)
	req.SetPathValue("id", id)
	rr := httptest.NewRecorder()
	h.HandleRun(rr, req)
	return rr
}

// =============================================================================
// 🧪 RunHandler 单运行查询测试
// =============================================================================

func TestRunHandler_RegistryHit(t *testing.T) {
	o := newTestOrchestrator(t)
	h := NewRunHandler(o.Runs(), nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run, err := o.Submit(ctx, fixtures.ResearchQuestion())
	require.NoError(t, err)
	require.NoError(t, run.Wait(ctx))

	rr := getRun(h, run.ID)
	require.Equal(t, http.StatusOK, rr.Code)

	var view api.RunView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, run.ID, view.RunID)
	assert.Equal(t, types.RunComplete, view.Status)
	require.NotNil(t, view.Result)
	assert.Equal(t, fixtures.AcmeOrganization, view.Result.Organization)
	assert.NotEmpty(t, view.Result.DecisionMakers)
	require.NotNil(t, view.FinishedAt)
	assert.Empty(t, view.FocusStates, "终态视图不应再携带焦点状态")
}

func TestRunHandler_InProgress(t *testing.T) {
	release := make(chan struct{})
	o := newGatedOrchestrator(t, release)
	h := NewRunHandler(o.Runs(), nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run, err := o.Submit(ctx, fixtures.ResearchQuestion())
	require.NoError(t, err)

	// 综述被闸门挡住，运行必然还在进行中
	rr := getRun(h, run.ID)
	require.Equal(t, http.StatusOK, rr.Code)

	var view api.RunView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, types.RunInProgress, view.Status)
	assert.Nil(t, view.Result)
	assert.Nil(t, view.FinishedAt)
	assert.NotEmpty(t, view.FocusStates, "进行中的视图必须暴露各焦点状态")

	close(release)
	require.NoError(t, run.Wait(ctx))

	rr = getRun(h, run.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	view = api.RunView{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, types.RunComplete, view.Status)
	assert.NotNil(t, view.Result)
}

func TestRunHandler_ArchiveFallback(t *testing.T) {
	registry := workflow.NewRunRegistry(4)
	arch := &fakeRunArchive{records: map[string]*archive.RunRecord{
		"run-evicted": archivedRecord(t, "run-evicted"),
	}}
	h := NewRunHandler(registry, arch, zap.NewNop())

	rr := getRun(h, "run-evicted")
	require.Equal(t, http.StatusOK, rr.Code)

	var view api.RunView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "run-evicted", view.RunID)
	assert.Equal(t, types.RunComplete, view.Status)
	assert.EqualValues(t, 38000, view.DurationMS)
	require.NotNil(t, view.Result)
	assert.Equal(t, "Globex Industrial Group", view.Result.Organization)
	require.Len(t, view.Result.DecisionMakers, 1)
	assert.Equal(t, "Dana Voss", view.Result.DecisionMakers[0].Name)
	require.NotNil(t, view.Result.MeetingReadiness)
	assert.Equal(t, 58, view.Result.MeetingReadiness.Score)
}

func TestRunHandler_NotFound(t *testing.T) {
	registry := workflow.NewRunRegistry(4)

	t.Run("archive miss", func(t *testing.T) {
		h := NewRunHandler(registry, &fakeRunArchive{records: map[string]*archive.RunRecord{}}, zap.NewNop())
		rr := getRun(h, "run-missing")
		require.Equal(t, http.StatusNotFound, rr.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(types.ErrRunNotFound), resp.Error.Code)
	})

	t.Run("no archive configured", func(t *testing.T) {
		h := NewRunHandler(registry, nil, zap.NewNop())
		rr := getRun(h, "run-missing")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRunHandler_ArchiveError(t *testing.T) {
	registry := workflow.NewRunRegistry(4)
	h := NewRunHandler(registry, &fakeRunArchive{getErr: errors.New("connection reset")}, zap.NewNop())

	rr := getRun(h, "run-any")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRunHandler_CorruptArchivedResponse(t *testing.T) {
	rec := archivedRecord(t, "run-corrupt")
	rec.Response = `{"organization": "Globex`
	registry := workflow.NewRunRegistry(4)
	h := NewRunHandler(registry, &fakeRunArchive{records: map[string]*archive.RunRecord{"run-corrupt": rec}}, zap.NewNop())

	rr := getRun(h, "run-corrupt")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRunHandler_MissingID(t *testing.T) {
	h := NewRunHandler(workflow.NewRunRegistry(4), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/", nil)
	rr := httptest.NewRecorder()
	h.HandleRun(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// 🧪 RunHandler 列表查询测试
// =============================================================================

func TestRunHandler_List_FromArchive(t *testing.T) {
	arch := &fakeRunArchive{list: []archive.RunRecord{
		*archivedRecord(t, "run-2"),
		*archivedRecord(t, "run-1"),
	}}
	h := NewRunHandler(workflow.NewRunRegistry(4), arch, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?organization=Globex+Industrial+Group&limit=10", nil)
	rr := httptest.NewRecorder()
	h.HandleList(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var list api.RunListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	require.Len(t, list.Runs, 2)
	assert.Equal(t, "run-2", list.Runs[0].RunID)
	assert.Equal(t, "Globex Industrial Group", list.Runs[0].Organization)
	require.NotNil(t, list.Runs[0].ReadinessScore)
	assert.Equal(t, 58, *list.Runs[0].ReadinessScore)

	// 查询参数原样传给归档层
	assert.Equal(t, "Globex Industrial Group", arch.gotOpts.Organization)
	assert.Equal(t, 10, arch.gotOpts.Limit)
}

func TestRunHandler_List_ArchiveError(t *testing.T) {
	h := NewRunHandler(workflow.NewRunRegistry(4), &fakeRunArchive{listErr: errors.New("pool exhausted")}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rr := httptest.NewRecorder()
	h.HandleList(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRunHandler_List_RegistryFallback(t *testing.T) {
	o := newTestOrchestrator(t)
	h := NewRunHandler(o.Runs(), nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first, err := o.Submit(ctx, fixtures.ResearchQuestion())
	require.NoError(t, err)
	require.NoError(t, first.Wait(ctx))

	second, err := o.Submit(ctx, &types.Question{
		Organization: "Globex Industrial Group",
		Text:         "hello",
	})
	require.NoError(t, err)
	require.NoError(t, second.Wait(ctx))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rr := httptest.NewRecorder()
	h.HandleList(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var list api.RunListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 2, list.Count)
	// 注册表按最近提交在前排序
	assert.Equal(t, second.ID, list.Runs[0].RunID)
	assert.Equal(t, first.ID, list.Runs[1].RunID)

	// 组织过滤在兜底路径同样生效
	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs?organization="+url.QueryEscape(fixtures.AcmeOrganization), nil)
	rr = httptest.NewRecorder()
	h.HandleList(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	list = api.RunListResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, first.ID, list.Runs[0].RunID)
}

func TestListOptionsFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/runs?organization=Acme&status=complete&limit=25&offset=5", nil)
	opts := listOptionsFromQuery(req)

	assert.Equal(t, "Acme", opts.Organization)
	assert.Equal(t, "complete", opts.Status)
	assert.Equal(t, 25, opts.Limit)
	assert.Equal(t, 5, opts.Offset)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=abc&offset=-3", nil)
	opts = listOptionsFromQuery(req)
	assert.Zero(t, opts.Limit)
	assert.Zero(t, opts.Offset)
}
