package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/intelflow/agent"
	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/entity"
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// mockClient is the embedded base for capability mocks.
type mockClient struct {
	name string
	caps []provider.Capability
}

func (m *mockClient) Name() string                        { return m.name }
func (m *mockClient) Capabilities() []provider.Capability { return m.caps }
func (m *mockClient) HealthCheck(_ context.Context) (*provider.HealthStatus, error) {
	return &provider.HealthStatus{Healthy: true}, nil
}

type mockSearcher struct {
	mockClient
	searchFn func(ctx context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error)
}

func newMockSearcher(name string, fn func(ctx context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error)) *mockSearcher {
	return &mockSearcher{
		mockClient: mockClient{name: name, caps: []provider.Capability{provider.CapabilitySearch}},
		searchFn:   fn,
	}
}

func (m *mockSearcher) Search(ctx context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error) {
	return m.searchFn(ctx, req)
}

type mockDirectory struct {
	mockClient
	lookupFn func(ctx context.Context, req *provider.OrgLookupRequest) (*provider.OrgLookupResponse, error)
	peopleFn func(ctx context.Context, req *provider.PeopleRequest) (*provider.PeopleResponse, error)
}

func newMockDirectory(name string) *mockDirectory {
	return &mockDirectory{
		mockClient: mockClient{name: name, caps: []provider.Capability{provider.CapabilityDirectory}},
	}
}

func (m *mockDirectory) LookupOrganization(ctx context.Context, req *provider.OrgLookupRequest) (*provider.OrgLookupResponse, error) {
	if m.lookupFn == nil {
		return &provider.OrgLookupResponse{}, nil
	}
	return m.lookupFn(ctx, req)
}

func (m *mockDirectory) ListPeople(ctx context.Context, req *provider.PeopleRequest) (*provider.PeopleResponse, error) {
	if m.peopleFn == nil {
		return &provider.PeopleResponse{}, nil
	}
	return m.peopleFn(ctx, req)
}

type mockSynthesizer struct {
	mockClient
	synthesizeFn func(ctx context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error)
}

func newMockSynthesizer(name string, fn func(ctx context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error)) *mockSynthesizer {
	return &mockSynthesizer{
		mockClient:   mockClient{name: name, caps: []provider.Capability{provider.CapabilitySynthesize}},
		synthesizeFn: fn,
	}
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error) {
	return m.synthesizeFn(ctx, req)
}

func testDeps(registry *provider.Registry) agent.Deps {
	return agent.Deps{
		Registry: registry,
		Guard:    guardrails.NewEvaluator(nil, nil),
		Merger:   entity.NewMerger(nil),
		Logger:   zap.NewNop(),
	}
}

func testAgentConfig() agent.Config { return agent.DefaultConfig() }

// newTestRouter wires the given clients into a routing table with nop
// logging and default agent behavior.
func newTestRouter(clients ...provider.Client) *Router {
	registry := provider.NewRegistry()
	for _, c := range clients {
		registry.Register(c)
	}
	return NewRouter(testDeps(registry), testAgentConfig())
}

func newTestOrchestrator(cfg Config, clients ...provider.Client) *Orchestrator {
	return NewOrchestrator(newTestRouter(clients...), cfg, zap.NewNop())
}

// scriptedSearcher 按查询内容分派固定结果，模拟一个同时服务多种
// 焦点查询的真实搜索提供商。
func scriptedSearcher(name string) *mockSearcher {
	return newMockSearcher(name, func(_ context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error) {
		switch {
		case strings.Contains(req.Query, "official website"):
			return &provider.SearchResponse{Results: []types.SourceDocument{{
				Title:    "Acme Corp",
				URL:      "https://acme.example/about",
				Snippet:  "Acme Corp official website.",
				Provider: name,
				Origin:   types.OriginSearch,
				Method:   types.MethodSnippet,
			}}}, nil
		case strings.Contains(req.Query, "investment funding acquisition"):
			return &provider.SearchResponse{Results: []types.SourceDocument{{
				Title:    "Acme Corp expands",
				URL:      "https://news.example/acme-deal",
				Snippet:  "Acme Corp acquired Helix Robotics for $45 million on 2024-03-15.",
				Provider: name,
				Origin:   types.OriginSearch,
				Method:   types.MethodSnippet,
			}}}, nil
		case strings.Contains(req.Query, "challenges staffing shortage"):
			return &provider.SearchResponse{Results: []types.SourceDocument{{
				Title:    "Acme Corp operations report",
				URL:      "https://news.example/acme-ops",
				Snippet:  "Acme Corp faces a staffing shortage across its assembly plants.",
				Provider: name,
				Origin:   types.OriginSearch,
				Method:   types.MethodSnippet,
			}}}, nil
		default:
			return &provider.SearchResponse{}, nil
		}
	})
}

// scriptedDirectory serves three senior people with profile URLs.
func scriptedDirectory(name string) *mockDirectory {
	dir := newMockDirectory(name)
	dir.peopleFn = func(_ context.Context, req *provider.PeopleRequest) (*provider.PeopleResponse, error) {
		if req.Page > 1 {
			return &provider.PeopleResponse{}, nil
		}
		people := make([]types.DecisionMaker, 0, 3)
		for i, row := range [][2]string{
			{"Sarah Chen", "Chief Information Officer"},
			{"Marcus Webb", "Chief Financial Officer"},
			{"Elena Ortiz", "Vice President of Operations"},
		} {
			people = append(people, types.DecisionMaker{
				Name:       row[0],
				Title:      row[1],
				ProfileURL: fmt.Sprintf("https://linkedin.com/in/person-%d", i+1),
				Sources: []types.SourceDocument{{
					Title:    row[0] + " | LinkedIn",
					URL:      fmt.Sprintf("https://linkedin.com/in/person-%d", i+1),
					Provider: name,
					Origin:   types.OriginDirectory,
					Method:   types.MethodStructured,
				}},
			})
		}
		return &provider.PeopleResponse{People: people}, nil
	}
	return dir
}

// scriptedSynthesizer returns a narrative that passes the synthesis
// guardrail for the given organization.
func scriptedSynthesizer(name string) *mockSynthesizer {
	return newMockSynthesizer(name, func(_ context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error) {
		return &provider.SynthesisResponse{
			Text: fmt.Sprintf("%s is preparing a capital push: the leadership group around Sarah Chen is closing robotics deals while operational modernization stays behind plan across its plants.", req.Organization),
			Model: "mock-synth-1",
		}, nil
	})
}
