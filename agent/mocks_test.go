package agent

import (
	"context"

	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/entity"
	"github.com/BaSui01/intelflow/provider"
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

// mockSearcher implements provider.Searcher with a function callback.
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

// mockDirectory implements provider.Directory with function callbacks.
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

// mockExtractor implements provider.Extractor with a function callback.
type mockExtractor struct {
	mockClient
	extractFn func(ctx context.Context, req *provider.ExtractRequest) (*provider.ExtractResponse, error)
}

func newMockExtractor(name string, fn func(ctx context.Context, req *provider.ExtractRequest) (*provider.ExtractResponse, error)) *mockExtractor {
	return &mockExtractor{
		mockClient: mockClient{name: name, caps: []provider.Capability{provider.CapabilityExtract}},
		extractFn:  fn,
	}
}

func (m *mockExtractor) Extract(ctx context.Context, req *provider.ExtractRequest) (*provider.ExtractResponse, error) {
	return m.extractFn(ctx, req)
}

// mockSynthesizer implements provider.Synthesizer with a function callback.
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

// newTestDeps wires a registry of the given clients with nop logging.
func newTestDeps(clients ...provider.Client) Deps {
	registry := provider.NewRegistry()
	for _, c := range clients {
		registry.Register(c)
	}
	return Deps{
		Registry: registry,
		Guard:    guardrails.NewEvaluator(nil, nil),
		Merger:   entity.NewMerger(nil),
		Logger:   zap.NewNop(),
	}
}
