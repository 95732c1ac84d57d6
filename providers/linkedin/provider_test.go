package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/intelflow/provider"
	providers "github.com/BaSui01/intelflow/internal/providerconf"
	"github.com/BaSui01/intelflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDirectoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rapid-key", r.Header.Get("x-rapidapi-key"))
		assert.NotEmpty(t, r.Header.Get("x-rapidapi-host"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/get-company-by-domain":
			if r.URL.Query().Get("domain") != "mercy.example" {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"message": "company not found"})
				return
			}
			json.NewEncoder(w).Encode(linkedinCompanyResp{
				Success: true,
				Data: linkedinCompany{
					ID:            json.Number("4012"),
					Name:          "Mercy Health",
					UniversalName: "mercy-health",
					LinkedinURL:   "https://www.linkedin.com/company/mercy-health",
					Website:       "https://www.mercy.example/about",
					Description:   "Regional healthcare system",
					Industries:    []string{"Hospitals and Health Care"},
					StaffCount:    4200,
				},
			})
		case "/get-company-employees":
			assert.Equal(t, "4012", r.URL.Query().Get("companyId"))
			json.NewEncoder(w).Encode(linkedinEmployeesResp{
				Success:   true,
				TotalPage: 2,
				Data: []linkedinEmployee{
					{FullName: "Sarah Chen", Headline: "Chief Information Officer", PublicIdentifier: "sarah-chen"},
					{FirstName: "James", LastName: "O'Brien", Title: "VP of Digital Strategy", ProfileURL: "https://www.linkedin.com/in/jobrien"},
					{FullName: "Pat Doe", Headline: "Staff Nurse"},
					{FullName: "", Headline: "anonymous entry is dropped"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(func() { server.Close() })
	return server
}

func newTestProvider(serverURL string) *LinkedInProvider {
	return NewLinkedInProvider(providers.LinkedInConfig{
		APIKey:  "rapid-key",
		BaseURL: serverURL,
	}, nil, zap.NewNop())
}

func TestNewLinkedInProvider_Defaults(t *testing.T) {
	p := NewLinkedInProvider(providers.LinkedInConfig{APIKey: "k"}, nil, zap.NewNop())
	require.NotNil(t, p)
	assert.Equal(t, "linkedin", p.Name())
	assert.Equal(t, DefaultHost, p.cfg.Host)
	assert.Equal(t, "https://"+DefaultHost, p.cfg.BaseURL)
	assert.Equal(t, 3, p.cfg.MaxPages)
	assert.Equal(t, []provider.Capability{provider.CapabilityDirectory}, p.Capabilities())
}

func TestLookupOrganization(t *testing.T) {
	server := newDirectoryServer(t)
	p := newTestProvider(server.URL)

	resp, err := p.LookupOrganization(context.Background(), &provider.OrgLookupRequest{
		Name:   "Mercy Health",
		Domain: "mercy.example",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Profile)

	profile := resp.Profile
	assert.Equal(t, "Mercy Health", profile.Name)
	assert.Equal(t, "mercy.example", profile.Domain, "domain derives from website field")
	assert.Equal(t, "Hospitals and Health Care", profile.Industry)
	assert.Equal(t, 4200, profile.Employees)

	require.Len(t, profile.Sources, 1)
	src := profile.Sources[0]
	assert.Equal(t, "linkedin", src.Provider)
	assert.Equal(t, types.OriginDirectory, src.Origin)
	assert.Equal(t, types.MethodStructured, src.Method)
	assert.Equal(t, "https://www.linkedin.com/company/mercy-health", src.URL)
}

func TestLookupOrganization_NotFound(t *testing.T) {
	server := newDirectoryServer(t)
	p := newTestProvider(server.URL)

	resp, err := p.LookupOrganization(context.Background(), &provider.OrgLookupRequest{
		Name:   "Ghost Corp",
		Domain: "ghost.example",
	})
	require.NoError(t, err, "an unlisted company is a miss, not a provider failure")
	assert.Nil(t, resp.Profile)
}

func TestLookupOrganization_RequiresDomain(t *testing.T) {
	p := newTestProvider("http://unused.example")
	_, err := p.LookupOrganization(context.Background(), &provider.OrgLookupRequest{Name: "Mercy Health"})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestListPeople(t *testing.T) {
	server := newDirectoryServer(t)
	p := newTestProvider(server.URL)

	resp, err := p.ListPeople(context.Background(), &provider.PeopleRequest{
		Organization: "Mercy Health",
		Domain:       "mercy.example",
		Page:         1,
	})
	require.NoError(t, err)
	require.Len(t, resp.People, 3)
	assert.True(t, resp.HasMore, "totalPage=2 means page 1 has a successor")

	first := resp.People[0]
	assert.Equal(t, "Sarah Chen", first.Name)
	assert.Equal(t, "Chief Information Officer", first.Title, "headline backfills missing title")
	assert.Equal(t, "https://www.linkedin.com/in/sarah-chen", first.ProfileURL)
	require.Len(t, first.Sources, 1)
	assert.Equal(t, types.OriginDirectory, first.Sources[0].Origin)
	assert.Zero(t, first.Confidence, "confidence is assigned by the scorer, not the client")

	second := resp.People[1]
	assert.Equal(t, "James O'Brien", second.Name)
	assert.Equal(t, "https://www.linkedin.com/in/jobrien", second.ProfileURL)
}

func TestListPeople_TitleFilter(t *testing.T) {
	server := newDirectoryServer(t)
	p := newTestProvider(server.URL)

	resp, err := p.ListPeople(context.Background(), &provider.PeopleRequest{
		Organization: "Mercy Health",
		Domain:       "mercy.example",
		Titles:       []string{"chief", "vp"},
	})
	require.NoError(t, err)
	require.Len(t, resp.People, 2, "staff nurse does not match the seniority filter")
	assert.Equal(t, "Sarah Chen", resp.People[0].Name)
	assert.Equal(t, "James O'Brien", resp.People[1].Name)
}

func TestListPeople_PageBeyondLimit(t *testing.T) {
	p := NewLinkedInProvider(providers.LinkedInConfig{
		APIKey:   "rapid-key",
		BaseURL:  "http://unused.example",
		MaxPages: 2,
	}, nil, zap.NewNop())

	resp, err := p.ListPeople(context.Background(), &provider.PeopleRequest{
		Domain: "mercy.example",
		Page:   3,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.People)
	assert.False(t, resp.HasMore)
}

func TestListPeople_UnknownCompany(t *testing.T) {
	server := newDirectoryServer(t)
	p := newTestProvider(server.URL)

	resp, err := p.ListPeople(context.Background(), &provider.PeopleRequest{Domain: "ghost.example"})
	require.NoError(t, err)
	assert.Empty(t, resp.People)
	assert.False(t, resp.HasMore)
}

func TestHasMorePages(t *testing.T) {
	tests := []struct {
		name string
		resp linkedinEmployeesResp
		page int
		want bool
	}{
		{"totalPage drives pagination", linkedinEmployeesResp{TotalPage: 3}, 1, true},
		{"last page by totalPage", linkedinEmployeesResp{TotalPage: 3}, 3, false},
		{"total count drives pagination", linkedinEmployeesResp{Total: 120}, 1, true},
		{"total count exhausted", linkedinEmployeesResp{Total: 40}, 1, false},
		{"full page implies more", linkedinEmployeesResp{Data: make([]linkedinEmployee, linkedinPageSize)}, 1, true},
		{"short page implies done", linkedinEmployeesResp{Data: make([]linkedinEmployee, 7)}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasMorePages(tt.resp, tt.page, 10))
		})
	}
}

func TestPickDomain(t *testing.T) {
	tests := []struct {
		website string
		want    string
	}{
		{"https://www.mercy.example/about", "mercy.example"},
		{"http://mercy.example", "mercy.example"},
		{"", "fallback.example"},
		{"https://", "fallback.example"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pickDomain(tt.website, "fallback.example"))
	}
}

func TestMapLinkedInError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantCode      types.ErrorCode
		wantRetryable bool
	}{
		{"401 maps to unauthorized", http.StatusUnauthorized, types.ErrProviderUnauthorized, false},
		{"403 maps to unauthorized", http.StatusForbidden, types.ErrProviderUnauthorized, false},
		{"404 maps to not found", http.StatusNotFound, types.ErrProviderNotFound, false},
		{"429 maps to rate limited", http.StatusTooManyRequests, types.ErrProviderRateLimited, true},
		{"502 maps to retryable upstream", http.StatusBadGateway, types.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapLinkedInError(tt.status, "msg", "linkedin")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}
