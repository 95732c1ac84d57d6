// =============================================================================
// 📦 测试数据工厂 - 脚本化供应商注册表
// =============================================================================
// 复现一次完整研究流程的供应商组合：tavily 按查询分派检索结果，
// linkedin 提供三位高管名录，gemini 生成通过守卫的综述。
// =============================================================================
package fixtures

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/testutil/mocks"
	"github.com/BaSui01/intelflow/types"
)

// ScriptedSearcher 返回按查询内容分派固定结果的检索供应商。
// 官网查询命中解析文档，投资查询命中并购新闻，缺口查询命中运营报道。
func ScriptedSearcher(name string) *mocks.FakeSearcher {
	return mocks.NewFakeSearcher(name).WithSearchFunc(
		func(_ context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error) {
			switch {
			case strings.Contains(req.Query, "official website"):
				return &provider.SearchResponse{Results: []types.SourceDocument{AcmeAboutDoc(name)}}, nil
			case strings.Contains(req.Query, "investment funding acquisition"):
				return &provider.SearchResponse{Results: []types.SourceDocument{AcmeDealDoc(name)}}, nil
			case strings.Contains(req.Query, "challenges staffing shortage"):
				return &provider.SearchResponse{Results: []types.SourceDocument{AcmeOpsDoc(name)}}, nil
			default:
				return &provider.SearchResponse{}, nil
			}
		})
}

// ScriptedDirectory 返回提供三位高管名录的目录供应商
func ScriptedDirectory(name string) *mocks.FakeDirectory {
	return mocks.NewFakeDirectory(name).WithPeople(AcmeLeadership(name)...)
}

// ScriptedSynthesizer 返回生成合格综述的综述供应商，叙事中引用
// 组织名与首位决策人
func ScriptedSynthesizer(name string) *mocks.FakeSynthesizer {
	return mocks.NewFakeSynthesizer(name).WithSynthesizeFunc(
		func(_ context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error) {
			return &provider.SynthesisResponse{
				Text: fmt.Sprintf("%s is preparing a capital push: the leadership group around Sarah Chen is closing robotics deals while operational modernization stays behind plan across its plants.", req.Organization),
				Model: "fake-synth-1",
			}, nil
		})
}

// ScriptedRegistry 返回注册了 tavily、linkedin、gemini 三个脚本化
// 供应商的注册表，足以跑通 ResearchQuestion 的全部焦点
func ScriptedRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register(ScriptedSearcher("tavily"))
	registry.Register(ScriptedDirectory("linkedin"))
	registry.Register(ScriptedSynthesizer("gemini"))
	return registry
}
