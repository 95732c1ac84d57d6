package workflow

import (
	"fmt"
	"strings"

	"github.com/BaSui01/intelflow/agent"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// Route binds a focus area to its specialist agent and the ordered
// provider escalation chain the agent walks.
type Route struct {
	Focus types.FocusArea
	Agent agent.Agent
	Chain []string
}

// Router 静态路由表：焦点 → (子代理, 提供商升级链)。表在构造时固化，
// 运行期只读；链中未注册的提供商由子代理跳过。
type Router struct {
	routes map[types.FocusArea]Route
	deps   agent.Deps
	logger *zap.Logger
}

// DefaultChains returns the built-in focus→provider escalation table.
func DefaultChains() map[types.FocusArea][]string {
	return map[types.FocusArea][]string{
		types.FocusCompanyResolution: {"tavily", "linkedin"},
		types.FocusDecisionMakers:    {"linkedin", "diffbot", "tavily"},
		types.FocusInvestments:       {"brightdata", "tavily", "diffbot"},
		types.FocusGaps:              {"brightdata", "tavily"},
		types.FocusSynthesis:         {"gemini"},
	}
}

// NewRouter builds the routing table with the default chains.
func NewRouter(deps agent.Deps, cfg agent.Config) *Router {
	return NewRouterWithChains(deps, cfg, nil)
}

// NewRouterWithChains 用自定义链覆盖构造路由表；chains 中缺失的焦点
// 沿用内置链，空表等价于 NewRouter。
func NewRouterWithChains(deps agent.Deps, cfg agent.Config, chains map[types.FocusArea][]string) *Router {
	merged := DefaultChains()
	for focus, chain := range chains {
		if len(chain) > 0 {
			merged[focus] = chain
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		routes: map[types.FocusArea]Route{
			types.FocusCompanyResolution: {
				Focus: types.FocusCompanyResolution,
				Agent: agent.NewCompanyResolverAgent(deps, cfg),
				Chain: merged[types.FocusCompanyResolution],
			},
			types.FocusDecisionMakers: {
				Focus: types.FocusDecisionMakers,
				Agent: agent.NewDecisionMakerAgent(deps, cfg),
				Chain: merged[types.FocusDecisionMakers],
			},
			types.FocusInvestments: {
				Focus: types.FocusInvestments,
				Agent: agent.NewInvestmentAgent(deps, cfg),
				Chain: merged[types.FocusInvestments],
			},
			types.FocusGaps: {
				Focus: types.FocusGaps,
				Agent: agent.NewGapAgent(deps, cfg),
				Chain: merged[types.FocusGaps],
			},
			types.FocusSynthesis: {
				Focus: types.FocusSynthesis,
				Agent: agent.NewSynthesisAgent(deps, cfg),
				Chain: merged[types.FocusSynthesis],
			},
		},
		deps:   deps,
		logger: logger.With(zap.String("component", "router")),
	}
	return r
}

// Route resolves the focus to its agent and chain.
func (r *Router) Route(focus types.FocusArea) (Route, error) {
	route, ok := r.routes[focus]
	if !ok {
		return Route{}, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("no route for focus area %q", focus))
	}
	return route, nil
}

// Routable reports whether at least one provider in the focus's chain is
// registered. A false answer means the focus would fail with a
// configuration error the moment it runs.
func (r *Router) Routable(focus types.FocusArea) bool {
	route, ok := r.routes[focus]
	if !ok || r.deps.Registry == nil {
		return false
	}
	for _, name := range route.Chain {
		if _, registered := r.deps.Registry.Get(name); registered {
			return true
		}
	}
	return false
}

// Chains returns a copy of the active routing table for logging and the
// ops surface.
func (r *Router) Chains() map[types.FocusArea][]string {
	out := make(map[types.FocusArea][]string, len(r.routes))
	for focus, route := range r.routes {
		out[focus] = append([]string(nil), route.Chain...)
	}
	return out
}

// Describe 按规范焦点顺序渲染路由表，日志用。
func (r *Router) Describe() string {
	var parts []string
	for _, focus := range types.AllFocusAreas() {
		if route, ok := r.routes[focus]; ok {
			parts = append(parts, fmt.Sprintf("%s=[%s]", focus, strings.Join(route.Chain, ", ")))
		}
	}
	return strings.Join(parts, " ")
}
