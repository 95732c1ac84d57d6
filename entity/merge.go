package entity

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/intelflow/types"
)

// Merger deduplicates entity records coming back from different providers
// and reconciles their field conflicts. Records are grouped by merge key
// first and every field is then resolved once over the whole candidate
// group, so the result does not depend on arrival order: merging is
// idempotent and commutative. Output order is canonical (confidence desc,
// key asc), which keeps repeated runs over the same evidence byte-identical.
type Merger struct {
	scorer *Scorer
	logger *zap.Logger
}

// NewMerger creates a Merger. A nil logger falls back to a no-op logger.
func NewMerger(logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{scorer: NewScorer(), logger: logger}
}

// MergeDecisionMakers 合并多批决策人记录，按规范化姓名聚合。
func (m *Merger) MergeDecisionMakers(lists ...[]types.DecisionMaker) []types.DecisionMaker {
	groups := make(map[string][]types.DecisionMaker)
	total := 0

	// Phase 1: 按合并键分组；无名或无来源的记录直接丢弃
	for _, list := range lists {
		for _, rec := range list {
			key := rec.MergeKey()
			if key == "" || len(rec.Sources) == 0 {
				continue
			}
			total++
			groups[key] = append(groups[key], rec)
		}
	}

	// Phase 2: 组内一次性裁决字段冲突并重算置信度
	out := make([]types.DecisionMaker, 0, len(groups))
	for _, group := range groups {
		out = append(out, m.resolveDecisionMakers(group))
	}

	// Phase 3: 规范排序 (confidence desc, key asc)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].MergeKey() < out[j].MergeKey()
	})

	m.logger.Debug("decision makers merged", zap.Int("in", total), zap.Int("out", len(out)))
	return out
}

// MergeInvestments 合并投资记录，按公司名 + 月度日期聚合。
func (m *Merger) MergeInvestments(lists ...[]types.Investment) []types.Investment {
	groups := make(map[string][]types.Investment)
	total := 0

	for _, list := range lists {
		for _, rec := range list {
			if types.NormalizeKey(rec.Company) == "" || len(rec.Sources) == 0 {
				continue
			}
			total++
			key := rec.MergeKey()
			groups[key] = append(groups[key], rec)
		}
	}

	out := make([]types.Investment, 0, len(groups))
	for _, group := range groups {
		out = append(out, m.resolveInvestments(group))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].MergeKey() < out[j].MergeKey()
	})

	m.logger.Debug("investments merged", zap.Int("in", total), zap.Int("out", len(out)))
	return out
}

// MergeGaps 合并缺口记录，按规范化陈述文本聚合。
func (m *Merger) MergeGaps(lists ...[]types.Gap) []types.Gap {
	groups := make(map[string][]types.Gap)
	total := 0

	for _, list := range lists {
		for _, rec := range list {
			key := rec.MergeKey()
			if key == "" || len(rec.Sources) == 0 {
				continue
			}
			total++
			groups[key] = append(groups[key], rec)
		}
	}

	out := make([]types.Gap, 0, len(groups))
	for _, group := range groups {
		out = append(out, m.resolveGaps(group))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].MergeKey() < out[j].MergeKey()
	})

	m.logger.Debug("gaps merged", zap.Int("in", total), zap.Int("out", len(out)))
	return out
}

// MergeOrganizations 合并组织档案并返回置信度最高的一份；没有可用档案时
// 返回 nil。
func (m *Merger) MergeOrganizations(profiles ...types.OrganizationProfile) *types.OrganizationProfile {
	groups := make(map[string][]types.OrganizationProfile)
	for _, p := range profiles {
		key := p.MergeKey()
		if key == "" || len(p.Sources) == 0 {
			continue
		}
		groups[key] = append(groups[key], p)
	}
	if len(groups) == 0 {
		return nil
	}

	var best types.OrganizationProfile
	first := true
	for _, group := range groups {
		p := m.resolveOrganizations(group)
		switch {
		case first:
			best, first = p, false
		case p.Confidence > best.Confidence:
			best = p
		case p.Confidence == best.Confidence && p.MergeKey() < best.MergeKey():
			best = p
		}
	}
	return &best
}

// ----- 组内字段裁决 -----

func (m *Merger) resolveDecisionMakers(group []types.DecisionMaker) types.DecisionMaker {
	var name, title, profile, location fieldPick
	altPool := make([][]string, 0, len(group)*2)
	sourceSets := make([][]types.SourceDocument, 0, len(group))

	for _, rec := range group {
		r := sourceRank(rec.Sources)
		name.offer(rec.Name, r)
		title.offer(rec.Title, r)
		profile.offer(rec.ProfileURL, r)
		location.offer(rec.Location, r)
		altPool = append(altPool, rec.AltTitles, []string{rec.Title})
		sourceSets = append(sourceSets, rec.Sources)
	}

	out := types.DecisionMaker{
		Name:       name.value,
		Title:      title.value,
		ProfileURL: profile.value,
		Location:   location.value,
	}
	out.AltTitles = mergeAlternates(out.Title, altPool...)
	out.Sources = mergeSources(sourceSets...)
	out.Confidence = m.scorer.Score(out.Sources)
	return out
}

func (m *Merger) resolveInvestments(group []types.Investment) types.Investment {
	var company, amount, currency, date fieldPick
	altPool := make([][]string, 0, len(group)*2)
	sourceSets := make([][]types.SourceDocument, 0, len(group))

	for _, rec := range group {
		r := sourceRank(rec.Sources)
		company.offer(rec.Company, r)
		amount.offer(rec.Amount, r)
		currency.offer(rec.Currency, r)
		// 日期冲突同样按权威度裁决；同权威时更长（更精确）的日期胜出
		date.offer(rec.Date, r)
		altPool = append(altPool, rec.AltAmounts, []string{rec.Amount})
		sourceSets = append(sourceSets, rec.Sources)
	}

	out := types.Investment{
		Company:  company.value,
		Amount:   amount.value,
		Currency: currency.value,
		Date:     date.value,
	}
	out.AltAmounts = mergeAlternates(out.Amount, altPool...)
	out.Sources = mergeSources(sourceSets...)
	out.Confidence = m.scorer.Score(out.Sources)
	return out
}

func (m *Merger) resolveGaps(group []types.Gap) types.Gap {
	var statement, evidence, rationale fieldPick
	sourceSets := make([][]types.SourceDocument, 0, len(group))

	for _, rec := range group {
		r := sourceRank(rec.Sources)
		statement.offer(rec.Statement, r)
		evidence.offer(rec.EvidenceURL, r)
		rationale.offer(rec.Rationale, r)
		sourceSets = append(sourceSets, rec.Sources)
	}

	out := types.Gap{
		Statement:   statement.value,
		EvidenceURL: evidence.value,
		Rationale:   rationale.value,
	}
	out.Sources = mergeSources(sourceSets...)
	out.Confidence = m.scorer.Score(out.Sources)
	return out
}

func (m *Merger) resolveOrganizations(group []types.OrganizationProfile) types.OrganizationProfile {
	var name, domain, description, industry fieldPick
	var employees, employeesRank int
	sourceSets := make([][]types.SourceDocument, 0, len(group))

	for _, rec := range group {
		r := sourceRank(rec.Sources)
		name.offer(rec.Name, r)
		domain.offer(rec.Domain, r)
		description.offer(rec.Description, r)
		industry.offer(rec.Industry, r)
		if rec.Employees > 0 {
			switch {
			case employees == 0, r > employeesRank:
				employees, employeesRank = rec.Employees, r
			case r == employeesRank && rec.Employees > employees:
				employees = rec.Employees
			}
		}
		sourceSets = append(sourceSets, rec.Sources)
	}

	out := types.OrganizationProfile{
		Name:        name.value,
		Domain:      domain.value,
		Description: description.value,
		Industry:    industry.value,
		Employees:   employees,
	}
	out.Sources = mergeSources(sourceSets...)
	out.Confidence = m.scorer.Score(out.Sources)
	return out
}

// ----- 裁决与集合工具 -----

// fieldPick folds the best candidate for one field over a record group.
// Empty values never win; otherwise the comparison is a total order on
// (authority rank, length, lexicographic) pairs, so the fold result does
// not depend on offer order.
type fieldPick struct {
	value string
	rank  int
}

func (p *fieldPick) offer(v string, rank int) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	switch {
	case p.value == "":
		p.value, p.rank = v, rank
	case rank != p.rank:
		if rank > p.rank {
			p.value, p.rank = v, rank
		}
	case v == p.value:
		// 同值同权，无需更新
	case len(v) != len(p.value):
		if len(v) > len(p.value) {
			p.value = v
		}
	case v < p.value:
		p.value = v
	}
}

// sourceRank returns the highest origin rank across sources.
func sourceRank(sources []types.SourceDocument) int {
	r := 0
	for _, s := range sources {
		if rr := s.Origin.Rank(); rr > r {
			r = rr
		}
	}
	return r
}

// mergeAlternates unions alternate values, dropping the winner and near
// duplicates. Per normalized key the lexicographically smallest display
// form is kept; output is sorted, or nil when nothing survives.
func mergeAlternates(winner string, groups ...[]string) []string {
	best := make(map[string]string)
	for _, g := range groups {
		for _, v := range g {
			v = strings.TrimSpace(v)
			k := types.NormalizeKey(v)
			if k == "" {
				continue
			}
			if cur, ok := best[k]; !ok || v < cur {
				best[k] = v
			}
		}
	}
	delete(best, types.NormalizeKey(winner))
	if len(best) == 0 {
		return nil
	}
	out := make([]string, 0, len(best))
	for _, v := range best {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// mergeSources unions source sets, deduplicating by provider+URL and
// sorting by (origin rank desc, provider asc, URL asc).
func mergeSources(sets ...[]types.SourceDocument) []types.SourceDocument {
	seen := make(map[string]types.SourceDocument)
	for _, set := range sets {
		for _, s := range set {
			if s.URL == "" && s.Title == "" {
				continue
			}
			k := s.Provider + "|" + s.URL
			cur, ok := seen[k]
			if !ok {
				seen[k] = s
				continue
			}
			seen[k] = betterSource(cur, s)
		}
	}

	out := make([]types.SourceDocument, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Origin.Rank() != out[j].Origin.Rank() {
			return out[i].Origin.Rank() > out[j].Origin.Rank()
		}
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// betterSource picks between two documents sharing provider+URL, e.g. a
// search hit that was later re-fetched through extraction. The comparison
// chain is symmetric so dedup order never matters.
func betterSource(a, b types.SourceDocument) types.SourceDocument {
	if a.Origin.Rank() != b.Origin.Rank() {
		if a.Origin.Rank() > b.Origin.Rank() {
			return a
		}
		return b
	}
	if (a.Method == types.MethodStructured) != (b.Method == types.MethodStructured) {
		if a.Method == types.MethodStructured {
			return a
		}
		return b
	}
	if a.RawContent != b.RawContent {
		if len(a.RawContent) != len(b.RawContent) {
			if len(a.RawContent) > len(b.RawContent) {
				return a
			}
			return b
		}
		if a.RawContent < b.RawContent {
			return a
		}
		return b
	}
	if a.Snippet != b.Snippet {
		if len(a.Snippet) != len(b.Snippet) {
			if len(a.Snippet) > len(b.Snippet) {
				return a
			}
			return b
		}
		if a.Snippet < b.Snippet {
			return a
		}
		return b
	}
	if a.Title != b.Title {
		if a.Title < b.Title {
			return a
		}
		return b
	}
	if !a.Retrieved.Equal(b.Retrieved) && a.Retrieved.Before(b.Retrieved) {
		return a
	}
	return b
}
