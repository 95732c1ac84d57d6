package provider

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// 不产生可见文本的标签。
var invisibleTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"iframe":   {},
	"svg":      {},
	"head":     {},
}

// VisibleText 从 HTML 流中抽取可见文本：跳过脚本与样式，标签边界折叠为
// 单个空格。返回的文本已做空白规整，适合直接做关键词匹配或正则抽取。
func VisibleText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return CollapseSpace(b.String()), nil
			}
			return "", z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			if _, ok := invisibleTags[string(name)]; ok {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if _, ok := invisibleTags[string(name)]; ok && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// CollapseSpace 将任意空白序列规整为单个空格并去掉首尾空白。
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Condense truncates s to at most max runes, cutting at a word boundary
// when one is close enough. Zero or negative max returns s unchanged.
func Condense(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := string(runes[:max])
	if idx := strings.LastIndexByte(cut, ' '); idx > max*3/4 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ")
}
