package agent

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// evidenceEncoding 证据摘要计数用的 BPE 编码。综述提供商各有各的分词，
// cl100k_base 作为预算口径足够一致。
const evidenceEncoding = "cl100k_base"

// tokenCounter 惰性初始化的 token 计数器。tiktoken 首次使用可能下载
// 编码数据，失败时退化为字符估算，绝不让综述步骤因计数而失败。
type tokenCounter struct {
	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

func (c *tokenCounter) init() {
	c.once.Do(func() {
		c.enc, c.initErr = tiktoken.GetEncoding(evidenceEncoding)
	})
}

// Count 返回文本的 token 数，编码不可用时按 ~4 字符/token 估算。
func (c *tokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.init()
	if c.initErr != nil {
		return estimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Trim 将文本截断到 budget 个 token 以内。
func (c *tokenCounter) Trim(text string, budget int) string {
	if budget <= 0 || text == "" {
		return text
	}
	c.init()
	if c.initErr != nil {
		limit := budget * 4
		runes := []rune(text)
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit])
	}

	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return c.enc.Decode(tokens[:budget])
}

// estimateTokens 区分 CJK 与 ASCII 的字符估算：CJK ~1.5 字符/token，
// 其余 ~4 字符/token。
func estimateTokens(text string) int {
	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	estimated := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3040 && r <= 0x30FF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}
