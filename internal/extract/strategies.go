package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FieldRule 单条字段取值规则
// Attr 为空时取元素文本, 否则取指定属性值
type FieldRule struct {
	Selector string
	Attr     string
}

// Strategy 一套完整的提取方案
//
// ContainerSelectors 定位记录容器, 各字段规则按序尝试, 首个非空值生效。
// 内容字段全部落空时回退到容器剩余文本启发式
type Strategy struct {
	Variant            string
	ContainerSelectors []string
	AuthorRules        []FieldRule
	ContentRules       []FieldRule
	MetricRules        []FieldRule
	TimestampRules     []FieldRule
}

// defaultStrategies 按页面版式新旧排序的内置方案
func defaultStrategies() []Strategy {
	return []Strategy{
		{
			Variant:            "feed-card",
			ContainerSelectors: []string{"div.feed-card", "article[data-feed]", "div[data-card-type]"},
			AuthorRules: []FieldRule{
				{Selector: "a.author-name"},
				{Selector: "span.user-nick"},
				{Selector: "a[data-author]", Attr: "data-author"},
			},
			ContentRules: []FieldRule{
				{Selector: "div.card-content p"},
				{Selector: "div.card-content"},
				{Selector: "p.text-body"},
			},
			MetricRules: []FieldRule{
				{Selector: "span.like-count"},
				{Selector: "em.interact-num"},
			},
			TimestampRules: []FieldRule{
				{Selector: "time", Attr: "datetime"},
				{Selector: "span.publish-time"},
			},
		},
		{
			Variant:            "legacy-list",
			ContainerSelectors: []string{"li.result-item", "div.search-result > div.item"},
			AuthorRules: []FieldRule{
				{Selector: "div.item-header a"},
				{Selector: "span.nickname"},
			},
			ContentRules: []FieldRule{
				{Selector: "div.item-body"},
				{Selector: "div.summary"},
			},
			MetricRules: []FieldRule{
				{Selector: "span.counts"},
			},
			TimestampRules: []FieldRule{
				{Selector: "span.date"},
			},
		},
		{
			Variant:            "content-block",
			ContainerSelectors: []string{"div.note-item", "section.content-block", "div[id^=post-]"},
			AuthorRules: []FieldRule{
				{Selector: "a[href*='/user/']"},
				{Selector: "span[class*=author]"},
			},
			ContentRules: []FieldRule{
				{Selector: "span[class*=title]"},
				{Selector: "div[class*=desc]"},
			},
			MetricRules: []FieldRule{
				{Selector: "span[class*=like]"},
				{Selector: "span[class*=count]"},
			},
			TimestampRules: []FieldRule{
				{Selector: "time", Attr: "datetime"},
				{Selector: "span[class*=time]"},
			},
		},
	}
}

// firstMatch 按规则顺序取首个非空字段值
func firstMatch(container *goquery.Selection, rules []FieldRule) string {
	for _, rule := range rules {
		sel := container.Find(rule.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		var value string
		if rule.Attr != "" {
			value, _ = sel.Attr(rule.Attr)
		} else {
			value = sel.Text()
		}
		value = normalizeSpace(value)
		if value != "" {
			return value
		}
	}
	return ""
}

// residualText 容器剩余文本启发式
//
// 遍历容器下的文本节点, 跳过链接 / 时间 / 脚本等结构性子元素,
// 将剩余文本作为正文候选。选择器全部落空时的最后手段
func residualText(container *goquery.Selection) string {
	var parts []string
	for _, node := range container.Nodes {
		collectText(node, &parts)
	}
	return normalizeSpace(strings.Join(parts, " "))
}

// skippedElements 不参与剩余文本收集的元素
var skippedElements = map[string]bool{
	"script": true,
	"style":  true,
	"a":      true,
	"time":   true,
	"button": true,
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.ElementNode && skippedElements[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// residualContent 容器剩余文本减去已匹配的字段值
// 避免互动计数或时间文本被当作正文
func residualContent(container *goquery.Selection, exclude []string) string {
	text := residualText(container)
	for _, ex := range exclude {
		if ex != "" {
			text = strings.ReplaceAll(text, ex, " ")
		}
	}
	return normalizeSpace(text)
}

// cleanMetric 清理互动数值, 取首段连续的数字和单位字符
func cleanMetric(raw string) string {
	var b strings.Builder
	started := false
	for _, r := range raw {
		if isMetricRune(r) {
			b.WriteRune(r)
			started = true
			continue
		}
		if started {
			break
		}
	}
	return b.String()
}

func isMetricRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r == '.', r == '+':
		return true
	case r == 'k', r == 'w', r == 'K', r == 'W', r == '万', r == '亿':
		return true
	}
	return false
}

// normalizeSpace 压缩连续空白为单个空格
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
