package utils

import (
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ExcerptLength 自动摘要的最大字符数
const ExcerptLength = 160

// EnhanceHTMLContent 为 HTML 中的图片增加安全和懒加载属性
func EnhanceHTMLContent(htmlStr string) template.HTML {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return template.HTML(htmlStr)
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
	})

	// goquery renders full document tags if missing, we just want the body content
	html, _ := doc.Find("body").Html()
	if html == "" {
		html, _ = doc.Html()
	}
	return template.HTML(html)
}

// DeriveExcerpt 从 markdown 正文生成纯文本摘要
func DeriveExcerpt(markdown string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(RenderMarkdown(markdown))))
	if err != nil {
		return truncateRunes(strings.Join(strings.Fields(markdown), " "), ExcerptLength)
	}
	// 代码块不适合出现在摘要里
	doc.Find("pre").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")
	return truncateRunes(text, ExcerptLength)
}

// FirstImage returns the src of the first image in the markdown, or "".
func FirstImage(markdown string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(RenderMarkdown(markdown))))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img").First().Attr("src")
	return src
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimRight(string(runes[:max]), " ")
	return cut + "…"
}
