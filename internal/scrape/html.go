package scrape

import (
	"strings"

	"golang.org/x/net/html"
)

// walk visits nodes depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}

// extractTitle returns og:title when present, otherwise the <title> text.
func extractTitle(doc *html.Node) string {
	var titleTag, ogTitle string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.Data {
		case "meta":
			if attrVal(n, "property") == "og:title" && ogTitle == "" {
				ogTitle = strings.TrimSpace(attrVal(n, "content"))
			}
		case "title":
			if titleTag == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				titleTag = strings.TrimSpace(n.FirstChild.Data)
			}
		}
		return true
	})
	if ogTitle != "" {
		return ogTitle
	}
	return titleTag
}

// findMetaContent returns the content of the first <meta> whose name matches
// metaName or whose property matches one of the given properties.
func findMetaContent(doc *html.Node, metaName string, properties ...string) string {
	var found string
	walk(doc, func(n *html.Node) bool {
		if found != "" {
			return false
		}
		if n.Type != html.ElementNode || n.Data != "meta" {
			return true
		}
		name := attrVal(n, "name")
		property := attrVal(n, "property")
		if metaName != "" && strings.EqualFold(name, metaName) {
			found = strings.TrimSpace(attrVal(n, "content"))
			return false
		}
		for _, p := range properties {
			if strings.EqualFold(property, p) {
				found = strings.TrimSpace(attrVal(n, "content"))
				return false
			}
		}
		return true
	})
	return found
}

// findLinkHref returns the href of the first <link> with the given rel.
func findLinkHref(doc *html.Node, rel string) string {
	var found string
	walk(doc, func(n *html.Node) bool {
		if found != "" {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "link" && strings.EqualFold(attrVal(n, "rel"), rel) {
			found = strings.TrimSpace(attrVal(n, "href"))
			return false
		}
		return true
	})
	return found
}

// findFirstImgSrc returns the src of the first <img> on the page.
func findFirstImgSrc(doc *html.Node) string {
	var found string
	walk(doc, func(n *html.Node) bool {
		if found != "" {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "img" {
			if src := strings.TrimSpace(attrVal(n, "src")); src != "" {
				found = src
				return false
			}
		}
		return true
	})
	return found
}

// extractVisibleText collects text nodes outside script/style, up to limit bytes.
func extractVisibleText(doc *html.Node, limit int) string {
	var sb strings.Builder
	walk(doc, func(n *html.Node) bool {
		if sb.Len() >= limit {
			return false
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return false
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteByte(' ')
			}
		}
		return true
	})
	return sb.String()
}
