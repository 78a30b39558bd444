package common

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractText gets all visible text content from an HTML node and its children
func ExtractText(node *html.Node) string {
	var text strings.Builder

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
			text.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(node)
	return strings.Join(strings.Fields(text.String()), " ")
}

// FindNodesByTag finds all nodes with a specific tag name
func FindNodesByTag(root *html.Node, tagName string) []*html.Node {
	var nodes []*html.Node

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tagName {
			nodes = append(nodes, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(root)
	return nodes
}

// HTMLErrorText turns an HTML error page (as served by Jira or a proxy in
// front of it) into a single line. The page body is preferred over the title.
// Returns "" if the input does not parse or has no text.
func HTMLErrorText(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}

	if bodies := FindNodesByTag(doc, "body"); len(bodies) > 0 {
		if text := ExtractText(bodies[0]); text != "" {
			return text
		}
	}
	if titles := FindNodesByTag(doc, "title"); len(titles) > 0 {
		return ExtractText(titles[0])
	}
	return ExtractText(doc)
}
