// Package sortname turns catalog titles into their archive sort form, where
// a leading article moves to the end ("The Hobbit" -> "Hobbit, The").
package sortname

import (
	"strings"
	"unicode"
)

// TitleArticles are the leading articles recognised in titles. Besides
// English they cover the French, German and Dutch articles common in the
// catalog.
var TitleArticles = []string{
	"The",
	"A",
	"Le",
	"La",
	"Les",
	"Die",
	"De",
}

// ForTitle moves a leading article to the end of the title, preserving the
// article's original case. Titles consisting only of an article are returned
// unchanged.
func ForTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	for _, article := range TitleArticles {
		if len(title) <= len(article) || !strings.EqualFold(title[:len(article)], article) {
			continue
		}
		// Only whitespace may separate the article from the rest.
		sep := []rune(title[len(article):])[0]
		if !unicode.IsSpace(sep) {
			continue
		}
		rest := strings.TrimSpace(title[len(article):])
		if rest == "" {
			continue
		}
		return rest + ", " + title[:len(article)]
	}

	return title
}
