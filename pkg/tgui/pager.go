package tgui

import (
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// PageLabel renders a compact pagination label. page is 1-based.
func PageLabel(page, totalPages, total int) string {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf("Страница %d/%d • всего %d", page, totalPages, total)
}

// NavRow builds prev/next buttons for an absolute-page callback route.
// dataFor must return the full callback data for the given page number.
// Returns nil when there is nothing to page to.
func NavRow(page int, hasNext bool, dataFor func(page int) string) []tele.Btn {
	var row []tele.Btn
	if page > 1 {
		row = append(row, Btn("⬅️", dataFor(page-1)))
	}
	if hasNext {
		row = append(row, Btn("➡️", dataFor(page+1)))
	}
	return row
}
