// Package keyboard builds inline keyboards from callback buttons.
package keyboard

import (
	"slices"

	tele "gopkg.in/telebot.v4"
)

// Button is an inline button that reports Unique and Data back as a callback.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// With returns a copy of b carrying data as its callback payload.
func (b Button) With(data string) Button {
	b.Data = data
	return b
}

// Row is one line of buttons.
type Row []Button

// Column places every button on its own row.
func Column(buttons ...Button) *tele.ReplyMarkup {
	rows := make([]Row, len(buttons))
	for i, b := range buttons {
		rows[i] = Row{b}
	}
	return Rows(rows...)
}

// Rows builds a keyboard with the given rows. Empty rows are skipped.
func Rows(rows ...Row) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, len(row))
		for i, b := range row {
			line[i] = *markup.Data(b.Text, b.Unique, b.Data).Inline()
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return markup
}

// Chunk splits buttons into rows of at most n. n below 1 is treated as 1.
func Chunk(buttons []Button, n int) []Row {
	var rows []Row
	for part := range slices.Chunk(buttons, max(n, 1)) {
		rows = append(rows, Row(part))
	}
	return rows
}
