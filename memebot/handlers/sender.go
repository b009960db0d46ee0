package handlers

import (
	"bytes"
	"context"
	"fmt"

	tghelpers "github.com/m3rciful/memebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// chatSender delivers a meme into the chat of the current update.
type chatSender struct {
	c       tele.Context
	caption string
	markup  *tele.ReplyMarkup
}

func (s chatSender) SendRef(_ context.Context, memeRef string) error {
	return tghelpers.SendPhoto(s.c, tele.FromURL(memeRef), s.caption, s.markup)
}

func (s chatSender) SendBytes(_ context.Context, data []byte) error {
	return tghelpers.SendPhoto(s.c, tele.FromReader(bytes.NewReader(data)), s.caption, s.markup)
}

func (s chatSender) SendLink(_ context.Context, memeRef string) error {
	return tghelpers.SendTextWait(s.c, fmt.Sprintf(msgMemeLink, s.caption, memeRef), s.markup)
}

// photoFile references a picture by Telegram file id for uploads and by URL otherwise.
func photoFile(ref string, uploaded bool) tele.File {
	if uploaded {
		return tele.File{FileID: ref}
	}
	return tele.FromURL(ref)
}
