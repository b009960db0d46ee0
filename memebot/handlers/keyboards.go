package handlers

import (
	"strconv"

	"github.com/m3rciful/memebot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Callback keys.
const (
	cbMoreCat     = "more_cat"
	cbMemeCurrent = "meme_current"
	cbMemeRandom  = "meme_random"
	cbMemeConfirm = "meme_confirm"
	cbMemeRestart = "meme_restart"
	cbMemeCancel  = "meme_cancel"
	cbMemeNew     = "meme_new"
	cbFavAdd      = "fav_add"
	cbFavRefresh  = "fav_refresh"
	cbFavView     = "fav_view"
	cbFavList     = "fav_list"
	cbFavShow     = "fav_show"
	cbFavDelete   = "fav_delete"
	cbFavClear    = "fav_clear"
	cbUploadMeme  = "upload_meme"
	cbUploadFav   = "upload_fav"
)

var (
	btnMoreCat     = keyboard.Button{Text: "🐱 Ещё кота!", Unique: cbMoreCat}
	btnMemeCurrent = keyboard.Button{Text: "🎨 Создать мем с этим котом", Unique: cbMemeCurrent}
	btnMemeRandom  = keyboard.Button{Text: "🎲 Случайный кот", Unique: cbMemeRandom}
	btnMemeConfirm = keyboard.Button{Text: "✅ Создать мем", Unique: cbMemeConfirm}
	btnMemeRestart = keyboard.Button{Text: "🔄 Начать заново", Unique: cbMemeRestart}
	btnMemeCancel  = keyboard.Button{Text: "❌ Отмена", Unique: cbMemeCancel}
	btnMemeMore    = keyboard.Button{Text: "🎨 Создать ещё мем", Unique: cbMemeNew}
	btnMemeNew     = keyboard.Button{Text: "🎨 Создать новый мем", Unique: cbMemeNew}
	btnFavAdd      = keyboard.Button{Text: "⭐ Добавить в избранное", Unique: cbFavAdd}
	btnFavView     = keyboard.Button{Text: "👀 Просмотреть мемы", Unique: cbFavView}
	btnFavRefresh  = keyboard.Button{Text: "🔄 Обновить список", Unique: cbFavRefresh}
	btnFavClear    = keyboard.Button{Text: "🗑️ Очистить избранное", Unique: cbFavClear}
	btnFavList     = keyboard.Button{Text: "🔙 К списку избранного", Unique: cbFavList}
	btnUploadMeme  = keyboard.Button{Text: "🎨 Создать мем из этого фото", Unique: cbUploadMeme}
	btnUploadFav   = keyboard.Button{Text: "⭐ Добавить в избранное", Unique: cbUploadFav}
	btnFavShow     = keyboard.Button{Text: "👀 Мем ", Unique: cbFavShow}
	btnFavPrev     = keyboard.Button{Text: "⬅️ Предыдущий", Unique: cbFavShow}
	btnFavNext     = keyboard.Button{Text: "➡️ Следующий", Unique: cbFavShow}
	btnFavDelete   = keyboard.Button{Text: "🗑️ Удалить этот мем", Unique: cbFavDelete}
)

func randomCatMarkup() *tele.ReplyMarkup {
	return keyboard.Column(btnMoreCat, btnMemeCurrent)
}

func memeStartMarkup() *tele.ReplyMarkup {
	return keyboard.Column(btnMemeRandom, btnMemeCancel)
}

func confirmMarkup() *tele.ReplyMarkup {
	return keyboard.Rows(
		keyboard.Row{btnMemeConfirm},
		keyboard.Row{btnMemeRestart, btnMemeCancel},
	)
}

func resultMarkup() *tele.ReplyMarkup {
	return keyboard.Column(btnFavAdd, btnMemeMore)
}

func uploadMarkup() *tele.ReplyMarkup {
	return keyboard.Column(btnUploadMeme, btnUploadFav)
}

// favoritesMarkup is attached to the favorites summary.
func favoritesMarkup(count int) *tele.ReplyMarkup {
	if count == 0 {
		return keyboard.Column(btnFavRefresh, btnMemeNew)
	}
	return keyboard.Column(btnFavView, btnFavRefresh, btnFavClear)
}

// favoritesListMarkup offers one button per favorite, two per row.
func favoritesListMarkup(count int) *tele.ReplyMarkup {
	buttons := make([]keyboard.Button, count)
	for i := range buttons {
		b := btnFavShow.With(strconv.Itoa(i))
		b.Text += strconv.Itoa(i + 1)
		buttons[i] = b
	}
	return keyboard.Rows(append(keyboard.Chunk(buttons, 2), keyboard.Row{btnMemeNew})...)
}

// viewerMarkup navigates the favorites viewer positioned at index.
func viewerMarkup(index, total int) *tele.ReplyMarkup {
	var nav keyboard.Row
	if index > 0 {
		nav = append(nav, btnFavPrev.With(strconv.Itoa(index-1)))
	}
	if index < total-1 {
		nav = append(nav, btnFavNext.With(strconv.Itoa(index+1)))
	}
	return keyboard.Rows(
		nav,
		keyboard.Row{btnFavDelete.With(strconv.Itoa(index))},
		keyboard.Row{btnMemeNew},
		keyboard.Row{btnFavList},
	)
}
