package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/memebot/core/telegram/helpers"
	"github.com/m3rciful/memebot/memebot/favorites"

	tele "gopkg.in/telebot.v4"
)

// loadFavorites lists the user's favorites, telling the user when the store fails.
func (h *Handlers) loadFavorites(c tele.Context) ([]favorites.Meme, bool) {
	ctx := tghelpers.BuildContext(c)
	list, err := h.deps.Favorites.List(ctx, tghelpers.SenderID(c))
	if err != nil {
		logger.Error(ctx, "favorites", "list",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		if c.Callback() != nil {
			_ = tghelpers.Alert(c, msgFavLoadFailed, true)
		} else {
			_ = tghelpers.SendText(c, msgFavLoadFailed)
		}
		return nil, false
	}
	return list, true
}

func (h *Handlers) onFavorites(c tele.Context) error {
	list, ok := h.loadFavorites(c)
	if !ok {
		return nil
	}
	return tghelpers.SendTextMarkup(c, favoritesSummary(len(list)), favoritesMarkup(len(list)))
}

func (h *Handlers) onFavRefresh(c tele.Context) error {
	list, ok := h.loadFavorites(c)
	if !ok {
		return nil
	}
	if err := ack(c, msgFavRefreshed); err != nil {
		return err
	}
	return tghelpers.EditOrSendText(c, favoritesSummary(len(list)), favoritesMarkup(len(list)))
}

func (h *Handlers) onFavView(c tele.Context) error {
	list, ok := h.loadFavorites(c)
	if !ok {
		return nil
	}
	if len(list) == 0 {
		return showEmptyFavorites(c, "")
	}
	return showFavorite(c, list, 0, "")
}

func (h *Handlers) onFavList(c tele.Context) error {
	list, ok := h.loadFavorites(c)
	if !ok {
		return nil
	}
	if len(list) == 0 {
		return showEmptyFavorites(c, "")
	}
	if err := ack(c, ""); err != nil {
		return err
	}
	return tghelpers.EditOrSendText(c, favoritesListText(list), favoritesListMarkup(len(list)))
}

func (h *Handlers) onFavShow(c tele.Context) error {
	index, err := callbacks.PayloadInt(c)
	if err != nil {
		return tghelpers.Alert(c, msgFavBadIndex, true)
	}
	list, ok := h.loadFavorites(c)
	if !ok {
		return nil
	}
	if len(list) == 0 {
		return tghelpers.Alert(c, msgFavListEmpty, true)
	}
	return showFavorite(c, list, index, "")
}

func (h *Handlers) onFavDelete(c tele.Context) error {
	index, err := callbacks.PayloadInt(c)
	if err != nil {
		return tghelpers.Alert(c, msgFavBadIndex, true)
	}
	ctx := tghelpers.BuildContext(c)
	if _, err := h.deps.Favorites.RemoveAt(ctx, tghelpers.SenderID(c), index); err != nil {
		if errors.Is(err, favorites.ErrIndexOutOfRange) {
			return tghelpers.Alert(c, msgFavNotFound, true)
		}
		logger.Error(ctx, "favorites", "remove",
			slog.String("status", "fail"),
			slog.Int("index", index),
			slog.String("err", err.Error()),
		)
		return tghelpers.Alert(c, msgFavDeleteFailed, true)
	}

	list, ok := h.loadFavorites(c)
	if !ok {
		return nil
	}
	if len(list) == 0 {
		return showEmptyFavorites(c, msgFavDeleted)
	}
	return showFavorite(c, list, min(index, len(list)-1), msgFavDeleted)
}

func (h *Handlers) onFavClear(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	err := h.deps.Favorites.Clear(ctx, tghelpers.SenderID(c))
	if err != nil && !errors.Is(err, favorites.ErrUnknownUser) {
		logger.Error(ctx, "favorites", "clear",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return tghelpers.Alert(c, msgFavClearFailed, true)
	}
	if err := ack(c, msgFavClearedToast); err != nil {
		return err
	}
	return tghelpers.EditOrSendText(c, msgFavCleared, favoritesMarkup(0))
}

func showEmptyFavorites(c tele.Context, toast string) error {
	if err := ack(c, toast); err != nil {
		return err
	}
	return tghelpers.EditOrSendText(c, msgFavEmpty, favoritesMarkup(0))
}

// showFavorite sends the favorite at index with viewer navigation. When the
// picture cannot be sent the caption goes out with a link instead.
func showFavorite(c tele.Context, list []favorites.Meme, index int, toast string) error {
	if index < 0 || index >= len(list) {
		return tghelpers.Alert(c, msgFavNotFound, true)
	}
	if err := ack(c, toast); err != nil {
		return err
	}
	m := list[index]
	caption := favoriteCaption(m, index, len(list))
	markup := viewerMarkup(index, len(list))
	if m.URL == "" {
		return tghelpers.SendTextMarkup(c, caption, markup)
	}
	if err := tghelpers.SendPhoto(c, photoFile(m.URL, m.IsUploaded), caption, markup); err != nil {
		logger.Warn(tghelpers.BuildContext(c), "favorites", "show",
			slog.String("status", "retry"),
			slog.Int("index", index),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendTextMarkup(c, fmt.Sprintf(msgFavLink, caption, m.URL), markup)
	}
	return nil
}
