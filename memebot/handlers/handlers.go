// Package handlers binds the meme bot's commands, buttons, text and photos
// to the conversation engine and the favorites store.
package handlers

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/m3rciful/memebot/core/telegram"
	"github.com/m3rciful/memebot/core/telegram/commands"
	"github.com/m3rciful/memebot/core/telegram/router"
	"github.com/m3rciful/memebot/core/telegram/state"
	"github.com/m3rciful/memebot/memebot/composer"
	"github.com/m3rciful/memebot/memebot/engine"
	"github.com/m3rciful/memebot/memebot/favorites"
	"github.com/m3rciful/memebot/memebot/health"

	tele "gopkg.in/telebot.v4"
)

// FallbackImages are shown by /randomcat when the image source is down.
var FallbackImages = []string{
	"https://cdn2.thecatapi.com/images/bpc.jpg",
	"https://cdn2.thecatapi.com/images/eac.jpg",
	"https://cdn2.thecatapi.com/images/dho.jpg",
	"https://cdn2.thecatapi.com/images/MTk3ODg4MA.jpg",
	"https://cdn2.thecatapi.com/images/cml.jpg",
}

// CatSource hands out random cat pictures.
type CatSource interface {
	RandomImage(ctx context.Context) (string, error)
}

// ImageRecorder remembers pictures shown to users.
type ImageRecorder interface {
	Record(ref string)
}

// Deliverer sends a rendered meme through a composer.Sender.
type Deliverer interface {
	Deliver(ctx context.Context, memeRef string, s composer.Sender) (composer.DeliveryMode, error)
}

// HealthProber reports provider availability.
type HealthProber interface {
	Probe(ctx context.Context) health.Report
}

// FavoritesBrowser reads and edits a user's favorites.
type FavoritesBrowser interface {
	List(ctx context.Context, userID int64) ([]favorites.Meme, error)
	RemoveAt(ctx context.Context, userID int64, index int) (favorites.Meme, error)
	Clear(ctx context.Context, userID int64) error
}

// Deps are the collaborators of Handlers. Recorder may be nil.
type Deps struct {
	Engine    *engine.Engine
	Favorites FavoritesBrowser
	Cats      CatSource
	Recorder  ImageRecorder
	Deliverer Deliverer
	Health    HealthProber

	// Fallback overrides FallbackImages.
	Fallback []string
	// Pick returns a number in [0, n); defaults to math/rand.
	Pick func(n int) int
}

// Handlers implements the Telegram surface of the bot.
type Handlers struct {
	deps Deps
}

// New validates deps and returns Handlers.
func New(deps Deps) (*Handlers, error) {
	switch {
	case deps.Engine == nil:
		return nil, fmt.Errorf("handlers: engine is required")
	case deps.Favorites == nil:
		return nil, fmt.Errorf("handlers: favorites store is required")
	case deps.Cats == nil:
		return nil, fmt.Errorf("handlers: cat source is required")
	case deps.Deliverer == nil:
		return nil, fmt.Errorf("handlers: deliverer is required")
	case deps.Health == nil:
		return nil, fmt.Errorf("handlers: health prober is required")
	}
	if len(deps.Fallback) == 0 {
		deps.Fallback = FallbackImages
	}
	if deps.Pick == nil {
		deps.Pick = rand.IntN
	}
	return &Handlers{deps: deps}, nil
}

// Register adds every command, callback and dialog handler to reg.
func (h *Handlers) Register(reg *telegram.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.onStart, Description: "Главное меню"}},
		{"/help", commands.Command{Handler: h.onHelp, Description: "Справка по командам"}},
		{"/randomcat", commands.Command{Handler: h.onRandomCat, Description: "Случайный котик"}},
		{"/newmeme", commands.Command{Handler: h.onNewMeme, Description: "Создать мем"}},
		{"/favorites", commands.Command{Handler: h.onFavorites, Description: "Избранные мемы"}},
		{"/test", commands.Command{Handler: h.onTest, Description: "Проверить API"}},
		{"/cancel", commands.Command{Handler: h.onCancel, Description: "Отменить создание мема"}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}

	cbs := map[string]tele.HandlerFunc{
		cbMoreCat:     h.onMoreCat,
		cbMemeCurrent: h.onMemeCurrent,
		cbMemeRandom:  h.onMemeRandom,
		cbMemeConfirm: h.onMemeConfirm,
		cbMemeRestart: h.onMemeRestart,
		cbMemeCancel:  h.onMemeCancel,
		cbMemeNew:     h.onMemeNew,
		cbFavAdd:      h.onFavAdd,
		cbFavRefresh:  h.onFavRefresh,
		cbFavView:     h.onFavView,
		cbFavList:     h.onFavList,
		cbFavShow:     h.onFavShow,
		cbFavDelete:   h.onFavDelete,
		cbFavClear:    h.onFavClear,
		cbUploadMeme:  h.onUploadMeme,
		cbUploadFav:   h.onUploadFav,
	}
	for key, fn := range cbs {
		if err := reg.RegisterCallback(key, fn); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return ack(c, msgUnsupported)
	})
	reg.SetTextFallback(h.onKeywordText)

	sessions := h.deps.Engine.Sessions()
	for _, st := range []state.State{
		engine.StateChoosingImage,
		engine.StateEnteringTopText,
		engine.StateEnteringBottomText,
		engine.StateReviewPending,
	} {
		sessions.RegisterHandler(st, h.onDialogText)
	}
	return nil
}

// Routes returns the telebot routes for commands, callbacks, text and photos.
func (h *Handlers) Routes(reg *telegram.Registry) []telegram.Route {
	routes := router.CommandRoutes(reg)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(h.deps.Engine.Sessions(), reg, router.TextOptions{
		Photo: h.onPhoto,
	})...)
	return routes
}

// ack answers the current callback query with an optional toast.
func ack(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	if text == "" {
		return c.Respond()
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}
