package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memebot/core/telegram"
	"github.com/m3rciful/memebot/memebot/composer"
	"github.com/m3rciful/memebot/memebot/engine"
	"github.com/m3rciful/memebot/memebot/favorites"
	"github.com/m3rciful/memebot/memebot/health"
	"github.com/m3rciful/memebot/memebot/imagecache"

	tele "gopkg.in/telebot.v4"
)

const uid int64 = 42

// fakeContext records what handlers send. Methods the handlers never call
// are left to the embedded nil interface.
type fakeContext struct {
	tele.Context

	text     string
	msg      *tele.Message
	callback *tele.Callback
	store    map[string]any

	sent      []any
	responses []*tele.CallbackResponse
	sendErr   func(what any) error
}

func newText(text string) *fakeContext {
	return &fakeContext{text: text, msg: &tele.Message{Text: text}}
}

func newCallback(data string) *fakeContext {
	return &fakeContext{
		msg:      &tele.Message{Text: "menu"},
		callback: &tele.Callback{Data: data},
	}
}

func (f *fakeContext) Sender() *tele.User { return &tele.User{ID: uid, FirstName: "Alice"} }
func (f *fakeContext) Chat() *tele.Chat { return &tele.Chat{ID: uid} }
func (f *fakeContext) Update() tele.Update { return tele.Update{ID: 1} }
func (f *fakeContext) Text() string { return f.text }
func (f *fakeContext) Message() *tele.Message { return f.msg }
func (f *fakeContext) Callback() *tele.Callback { return f.callback }
func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Set(key string, val interface{}) {
	if f.store == nil {
		f.store = map[string]any{}
	}
	f.store[key] = val
}

func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	if f.sendErr != nil {
		if err := f.sendErr(what); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, what)
	return nil
}

func (f *fakeContext) Edit(interface{}, ...interface{}) error {
	return errors.New("edit not supported")
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		f.responses = append(f.responses, &tele.CallbackResponse{})
		return nil
	}
	f.responses = append(f.responses, resp...)
	return nil
}

func (f *fakeContext) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent)
	text, ok := f.sent[len(f.sent)-1].(string)
	require.True(t, ok, "last message is %T", f.sent[len(f.sent)-1])
	return text
}

func (f *fakeContext) lastPhoto(t *testing.T) *tele.Photo {
	t.Helper()
	require.NotEmpty(t, f.sent)
	photo, ok := f.sent[len(f.sent)-1].(*tele.Photo)
	require.True(t, ok, "last message is %T", f.sent[len(f.sent)-1])
	return photo
}

type memRepo struct{ doc favorites.Document }

func (r *memRepo) Load(context.Context) (favorites.Document, error) {
	out := favorites.Document{}
	for k, v := range r.doc {
		out[k] = favorites.UserFavorites{Favorites: append([]favorites.Meme(nil), v.Favorites...)}
	}
	return out, nil
}

func (r *memRepo) Save(_ context.Context, doc favorites.Document) error {
	r.doc = doc
	return nil
}

type stubCats struct {
	ref string
	err error
}

func (s stubCats) RandomImage(context.Context) (string, error) { return s.ref, s.err }

type stubComposer struct{ ref string }

func (s stubComposer) Compose(_ context.Context, _, _, _ string) (string, error) {
	return s.ref, nil
}

type stubDeliverer struct {
	refs []string
}

func (d *stubDeliverer) Deliver(ctx context.Context, memeRef string, s composer.Sender) (composer.DeliveryMode, error) {
	d.refs = append(d.refs, memeRef)
	return composer.DeliveredByRef, s.SendRef(ctx, memeRef)
}

type stubHealth struct{ rep health.Report }

func (s stubHealth) Probe(context.Context) health.Report { return s.rep }

type fixture struct {
	h         *Handlers
	engine    *engine.Engine
	store     *favorites.Store
	cache     *imagecache.Cache
	deliverer *stubDeliverer
}

func newFixture(t *testing.T, cats stubCats) *fixture {
	t.Helper()
	f := &fixture{
		cache:     imagecache.New(imagecache.DefaultCapacity),
		deliverer: &stubDeliverer{},
	}
	f.store = favorites.NewStore(&memRepo{}, favorites.WithClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	}))
	f.engine = engine.New(nil, engine.Deps{
		Composer:  stubComposer{ref: "https://memes.test/1.png"},
		Favorites: f.store,
		Source:    cats,
		Recent:    f.cache,
	})
	h, err := New(Deps{
		Engine:    f.engine,
		Favorites: f.store,
		Cats:      cats,
		Recorder:  f.cache,
		Deliverer: f.deliverer,
		Health:    stubHealth{rep: health.Report{SourceOK: true}},
		Pick:      func(int) int { return 0 },
	})
	require.NoError(t, err)
	require.NoError(t, h.Register(telegram.NewRegistry()))
	f.h = h
	return f
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestMemeDialogEndToEnd(t *testing.T) {
	f := newFixture(t, stubCats{ref: "https://cats.test/a.jpg"})
	sessions := f.engine.Sessions()

	c := newText("/newmeme")
	require.NoError(t, f.h.onNewMeme(c))
	assert.Equal(t, msgChooseImage, c.lastText(t))

	c = newCallback("\fmeme_random")
	require.NoError(t, f.h.onMemeRandom(c))
	assert.Equal(t, msgTopTextRandom, c.lastPhoto(t).Caption)
	assert.Len(t, c.responses, 1)

	c = newText("hello")
	require.True(t, sessions.InProgress(uid))
	require.NoError(t, sessions.ManagerHandler(c))
	assert.Contains(t, c.lastText(t), "'hello'")

	c = newText("world")
	require.NoError(t, sessions.ManagerHandler(c))
	assert.Equal(t, reviewText(engine.Draft{TopText: "hello", BottomText: "world"}), c.lastText(t))

	c = newCallback("\fmeme_confirm")
	require.NoError(t, f.h.onMemeConfirm(c))
	require.Equal(t, []string{"https://memes.test/1.png"}, f.deliverer.refs)
	assert.Contains(t, c.lastPhoto(t).Caption, "hello")
	assert.Equal(t, engine.StateMemeReady, f.engine.Session(uid).State)
	assert.False(t, sessions.InProgress(uid))

	c = newCallback("\ffav_add")
	require.NoError(t, f.h.onFavAdd(c))
	require.Len(t, c.responses, 1)
	assert.Equal(t, msgFavAdded, c.responses[0].Text)
	assert.True(t, c.responses[0].ShowAlert)

	list, err := f.store.List(context.Background(), uid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "https://memes.test/1.png", list[0].URL)
	assert.Equal(t, engine.StateIdle, f.engine.Session(uid).State)
}

func TestInvalidCaptionKeepsState(t *testing.T) {
	f := newFixture(t, stubCats{ref: "https://cats.test/a.jpg"})
	ctx := context.Background()
	f.engine.HandleStart(ctx, uid)
	f.engine.HandleImageChosen(ctx, uid, "https://cats.test/a.jpg", false)

	c := newText("привет")
	require.NoError(t, f.engine.Sessions().ManagerHandler(c))
	assert.Equal(t, msgInvalidCaption, c.lastText(t))
	assert.Equal(t, engine.StateEnteringTopText, f.engine.Session(uid).State)
}

func TestPhotoOutsideDialogOffersActions(t *testing.T) {
	f := newFixture(t, stubCats{})

	c := newText("")
	c.msg.Photo = &tele.Photo{File: tele.File{FileID: "file-1"}}
	require.NoError(t, f.h.onPhoto(c))
	assert.Equal(t, msgUploadAction, c.lastText(t))
	assert.Equal(t, engine.StateIdle, f.engine.Session(uid).State)

	cb := newCallback("\fupload_fav")
	require.NoError(t, f.h.onUploadFav(cb))
	require.Len(t, cb.responses, 1)
	assert.Equal(t, msgPhotoFavAdded, cb.responses[0].Text)

	list, err := f.store.List(context.Background(), uid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsUploaded)
	assert.Equal(t, "file-1", list[0].URL)
}

func TestPhotoWhileChoosingSelectsImage(t *testing.T) {
	f := newFixture(t, stubCats{})
	f.engine.HandleStart(context.Background(), uid)

	c := newText("")
	c.msg.Photo = &tele.Photo{File: tele.File{FileID: "file-2"}}
	require.NoError(t, f.h.onPhoto(c))
	assert.Equal(t, msgTopTextUpload, c.lastText(t))

	sess := f.engine.Session(uid)
	assert.Equal(t, engine.StateEnteringTopText, sess.State)
	assert.Equal(t, "file-2", sess.Data.SelectedImage)
	assert.True(t, sess.Data.ImageIsUploaded)
}

func TestRandomCatFallsBackWhenSourceFails(t *testing.T) {
	f := newFixture(t, stubCats{err: errors.New("down")})

	c := newText("/randomcat")
	require.NoError(t, f.h.onRandomCat(c))
	photo := c.lastPhoto(t)
	assert.Equal(t, msgFallbackCat, photo.Caption)
	assert.Equal(t, FallbackImages[0], photo.FileURL)

	recent, ok := f.cache.MostRecent()
	require.True(t, ok)
	assert.Equal(t, FallbackImages[0], recent)
}

func TestRandomCatSendsLinkWhenPhotoRejected(t *testing.T) {
	f := newFixture(t, stubCats{ref: "https://cats.test/b.jpg"})

	c := newText("/randomcat")
	c.sendErr = func(what any) error {
		if _, ok := what.(*tele.Photo); ok {
			return errors.New("bad photo")
		}
		return nil
	}
	require.NoError(t, f.h.onRandomCat(c))
	assert.Equal(t, msgRandomCat+"\nhttps://cats.test/b.jpg", c.lastText(t))
}

func TestMemeCurrentWithoutCachedImage(t *testing.T) {
	f := newFixture(t, stubCats{})

	c := newCallback("\fmeme_current")
	require.NoError(t, f.h.onMemeCurrent(c))
	require.Len(t, c.responses, 1)
	assert.Equal(t, msgNoCachedImage, c.responses[0].Text)
	assert.Empty(t, c.sent)
}

func TestCancelCommand(t *testing.T) {
	f := newFixture(t, stubCats{})

	c := newText("/cancel")
	require.NoError(t, f.h.onCancel(c))
	assert.Equal(t, msgNothingToCancel, c.lastText(t))

	f.engine.HandleStart(context.Background(), uid)
	c = newText("/cancel")
	require.NoError(t, f.h.onCancel(c))
	assert.Equal(t, msgCancelled, c.lastText(t))
	assert.Equal(t, engine.StateIdle, f.engine.Session(uid).State)
}

func TestKeywordFallback(t *testing.T) {
	f := newFixture(t, stubCats{})

	c := newText("Покажи КОТИКА")
	require.NoError(t, f.h.onKeywordText(c))
	assert.Equal(t, msgKeywords, c.lastText(t))

	c = newText("good morning")
	require.NoError(t, f.h.onKeywordText(c))
	assert.Empty(t, c.sent)
}

func TestTestCommandReportsStatus(t *testing.T) {
	f := newFixture(t, stubCats{})

	c := newText("/test")
	require.NoError(t, f.h.onTest(c))
	require.Len(t, c.sent, 2)
	assert.Equal(t, msgTesting, c.sent[0])
	assert.Equal(t, statusText(health.Report{SourceOK: true}), c.lastText(t))
}

func TestFavoritesViewerDeleteMovesToPrevious(t *testing.T) {
	f := newFixture(t, stubCats{})
	ctx := context.Background()
	require.NoError(t, f.store.Add(ctx, uid, favorites.Meme{URL: "https://memes.test/a.png", Top: "A", Bottom: "B"}))
	require.NoError(t, f.store.Add(ctx, uid, favorites.Meme{URL: "https://memes.test/c.png", Top: "C", Bottom: "D"}))

	c := newCallback("\ffav_delete|1")
	require.NoError(t, f.h.onFavDelete(c))
	require.Len(t, c.responses, 1)
	assert.Equal(t, msgFavDeleted, c.responses[0].Text)

	photo := c.lastPhoto(t)
	assert.True(t, strings.HasPrefix(photo.Caption, "⭐ Избранный мем 1/1"))
	assert.Equal(t, "https://memes.test/a.png", photo.FileURL)

	c = newCallback("\ffav_delete|5")
	require.NoError(t, f.h.onFavDelete(c))
	assert.Equal(t, msgFavNotFound, c.responses[0].Text)
}

func TestFavoritesShowBadPayload(t *testing.T) {
	f := newFixture(t, stubCats{})

	c := newCallback("\ffav_show|x")
	require.NoError(t, f.h.onFavShow(c))
	assert.Equal(t, msgFavBadIndex, c.responses[0].Text)

	c = newCallback("\ffav_show|0")
	require.NoError(t, f.h.onFavShow(c))
	assert.Equal(t, msgFavListEmpty, c.responses[0].Text)
}

func TestFavoritesUploadedPhotoUsesFileID(t *testing.T) {
	f := newFixture(t, stubCats{})
	require.NoError(t, f.store.Add(context.Background(), uid, favorites.Meme{URL: "file-9", IsUploaded: true}))

	c := newCallback("\ffav_view")
	require.NoError(t, f.h.onFavView(c))
	photo := c.lastPhoto(t)
	assert.Equal(t, "file-9", photo.FileID)
	assert.Empty(t, photo.FileURL)
}

func TestFavoritesClearUnknownUser(t *testing.T) {
	f := newFixture(t, stubCats{})

	c := newCallback("\ffav_clear")
	require.NoError(t, f.h.onFavClear(c))
	assert.Equal(t, msgFavClearedToast, c.responses[0].Text)
	assert.Equal(t, msgFavCleared, c.lastText(t))
}
