package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/memebot/memebot/engine"
	"github.com/m3rciful/memebot/memebot/favorites"
	"github.com/m3rciful/memebot/memebot/health"
)

const (
	msgStart = "Привет, %s! 🐱\n\n" +
		"Добро пожаловать в Cat Meme Bot!\n" +
		"Я помогу тебе создавать мемы с котиками.\n\n" +
		"Доступные команды:\n" +
		"/help - справка по командам\n" +
		"/randomcat - случайный котик\n" +
		"/newmeme - создать мем\n" +
		"/favorites - избранные мемы\n" +
		"/test - проверить API\n\n" +
		"Текст в мемах может быть только на английском языке!"

	msgHelp = "📋 Справка по командам:\n\n" +
		"/start - главное меню\n" +
		"/help - эта справка\n" +
		"/randomcat - получить случайную картинку кота\n" +
		"/newmeme - создать мем с котом\n" +
		"/favorites - посмотреть сохранённые мемы\n" +
		"/test - проверить работу API\n" +
		"/cancel - отменить создание мема\n\n" +
		"🎨 Для создания мема:\n" +
		"1. Выбери изображение кота или пришли своё фото\n" +
		"2. Введи верхний текст\n" +
		"3. Введи нижний текст\n" +
		"4. Получи готовый мем!\n\n" +
		"Используй inline-кнопки для навигации! 🐾\n\n" +
		"Текст в мемах может быть только на английском языке!"

	msgKeywords = "🐱 Я вижу, ты пишешь о котиках или мемах!\n" +
		"Используй команды:\n" +
		"/randomcat - случайный котик\n" +
		"/newmeme - создать мем\n" +
		"/help - все команды"

	msgRandomCat      = "🐱 Случайный котик для тебя!"
	msgMoreCat        = "🐱 Ещё один котик для тебя!"
	msgFallbackCat    = "🐱 Котик из кэша (API недоступно)"
	msgMoreCatToast   = "Новый котик загружен! 🐾"
	msgMoreCatFailed  = "❌ Не удалось загрузить нового котика"
	msgNoImage        = "❌ Не удалось загрузить изображение"
	msgNoCachedImage  = "❌ Изображение не найдено в кэше"
	msgNoUpload       = "❌ Фото не найдено"
	msgUploadAction   = "📸 Отличное фото! Что хочешь с ним сделать?"
	msgUploadToast    = "🎨 Переходим к созданию мема..."
	msgChooseImage    = "🎨 Создание мема с котом!\n\nВыбери, как хочешь получить изображение кота, или пришли своё фото:"
	msgNewMeme        = "🎨 Давай создадим новый мем!\n\nВыбери источник изображения:"
	msgTopText        = "🎨 Отлично! Теперь введи верхний текст для мема:"
	msgTopTextRandom  = "🎨 Котик выбран! Теперь введи верхний текст для мема:"
	msgTopTextUpload  = "🎨 Создание мема из твоего фото!\n\nНапиши верхний текст для мема:"
	msgBottomText     = "✅ Верхний текст сохранён: '%s'\n\n📝 Теперь введи нижний текст для мема:"
	msgReview         = "🎨 Превью мема:\n\n📝 Верхний текст: '%s'\n📝 Нижний текст: '%s'\n\nВсё верно? Создаём мем?"
	msgRendering      = "🎨 Создаю мем..."
	msgMemeReady      = "🎉 Твой мем готов!\n\n📝 Верхний текст: %s\n📝 Нижний текст: %s"
	msgMemeLink       = "%s\n\n🔗 Ссылка на мем: %s\n\n⚠️ Telegram не смог загрузить изображение, но ты можешь открыть ссылку и сохранить мем."
	msgDeliverFailed  = "😿 Мем создан, но отправить его не получилось. Попробуй ещё раз."
	msgCancelled      = "❌ Процесс создания мема отменён.\n\nИспользуй /newmeme, чтобы начать заново."
	msgCancelledToast = "❌ Создание мема отменено"

	msgNothingToCancel = "❌ Нет активного процесса для отмены."

	msgInvalidCaption = "❌ Текст может содержать только английские буквы, цифры и знаки препинания. Попробуй ещё раз:"
	msgRestart        = "❌ Данные мема потерялись. Начни заново с /newmeme"
	msgRenderFailed   = "❌ Не удалось создать мем. Попробуй ещё раз или выбери другое изображение."
	msgUnexpected     = "😿 Что-то пошло не так. Попробуй ещё раз."

	msgFavAdded        = "⭐ Мем добавлен в избранное!"
	msgPhotoFavAdded   = "⭐ Фото добавлено в избранное!"
	msgFavDuplicate    = "⚠️ Этот мем уже в избранном"
	msgFavNothing      = "❌ Нет мема для добавления в избранное"
	msgStorageFailed   = "❌ Не удалось сохранить избранное. Попробуй позже."
	msgFavLoadFailed   = "❌ Не удалось загрузить избранное. Попробуй позже."
	msgFavEmpty        = "⭐ Твои избранные мемы:\n\nСписок пока пуст.\nСоздавай мемы и добавляй их в избранное!"
	msgFavSummary      = "⭐ Твои избранные мемы (%d шт.):\n\nНажми кнопку ниже, чтобы просмотреть их!"
	msgFavRefreshed    = "Список обновлён! 🔄"
	msgFavListEmpty    = "❌ Список избранного пуст"
	msgFavNotFound     = "❌ Мем не найден"
	msgFavBadIndex     = "❌ Неверный индекс мема"
	msgFavDeleted      = "🗑️ Мем удален из избранного"
	msgFavDeleteFailed = "❌ Ошибка при удалении"
	msgFavCleared      = "🗑️ Все избранные мемы удалены!\n\nСоздавай новые мемы и добавляй их в избранное!"
	msgFavClearedToast = "Избранное очищено"
	msgFavClearFailed  = "❌ Ошибка при очистке"
	msgFavLink         = "%s\n🔗 Ссылка на мем: %s"

	msgTesting     = "🔍 Проверяю доступность API..."
	msgUnsupported = "🤷 Эта кнопка больше не работает"
)

var keywords = []string{"кот", "мем", "помощь", "cat", "meme", "help"}

func startText(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "пользователь"
	}
	return fmt.Sprintf(msgStart, name)
}

// mentionsKeyword reports whether text talks about cats, memes or help.
func mentionsKeyword(text string) bool {
	text = strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func reviewText(d engine.Draft) string {
	return fmt.Sprintf(msgReview, d.TopText, d.BottomText)
}

func memeCaption(d engine.Draft) string {
	return fmt.Sprintf(msgMemeReady, d.TopText, d.BottomText)
}

func statusLine(ok bool) string {
	if ok {
		return "✅ Работает"
	}
	return "❌ Недоступно"
}

func statusText(rep health.Report) string {
	var b strings.Builder
	b.WriteString("📊 Статус API:\n\n")
	fmt.Fprintf(&b, "🐱 The Cat API: %s\n", statusLine(rep.SourceOK))
	fmt.Fprintf(&b, "🎨 Memegen.link: %s\n\n", statusLine(rep.RendererOK))

	working := 0
	for _, ok := range []bool{rep.SourceOK, rep.RendererOK} {
		if ok {
			working++
		}
	}
	switch working {
	case 2:
		b.WriteString("Все API работают нормально! 🎉")
	case 1:
		b.WriteString("Работает 1/2 API. Бот адаптируется! 💪")
	default:
		b.WriteString("Все API недоступны. Бот будет использовать заглушки. 😿")
	}
	return b.String()
}

func favoritesSummary(n int) string {
	if n == 0 {
		return msgFavEmpty
	}
	return fmt.Sprintf(msgFavSummary, n)
}

// favoritesListText renders a numbered list of the user's favorites.
func favoritesListText(list []favorites.Meme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⭐ Твои избранные мемы (%d):\n\n", len(list))
	for i, m := range list {
		fmt.Fprintf(&b, "%d. ", i+1)
		switch {
		case m.Top != "" && m.Bottom != "":
			fmt.Fprintf(&b, "\"%s\" / \"%s\"", m.Top, m.Bottom)
		case m.Top != "":
			fmt.Fprintf(&b, "\"%s\"", m.Top)
		case m.Bottom != "":
			fmt.Fprintf(&b, "\"%s\"", m.Bottom)
		default:
			b.WriteString("Фото без текста")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// favoriteCaption describes the favorite at index for the viewer.
func favoriteCaption(m favorites.Meme, index, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⭐ Избранный мем %d/%d\n\n", index+1, total)
	if m.Top != "" {
		fmt.Fprintf(&b, "📝 Верхний текст: %s\n", m.Top)
	}
	if m.Bottom != "" {
		fmt.Fprintf(&b, "📝 Нижний текст: %s\n", m.Bottom)
	}
	if created, ok := m.Created(); ok {
		fmt.Fprintf(&b, "📅 Создан: %s\n", created.Format("02.01.2006 15:04"))
	} else if m.CreatedAt != "" {
		fmt.Fprintf(&b, "📅 Создан: %s\n", m.CreatedAt)
	}
	return b.String()
}

// errorText maps an engine error to the message shown to the user.
func errorText(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidCaption):
		return msgInvalidCaption
	case errors.Is(err, engine.ErrRestartRequired):
		return msgRestart
	case errors.Is(err, engine.ErrRenderFailed):
		return msgRenderFailed
	case errors.Is(err, engine.ErrNoImage):
		return msgNoImage
	case errors.Is(err, engine.ErrAlreadySaved):
		return msgFavDuplicate
	case errors.Is(err, engine.ErrStorage):
		return msgStorageFailed
	default:
		return msgUnexpected
	}
}
