package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/detection"
	"github.com/example/yachay/internal/exercise"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/internal/session"
	"github.com/example/yachay/pkg/models"
)

// Constants for callback data
const (
	callbackPractice       = "menu_practice"
	callbackVocab          = "menu_vocab"
	callbackGoal           = "menu_goal"
	callbackAbandon        = "abandon"
	callbackAbandonConfirm = "abandon_ok:"
	callbackKeep           = "abandon_no"
	callbackAnswer         = "a:"
)

const (
	textError       = "😕 Algo salió mal. Inténtalo de nuevo en un momento."
	textNoSession   = "No tienes una sesión abierta. Usa /practice o envía una foto."
	textClosed      = "Esta sesión ya terminó."
	textAnswered    = "Ya respondiste este ejercicio."
	textUnavailable = "Esta función no está disponible ahora."
	textHint        = "Envía una foto de un objeto para descubrir su nombre en quechua, o usa /practice para repasar."
)

func answerData(sessionID string, position, option int) string {
	return fmt.Sprintf("%s%s:%d:%d", callbackAnswer, sessionID, position, option)
}

func parseAnswerData(data string) (sessionID string, position, option int, ok bool) {
	parts := strings.Split(strings.TrimPrefix(data, callbackAnswer), ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, false
	}
	position, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, false
	}
	option, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, 0, false
	}
	return parts[0], position, option, true
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var from *tgbotapi.User
	var chatID int64
	switch {
	case update.Message != nil:
		from = update.Message.From
		if update.Message.Chat != nil {
			chatID = update.Message.Chat.ID
		}
	case update.CallbackQuery != nil:
		from = update.CallbackQuery.From
		if m := update.CallbackQuery.Message; m != nil && m.Chat != nil {
			chatID = m.Chat.ID
		}
	}
	if from == nil {
		return
	}
	if chatID == 0 {
		chatID = from.ID
	}

	defer b.lock(from.ID)()
	if err := b.ensureUser(ctx, from); err != nil {
		b.log.Error("failed to store user", zap.Int64("user_id", from.ID), zap.Error(err))
		return
	}

	var err error
	if update.Message != nil {
		err = b.handleMessage(ctx, chatID, update.Message)
	} else {
		err = b.handleCallbackQuery(ctx, chatID, update.CallbackQuery)
	}
	if err != nil {
		b.log.Error("failed to handle update",
			zap.Int("update_id", update.UpdateID),
			zap.Int64("user_id", from.ID),
			zap.Error(err))
		if sendErr := b.sendText(ctx, chatID, textError); sendErr != nil {
			b.log.Warn("failed to report error", zap.Error(sendErr))
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, chatID int64, message *tgbotapi.Message) error {
	userID := message.From.ID
	switch {
	case message.IsCommand():
		return b.handleCommand(ctx, chatID, message)
	case len(message.Photo) > 0:
		return b.handlePhoto(ctx, chatID, userID, message.Photo)
	case message.Voice != nil:
		return b.handleVoice(ctx, chatID, userID, message.Voice)
	case strings.TrimSpace(message.Text) != "":
		return b.handleText(ctx, chatID, userID, message.Text)
	}
	return b.sendText(ctx, chatID, textHint)
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, chatID int64, message *tgbotapi.Message) error {
	userID := message.From.ID
	switch message.Command() {
	case "start":
		return b.handleStart(ctx, chatID)
	case "help":
		return b.handleHelp(ctx, chatID)
	case "menu":
		return b.showMainMenu(ctx, chatID)
	case "practice":
		return b.handlePractice(ctx, chatID, userID)
	case "vocab":
		return b.handleVocab(ctx, chatID, userID)
	case "goal":
		return b.handleGoal(ctx, chatID, userID)
	case "abandon":
		return b.handleAbandonRequest(ctx, chatID, userID)
	case "seed":
		if !b.isAdmin(userID) {
			return b.sendText(ctx, chatID, "Este comando es solo para administradores.")
		}
		return b.handleSeed(ctx, chatID)
	}
	msg := tgbotapi.NewMessage(chatID, "Comando desconocido. Usa /help para ver los comandos.")
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	return b.sendMessage(ctx, msg)
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) error {
	text := "👋 ¡Allillanchu! Bienvenido a Yachay.\n\n" +
		"Aprende quechua con lo que te rodea:\n" +
		"1. Envía una foto de un objeto\n" +
		"2. Descubre su nombre en quechua\n" +
		"3. Practica para ganar estrellas ★\n" +
		"4. Cumple tu meta diaria y mantén tu racha 🔥"

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	return b.sendMessage(ctx, msg)
}

func (b *Bot) handleHelp(ctx context.Context, chatID int64) error {
	text := "📖 Comandos\n\n" +
		"/practice - Practicar tus palabras más débiles\n" +
		"/vocab - Ver tu vocabulario y estrellas\n" +
		"/goal - Ver tu meta diaria y racha\n" +
		"/abandon - Abandonar la sesión actual\n" +
		"/menu - Mostrar el menú\n\n" +
		"Cada palabra tiene de 0 a 5 estrellas. Las palabras nuevas están protegidas " +
		"durante unos días y no pierden estrellas por errores."

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	return b.sendMessage(ctx, msg)
}

func (b *Bot) showMainMenu(ctx context.Context, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "¿Qué quieres hacer?")
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	return b.sendMessage(ctx, msg)
}

func (b *Bot) handleSeed(ctx context.Context, chatID int64) error {
	n, err := b.deps.Catalog.Seed(ctx)
	if err != nil {
		return err
	}
	return b.sendText(ctx, chatID, fmt.Sprintf("Catálogo cargado: %d traducciones nuevas.", n))
}

func (b *Bot) handleVocab(ctx context.Context, chatID, userID int64) error {
	entries, err := database.NewVocabularyRepository(b.deps.Store.DB()).ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	return b.sendText(ctx, chatID, renderVocab(entries))
}

func (b *Bot) handleGoal(ctx context.Context, chatID, userID int64) error {
	goal, err := b.deps.Tracker.Today(ctx, userID)
	if err != nil {
		return err
	}
	profile, err := b.deps.Tracker.Profile(ctx, userID)
	if err != nil {
		return err
	}
	return b.sendText(ctx, chatID, renderGoal(goal, profile))
}

// handlePractice opens a practice session over the learner's weakest words
func (b *Bot) handlePractice(ctx context.Context, chatID, userID int64) error {
	if s, err := b.deps.Sessions.Current(ctx, userID); err == nil {
		if err := b.sendText(ctx, chatID, "Ya tienes una sesión abierta. ¡Continuemos!"); err != nil {
			return err
		}
		return b.sendItem(ctx, chatID, s, session.NextItem(s))
	} else if !errors.Is(err, session.ErrNotFound) {
		return err
	}

	entries, err := database.NewVocabularyRepository(b.deps.Store.DB()).ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	suggested := mastery.SuggestPractice(entries, b.cfg.PracticeSize)
	if len(suggested) == 0 {
		return b.sendText(ctx, chatID, "No tienes palabras por practicar. "+textHint)
	}

	words := make([]models.Translation, 0, len(suggested))
	for _, e := range suggested {
		gloss := e.GlossWord
		if gloss == "" {
			gloss = e.SourceLabel
		}
		words = append(words, models.Translation{Label: e.SourceLabel, Spanish: gloss, Quechua: e.WordKey})
	}
	return b.startSession(ctx, chatID, userID, models.ModePractice, words)
}

func (b *Bot) startSession(ctx context.Context, chatID, userID int64, mode models.Mode, words []models.Translation) error {
	pool, err := b.deps.Catalog.Pool(ctx)
	if err != nil {
		return err
	}
	s, err := b.deps.Sessions.Start(ctx, userID, mode, words, pool)
	if err != nil {
		return err
	}
	return b.sendItem(ctx, chatID, s, session.NextItem(s))
}

func (b *Bot) sendItem(ctx context.Context, chatID int64, s *models.Session, item *models.SessionItem) error {
	if item == nil {
		return b.sendText(ctx, chatID, textClosed)
	}
	ex, err := session.Exercise(*item)
	if err != nil {
		return err
	}
	text, keyboard := renderExercise(s, item, ex)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	return b.sendMessage(ctx, msg)
}

// pending returns the open session of userID and its next item, or nil when
// there is nothing to answer
func (b *Bot) pending(ctx context.Context, userID int64) (*models.Session, *models.SessionItem, error) {
	s, err := b.deps.Sessions.Current(ctx, userID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	item := session.NextItem(s)
	if item == nil {
		return nil, nil, nil
	}
	return s, item, nil
}

func (b *Bot) handleText(ctx context.Context, chatID, userID int64, text string) error {
	s, item, err := b.pending(ctx, userID)
	if err != nil {
		return err
	}
	if item == nil {
		return b.sendText(ctx, chatID, textHint)
	}
	if exercise.Kind(item.Kind) == exercise.KindPronunciation {
		return b.sendText(ctx, chatID, "🗣 Para este ejercicio envía una nota de voz.")
	}
	return b.answer(ctx, chatID, userID, s.ID, item.Position, text)
}

func (b *Bot) handleVoice(ctx context.Context, chatID, userID int64, voice *tgbotapi.Voice) error {
	s, item, err := b.pending(ctx, userID)
	if err != nil {
		return err
	}
	if item == nil {
		return b.sendText(ctx, chatID, textNoSession)
	}
	if exercise.Kind(item.Kind) != exercise.KindPronunciation {
		return b.sendText(ctx, chatID, "Este ejercicio se responde por escrito o con los botones.")
	}
	if b.deps.Judge == nil {
		return b.sendText(ctx, chatID, textUnavailable)
	}

	ex, err := session.Exercise(*item)
	if err != nil {
		return err
	}
	audio, err := b.download(ctx, voice.FileID)
	if errors.Is(err, errTooLarge) {
		return b.sendText(ctx, chatID, "La nota de voz es demasiado larga.")
	}
	if err != nil {
		return err
	}
	verdict, err := b.deps.Judge.Verdict(ctx, audio, ex.Word())
	if err != nil {
		return err
	}
	if verdict.Transcript == "" {
		return b.sendText(ctx, chatID, "🎙 No pude entender el audio. Inténtalo de nuevo.")
	}

	heard := fmt.Sprintf("🎙 Escuché: %q (%.0f%% de parecido)", verdict.Transcript, verdict.Similarity*100)
	if err := b.sendText(ctx, chatID, heard); err != nil {
		return err
	}
	return b.answer(ctx, chatID, userID, s.ID, item.Position, verdict.Transcript)
}

// answer submits one answer and replies with feedback and the next exercise
func (b *Bot) answer(ctx context.Context, chatID, userID int64, sessionID string, position int, answer string) error {
	fb, err := b.deps.Sessions.Answer(ctx, userID, sessionID, position, answer)
	switch {
	case errors.Is(err, session.ErrAlreadyAnswered):
		return b.sendText(ctx, chatID, textAnswered)
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, session.ErrNotFound):
		return b.sendText(ctx, chatID, textClosed)
	case err != nil:
		return err
	}

	if err := b.sendText(ctx, chatID, renderFeedback(fb)); err != nil {
		return err
	}
	if fb.Next != nil {
		return b.sendItem(ctx, chatID, fb.Session, fb.Next)
	}
	msg := tgbotapi.NewMessage(chatID, renderCompletion(fb.Session, fb.Goal))
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	return b.sendMessage(ctx, msg)
}

// handlePhoto detects objects in the largest photo size and opens a detection
// session on the primary word when the learner is idle
func (b *Bot) handlePhoto(ctx context.Context, chatID, userID int64, sizes []tgbotapi.PhotoSize) error {
	if b.deps.Detection == nil {
		return b.sendText(ctx, chatID, textUnavailable)
	}
	image, err := b.download(ctx, sizes[len(sizes)-1].FileID)
	if errors.Is(err, errTooLarge) {
		return b.sendText(ctx, chatID, "La foto es demasiado grande.")
	}
	if err != nil {
		return err
	}

	res, err := b.deps.Detection.Detect(ctx, userID, image)
	if errors.Is(err, detection.ErrNothingDetected) {
		return b.sendText(ctx, chatID, "🔍 No reconocí ningún objeto conocido. Prueba con otra foto.")
	}
	if err != nil {
		return err
	}
	if err := b.sendText(ctx, chatID, renderDetection(res)); err != nil {
		return err
	}

	_, err = b.deps.Sessions.Current(ctx, userID)
	switch {
	case err == nil:
		return b.sendText(ctx, chatID, "Termina tu sesión actual para practicar esta palabra.")
	case !errors.Is(err, session.ErrNotFound):
		return err
	}
	return b.startSession(ctx, chatID, userID, models.ModeDetection, []models.Translation{res.Primary.Translation})
}

// handleAbandonRequest shows what abandoning would cost and asks for confirmation
func (b *Bot) handleAbandonRequest(ctx context.Context, chatID, userID int64) error {
	s, err := b.deps.Sessions.Current(ctx, userID)
	if errors.Is(err, session.ErrNotFound) {
		return b.sendText(ctx, chatID, textNoSession)
	}
	if err != nil {
		return err
	}
	previews, err := b.deps.Sessions.Preview(ctx, userID, s.ID)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, renderPreview(previews))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "Sí, abandonar", CallbackData: callbackAbandonConfirm + s.ID}},
		{{Text: "No, continuar", CallbackData: callbackKeep}},
	})
	return b.sendMessage(ctx, msg)
}

func (b *Bot) handleAbandon(ctx context.Context, chatID, userID int64, sessionID string) error {
	list, err := b.deps.Sessions.Abandon(ctx, userID, sessionID)
	switch {
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, session.ErrNotFound):
		return b.sendText(ctx, chatID, textClosed)
	case err != nil:
		return err
	}

	text := renderAbandoned(list)
	if len(list) == 0 {
		text = "Esta sesión ya estaba completa."
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	return b.sendMessage(ctx, msg)
}

// handleCallbackQuery handles button presses
func (b *Bot) handleCallbackQuery(ctx context.Context, chatID int64, callback *tgbotapi.CallbackQuery) error {
	b.answerCallback(callback, "")
	userID := callback.From.ID
	data := callback.Data

	switch {
	case data == callbackPractice:
		return b.handlePractice(ctx, chatID, userID)
	case data == callbackVocab:
		return b.handleVocab(ctx, chatID, userID)
	case data == callbackGoal:
		return b.handleGoal(ctx, chatID, userID)
	case data == callbackAbandon:
		return b.handleAbandonRequest(ctx, chatID, userID)
	case data == callbackKeep:
		s, item, err := b.pending(ctx, userID)
		if err != nil || item == nil {
			return err
		}
		return b.sendItem(ctx, chatID, s, item)
	case strings.HasPrefix(data, callbackAbandonConfirm):
		return b.handleAbandon(ctx, chatID, userID, strings.TrimPrefix(data, callbackAbandonConfirm))
	case strings.HasPrefix(data, callbackAnswer):
		return b.handleOption(ctx, chatID, userID, data)
	}
	b.log.Warn("unknown callback", zap.String("data", data))
	return nil
}

func (b *Bot) handleOption(ctx context.Context, chatID, userID int64, data string) error {
	sessionID, position, option, ok := parseAnswerData(data)
	if !ok {
		b.log.Warn("malformed answer callback", zap.String("data", data))
		return nil
	}
	s, err := b.deps.Sessions.Current(ctx, userID)
	if errors.Is(err, session.ErrNotFound) {
		return b.sendText(ctx, chatID, textClosed)
	}
	if err != nil {
		return err
	}
	if s.ID != sessionID {
		return b.sendText(ctx, chatID, textClosed)
	}

	var item *models.SessionItem
	for i := range s.Items {
		if s.Items[i].Position == position {
			item = &s.Items[i]
			break
		}
	}
	if item == nil {
		return b.sendText(ctx, chatID, textClosed)
	}
	if item.Answered {
		return b.sendText(ctx, chatID, textAnswered)
	}
	ex, err := session.Exercise(*item)
	if err != nil {
		return err
	}
	answer, ok := optionAnswer(ex, option)
	if !ok {
		b.log.Warn("answer option out of range", zap.String("data", data))
		return nil
	}
	return b.answer(ctx, chatID, userID, sessionID, position, answer)
}
