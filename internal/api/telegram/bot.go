package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "medvision/internal/application"
	"medvision/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я помогаю разметить медицинские снимки.

🧠 /tumor — проверить снимок МРТ на опухоль
🦴 /fracture — нанести рамки переломов на рентген

📋 Команды:
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

🧠 /tumor
1️⃣ Отправьте снимок МРТ
2️⃣ Получите вердикт модели и снимок с выделенной границей области

🦴 /fracture
1️⃣ Отправьте рентген с подписью, по рамке на строку:
   метка x y ширина высота уверенность
   например: fracture 0.1 0.2 0.3 0.4 0.95
   координаты — доли ширины и высоты снимка
2️⃣ Получите снимок с нанесёнными рамками

⚠️ Результат не является медицинским заключением.`

	msgAwaitingTumor    = "🧠 Отправьте снимок МРТ."
	msgAwaitingFracture = "🦴 Отправьте рентген, в подписи перечислите рамки: метка x y ширина высота уверенность."
	msgCancelled        = "❌ Операция отменена. Выберите /tumor или /fracture."
	msgChooseMode       = "📋 Сначала выберите проверку: /tumor или /fracture."
	msgBusy             = "⏳ Предыдущий снимок ещё обрабатывается."
	msgUnknownCommand   = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing       = "⏳ Обрабатываю изображение..."
	msgProcessingError  = "⚠️ Не удалось обработать изображение. Попробуйте позже."
	msgRejected         = "⚠️ Снимок не принят: %s"
	msgBadCaption       = "⚠️ Не удалось разобрать рамки из подписи: %s"

	defaultPruneEvery = 10 * time.Minute
	defaultIdle       = time.Hour
)

// Detector: сценарии сервиса, которыми пользуется бот.
type Detector interface {
	DetectTumor(ctx context.Context, imageData string) (*entity.TumorReport, error)
	AnnotateFracture(ctx context.Context, in app.FractureInput) (*entity.FractureReport, error)
}

// Pruner удаляет заброшенные диалоги.
type Pruner interface {
	Prune(idle time.Duration) int
}

// Bot представляет Telegram-бота
type Bot struct {
	api      *tgbotapi.BotAPI
	users    *app.UserService
	detector Detector
	pruner   Pruner
	client   *http.Client
	log      logrus.FieldLogger
}

// NewBot создаёт бота; pruner может быть nil.
func NewBot(token string, users *app.UserService, detector Detector, pruner Pruner, log logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	log.WithField("account", api.Self.UserName).Info("telegram bot authorized")

	return &Bot{
		api:      api,
		users:    users,
		detector: detector,
		pruner:   pruner,
		client:   &http.Client{Timeout: time.Minute},
		log:      log,
	}, nil
}

// Run обрабатывает сообщения до отмены ctx.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	prune := time.NewTicker(defaultPruneEvery)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-prune.C:
			if b.pruner != nil {
				if n := b.pruner.Prune(defaultIdle); n > 0 {
					b.log.WithField("dialogs", n).Debug("idle dialogs pruned")
				}
			}
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgChooseMode)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	var (
		reply string
		err   error
	)
	switch msg.Command() {
	case "start":
		_, err = b.users.Cancel(ctx, userID, chatID)
		reply = msgStart
	case "help":
		reply = msgHelp
	case "tumor":
		_, err = b.users.BeginTumorCheck(ctx, userID, chatID)
		reply = msgAwaitingTumor
	case "fracture":
		_, err = b.users.BeginFractureCheck(ctx, userID, chatID)
		reply = msgAwaitingFracture
	case "cancel":
		_, err = b.users.Cancel(ctx, userID, chatID)
		reply = msgCancelled
	default:
		reply = msgUnknownCommand
	}
	if err != nil {
		b.log.WithError(err).WithField("user_id", userID).Error("update dialog state")
		return
	}
	b.sendMessage(chatID, reply)
}

// handlePhoto отправляет снимок в сценарий, выбранный пользователем.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	log := b.log.WithFields(logrus.Fields{"user_id": userID, "chat_id": chatID})

	user, err := b.users.Get(ctx, userID, chatID)
	if err != nil {
		log.WithError(err).Error("get user")
		return
	}
	switch {
	case user.State == entity.StateProcessing:
		b.sendMessage(chatID, msgBusy)
		return
	case !user.AwaitingPhoto():
		b.sendMessage(chatID, msgChooseMode)
		return
	}

	mode, err := b.users.StartProcessing(ctx, userID, chatID)
	if err != nil {
		log.WithError(err).Error("start processing")
		return
	}
	defer func() {
		if err := b.users.Finish(ctx, userID); err != nil {
			log.WithError(err).Warn("finish dialog")
		}
	}()

	b.sendMessage(chatID, msgProcessing)

	// Берём файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]
	data, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		log.WithError(err).Error("download photo")
		b.sendMessage(chatID, msgProcessingError)
		return
	}
	blob := base64.StdEncoding.EncodeToString(data)

	var processed, caption string
	switch mode {
	case entity.StateAwaitingTumorPhoto:
		report, err := b.detector.DetectTumor(ctx, blob)
		if err != nil {
			b.replyError(chatID, log, err)
			return
		}
		processed, caption = report.ProcessedImage, tumorCaption(report)
	case entity.StateAwaitingFracturePhoto:
		boxes, err := parseBoxes(msg.Caption)
		if err != nil {
			b.sendMessage(chatID, fmt.Sprintf(msgBadCaption, err))
			return
		}
		report, err := b.detector.AnnotateFracture(ctx, app.FractureInput{ImageData: blob, Boxes: boxes})
		if err != nil {
			b.replyError(chatID, log, err)
			return
		}
		processed, caption = report.ProcessedImage, fractureCaption(report)
	}

	jpeg, err := base64.StdEncoding.DecodeString(processed)
	if err != nil {
		log.WithError(err).Error("decode processed image")
		b.sendMessage(chatID, msgProcessingError)
		return
	}
	b.sendPhoto(chatID, jpeg, caption)
}

func (b *Bot) replyError(chatID int64, log logrus.FieldLogger, err error) {
	if entity.IsClientFault(err) {
		log.WithError(err).Warn("photo rejected")
		b.sendMessage(chatID, fmt.Sprintf(msgRejected, err))
		return
	}
	log.WithError(err).Error("photo processing failed")
	b.sendMessage(chatID, msgProcessingError)
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Error("send message")
	}
}

func (b *Bot) sendPhoto(chatID int64, jpeg []byte, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "result.jpg", Bytes: jpeg})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Error("send photo")
	}
}
