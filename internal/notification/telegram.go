package notification

import (
	"context"
	"errors"
	"fmt"

	"renit/internal/domain"
	"renit/internal/events"
	"renit/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "02.01.2006 15:04"

// Sender is the part of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBotSender connects to the Bot API with the given token.
func NewBotSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

type notice struct {
	chatID int64
	text   string
}

// TelegramNotifier tells owners and renters about booking lifecycle changes.
// Event handlers only resolve recipients and queue the text; Run does the
// network calls so a slow Bot API never delays a booking write.
type TelegramNotifier struct {
	sender Sender
	users  domain.UserStore
	items  domain.ItemStore
	queue  chan notice
	logger zerolog.Logger
}

func NewTelegramNotifier(sender Sender, users domain.UserStore, items domain.ItemStore, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		users:  users,
		items:  items,
		queue:  make(chan notice, models.WorkerQueueSize),
		logger: logger.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Attach subscribes the notifier to every booking lifecycle event.
func (n *TelegramNotifier) Attach(bus *events.EventBus) {
	for _, t := range events.BookingEventTypes {
		bus.Subscribe(t, n.Handle)
	}
}

func (n *TelegramNotifier) Handle(event *events.Event) error {
	p, err := events.DecodeBooking(event)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	ctx := context.Background()
	if p.OwnerID == 0 || p.ItemTitle == "" {
		item, err := n.items.GetItem(ctx, p.ItemID)
		if err != nil {
			return fmt.Errorf("load item %d: %w", p.ItemID, err)
		}
		p.OwnerID = item.OwnerID
		p.ItemTitle = item.Title
	}

	for _, userID := range recipients(event.Type, p) {
		chatID, ok, err := n.chatID(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		n.enqueue(notice{chatID: chatID, text: formatNotice(event.Type, p, userID == p.OwnerID)})
	}
	return nil
}

// recipients lists who hears about the event. The actor who caused a
// cancellation is not told about it.
func recipients(eventType string, p events.BookingEventPayload) []int64 {
	switch eventType {
	case events.EventBookingCreated, events.EventBookingUpdated:
		return []int64{p.OwnerID}
	case events.EventBookingConfirmed:
		return []int64{p.OwnerID, p.RenterID}
	case events.EventBookingCanceled:
		switch p.ChangedBy {
		case events.ChangedByRenter:
			return []int64{p.OwnerID}
		case events.ChangedByOwner:
			return []int64{p.RenterID}
		default:
			return []int64{p.OwnerID, p.RenterID}
		}
	case events.EventBookingCompleted:
		return []int64{p.RenterID}
	default:
		return nil
	}
}

func (n *TelegramNotifier) chatID(ctx context.Context, userID int64) (int64, bool, error) {
	user, err := n.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.TelegramChatID == nil || *user.TelegramChatID == 0 {
		return 0, false, nil
	}
	return *user.TelegramChatID, true, nil
}

func (n *TelegramNotifier) enqueue(msg notice) {
	select {
	case n.queue <- msg:
	default:
		n.logger.Warn().Int64("chat_id", msg.chatID).Msg("notification queue full, message dropped")
	}
}

// Run sends queued notifications until ctx is done.
func (n *TelegramNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.queue:
			n.send(msg)
		}
	}
}

func (n *TelegramNotifier) send(msg notice) {
	out := tgbotapi.NewMessage(msg.chatID, msg.text)
	out.ParseMode = tgbotapi.ModeHTML
	if _, err := n.sender.Send(out); err != nil {
		n.logger.Error().Err(err).Int64("chat_id", msg.chatID).Msg("telegram send error")
	}
}

func formatNotice(eventType string, p events.BookingEventPayload, toOwner bool) string {
	period := fmt.Sprintf("%s - %s", p.StartTime.UTC().Format(dateLayout), p.EndTime.UTC().Format(dateLayout))
	title := tgbotapi.EscapeText(tgbotapi.ModeHTML, p.ItemTitle)

	var head string
	switch eventType {
	case events.EventBookingCreated:
		head = "New booking request"
	case events.EventBookingUpdated:
		head = "Booking dates changed"
	case events.EventBookingConfirmed:
		if toOwner {
			head = "Booking paid and confirmed"
		} else {
			head = "Your booking is confirmed"
		}
	case events.EventBookingCanceled:
		head = "Booking canceled"
		if p.ChangedBy == events.ChangedBySystem {
			head = "Booking expired without payment"
		}
	case events.EventBookingCompleted:
		head = "Booking completed, thanks for renting"
	default:
		head = "Booking " + p.Status
	}

	text := fmt.Sprintf("<b>%s</b>\n%s (#%d)\n%s UTC", head, title, p.BookingID, period)
	if p.TotalPriceCents != nil {
		text += fmt.Sprintf("\nTotal: %d.%02d", *p.TotalPriceCents/100, *p.TotalPriceCents%100)
	}
	return text
}
