package devserver

import (
	"context"
	"log"
	"math/rand"
	"time"

	"console_go/internal/domain"
)

func strptr(s string) *string { return &s }
func i64ptr(v int64) *int64   { return &v }

// Seed inserts fixture conversations across platforms and phone lines if the
// store is empty. Idempotence is approximated by skipping when anything
// already exists.
func Seed(ctx context.Context, store domain.ConversationStore) error {
	existing, err := store.List(ctx, domain.Scope{Status: domain.StatusActive})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()
	fixtures := []*domain.Conversation{
		{
			CustomerPhone:   "+15551230001",
			CustomerName:    strptr("Jane Doe"),
			Platform:        domain.PlatformSMS,
			ControlMode:     domain.ControlAI,
			LastMessageTime: now.Add(-2 * time.Minute),
			LatestMessage:   &domain.LatestMessage{Content: "Do you have anything open on Friday?", Sender: "customer", Timestamp: now.Add(-2 * time.Minute)},
			UnreadCount:     1,
			PhoneLineID:     i64ptr(1),
		},
		{
			CustomerPhone:   "+15551230002",
			CustomerName:    strptr("Marcus Webb"),
			Platform:        domain.PlatformFacebook,
			ControlMode:     domain.ControlAI,
			LastMessageTime: now.Add(-10 * time.Minute),
			LatestMessage:   &domain.LatestMessage{Content: "Thanks, see you then!", Sender: "customer", Timestamp: now.Add(-10 * time.Minute)},
			PhoneLineID:     i64ptr(1),
		},
		{
			CustomerPhone:       "+15551230003",
			Platform:            domain.PlatformWeb,
			ControlMode:         domain.ControlAI,
			NeedsHumanAttention: true,
			LastMessageTime:     now.Add(-1 * time.Hour),
			LatestMessage:       &domain.LatestMessage{Content: "I'd like to speak to a person please", Sender: "customer", Timestamp: now.Add(-1 * time.Hour)},
			UnreadCount:         3,
			PhoneLineID:         i64ptr(2),
		},
		{
			CustomerPhone:   "+15551230004",
			CustomerName:    strptr("Priya Nair"),
			Platform:        domain.PlatformInstagram,
			ControlMode:     domain.ControlHuman,
			LastMessageTime: now.Add(-30 * time.Minute),
			LatestMessage:   &domain.LatestMessage{Content: "Can I move my appointment?", Sender: "customer", Timestamp: now.Add(-30 * time.Minute)},
			Pinned:          true,
			PhoneLineID:     i64ptr(2),
		},
		{
			CustomerPhone:   "+15551230005",
			CustomerName:    strptr("Old Lead"),
			Platform:        domain.PlatformEmail,
			ControlMode:     domain.ControlAI,
			LastMessageTime: now.Add(-72 * time.Hour),
			Archived:        true,
		},
	}
	for _, c := range fixtures {
		if err := store.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

var trafficLines = []string{
	"Hi, are you open today?",
	"How much is a standard visit?",
	"Could I get a quote for next week?",
	"Is the Friday slot still free?",
	"Please call me back when you can.",
	"Can I reschedule to Monday?",
}

// Traffic periodically injects inbound customer messages (and an occasional
// control flip) so the console has something live to synchronize against.
// Runs until ctx is cancelled.
func Traffic(ctx context.Context, store domain.ConversationStore, hub *Hub, interval time.Duration) {
	if interval <= 0 {
		interval = 7 * time.Second
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		convs, err := store.List(ctx, domain.Scope{Status: domain.StatusActive})
		if err != nil || len(convs) == 0 {
			continue
		}
		target := convs[rng.Intn(len(convs))]

		// Rarely flip an AI thread to human control, as if a colleague took it.
		if rng.Intn(8) == 0 && target.ControlMode == domain.ControlAI {
			if err := store.SetControlMode(ctx, target.ID, domain.ControlHuman); err == nil {
				hub.Broadcast(domain.Event{
					Kind:           domain.EventControlModeChanged,
					ConversationID: target.ID,
					PhoneLineID:    target.PhoneLineID,
				})
			}
			continue
		}

		content := trafficLines[rng.Intn(len(trafficLines))]
		if err := store.RecordMessage(ctx, target.ID, content, "customer", time.Now().UTC(), true); err != nil {
			log.Printf("traffic: record message: %v", err)
			continue
		}
		hub.Broadcast(domain.Event{
			Kind:           domain.EventNewMessage,
			ConversationID: target.ID,
			PhoneLineID:    target.PhoneLineID,
		})
	}
}
