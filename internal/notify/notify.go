// Package notify delivers reminders to the devices of a user through Firebase
// Cloud Messaging.
package notify

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/mgmu/greenhouse/internal/plants"
	"github.com/mgmu/greenhouse/internal/tasks"
)

// Result of a send. Stale lists the tokens FCM no longer knows, which should
// be forgotten.
type Result struct {
	Sent  int
	Stale []string
}

// multicaster is the part of the messaging client used here.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Sender struct {
	client  multicaster
	isStale func(error) bool
}

// New connects to Firebase with the service account in credentialsFile.
func New(ctx context.Context, credentialsFile string) (*Sender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &Sender{client: client, isStale: messaging.IsUnregistered}, nil
}

// Send pushes n to every token. Failing tokens are reported, not returned as
// errors, unless every delivery failed for another reason than the token.
func (s *Sender) Send(ctx context.Context, tokens []string, n tasks.Notification, t plants.PlantTask) (Result, error) {
	if len(tokens) == 0 {
		return Result{}, nil
	}
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: map[string]string{
			"task_id":  strconv.Itoa(t.Id),
			"plant_id": strconv.Itoa(t.PlantId),
			"url":      fmt.Sprintf("/plants/%d", t.PlantId),
		},
		Webpush: &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: fmt.Sprintf("/plants/%d", t.PlantId)},
		},
	}
	br, err := s.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return Result{}, fmt.Errorf("fcm: %w", err)
	}

	var res Result
	var lastErr error
	for i, r := range br.Responses {
		switch {
		case r.Success:
			res.Sent++
		case s.isStale(r.Error):
			res.Stale = append(res.Stale, tokens[i])
		default:
			lastErr = r.Error
		}
	}
	if res.Sent == 0 && lastErr != nil {
		return res, fmt.Errorf("fcm: %w", lastErr)
	}
	return res, nil
}
