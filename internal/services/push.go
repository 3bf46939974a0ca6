package services

import (
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// PushService delivers new-message notifications over APNs. It is
// fire-and-forget: a failed push is logged by the caller and never
// retried.
type PushService struct {
	client *apns2.Client
	topic  string
}

// NewPushService creates an APNs client from a .p8 signing key
func NewPushService(keyFile, keyID, teamID, topic string, production bool) (*PushService, error) {
	authKey, err := token.AuthKeyFromFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	})
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &PushService{client: client, topic: topic}, nil
}

// NotifyNewMessage pushes a chat message alert to a device
func (s *PushService) NotifyNewMessage(deviceToken, senderName, text string) error {
	p := payload.NewPayload().
		AlertTitle(senderName).
		AlertBody(text).
		Sound("default")

	res, err := s.client.Push(&apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.topic,
		Payload:     p,
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("APNs rejected notification: %s", res.Reason)
	}
	return nil
}
