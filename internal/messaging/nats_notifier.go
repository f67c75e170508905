package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type NATSNotifier struct {
	conn Publisher
}

func NewNATSNotifier(conn Publisher) *NATSNotifier {
	return &NATSNotifier{conn: conn}
}

func SessionSubject(sessionID string) string {
	return "checkout.session." + sessionID + ".state"
}

// NotifyState pushes the checkout view to the session's subject.
func (n *NATSNotifier) NotifyState(ctx context.Context, view models.CheckoutView) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout view: %w", err)
	}
	return n.conn.Publish(SessionSubject(view.SessionID), payload)
}
