package processor

import (
	"context"
	"encoding/json"
	"gigg-ticketing/models"
	"log"
	"strings"
	"time"

	pubnub "github.com/pubnub/go/v7"
)

// EventListener receives the processor's out-of-band payment events
// (refunds, chargebacks) over PubNub. Consumers read Events() and set the
// corresponding ticket flags; the listener itself never touches the store.
type EventListener struct {
	pn       *pubnub.PubNub
	lis      *pubnub.Listener
	channels []string
	ch       chan *models.PaymentEvent
}

func NewEventListener(cfg *Config) *EventListener {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PNUUID))
	pnCfg.SubscribeKey = cfg.PNSubKey

	l := &EventListener{
		pn:       pubnub.NewPubNub(pnCfg),
		lis:      pubnub.NewListener(),
		channels: []string{cfg.PNChannel},
		ch:       make(chan *models.PaymentEvent, 16),
	}
	l.pn.AddListener(l.lis)
	return l
}

// Events is the stream of parsed payment events.
func (l *EventListener) Events() <-chan *models.PaymentEvent { return l.ch }

// Listen subscribes and pumps messages until the context is cancelled.
func (l *EventListener) Listen(ctx context.Context) {
	l.pn.Subscribe().Channels(l.channels).Execute()

	for {
		select {
		case status := <-l.lis.Status:
			switch status.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to processor event channel")

			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to processor event channel")

			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from processor event channel")

			default:
				log.Printf("processor event channel status: %v", status.Category)
			}

		case message := <-l.lis.Message:
			ev := parsePaymentEvent(message.Message)
			if ev == nil {
				continue
			}
			select {
			case l.ch <- ev:
			default:
				log.Println("payment event dropped: consumer not keeping up")
			}

		case <-ctx.Done():
			l.pn.Unsubscribe().Channels(l.channels).Execute()
			log.Println("processor event listener stopped")
			return
		}
	}
}

type eventPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Created   int64  `json:"created"`
}

func parsePaymentEvent(raw interface{}) *models.PaymentEvent {
	var p eventPayload
	switch m := raw.(type) {
	case string:
		if err := json.NewDecoder(strings.NewReader(m)).Decode(&p); err != nil {
			log.Printf("unparseable payment event: %v", err)
			return nil
		}
	case map[string]interface{}:
		data, _ := json.Marshal(m)
		if err := json.Unmarshal(data, &p); err != nil {
			log.Printf("unparseable payment event: %v", err)
			return nil
		}
	default:
		return nil
	}

	if p.SessionID == "" {
		return nil
	}

	var kind string
	switch p.Type {
	case "charge.refunded", "refund":
		kind = "refund"
	case "charge.dispute.created", "chargeback":
		kind = "chargeback"
	default:
		return nil
	}

	at := time.Now().UTC()
	if p.Created > 0 {
		at = time.Unix(p.Created, 0).UTC()
	}

	return &models.PaymentEvent{
		Type:       kind,
		SessionID:  p.SessionID,
		OccurredAt: at,
	}
}
