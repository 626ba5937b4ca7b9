package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/tejzpr/formgate/internal/db"
)

// Submission is published whenever a guest response is stored.
type Submission struct {
	ResponseID    string    `json:"responseId"`
	FormID        string    `json:"formId"`
	GuestID       string    `json:"guestId"`
	AccessTokenID string    `json:"accessTokenId"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Broker fans submission events out to subscribed administrators.
// Slow subscribers miss events rather than block publishers.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan string]string
}

func NewBroker() *Broker {
	return &Broker{clients: make(map[chan string]string)}
}

// Subscribe registers a channel receiving events for adminID's forms.
func (b *Broker) Subscribe(adminID string) chan string {
	ch := make(chan string, 16)
	b.mu.Lock()
	b.clients[ch] = adminID
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// Close ends every subscription. Subscribers see their channel closed.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}

func (b *Broker) Publish(adminID string, ev Submission) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	msg := string(payload)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, owner := range b.clients {
		if owner != adminID {
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

// Notify publishes a stored response.
func (b *Broker) Notify(adminID string, resp *db.Response) {
	b.Publish(adminID, Submission{
		ResponseID:    resp.ID,
		FormID:        resp.FormID,
		GuestID:       resp.GuestID,
		AccessTokenID: resp.AccessTokenID,
		SubmittedAt:   resp.SubmittedAt,
	})
}
