// Package queue carries ledger change notifications between the API and the
// cache refresher.
package queue

import (
	"context"
	"encoding/json"
	"strconv"
)

// Message types.
const (
	TypeMemberChanged   = "member.changed"
	TypeExpensesChanged = "expenses.changed"
	TypeCacheRefresh    = "cache.refresh"
)

// Message represents a change notification.
type Message struct {
	Type string `json:"type"`
	Body []byte `json:"body,omitempty"`
}

// MemberChanged builds a notification for one member document.
func MemberChanged(roll int) Message {
	return Message{Type: TypeMemberChanged, Body: []byte(strconv.Itoa(roll))}
}

// Roll decodes the roll number carried by a member notification.
func (m Message) Roll() (int, bool) {
	if m.Type != TypeMemberChanged {
		return 0, false
	}
	roll, err := strconv.Atoi(string(m.Body))
	return roll, err == nil
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

func encode(msg Message) ([]byte, error) { return json.Marshal(msg) }

func decode(raw []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(raw, &msg)
	return msg, err
}
