// Package assistant implements the scripted lead-qualification chat: a fixed sequence of
// steps, each extracting one field from free text.
package assistant

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Step names a position in the script.
type Step string

const (
	StepGreeting Step = "greeting"
	StepLocation Step = "location"
	StepBudget   Step = "budget"
	StepBedrooms Step = "bedrooms"
	StepName     Step = "name"
	StepPhone    Step = "phone"
	StepEmail    Step = "email"
	StepTimeline Step = "timeline"
	StepComplete Step = "complete"
)

// Steps lists the script in order.
var Steps = []Step{
	StepGreeting, StepLocation, StepBudget, StepBedrooms,
	StepName, StepPhone, StepEmail, StepTimeline, StepComplete,
}

// ErrConversationComplete is returned by Handle once the script has finished.
var ErrConversationComplete = errors.New("conversation already complete")

const (
	RoleBot  = "bot"
	RoleUser = "user"
)

// ChatUserData accumulates what the visitor told the assistant.
type ChatUserData struct {
	Preference string `json:"preference,omitempty"`
	Location   string `json:"location,omitempty"`
	BudgetMin  *int64 `json:"budget_min,omitempty"`
	BudgetMax  *int64 `json:"budget_max,omitempty"`
	Bedrooms   *int   `json:"bedrooms,omitempty"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Timeline   string `json:"timeline,omitempty"`
}

type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Step      Step      `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// Reply is the assistant's answer to one user message.
type Reply struct {
	Step     Step   `json:"step"`
	Text     string `json:"text"`
	Advanced bool   `json:"advanced"`
	Complete bool   `json:"complete"`
}

// Conversation is one visitor's run through the script. It is safe for concurrent use.
type Conversation struct {
	mu        sync.Mutex
	ID        string       `json:"id"`
	Step      Step         `json:"step"`
	Data      ChatUserData `json:"data"`
	Messages  []Message    `json:"messages"`
	StartedAt time.Time    `json:"started_at"`
	LeadID    uint         `json:"lead_id,omitempty"`

	now func() time.Time
}

// NewConversation starts a conversation at the greeting with the welcome prompt.
func NewConversation(id string) *Conversation {
	c := &Conversation{ID: id, Step: StepGreeting, now: time.Now}
	c.StartedAt = c.now()
	c.appendMessage(RoleBot, prompts[StepGreeting])
	return c
}

func (c *Conversation) appendMessage(role, text string) {
	c.Messages = append(c.Messages, Message{Role: role, Text: text, Step: c.Step, Timestamp: c.now()})
}

// Handle feeds one user message to the current step. A match stores the extracted value,
// advances and answers with the next prompt; otherwise the step's reprompt is returned
// and the step is unchanged.
func (c *Conversation) Handle(input string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Step == StepComplete {
		return Reply{Step: StepComplete, Complete: true}, ErrConversationComplete
	}
	c.appendMessage(RoleUser, input)

	m, ok := matchers[c.Step]
	if !ok || !m(input, &c.Data) {
		text := reprompts[c.Step]
		c.appendMessage(RoleBot, text)
		return Reply{Step: c.Step, Text: text}, nil
	}

	c.Step = next(c.Step)
	text := prompts[c.Step]
	if c.Step == StepComplete {
		text = completionText(c.Data)
	}
	c.appendMessage(RoleBot, text)
	return Reply{Step: c.Step, Text: text, Advanced: true, Complete: c.Step == StepComplete}, nil
}

func next(s Step) Step {
	for i, st := range Steps {
		if st == s && i+1 < len(Steps) {
			return Steps[i+1]
		}
	}
	return StepComplete
}

// Snapshot returns a copy safe to serialise while the conversation keeps running.
func (c *Conversation) Snapshot() ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	return ConversationView{
		ID:        c.ID,
		Step:      c.Step,
		Data:      c.Data,
		Messages:  msgs,
		StartedAt: c.StartedAt,
		LeadID:    c.LeadID,
		Score:     LeadScore(c.Data),
	}
}

// ConversationView is the serialisable state of a conversation.
type ConversationView struct {
	ID        string       `json:"id"`
	Step      Step         `json:"step"`
	Data      ChatUserData `json:"data"`
	Messages  []Message    `json:"messages"`
	StartedAt time.Time    `json:"started_at"`
	LeadID    uint         `json:"lead_id,omitempty"`
	Score     int          `json:"score"`
}

// Transcript encodes the collected data and every message, as stored on the lead.
func (c *Conversation) Transcript() ([]byte, error) {
	v := c.Snapshot()
	return json.Marshal(struct {
		Data     ChatUserData `json:"data"`
		Messages []Message    `json:"messages"`
	}{v.Data, v.Messages})
}

// Reopen steps a finished conversation without a stored lead back to its last
// question and drops the final exchange, so the answer can be sent again.
// It reports whether the conversation was reopened.
func (c *Conversation) Reopen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Step != StepComplete || c.LeadID != 0 {
		return false
	}
	c.Step = Steps[len(Steps)-2]
	c.Data.Timeline = ""
	if n := len(c.Messages); n >= 2 {
		c.Messages = c.Messages[:n-2]
	}
	return true
}

// SetLeadID records the lead row created from this conversation.
func (c *Conversation) SetLeadID(id uint) {
	c.mu.Lock()
	c.LeadID = id
	c.mu.Unlock()
}

// CurrentStep returns the step awaiting input.
func (c *Conversation) CurrentStep() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Step
}
