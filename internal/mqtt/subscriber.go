package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/log"
)

// MessageSubscriber is the part of the client a Subscriber needs.
type MessageSubscriber interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// InputHandler receives player commands. *playback.Runtime satisfies it.
type InputHandler interface {
	StartScenario(id int) error
	Advance() error
	Select(i int) error
	Stop() error
}

// Player input actions.
const (
	ActionStart   = "start"
	ActionAdvance = "advance"
	ActionSelect  = "select"
	ActionStop    = "stop"
)

var ErrUnknownAction = errors.New("unknown input action")

// PlayerInput is a command sent by the game client.
type PlayerInput struct {
	Action     string `json:"action"`
	ScenarioID int    `json:"scenario_id,omitempty"`
	Index      int    `json:"index,omitempty"`
}

// ParsePlayerInput parses and checks an input message.
func ParsePlayerInput(data []byte) (*PlayerInput, error) {
	var in PlayerInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("invalid input JSON: %w", err)
	}
	switch in.Action {
	case ActionStart:
		if in.ScenarioID <= 0 {
			return nil, fmt.Errorf("start: scenario_id is required")
		}
	case ActionAdvance, ActionSelect, ActionStop:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, in.Action)
	}
	return &in, nil
}

// Subscriber routes input and registration topics. It ensures idempotent
// subscription handling across reconnects.
type Subscriber struct {
	mu         sync.RWMutex
	client     MessageSubscriber
	input      InputHandler
	monitor    *Monitor
	subscribed map[string]bool // topic -> subscribed
	logger     *slog.Logger
}

// NewSubscriber creates a subscriber. input or monitor may be nil when the
// matching topic is not used.
func NewSubscriber(client MessageSubscriber, input InputHandler, monitor *Monitor) *Subscriber {
	return &Subscriber{
		client:     client,
		input:      input,
		monitor:    monitor,
		subscribed: make(map[string]bool),
		logger:     log.WithComponent("mqtt"),
	}
}

// SubscribeInput subscribes to the player input topic.
func (s *Subscriber) SubscribeInput(topic string) error {
	return s.subscribe(topic, func(_ paho.Client, msg paho.Message) {
		if err := s.HandleInput(msg.Payload()); err != nil {
			s.logger.Warn("player input rejected",
				slog.String("topic", msg.Topic()),
				slog.Any("error", err))
		}
	})
}

// SubscribeRegistrations subscribes to the handler registration topic.
func (s *Subscriber) SubscribeRegistrations(topic string) error {
	return s.subscribe(topic, func(_ paho.Client, msg paho.Message) {
		if err := s.HandleRegistration(msg.Payload()); err != nil {
			s.logger.Warn("registration rejected",
				slog.String("topic", msg.Topic()),
				slog.Any("error", err))
		}
	})
}

// subscribe is idempotent per topic.
func (s *Subscriber) subscribe(topic string, handler paho.MessageHandler) error {
	if topic == "" {
		return nil
	}

	s.mu.Lock()
	if s.subscribed[topic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.client.Subscribe(topic, handler); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[topic] = true
	s.mu.Unlock()
	return nil
}

// HandleInput parses a player input message, records it and applies it.
func (s *Subscriber) HandleInput(data []byte) error {
	in, err := ParsePlayerInput(data)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{"action": in.Action}
	switch in.Action {
	case ActionStart:
		fields["scenario_id"] = in.ScenarioID
	case ActionSelect:
		fields["index"] = in.Index
	}
	events.Emit("info", "player.input", "", fields)

	if s.input == nil {
		return fmt.Errorf("no input handler")
	}
	switch in.Action {
	case ActionStart:
		return s.input.StartScenario(in.ScenarioID)
	case ActionAdvance:
		return s.input.Advance()
	case ActionSelect:
		return s.input.Select(in.Index)
	default:
		return s.input.Stop()
	}
}

// HandleRegistration parses a registration message and passes it to the
// monitor.
func (s *Subscriber) HandleRegistration(data []byte) error {
	payload, err := ParseRegistration(data)
	if err != nil {
		return err
	}
	if s.monitor == nil {
		return fmt.Errorf("no handler monitor")
	}
	if res := s.monitor.HandleRegistration(payload); !res.Valid {
		return fmt.Errorf("handler %s: %v", payload.Handler.ID, res.Errors)
	}
	return nil
}

// IsSubscribed returns true if the topic is already subscribed.
func (s *Subscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// SubscribedTopics returns all subscribed topics, sorted.
func (s *Subscriber) SubscribedTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.subscribed))
	for topic := range s.subscribed {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ClearSubscriptions clears the subscription tracking.
// Call this on disconnect to allow re-subscription on reconnect.
func (s *Subscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}
