package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// scenario
	"scenario.started":   {},
	"scenario.completed": {},
	"scenario.stopped":   {},

	// line
	"line.shown":      {},
	"option.selected": {},

	// handler
	"handler.registered":   {},
	"handler.error":        {},
	"handler.disconnected": {},

	// player
	"player.input": {},

	// system
	"system.startup":         {},
	"system.shutdown":        {},
	"system.error":           {},
	"system.startup_restore": {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
