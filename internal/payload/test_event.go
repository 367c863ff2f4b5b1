package payload

import "fmt"

// TestEvent is the body sent by the connection test. Receivers can drop it
// by event_name.
type TestEvent struct {
	ClientName   string       `json:"client_name"`
	EventName    string       `json:"event_name"`
	EventTime    int64        `json:"event_time"`
	EventID      string       `json:"event_id"`
	ActionSource string       `json:"action_source"`
	Metadata     TestMetadata `json:"metadata"`
}

type TestMetadata struct {
	Test    bool   `json:"test"`
	Source  string `json:"source"`
	Version string `json:"version,omitempty"`
}

// BuildTest returns a synthetic event carrying no order data.
func (b *Builder) BuildTest() TestEvent {
	now := b.now().Unix()
	return TestEvent{
		ClientName:   genericClientName,
		EventName:    "test_event",
		EventTime:    now,
		EventID:      fmt.Sprintf("test_%d", now),
		ActionSource: actionSource,
		Metadata: TestMetadata{
			Test:    true,
			Source:  b.source,
			Version: b.version,
		},
	}
}
