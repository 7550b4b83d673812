package events

// Entity types
const (
	EntityItem  = "item"
	EntityQueue = "queue"
)

// Event type constants
const (
	EventItemAdded       = "item.added"
	EventStateChanged    = "item.state_changed"
	EventItemCollected   = "item.collected"
	EventItemUpgraded    = "item.upgraded"
	EventUpgradeFailed   = "item.upgrade_failed"
	EventItemBlacklisted = "item.blacklisted"
	EventQueuePaused     = "queue.paused"
	EventQueueResumed    = "queue.resumed"
)

// ItemAdded is emitted when a content source inserts a new item.
type ItemAdded struct {
	BaseEvent
	Title         string `json:"title"`
	MediaType     string `json:"media_type"`
	Version       string `json:"version"`
	ContentSource string `json:"content_source,omitempty"`
}

// StateChanged is emitted for every committed state transition.
type StateChanged struct {
	BaseEvent
	Title string `json:"title,omitempty"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// ItemCollected is emitted when the library confirms an item.
type ItemCollected struct {
	BaseEvent
	Title    string `json:"title"`
	Version  string `json:"version"`
	Torrent  string `json:"torrent,omitempty"`
	Location string `json:"location,omitempty"`
}

// ItemUpgraded is emitted once a better release reaches checking.
type ItemUpgraded struct {
	BaseEvent
	Title        string `json:"title"`
	Version      string `json:"version"`
	Previous     string `json:"previous"` // torrent title being replaced
	Replacement  string `json:"replacement"`
	UpgradeCount int    `json:"upgrade_count"`
}

// UpgradeFailed is emitted when an upgrade attempt is rolled back.
type UpgradeFailed struct {
	BaseEvent
	Title     string `json:"title"`
	Candidate string `json:"candidate"`
	Reason    string `json:"reason"`
}

// ItemBlacklisted is emitted when an item is parked as unobtainable.
type ItemBlacklisted struct {
	BaseEvent
	Title  string `json:"title"`
	Reason string `json:"reason,omitempty"`
}

// QueuePaused is emitted when the queue manager stops processing.
type QueuePaused struct {
	BaseEvent
	Reason    string `json:"reason"`
	ErrorType string `json:"error_type,omitempty"`
	Service   string `json:"service,omitempty"`
}

// QueueResumed is emitted when processing restarts after a pause.
type QueueResumed struct {
	BaseEvent
	Reason string `json:"reason,omitempty"`
}
