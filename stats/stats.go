package stats

import (
	"sync"
)

type Stage string

const (
	StageConnect Stage = "connect"
	StageSearch  Stage = "search"
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
)

type EventType string

const (
	EventTypeRetried     EventType = "retried"
	EventTypeMatched     EventType = "matched"
	EventTypeFetched     EventType = "fetched"
	EventTypeNotRelevant EventType = "not_relevant"
	EventTypeNoCode      EventType = "no_code"
	EventTypeExtracted   EventType = "extracted"
	EventTypeError       EventType = "error"
)

type Event struct {
	Stage Stage
	Type  EventType
	UID   uint32
	Count int
	Err   error
}

type Summary struct {
	Retries     int
	Matched     int
	Fetched     int
	NotRelevant int
	NoCode      int
	Extracted   int
	Errors      int
	LastError   error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"retries", s.Retries,
		"matched", s.Matched,
		"fetched", s.Fetched,
		"notRelevant", s.NotRelevant,
		"noCode", s.NoCode,
		"extracted", s.Extracted,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

// Collector accumulates the events of one request.
type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Emit(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeRetried:
		c.summary.Retries++
	case EventTypeMatched:
		c.summary.Matched += evt.Count
	case EventTypeFetched:
		c.summary.Fetched++
	case EventTypeNotRelevant:
		c.summary.NotRelevant++
	case EventTypeNoCode:
		c.summary.NoCode++
	case EventTypeExtracted:
		c.summary.Extracted++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}
