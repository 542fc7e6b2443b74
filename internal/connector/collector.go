package connector

import (
	"context"
	"errors"
	"sync"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

// errStreamClosed finalises a collector whose event stream ended without a
// terminal event.
var errStreamClosed = errors.New("search stream closed before completion")

// CollectMode selects what a Collector accumulates.
type CollectMode int

const (
	// CollectRecords translates each entry and keeps them in arrival order.
	CollectRecords CollectMode = iota
	// CollectCount only counts entries.
	CollectCount
	// CollectFirst keeps the first raw entry.
	CollectFirst
)

type collectorState int

const (
	stateCollecting collectorState = iota
	stateDone
	stateFailed
)

// Collector aggregates one search's event stream into a single outcome. It
// moves from collecting to exactly one of done or failed; the completion
// channel is closed on that transition and later events are ignored. A
// failure discards everything accumulated so far.
type Collector struct {
	mapper *Mapper
	model  string
	mode   CollectMode

	mu      sync.Mutex
	state   collectorState
	records []Record
	count   int
	first   *ldap.Entry
	err     error
	done    chan struct{}
}

// NewCollector creates a collector for one search against modelName.
func NewCollector(mapper *Mapper, modelName string, mode CollectMode) *Collector {
	return &Collector{
		mapper: mapper,
		model:  modelName,
		mode:   mode,
		done:   make(chan struct{}),
	}
}

// Handle applies one search event.
func (c *Collector) Handle(ctx context.Context, event ldapclient.SearchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateCollecting {
		return
	}

	switch event.Type {
	case ldapclient.SearchEventEntry:
		c.addEntry(event.Entry)
	case ldapclient.SearchEventReferral:
		tflog.SubsystemDebug(ctx, ldapclient.SubsystemConnector, "Ignoring search referral", map[string]any{
			"model":    c.model,
			"referral": event.Referral,
		})
	case ldapclient.SearchEventError:
		err := event.Err
		if err == nil {
			err = errors.New("search failed")
		}
		c.finish(newDirectoryError("search", c.model, "", err))
	case ldapclient.SearchEventDone:
		c.finish(nil)
	}
}

// addEntry must be called with c.mu held.
func (c *Collector) addEntry(entry *ldap.Entry) {
	if entry == nil {
		return
	}

	switch c.mode {
	case CollectCount:
		c.count++
	case CollectFirst:
		if c.first == nil {
			c.first = entry
		}
		c.count++
	default:
		record, err := c.mapper.ToModel(entry, c.model)
		if err != nil {
			c.finish(err)
			return
		}
		c.records = append(c.records, record)
		c.count++
	}
}

// finish must be called with c.mu held.
func (c *Collector) finish(err error) {
	if c.state != stateCollecting {
		return
	}

	if err != nil {
		c.state = stateFailed
		c.err = err
		c.records = nil
		c.first = nil
		c.count = 0
	} else {
		c.state = stateDone
	}
	close(c.done)
}

// abort finalises the collector with err unless it has already completed.
func (c *Collector) abort(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finish(err)
}

// Consume drains events into the collector until it completes, the stream
// closes, or ctx ends. Cancellation abandons the search: the collector
// fails with ctx.Err() and whatever arrives later is dropped.
func (c *Collector) Consume(ctx context.Context, events <-chan ldapclient.SearchEvent) error {
	for {
		select {
		case <-c.done:
			return c.Err()
		case <-ctx.Done():
			c.abort(ctx.Err())
			return c.Err()
		case event, ok := <-events:
			if !ok {
				c.abort(newDirectoryError("search", c.model, "", errStreamClosed))
				return c.Err()
			}
			c.Handle(ctx, event)
		}
	}
}

// Err returns the failure, if any.
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Records returns the translated records in arrival order.
func (c *Collector) Records() ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if c.state == stateCollecting {
		return nil, errors.New("search still in progress")
	}
	if c.records == nil {
		return []Record{}, nil
	}
	return c.records, nil
}

// Count returns the number of entries received.
func (c *Collector) Count() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return 0, c.err
	}
	if c.state == stateCollecting {
		return 0, errors.New("search still in progress")
	}
	return c.count, nil
}

// First returns the first entry received, or nil when none arrived.
func (c *Collector) First() (*ldap.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if c.state == stateCollecting {
		return nil, errors.New("search still in progress")
	}
	return c.first, nil
}
