package provisioning

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// Observer is the structured logging surface of all provisioning code.
type Observer interface {
	// Printf logs a free-form line.
	Printf(format string, v ...interface{})

	// Event emits a structured event.
	Event(event Event)

	// Progress reports progress for a phase.
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType
	Phase     string // e.g. "infrastructure", "scale"
	Message   string
	Resource  string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType represents the type of provisioning event.
type EventType string

const (
	EventPhaseStarted   EventType = "phase.started"
	EventPhaseCompleted EventType = "phase.completed"
	EventPhaseFailed    EventType = "phase.failed"

	EventResourceCreating EventType = "resource.creating"
	EventResourceCreated  EventType = "resource.created"
	EventResourceExists   EventType = "resource.exists"
	EventResourceFailed   EventType = "resource.failed"
	EventResourceDeleting EventType = "resource.deleting"
	EventResourceDeleted  EventType = "resource.deleted"

	// EventNodeState marks a node lifecycle transition.
	EventNodeState EventType = "node.state"

	EventValidationWarning EventType = "validation.warning"

	EventProgress EventType = "progress"
)

// FieldOperationID is the context field carrying the invocation id.
const FieldOperationID = "op"

// WithOperationID tags every event of o with a fresh random operation id.
func WithOperationID(o Observer) Observer {
	return o.WithFields(map[string]string{FieldOperationID: uuid.NewString()})
}

func mergeFields(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// ConsoleObserver writes human-readable lines through the standard log package.
type ConsoleObserver struct {
	logger        *log.Logger
	contextFields map[string]string
}

// NewConsoleObserver creates an observer writing to stderr.
func NewConsoleObserver() *ConsoleObserver {
	return NewConsoleObserverWithLogger(log.New(os.Stderr, "", log.LstdFlags))
}

// NewConsoleObserverWithLogger creates an observer writing through logger.
func NewConsoleObserverWithLogger(logger *log.Logger) *ConsoleObserver {
	return &ConsoleObserver{logger: logger, contextFields: map[string]string{}}
}

func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	o.logger.Printf(format, v...)
}

func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	// Event fields take precedence over context fields.
	event.Fields = mergeFields(o.contextFields, event.Fields)
	o.logger.Print(formatEvent(event))
}

func (o *ConsoleObserver) Progress(phase string, current, total int) {
	if total == 0 {
		o.logger.Printf("[%s] Progress: %d/%d", phase, current, total)
		return
	}
	o.logger.Printf("[%s] Progress: %d/%d (%d%%)", phase, current, total, current*100/total)
}

func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	return &ConsoleObserver{logger: o.logger, contextFields: mergeFields(o.contextFields, fields)}
}

// formatEvent renders "[phase] message resource=x (k=v, ...)" with sorted fields.
func formatEvent(event Event) string {
	var parts []string
	if event.Phase != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Phase))
	}
	parts = append(parts, event.Message)
	if event.Resource != "" {
		parts = append(parts, "resource="+event.Resource)
	}
	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for k := range event.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, k+"="+event.Fields[k])
		}
		parts = append(parts, "("+strings.Join(fieldParts, ", ")+")")
	}
	return strings.Join(parts, " ")
}

// LogrObserver forwards events to a logr.Logger as key/value pairs.
type LogrObserver struct {
	log logr.Logger
}

// NewLogrObserver creates an observer backed by log.
func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{log: log}
}

func (o *LogrObserver) Printf(format string, v ...interface{}) {
	o.log.Info(fmt.Sprintf(format, v...))
}

func (o *LogrObserver) Event(event Event) {
	kv := []interface{}{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	keys := make([]string, 0, len(event.Fields))
	for k := range event.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv = append(kv, k, event.Fields[k])
	}

	switch event.Type {
	case EventPhaseFailed, EventResourceFailed:
		o.log.Error(nil, event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

func (o *LogrObserver) Progress(phase string, current, total int) {
	o.log.V(1).Info("progress", "phase", phase, "current", current, "total", total)
}

func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return &LogrObserver{log: o.log.WithValues(kv...)}
}

// RecordingObserver keeps every event in memory. It is safe for concurrent
// use and meant for tests.
type RecordingObserver struct {
	mu       *sync.Mutex
	events   *[]Event
	messages *[]string
	fields   map[string]string
}

// NewRecordingObserver creates an empty RecordingObserver.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{
		mu:       &sync.Mutex{},
		events:   &[]Event{},
		messages: &[]string{},
		fields:   map[string]string{},
	}
}

func (r *RecordingObserver) Printf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.messages = append(*r.messages, fmt.Sprintf(format, v...))
}

func (r *RecordingObserver) Event(event Event) {
	event.Fields = mergeFields(r.fields, event.Fields)
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.events = append(*r.events, event)
}

func (r *RecordingObserver) Progress(phase string, current, total int) {
	r.Event(Event{Type: EventProgress, Phase: phase, Message: fmt.Sprintf("%d/%d", current, total)})
}

// WithFields shares the recording with the parent observer.
func (r *RecordingObserver) WithFields(fields map[string]string) Observer {
	return &RecordingObserver{mu: r.mu, events: r.events, messages: r.messages, fields: mergeFields(r.fields, fields)}
}

// Events returns a copy of the recorded events.
func (r *RecordingObserver) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), *r.events...)
}

// EventsOfType returns the recorded events of type t.
func (r *RecordingObserver) EventsOfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Messages returns a copy of the recorded Printf lines.
func (r *RecordingObserver) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), *r.messages...)
}

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{Type: EventPhaseStarted, Phase: phase, Message: "starting"})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{Type: EventPhaseFailed, Phase: phase, Message: fmt.Sprintf("failed: %v", err)})
}

// LogResourceCreating logs a resource creation start event.
func LogResourceCreating(observer Observer, phase, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceCreating,
		Phase:    phase,
		Resource: resourceName,
		Message:  "creating " + resourceType,
		Fields:   map[string]string{"type": resourceType},
	})
}

// LogResourceCreated logs a successful resource creation event.
func LogResourceCreated(observer Observer, phase, resourceType, resourceName, resourceID string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Phase:    phase,
		Resource: resourceName,
		Message:  resourceType + " created",
		Fields:   map[string]string{"type": resourceType, "id": resourceID},
	})
}

// LogResourceExists logs when a resource already exists.
func LogResourceExists(observer Observer, phase, resourceType, resourceName, resourceID string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Phase:    phase,
		Resource: resourceName,
		Message:  resourceType + " already exists",
		Fields:   map[string]string{"type": resourceType, "id": resourceID},
	})
}

// LogResourceFailed logs a failed create or delete.
func LogResourceFailed(observer Observer, phase, resourceType, resourceName string, err error) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s failed: %v", resourceType, err),
		Fields:   map[string]string{"type": resourceType},
	})
}

// LogResourceDeleting logs a resource deletion start event.
func LogResourceDeleting(observer Observer, phase, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceDeleting,
		Phase:    phase,
		Resource: resourceName,
		Message:  "deleting " + resourceType,
		Fields:   map[string]string{"type": resourceType},
	})
}

// LogResourceDeleted logs a successful resource deletion event.
func LogResourceDeleted(observer Observer, phase, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceDeleted,
		Phase:    phase,
		Resource: resourceName,
		Message:  resourceType + " deleted",
		Fields:   map[string]string{"type": resourceType},
	})
}

// LogNodeState logs a node lifecycle transition.
func LogNodeState(observer Observer, phase, node, state string) {
	observer.Event(Event{
		Type:     EventNodeState,
		Phase:    phase,
		Resource: node,
		Message:  "node " + state,
		Fields:   map[string]string{"state": state},
	})
}

// LogWarning logs advice that does not stop the operation.
func LogWarning(observer Observer, phase, message string) {
	observer.Event(Event{Type: EventValidationWarning, Phase: phase, Message: "warning: " + message})
}
