package publisher

import (
	"sync"

	"github.com/google/uuid"
)

type ListenerFunc func(event string, val int, msg string, metadata interface{})

// Eventer is the observer surface shared by every component. Nothing in this package
// depends on a listener being attached.
type Eventer interface {
	AddListener(fn ListenerFunc) uuid.UUID
	RemoveListener(id uuid.UUID)
	Emit(event string, val int, msg string, metadata interface{})
}

type eventer struct {
	listenerMutex sync.RWMutex
	listeners     map[uuid.UUID]ListenerFunc
}

func (r *eventer) AddListener(fn ListenerFunc) uuid.UUID {

	// lock
	r.listenerMutex.Lock()
	defer r.listenerMutex.Unlock()

	// allocate
	if r.listeners == nil {
		r.listeners = make(map[uuid.UUID]ListenerFunc)
	}

	// add a new listener
	id := uuid.New()
	r.listeners[id] = fn

	return id
}

func (r *eventer) RemoveListener(id uuid.UUID) {

	// lock
	r.listenerMutex.Lock()
	defer r.listenerMutex.Unlock()

	// remove
	delete(r.listeners, id)

}

func (r *eventer) Emit(event string, val int, msg string, metadata interface{}) {

	// lock
	r.listenerMutex.RLock()
	defer r.listenerMutex.RUnlock()

	// emit
	for _, fn := range r.listeners {
		fn(event, val, msg, metadata)
	}

}

// repeater forwards events to whatever parent it is attached to; a component without a parent is silent.
type repeater struct {
	parent Eventer
}

func (r *repeater) RaiseEventsTo(e Eventer) {
	r.parent = e
}

func (r *repeater) emit(event string, val int, msg string, metadata interface{}) {
	if r.parent != nil {
		r.parent.Emit(event, val, msg, metadata)
	}
}
