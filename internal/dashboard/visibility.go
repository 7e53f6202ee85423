package dashboard

import "sync"

// Visibility tracks whether anyone is looking at the dashboard. A browser
// front end forwards its page visibility through the local API; the
// scheduler skips ticks while hidden and catches up when it turns visible.
type Visibility struct {
	mu      sync.Mutex
	visible bool
	subs    map[int]chan bool
	nextID  int
}

// NewVisibility returns a tracker in the given initial state.
func NewVisibility(visible bool) *Visibility {
	return &Visibility{visible: visible, subs: make(map[int]chan bool)}
}

// Visible reports the current state.
func (v *Visibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// SetVisible records the state. Subscribers are told about changes only;
// a slow subscriber sees the latest state, not every transition.
func (v *Visibility) SetVisible(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.visible == visible {
		return
	}
	v.visible = visible
	for _, ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		ch <- visible
	}
}

// Subscribe returns a channel of state changes and a function that ends
// the subscription.
func (v *Visibility) Subscribe() (<-chan bool, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	ch := make(chan bool, 1)
	v.subs[id] = ch
	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}
