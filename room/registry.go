package room

import "sync"

// Registry maps a room identifier to the passcode that guards it. The first
// caller to reference a room binds its passcode; everyone after that has to
// present the same one. Rooms live for the process lifetime.
type Registry struct {
	mu        sync.Mutex
	passcodes map[string]string
}

func NewRegistry() *Registry {
	return &Registry{passcodes: make(map[string]string)}
}

// BindOrCheck stores the passcode on first use of a room and reports whether
// the caller is allowed in. An empty passcode is never allowed and never
// binds. The check-then-set runs under the lock so two concurrent first
// requests cannot both bind.
func (r *Registry) BindOrCheck(roomID, passcode string) bool {
	if passcode == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.passcodes[roomID]; ok {
		return existing == passcode
	}
	r.passcodes[roomID] = passcode
	return true
}
