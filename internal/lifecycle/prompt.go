package lifecycle

import "sync"

// InstallPrompt records whether the application may offer installation.
type InstallPrompt struct {
	mu        sync.Mutex
	available bool
	nextID    int
	subs      map[int]func(bool)
}

// NewInstallPrompt returns a holder with no prompt available.
func NewInstallPrompt() *InstallPrompt {
	return &InstallPrompt{subs: map[int]func(bool){}}
}

// Available reports whether a prompt can be shown.
func (p *InstallPrompt) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Set records availability and notifies subscribers on change.
func (p *InstallPrompt) Set(available bool) {
	p.mu.Lock()
	if p.available == available {
		p.mu.Unlock()
		return
	}
	p.available = available
	subs := make([]func(bool), 0, len(p.subs))
	for _, f := range p.subs {
		subs = append(subs, f)
	}
	p.mu.Unlock()

	for _, f := range subs {
		f(available)
	}
}

// Subscribe registers f for availability changes.
func (p *InstallPrompt) Subscribe(f func(available bool)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = f
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}
