package advisor

import "sync"

// Well-known parameter keys set by the caller before the chain runs.
const (
	ParamConversationID = "chat_memory_conversation_id"
	ParamCustomerID     = "customer_id"
)

// Params is the per-invocation context map. A fresh Params is created for
// every call so that advisors can pass state to each other and back to the
// caller without holding it themselves.
type Params struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewParams() *Params {
	return &Params{values: map[string]any{}}
}

func (p *Params) Set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

func (p *Params) Get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

// String returns the value at key if it is a string, or "".
func (p *Params) String(key string) string {
	v, _ := p.Get(key)
	s, _ := v.(string)
	return s
}

// Int32 returns the value at key if it is an int32.
func (p *Params) Int32(key string) (int32, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	i, ok := v.(int32)
	return i, ok
}
