// bus.go
package bus

import (
	"reflect"
	"sync"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of comparable tokens (usually strings or ints).
// "+" matches exactly one level and "#" matches the remainder (last token only).
type Topic []any

const (
	wildOne  = "+"
	wildRest = "#"
)

// T builds a topic. It panics if a token is not comparable, since tokens are
// used as map keys.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token is not comparable")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int     { return len(t) }
func (t Topic) At(i int) any { return t[i] }
func (t Topic) String() string {
	s := ""
	for i, tok := range t {
		if i > 0 {
			s += "/"
		}
		switch v := tok.(type) {
		case string:
			s += v
		case int:
			s += itoa(v)
		default:
			s += "?"
		}
	}
	return s
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any, create bool) *node {
	if c, ok := n.children[tok]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

func (n *node) empty() bool {
	return len(n.subs) == 0 && len(n.children) == 0 && n.retained == nil
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

// Bus keeps two tries: subscription patterns (may hold wildcards) and
// retained messages (concrete topics only).
type Bus struct {
	mu   sync.Mutex
	subs *node
	ret  *node
	qLen int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		subs: &node{},
		ret:  &node{},
		qLen: queueLen,
	}
}

// NewMessage builds a message; it does not publish it.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	// Deliver retained messages matching the pattern.
	collectRetained(b.ret, sub.topic, func(m *Message) { deliver(sub, m) })
}

// Publish delivers a message to all subscribers whose pattern matches.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		b.storeRetained(msg)
	}
	matchSubs(b.subs, msg.Topic, func(s *Subscription) { deliver(s, msg) })
}

func (b *Bus) storeRetained(msg *Message) {
	if msg.Payload != nil {
		n := b.ret
		for _, tok := range msg.Topic {
			n = n.child(tok, true)
		}
		n.retained = msg
		return
	}
	// nil payload clears; prune the path.
	stack := []*node{b.ret}
	n := b.ret
	for _, tok := range msg.Topic {
		if n = n.child(tok, false); n == nil {
			return
		}
		stack = append(stack, n)
	}
	n.retained = nil
	for i := len(msg.Topic) - 1; i >= 0; i-- {
		if !stack[i+1].empty() {
			break
		}
		delete(stack[i].children, msg.Topic[i])
	}
}

func deliver(s *Subscription, m *Message) {
	select {
	case s.ch <- m:
	default:
		// drop oldest if queue full
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- m:
		default:
		}
	}
}

// matchSubs walks the pattern trie against a concrete topic.
func matchSubs(n *node, topic Topic, fn func(*Subscription)) {
	if h := n.children[wildRest]; h != nil {
		for _, s := range h.subs {
			fn(s)
		}
	}
	if len(topic) == 0 {
		for _, s := range n.subs {
			fn(s)
		}
		return
	}
	if c := n.children[topic[0]]; c != nil {
		matchSubs(c, topic[1:], fn)
	}
	if c := n.children[wildOne]; c != nil {
		matchSubs(c, topic[1:], fn)
	}
}

// collectRetained walks the retained trie against a pattern.
func collectRetained(n *node, pattern Topic, fn func(*Message)) {
	if len(pattern) == 0 {
		if n.retained != nil {
			fn(n.retained)
		}
		return
	}
	switch pattern[0] {
	case wildRest:
		walkAll(n, fn)
	case wildOne:
		for _, c := range n.children {
			collectRetained(c, pattern[1:], fn)
		}
	default:
		if c := n.children[pattern[0]]; c != nil {
			collectRetained(c, pattern[1:], fn)
		}
	}
}

func walkAll(n *node, fn func(*Message)) {
	if n.retained != nil {
		fn(n.retained)
	}
	for _, c := range n.children {
		walkAll(c, fn)
	}
}

// unsubscribe removes a subscription from the trie.
func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	stack := []*node{n}
	for _, tok := range sub.topic {
		if n = n.child(tok, false); n == nil {
			return
		}
		stack = append(stack, n)
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	// Prune empty nodes.
	for i := len(sub.topic) - 1; i >= 0; i-- {
		if !stack[i+1].empty() {
			break
		}
		delete(stack[i].children, sub.topic[i])
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	p := len(buf)
	for i > 0 {
		p--
		buf[p] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		p--
		buf[p] = '-'
	}
	return string(buf[p:])
}
