package value

type listNode struct {
	value Value
	next  *listNode
}

// List is a persistent singly-linked list. The zero value is Nil.
type List struct {
	head   *listNode
	length int
}

// Nil is the empty list value.
var Nil = Value{Kind: KindList}

func ListValue(l List) Value {
	return Value{Kind: KindList, List: l}
}

// ListOf builds a list holding vs in order.
func ListOf(vs ...Value) Value {
	return ListValue(NewList(vs...))
}

func NewList(vs ...Value) List {
	var l List
	for i := len(vs) - 1; i >= 0; i-- {
		l = l.Push(vs[i])
	}
	return l
}

func (l List) Len() int { return l.length }

// Push returns a list with v in front of l; l is shared.
func (l List) Push(v Value) List {
	return List{head: &listNode{value: v, next: l.head}, length: l.length + 1}
}

func (l List) Head() (Value, bool) {
	if l.head == nil {
		return Value{}, false
	}
	return l.head.value, true
}

func (l List) Tail() List {
	if l.head == nil {
		return l
	}
	return List{head: l.head.next, length: l.length - 1}
}

func (l List) Each(fn func(Value) bool) {
	for n := l.head; n != nil; n = n.next {
		if !fn(n.value) {
			return
		}
	}
}

func (l List) Slice() []Value {
	out := make([]Value, 0, l.length)
	l.Each(func(v Value) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Concat returns l followed by r. Only l's spine is copied; r is shared.
func (l List) Concat(r List) List {
	if l.length == 0 {
		return r
	}
	if r.length == 0 {
		return l
	}
	items := l.Slice()
	out := r
	for i := len(items) - 1; i >= 0; i-- {
		out = out.Push(items[i])
	}
	return out
}

func (l List) Reverse() List {
	var out List
	l.Each(func(v Value) bool {
		out = out.Push(v)
		return true
	})
	return out
}
