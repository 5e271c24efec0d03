package clock

type _Timer struct {
	id         int64           // ID
	when       int64           // 到期时间戳 毫秒
	data       any             // 数据
	receiver   chan<- *Promise // 处理器
	prev, next *_Timer         // 双向链表
}

func (t *_Timer) removeFromList() bool {
	if t.prev == nil || t.next == nil {
		return false
	}
	t.prev.next = t.next
	t.next.prev = t.prev
	t.prev = nil
	t.next = nil
	return true
}

type _List struct {
	root *_Timer //哨兵
}

func newTimerList() *_List {
	l := new(_List)
	l.root = new(_Timer)
	l.root.prev = l.root
	l.root.next = l.root
	return l
}

func (l *_List) PushBack(t *_Timer) {
	tail := l.root.prev
	tail.next = t
	t.prev = tail
	t.next = l.root
	l.root.prev = t
}

func (l *_List) IsEmpty() bool {
	return l.root.next == l.root
}

func (l *_List) Len() int {
	n := 0
	for t := l.root.next; t != l.root; t = t.next {
		n++
	}
	return n
}

// PopRange 删除并遍历链表中的节点, fn返回false时停止
func (l *_List) PopRange(fn func(t *_Timer) bool) {
	for !l.IsEmpty() {
		t := l.root.next
		t.removeFromList()
		if !fn(t) {
			break
		}
	}
}
