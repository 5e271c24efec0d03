package timer

import (
	"unsafe"

	"github.com/armon/go-radix"
	"github.com/fixkme/robustimer/util/errs"
)

// store name -> *Record, 按名字有序
type store struct {
	tree *radix.Tree
}

func newStore() *store {
	return &store{tree: radix.New()}
}

func (s *store) get(name string) (*Record, error) {
	if rec := s.lookup(name); rec != nil {
		return rec, nil
	}
	return nil, errs.TimerNotFound.Printf("name=%s", name)
}

func (s *store) lookup(name string) *Record {
	v, ok := s.tree.Get(name)
	if !ok {
		return nil
	}
	return v.(*Record)
}

// holds rec仍是name对应的记录
func (s *store) holds(rec *Record) bool {
	return s.lookup(rec.name) == rec
}

// put 覆盖同名记录, 返回被替换的旧记录
func (s *store) put(rec *Record) *Record {
	old, updated := s.tree.Insert(rec.name, rec)
	if updated {
		return old.(*Record)
	}
	return nil
}

func (s *store) delete(name string) {
	s.tree.Delete(name)
}

// findByHandler 线性查找, 按函数值本身比较: 同一个闭包实例相等, 同一字面量生成的不同实例不相等
func (s *store) findByHandler(h Handler) (name string, ok bool) {
	if h == nil {
		return "", false
	}
	key := handlerKey(h)
	s.tree.Walk(func(k string, v interface{}) bool {
		if handlerKey(v.(*Record).handler) == key {
			name, ok = k, true
			return true
		}
		return false
	})
	return
}

// handlerKey func值指向的funcval地址, 捕获变量的闭包每个实例一份
func handlerKey(h Handler) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&h))
}

// walk fn返回false时停止
func (s *store) walk(prefix string, fn func(rec *Record) bool) {
	s.tree.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		return !fn(v.(*Record))
	})
}

func (s *store) len() int {
	return s.tree.Len()
}
