// Package codec 定时器状态的紧凑二进制编码, 用于kv类存储
//
// 字段号:
//
//	1 name         bytes
//	2 last_fire_at varint
//	3 is_once      varint
//	4 active       varint
package codec

import (
	"fmt"

	"github.com/fixkme/robustimer/timer"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldName       protowire.Number = 1
	fieldLastFireAt protowire.Number = 2
	fieldIsOnce     protowire.Number = 3
	fieldActive     protowire.Number = 4
)

func Marshal(st timer.State) []byte {
	b := make([]byte, 0, len(st.Name)+16)
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, st.Name)
	if st.LastFireAt != 0 {
		b = protowire.AppendTag(b, fieldLastFireAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(st.LastFireAt))
	}
	if st.IsOnce {
		b = protowire.AppendTag(b, fieldIsOnce, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if st.Active {
		b = protowire.AppendTag(b, fieldActive, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b
}

// Unmarshal 未知字段跳过
func Unmarshal(b []byte) (st timer.State, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return st, fmt.Errorf("codec: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldName && typ == protowire.BytesType:
			var v string
			v, n = protowire.ConsumeString(b)
			st.Name = v
		case num == fieldLastFireAt && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			st.LastFireAt = int64(v)
		case num == fieldIsOnce && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			st.IsOnce = protowire.DecodeBool(v)
		case num == fieldActive && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			st.Active = protowire.DecodeBool(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return st, fmt.Errorf("codec: field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if len(st.Name) == 0 {
		return st, fmt.Errorf("codec: missing name")
	}
	return st, nil
}
