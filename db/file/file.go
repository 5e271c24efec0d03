package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fixkme/robustimer/timer"
)

// Adapter 把状态写到一个json文件, 写入时先写临时文件再rename
type Adapter struct {
	path string
	mu   sync.Mutex
}

type document struct {
	Timers []timer.State `json:"timers"`
}

func New(path string) (*Adapter, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("file: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file: mkdir: %w", err)
	}
	return &Adapter{path: path}, nil
}

// Save 与文件里已有的记录按名字合并
func (a *Adapter) Save(ctx context.Context, snap timer.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	merged, err := a.load()
	if err != nil {
		return err
	}
	for _, st := range snap.Timers() {
		merged[st.Name] = st
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.write(merged)
}

// Restore 文件不存在时什么也不做
func (a *Adapter) Restore(ctx context.Context, snap timer.Snapshot) error {
	a.mu.Lock()
	states, err := a.load()
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, st := range states {
		snap.Update(st)
	}
	return nil
}

func (a *Adapter) load() (map[string]timer.State, error) {
	out := make(map[string]timer.State)
	b, err := os.ReadFile(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: read: %w", err)
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("file: decode %s: %w", a.path, err)
	}
	for _, st := range doc.Timers {
		out[st.Name] = st
	}
	return out, nil
}

func (a *Adapter) write(states map[string]timer.State) error {
	doc := document{Timers: make([]timer.State, 0, len(states))}
	for _, st := range states {
		doc.Timers = append(doc.Timers, st)
	}
	sort.Slice(doc.Timers, func(i, j int) bool { return doc.Timers[i].Name < doc.Timers[j].Name })
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := a.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("file: open tmp: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("file: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("file: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("file: rename: %w", err)
	}
	return nil
}
