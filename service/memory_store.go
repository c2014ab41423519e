package service

import (
	"context"
	"sort"
	"sync"

	"nft_auction/auction"
	"nft_auction/dao"
	"nft_auction/model"
)

// MemoryStore 进程内存储，本地模式和测试使用
type MemoryStore struct {
	mu sync.Mutex

	order     []string
	snapshots map[string]auction.Snapshot
	events    []model.AuctionEventRecord
	eventIDs  map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]auction.Snapshot),
		eventIDs:  make(map[string]bool),
	}
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snap auction.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshots[snap.ID]; !ok {
		m.order = append(m.order, snap.ID)
	}
	m.snapshots[snap.ID] = snap
	return nil
}

// LoadSnapshots 按首次写入顺序返回
func (m *MemoryStore) LoadSnapshots(_ context.Context) ([]auction.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auction.Snapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.snapshots[id])
	}
	return out, nil
}

func (m *MemoryStore) SaveEvent(_ context.Context, ev auction.Event) error {
	record, err := dao.ToEventRecord(ev)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventIDs[ev.ID] {
		return nil
	}
	m.eventIDs[ev.ID] = true
	m.events = append(m.events, record)
	return nil
}

// ListEvents 与MySQL存储一致，按事件时间倒序分页
func (m *MemoryStore) ListEvents(_ context.Context, auctionID string, page, pageSize int) ([]model.AuctionEventRecord, int64, error) {
	m.mu.Lock()
	matched := make([]model.AuctionEventRecord, 0, len(m.events))
	for _, r := range m.events {
		if auctionID == "" || r.AuctionID == auctionID {
			matched = append(matched, r)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].EventTime.After(matched[j].EventTime)
	})

	total := int64(len(matched))
	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return []model.AuctionEventRecord{}, total, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}
