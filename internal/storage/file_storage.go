package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStorage 把站点快照以一站一文件的形式写入状态目录
// 同一站点的读写通过命名互斥锁串行化，避免并发写坏文件
type FileStorage struct {
	dir   string
	locks sync.Map // station id -> *sync.Mutex
}

// NewFileStorage 创建文件存储，目录不存在时自动创建
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage.file_dir is required for file storage")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir %s: %w", dir, err)
	}
	return &FileStorage{dir: dir}, nil
}

// lockFor 获取指定站点的互斥锁
func (f *FileStorage) lockFor(stationID string) *sync.Mutex {
	actual, _ := f.locks.LoadOrStore(stationID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// pathFor 站点快照的文件路径，站点ID中的路径分隔符被替换
func (f *FileStorage) pathFor(stationID string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(stationID)
	return filepath.Join(f.dir, safe+".json")
}

// Save 写入站点快照，先写临时文件再原子改名
func (f *FileStorage) Save(ctx context.Context, snapshot *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %s: %w", snapshot.StationID, err)
	}

	mu := f.lockFor(snapshot.StationID)
	mu.Lock()
	defer mu.Unlock()

	path := f.pathFor(snapshot.StationID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit snapshot file %s: %w", path, err)
	}
	return nil
}

// Load 读取站点快照，文件不存在时返回 (nil, nil)
func (f *FileStorage) Load(ctx context.Context, stationID string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu := f.lockFor(stationID)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(f.pathFor(stationID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", stationID, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", stationID, err)
	}
	return &snapshot, nil
}

// Delete 删除站点快照文件，文件本就不存在不算错误
func (f *FileStorage) Delete(ctx context.Context, stationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mu := f.lockFor(stationID)
	mu.Lock()
	defer mu.Unlock()

	if err := os.Remove(f.pathFor(stationID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot for %s: %w", stationID, err)
	}
	return nil
}

// Close 文件存储无需关闭动作
func (f *FileStorage) Close() error {
	return nil
}
