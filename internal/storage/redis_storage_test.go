package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/charge-station-simulator/internal/storage"
)

// sampleSnapshot 构造一份用于测试的站点快照
func sampleSnapshot(stationID string) *storage.Snapshot {
	return &storage.Snapshot{
		StationID:   stationID,
		HashID:      "A1B2C3D4E5F60718293A4B5C6D7E8F90",
		OCPPVersion: "ocpp1.6",
		BootStatus:  "Accepted",
		TxCounter:   7,
		SavedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Connectors: []storage.ConnectorSnapshot{
			{ID: 1, MeterWh: 12345.5},
			{ID: 2, MeterWh: 0},
		},
	}
}

func TestRedisStorage_SaveLoadDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &storage.RedisStorage{Client: db, Prefix: "station:", TTL: 24 * time.Hour}
	ctx := context.Background()

	snapshot := sampleSnapshot("SIM-CP-001")
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	key := "station:SIM-CP-001"

	// Save 按 station:<id> 写入并带TTL
	mock.ExpectSet(key, data, 24*time.Hour).SetVal("OK")
	require.NoError(t, store.Save(ctx, snapshot))

	// Load 命中时反序列化出等值快照
	mock.ExpectGet(key).SetVal(string(data))
	loaded, err := store.Load(ctx, "SIM-CP-001")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snapshot.StationID, loaded.StationID)
	assert.Equal(t, snapshot.TxCounter, loaded.TxCounter)
	assert.Equal(t, snapshot.Connectors, loaded.Connectors)

	// 键不存在返回 (nil, nil)，调用方据此判定首次启动
	mock.ExpectGet(key).SetErr(redis.Nil)
	loaded, err = store.Load(ctx, "SIM-CP-001")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Delete
	mock.ExpectDel(key).SetVal(1)
	require.NoError(t, store.Delete(ctx, "SIM-CP-001"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorage_SaveError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &storage.RedisStorage{Client: db, Prefix: "station:", TTL: time.Hour}
	ctx := context.Background()

	snapshot := sampleSnapshot("SIM-CP-002")
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)

	expectedErr := errors.New("redis set error")
	mock.ExpectSet("station:SIM-CP-002", data, time.Hour).SetErr(expectedErr)
	err = store.Save(ctx, snapshot)
	assert.ErrorIs(t, err, expectedErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorage_LoadError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &storage.RedisStorage{Client: db, Prefix: "station:", TTL: time.Hour}
	ctx := context.Background()

	expectedErr := errors.New("redis get error")
	mock.ExpectGet("station:SIM-CP-003").SetErr(expectedErr)
	loaded, err := store.Load(ctx, "SIM-CP-003")
	assert.ErrorIs(t, err, expectedErr)
	assert.Nil(t, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorage_LoadCorrupted(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &storage.RedisStorage{Client: db, Prefix: "station:", TTL: time.Hour}
	ctx := context.Background()

	mock.ExpectGet("station:SIM-CP-004").SetVal("{corrupted")
	loaded, err := store.Load(ctx, "SIM-CP-004")
	assert.Error(t, err)
	assert.Nil(t, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorage_Close(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &storage.RedisStorage{Client: db, Prefix: "station:", TTL: time.Hour}

	// redismock 不支持模拟 Close，仅确保调用不 panic 且返回 nil
	err := store.Close()
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
