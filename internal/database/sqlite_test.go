package database

import (
	"context"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "grade.db")

	db, err := Connect("", path)
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	require.Equal(t, 1, one)
}

func TestConnectRejectsEmptyTargets(t *testing.T) {
	_, err := Connect("", "")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), " ", "grade")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "mysql://nope", "grade")
	require.ErrorContains(t, err, "parse redis url")
}

func TestConnectRedisPings(t *testing.T) {
	server := miniredis.RunT(t)

	url := "redis://" + server.Addr() + "/0"

	client, err := ConnectRedis(context.Background(), url, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "grade:ping", "ok", 0).Err())
	server.CheckGet(t, "grade:ping", "ok")

	server.Close()
	_, err = ConnectRedis(context.Background(), url, "")
	require.ErrorContains(t, err, "ping redis")
}
