package repository

import (
	"database/sql"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/labor-marketplace/internal/repository/repotest"
)

func newTestDB(t *testing.T) *sql.DB { return repotest.NewDB(t) }

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) { return repotest.NewRedis(t) }
