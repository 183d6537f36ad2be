package repository

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
)

// Set bundles the repositories of one storage driver.
type Set struct {
	Users    UserRepository
	Products ProductRepository
	Orders   OrderRepository
	Tokens   TokenRepository
}

// NewPostgres keeps records in postgres and one-time tokens in redis.
func NewPostgres(db *sql.DB, rdb *redis.Client) *Set {
	return &Set{
		Users:    NewUserRepository(db),
		Products: NewProductRepository(db),
		Orders:   NewOrderRepository(db),
		Tokens:   NewRedisTokenRepository(rdb),
	}
}
