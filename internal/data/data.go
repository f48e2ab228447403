package data

import (
	"context"
	"fmt"
	"time"

	"payment-service/internal/biz"
	"payment-service/internal/conf"
	"payment-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewData,
	NewTransaction,
	NewSettleLocker,
	NewSettledPublisher,
	NewOrderRepo,
	NewPlanRepo,
	NewPaymentConfigRepo,
	NewFulfillmentRepo,
	NewSettlementLogRepo,
)

// Data 数据层结构体
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
}

type txKey struct{}

// NewDB 创建数据库连接，driver 为空时使用 mysql
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	var dialector gorm.Dialector
	switch c.Data.Database.Driver {
	case "", "mysql":
		dialector = mysql.Open(c.Data.Database.Source)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(c.Data.Database.Source)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.Data.Database.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	if c.Data.Database.AutoMigrate {
		if err := db.AutoMigrate(model.All()...); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return db, nil
}

// NewRedis 创建 Redis 连接
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		Password:     c.Data.Redis.Password,
		DB:           c.Data.Redis.DB,
		ReadTimeout:  c.Data.Redis.ReadTimeout.AsDuration(),
		WriteTimeout: c.Data.Redis.WriteTimeout.AsDuration(),
	})

	// 测试连接
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 基于 Redis 创建分布式锁
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(goredis.NewPool(rdb))
}

// NewData 创建数据层实例
func NewData(logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if err := rdb.Close(); err != nil {
			log.NewHelper(logger).Errorf("failed to close redis: %v", err)
		}
	}

	return &Data{
		db:  db,
		rdb: rdb,
	}, cleanup, nil
}

// DB 返回 ctx 中的事务，没有事务时返回普通连接
func (d *Data) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return d.db.WithContext(ctx)
}

// InTx 在事务中执行 fn，已在事务中时复用外层事务
func (d *Data) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// NewTransaction 返回 biz.Transaction
func NewTransaction(d *Data) biz.Transaction {
	return d
}

// settleLocker 基于 redsync 的订单结算锁
type settleLocker struct {
	sync   *redsync.Redsync
	expiry time.Duration
	log    *log.Helper
}

// NewSettleLocker 创建结算锁
func NewSettleLocker(sync *redsync.Redsync, c *conf.Bootstrap, logger log.Logger) biz.Locker {
	expiry := 10 * time.Second
	if c != nil && c.Payment != nil && c.Payment.SettleLockExpiry.AsDuration() > 0 {
		expiry = c.Payment.SettleLockExpiry.AsDuration()
	}
	return &settleLocker{sync: sync, expiry: expiry, log: log.NewHelper(logger)}
}

func (l *settleLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.sync.NewMutex(key, redsync.WithExpiry(l.expiry))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func() {
		if ok, err := mutex.Unlock(); !ok || err != nil {
			l.log.Warnf("failed to release lock: key=%s, error=%v", key, err)
		}
	}, nil
}
