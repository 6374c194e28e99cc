package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"github.com/bsm/redislock"
)

var ErrLockBusy = errors.New("another operation on this record is in progress")

// ObtainLock takes a short redis lock on lockType:key. The returned release
// func is always safe to call. Without redis the lock is skipped and the
// database row locks alone serialize writers.
func ObtainLock(ctx context.Context, lockType string, key int, moduleName string, functionName string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	logger := config.GetLogger()
	lockKey := fmt.Sprintf("%s:%d", lockType, key)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "could not obtain lock", lockKey, err)
		return func() {}, ErrLockBusy
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "error obtaining lock", lockKey, err)
		return func() {}, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
