package config

import (
	"os"
	"strings"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// LegacyAggregateConsumption lets stock be taken from a material's own
// quantity even when the material has variants. Old data entered before
// variants existed needs this until it is migrated onto variant rows.
//
// Set via env:
// - LEGACY_AGGREGATE_CONSUMPTION=true
func LegacyAggregateConsumption() bool {
	return envBool("LEGACY_AGGREGATE_CONSUMPTION")
}

// StageRedisLock serializes production events per product through redis
// in addition to the row locks taken inside the transaction.
//
// Set via env:
// - STAGE_REDIS_LOCK=true
func StageRedisLock() bool {
	return envBool("STAGE_REDIS_LOCK")
}
