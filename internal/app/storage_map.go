package app

import (
	"couponwatch/internal/config"
	"couponwatch/internal/storage"
)

func mapStorageConfig(d config.DedupeSettings) storage.Config {
	return storage.Config{
		Driver:      d.Driver,
		Path:        d.Path,
		BusyTimeout: d.BusyTimeout,
		RedisURL:    d.RedisURL,
		RedisKey:    d.RedisKey,
	}
}
