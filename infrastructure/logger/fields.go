package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field constructors mirror zap so callers never import it directly.

func String(key, val string) Field { return zap.String(key, val) }
func Strings(key string, val []string) Field { return zap.Strings(key, val) }
func Int(key string, val int) Field { return zap.Int(key, val) }
func Int64(key string, val int64) Field { return zap.Int64(key, val) }
func Float64(key string, val float64) Field { return zap.Float64(key, val) }
func Bool(key string, val bool) Field { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) Field { return zap.Time(key, val) }
func Error(err error) Field { return zap.Error(err) }
func NamedError(key string, err error) Field { return zap.NamedError(key, err) }
func Any(key string, val any) Field { return zap.Any(key, val) }

// Domain keys used across packages so log queries stay consistent.

func Component(name string) Field { return zap.String("component", name) }
func ScanID(id string) Field { return zap.String("scan_id", id) }
func Hostname(host string) Field { return zap.String("hostname", host) }
func URL(u string) Field { return zap.String("url", u) }
func Provider(name string) Field { return zap.String("provider", name) }
