// Package partition derives time-partition keys and registers them without collisions.
//
// A key is the logical run time minus an optional offset, rendered with an
// optional date pattern in an optional time zone and joined onto a base path.
// Without a pattern the key is the adjusted epoch milliseconds.
package partition

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
)

// Spec describes how a run's partition is derived.
type Spec struct {
	BasePath   string
	PathFormat string
	TimeZone   string
	Offset     string
}

// Validate checks the partition settings before any I/O.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.BasePath) == "" {
		return errors.New(errors.ErrorTypeConfig, "basePath or name is required")
	}
	if err := s.checkZoneFormat(); err != nil {
		return err
	}
	if _, err := ParseOffset(s.Offset); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid partitionOffset")
	}
	if s.PathFormat != "" {
		if _, err := CompileDateFormat(s.PathFormat); err != nil {
			return err
		}
	}
	return nil
}

// checkZoneFormat rejects a time zone without a path format. Any non-empty
// timeZone counts as set, including whitespace.
func (s Spec) checkZoneFormat() error {
	if s.TimeZone != "" && s.PathFormat == "" {
		return errors.New(errors.ErrorTypeConfig,
			"please provide a filePathFormat when specifying a timeZone")
	}
	return nil
}

// Key identifies one partition.
type Key struct {
	// Time is the adjusted logical time in epoch milliseconds
	Time int64
	// Path is the partition path relative to the base path
	Path string
	// FullPath is BasePath joined with Path; it is the registered identity
	FullPath string
}

func (k Key) String() string { return k.FullPath }

// KeyStore records which keys are in use.
type KeyStore interface {
	// Add registers key unless it is already present, in one indivisible step.
	// It reports whether the key was added.
	Add(ctx context.Context, key Key) (bool, error)
}

// Derive computes the key for logicalTimeMillis without registering it.
func Derive(spec Spec, logicalTimeMillis int64) (Key, error) {
	if err := spec.checkZoneFormat(); err != nil {
		return Key{}, err
	}
	offset, err := ParseOffset(spec.Offset)
	if err != nil {
		return Key{}, err
	}
	adjusted := logicalTimeMillis - offset.Milliseconds()

	var rel string
	if spec.PathFormat == "" {
		rel = strconv.FormatInt(adjusted, 10)
	} else {
		format, err := CompileDateFormat(spec.PathFormat)
		if err != nil {
			return Key{}, err
		}
		loc, _ := ResolveZone(spec.TimeZone)
		rel = format.Format(time.UnixMilli(adjusted).In(loc))
	}

	return Key{
		Time:     adjusted,
		Path:     rel,
		FullPath: joinPath(spec.BasePath, rel),
	}, nil
}

func joinPath(base, rel string) string {
	base = strings.TrimRight(base, "/")
	rel = strings.TrimLeft(rel, "/")
	if base == "" {
		return rel
	}
	return base + "/" + rel
}

// Generator computes keys and registers them in a KeyStore.
type Generator struct {
	store  KeyStore
	logger *zap.Logger
}

// NewGenerator creates a generator backed by store.
func NewGenerator(store KeyStore) *Generator {
	return &Generator{
		store:  store,
		logger: logger.Get().With(zap.String("component", "partition_generator")),
	}
}

// ComputeKey derives the key for logicalTimeMillis and registers it. A key
// already present in the store is a conflict and is never overwritten.
func (g *Generator) ComputeKey(ctx context.Context, spec Spec, logicalTimeMillis int64) (Key, error) {
	if _, fellBack := ResolveZone(spec.TimeZone); fellBack {
		g.logger.Warn("unknown time zone, using UTC", zap.String("time_zone", spec.TimeZone))
	}

	key, err := Derive(spec, logicalTimeMillis)
	if err != nil {
		return Key{}, err
	}

	added, err := g.store.Add(ctx, key)
	if err != nil {
		return Key{}, errors.Wrap(err, errors.ErrorTypeConnection, "failed to register partition key").
			WithDetail("key", key.FullPath)
	}
	if !added {
		return Key{}, errors.Newf(errors.ErrorTypeConflict, "partition %q already exists", key.FullPath).
			WithDetail("partition_time", key.Time)
	}

	g.logger.Info("registered partition",
		zap.String("key", key.FullPath),
		zap.Int64("partition_time", key.Time))
	return key, nil
}
