// Package redisrepo stores recordings and users in Redis. Multi-key state
// changes run as Lua scripts so each transition is a single atomic write.
package redisrepo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scribehub/api/internal/model"
	"github.com/scribehub/api/internal/repository"
)

const processingIndexKey = "recordings:processing"

func recordingKey(id string) string { return fmt.Sprintf("recording:%s", id) }
func inFlightKey(userID string) string { return fmt.Sprintf("recording:processing:%s", userID) }
func completedIndexKey(userID string) string { return fmt.Sprintf("recordings:completed:%s", userID) }

// KEYS: record hash, owner in-flight marker, processing index
// ARGV: id, createdAt score, hash field/value pairs...
var createIfIdleScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
if redis.call('EXISTS', KEYS[1]) == 1 then
	return -1
end
redis.call('SET', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
return 1
`)

// KEYS: record hash, processing index, owner in-flight marker, owner completed index
// ARGV: target status, id, createdAt score, hash field/value pairs...
var transitionScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return -1
end
if status ~= 'processing' then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], unpack(ARGV, 4))
redis.call('ZREM', KEYS[2], ARGV[2])
if redis.call('GET', KEYS[3]) == ARGV[2] then
	redis.call('DEL', KEYS[3])
end
if ARGV[1] == 'completed' then
	redis.call('ZADD', KEYS[4], ARGV[3], ARGV[2])
end
return 1
`)

// KEYS: owner completed index
// ARGV: cursor id, limit
var pageAfterScript = redis.NewScript(`
local rank = redis.call('ZREVRANK', KEYS[1], ARGV[1])
if not rank then
	return -1
end
return redis.call('ZREVRANGE', KEYS[1], rank + 1, rank + tonumber(ARGV[2]))
`)

// RecordingRepository implements repository.RecordingRepository on Redis
type RecordingRepository struct {
	redis *redis.Client
}

// NewRecordingRepository creates a Redis-backed recording repository
func NewRecordingRepository(redisClient *redis.Client) *RecordingRepository {
	return &RecordingRepository{redis: redisClient}
}

// CreateIfIdle stores rec unless the owner already has a processing record
func (r *RecordingRepository) CreateIfIdle(ctx context.Context, rec *model.Recording) error {
	args := []interface{}{rec.ID, score(rec.CreatedAt)}
	args = append(args, encodeRecording(rec)...)

	res, err := createIfIdleScript.Run(ctx, r.redis,
		[]string{recordingKey(rec.ID), inFlightKey(rec.UserID), processingIndexKey},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}

	switch res {
	case 0:
		return repository.ErrProcessingExists
	case -1:
		return fmt.Errorf("recording %s already exists", rec.ID)
	}
	return nil
}

// HasProcessing reports whether the owner has a processing record
func (r *RecordingRepository) HasProcessing(ctx context.Context, userID string) (bool, error) {
	n, err := r.redis.Exists(ctx, inFlightKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get loads a recording by id
func (r *RecordingRepository) Get(ctx context.Context, id string) (*model.Recording, error) {
	fields, err := r.redis.HGetAll(ctx, recordingKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, repository.ErrNotFound
	}
	return decodeRecording(fields)
}

// GetOwned loads a recording only if it belongs to userID
func (r *RecordingRepository) GetOwned(ctx context.Context, id, userID string) (*model.Recording, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

// Complete moves a processing recording to completed with its outputs
func (r *RecordingRepository) Complete(ctx context.Context, id string, fields model.CompletedFields, at time.Time) error {
	ts := formatTime(at)
	return r.transition(ctx, id, model.RecordingStatusCompleted,
		"title", fields.Title,
		"transcription", fields.Transcription,
		"summary", fields.Summary,
		"durationSec", strconv.FormatFloat(fields.DurationSec, 'f', -1, 64),
		"updatedAt", ts,
		"completedAt", ts,
	)
}

// Fail moves a processing recording to failed, leaving outputs untouched
func (r *RecordingRepository) Fail(ctx context.Context, id string, at time.Time) error {
	ts := formatTime(at)
	return r.transition(ctx, id, model.RecordingStatusFailed,
		"updatedAt", ts,
		"completedAt", ts,
	)
}

func (r *RecordingRepository) transition(ctx context.Context, id string, to model.RecordingStatus, pairs ...interface{}) error {
	// owner and createdAt never change, so reading them outside the script is safe
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	args := []interface{}{string(to), id, score(rec.CreatedAt)}
	args = append(args, pairs...)

	res, err := transitionScript.Run(ctx, r.redis,
		[]string{recordingKey(id), processingIndexKey, inFlightKey(rec.UserID), completedIndexKey(rec.UserID)},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to update recording: %w", err)
	}

	switch res {
	case -1:
		return repository.ErrNotFound
	case 0:
		return repository.ErrAlreadyTerminal
	}
	return nil
}

// ListCompleted returns a page of completed recordings, newest first
func (r *RecordingRepository) ListCompleted(ctx context.Context, userID string, limit int, cursor string) ([]*model.Recording, error) {
	if limit <= 0 {
		return []*model.Recording{}, nil
	}

	key := completedIndexKey(userID)
	var ids []string

	if cursor == "" {
		var err error
		ids, err = r.redis.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
		if err != nil {
			return nil, err
		}
	} else {
		res, err := pageAfterScript.Run(ctx, r.redis, []string{key}, cursor, limit).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to page recordings: %w", err)
		}
		members, ok := res.([]interface{})
		if !ok {
			return nil, repository.ErrInvalidCursor
		}
		for _, m := range members {
			if s, ok := m.(string); ok {
				ids = append(ids, s)
			}
		}
	}

	return r.loadMany(ctx, ids)
}

// ListStuck returns ids of processing recordings created before cutoff
func (r *RecordingRepository) ListStuck(ctx context.Context, cutoff time.Time) ([]string, error) {
	return r.redis.ZRangeByScore(ctx, processingIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + score(cutoff),
	}).Result()
}

func (r *RecordingRepository) loadMany(ctx context.Context, ids []string) ([]*model.Recording, error) {
	items := make([]*model.Recording, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	pipe := r.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, recordingKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load recordings: %w", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecording(fields)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, nil
}
