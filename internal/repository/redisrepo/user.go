package redisrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/scribehub/api/internal/model"
	"github.com/scribehub/api/internal/repository"
)

func userKey(id string) string { return fmt.Sprintf("user:%s", id) }
func userEmailKey(email string) string { return fmt.Sprintf("user:email:%s", strings.ToLower(email)) }

// KEYS: email index, user hash
// ARGV: id, hash field/value pairs...
var createUserScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], unpack(ARGV, 2))
return 1
`)

// UserRepository implements repository.UserRepository on Redis
type UserRepository struct {
	redis *redis.Client
}

func NewUserRepository(redisClient *redis.Client) *UserRepository {
	return &UserRepository{redis: redisClient}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	res, err := createUserScript.Run(ctx, r.redis,
		[]string{userEmailKey(user.Email), userKey(user.ID)},
		user.ID,
		"id", user.ID,
		"email", user.Email,
		"passwordHash", user.PasswordHash,
		"createdAt", formatTime(user.CreatedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if res == 0 {
		return repository.ErrEmailTaken
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	id, err := r.redis.Get(ctx, userEmailKey(email)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	f, err := r.redis.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(f) == 0 {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseTime(f["createdAt"])
	if err != nil {
		return nil, fmt.Errorf("user %s: bad createdAt: %w", id, err)
	}
	return &model.User{
		ID:           f["id"],
		Email:        f["email"],
		PasswordHash: f["passwordHash"],
		CreatedAt:    createdAt,
	}, nil
}
