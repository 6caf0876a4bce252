package leader

import (
	"context"
	"time"

	"live-auction/internal/domain"

	"github.com/go-redis/redis/v8"
)

const leaderKey = "live_auction:close_watcher_leader"

var _ domain.LeaderElection = (*RedisLeaderElection)(nil)

// RedisLeaderElection holds a SET NX lease. The holder refreshes it at a third of the TTL
// until it loses the key or releases it.
type RedisLeaderElection struct {
	client *redis.Client
	ttl    time.Duration
	key    string
}

func NewRedisLeaderElection(client *redis.Client, ttl time.Duration) *RedisLeaderElection {
	return &RedisLeaderElection{
		client: client,
		ttl:    ttl,
		key:    leaderKey,
	}
}

var releaseScript = redis.NewScript(`
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("DEL", KEYS[1])
    else
        return 0
    end
`)

var extendScript = redis.NewScript(`
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("PEXPIRE", KEYS[1], ARGV[2])
    else
        return 0
    end
`)

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	result, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if result {
		// Start heartbeat to maintain leadership
		go r.maintainLeadership(instanceID)
	}

	return result, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return releaseScript.Run(ctx, r.client, []string{r.key}, instanceID).Err()
}

// extend refreshes the lease. It reports false once another instance holds the key.
func (r *RedisLeaderElection) extend(ctx context.Context, instanceID string) (bool, error) {
	n, err := extendScript.Run(ctx, r.client, []string{r.key}, instanceID, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisLeaderElection) maintainLeadership(instanceID string) {
	ticker := time.NewTicker(r.ttl / 3) // Refresh at 1/3 of TTL
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		held, err := r.extend(ctx, instanceID)
		cancel()

		if err != nil || !held {
			// Lost leadership, stop heartbeat
			return
		}
	}
}
