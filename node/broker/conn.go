package broker

import (
	"context"
	"runtime"
	"sync/atomic"

	"aitea-distribution/node/config"
	"aitea-distribution/types"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("broker")

// Role tells which side of a transfer a connection or a process serves.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

func (r Role) Valid() bool {
	return r == RoleSender || r == RoleReceiver
}

// Conn is one Redis connection configured from a role's connections block.
type Conn struct {
	role   Role
	cfg    config.Redis
	client redis.UniversalClient
}

// Dial connects to the broker described by cfg and checks it with PING.
// Several addresses make a cluster client, a single one a plain client.
func Dial(ctx context.Context, role Role, cfg config.Redis) (*Conn, error) {
	if !role.Valid() {
		return nil, types.Wrapf(types.ErrInvalidRole, "role %q", role)
	}
	if !cfg.Configured() {
		return nil, types.Wrapf(types.ErrConnectFailed, "no %s connection configured", role)
	}

	poolSize := cfg.PoolSize
	if poolSize < 1 {
		poolSize = 4 * runtime.NumCPU()
	}

	log.Infof("init %s redis client: %s", role, cfg)
	cli := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addresses(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, types.Wrap(types.ErrConnectFailed, err)
	}

	return &Conn{
		role:   role,
		cfg:    cfg,
		client: cli,
	}, nil
}

func (c *Conn) Role() Role {
	return c.role
}

func (c *Conn) Config() config.Redis {
	return c.cfg
}

// Channel is the channel this connection's side listens on.
func (c *Conn) Channel() string {
	return c.cfg.Channel()
}

// PublishKey is the store key payloads for this side are written under.
func (c *Conn) PublishKey() string {
	return c.cfg.PublishKey()
}

// Set stores value under key, overwriting whatever was there.
func (c *Conn) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return types.Wrap(types.ErrStoreFailed, err)
	}
	return nil
}

// Get fetches the value under key. A missing key is ErrKeyNotFound.
func (c *Conn) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, types.Wrapf(types.ErrKeyNotFound, "key %s", key)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrFetchFailed, err)
	}
	return value, nil
}

// Publish sends msg on channel and returns the number of subscribers that
// got it.
func (c *Conn) Publish(ctx context.Context, channel string, msg []byte) (int64, error) {
	n, err := c.client.Publish(ctx, channel, msg).Result()
	if err != nil {
		return 0, types.Wrap(types.ErrPublishFailed, err)
	}
	return n, nil
}

// Subscribe subscribes to channel and waits for the broker to confirm it.
// The subscription is closed when ctx is done.
func (c *Conn) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := c.client.Subscribe(ctx, channel)

	reply, err := ps.Receive(ctx)
	if err != nil {
		_ = ps.Close()
		return nil, types.Wrap(types.ErrSubscribeFailed, err)
	}
	if _, ok := reply.(*redis.Subscription); !ok {
		_ = ps.Close()
		return nil, types.Wrapf(types.ErrSubscribeFailed, "unexpected reply %T", reply)
	}
	log.Debugf("%s subscribed to %s", c.role, channel)

	s := &Subscription{channel: channel, ps: ps}
	s.stop = context.AfterFunc(ctx, func() {
		_ = s.shutdown()
	})
	return s, nil
}

func (c *Conn) Close() error {
	return c.client.Close()
}

// Message is a data message received on a channel.
type Message struct {
	Channel string
	Payload string
}

type Subscription struct {
	channel string
	ps      *redis.PubSub
	stop    func() bool
	done    atomic.Bool
}

func (s *Subscription) Channel() string {
	return s.channel
}

// Next blocks until the next event on the subscription. Control events such
// as subscription confirmations and pongs yield a nil message and no error.
// When ctx is done Next returns ctx.Err().
func (s *Subscription) Next(ctx context.Context) (*Message, error) {
	reply, err := s.ps.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.done.Load() {
			return nil, types.ErrSubscriptionDone
		}
		return nil, types.Wrap(types.ErrReceiveFailed, err)
	}

	switch msg := reply.(type) {
	case *redis.Message:
		return &Message{Channel: msg.Channel, Payload: msg.Payload}, nil
	case *redis.Subscription:
		log.Debugf("%s %s (%d active)", msg.Kind, msg.Channel, msg.Count)
	case *redis.Pong:
		log.Debugf("pong %s", msg.Payload)
	default:
		log.Debugf("ignoring pubsub reply %T", reply)
	}
	return nil, nil
}

// Close ends the subscription and unblocks a pending Next.
func (s *Subscription) Close() error {
	s.stop()
	return s.shutdown()
}

func (s *Subscription) shutdown() error {
	if s.done.Swap(true) {
		return nil
	}
	return s.ps.Close()
}
