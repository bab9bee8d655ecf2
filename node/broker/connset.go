package broker

import (
	"context"

	"aitea-distribution/node/config"
	"aitea-distribution/types"
)

// ConnSet holds the broker connections of one process. A sender reads its
// commands through Sender and writes payloads and announcements through
// Receiver. A receiver only has Receiver.
type ConnSet struct {
	role     Role
	Sender   *Conn
	Receiver *Conn
}

// NewConnSet dials the connections role needs. A connection that is not
// configured or does not answer PING is logged and left nil; the set fails
// with ErrNoConnection only when none could be established.
func NewConnSet(ctx context.Context, role Role, conns config.Connections) (*ConnSet, error) {
	set := &ConnSet{role: role}

	switch role {
	case RoleSender:
		set.Sender = dialOrWarn(ctx, RoleSender, conns.Redis.Sender)
		set.Receiver = dialOrWarn(ctx, RoleReceiver, conns.Redis.Receiver)
	case RoleReceiver:
		set.Receiver = dialOrWarn(ctx, RoleReceiver, conns.Redis.Receiver)
	default:
		return nil, types.Wrapf(types.ErrInvalidRole, "role %q", role)
	}

	if set.Sender == nil && set.Receiver == nil {
		return nil, types.Wrapf(types.ErrNoConnection, "%s has no usable redis connection", role)
	}
	return set, nil
}

func dialOrWarn(ctx context.Context, role Role, cfg config.Redis) *Conn {
	if !cfg.Configured() {
		log.Warnf("no %s redis connection configured", role)
		return nil
	}
	conn, err := Dial(ctx, role, cfg)
	if err != nil {
		log.Errorf("failed to connect %s redis %s: %v", role, cfg, err)
		return nil
	}
	log.Infof("connected to %s redis %v", role, cfg.Addresses())
	return conn
}

func (s *ConnSet) Role() Role {
	return s.role
}

// Listen is the connection whose channel this process consumes.
func (s *ConnSet) Listen() (*Conn, error) {
	conn := s.Sender
	if s.role == RoleReceiver {
		conn = s.Receiver
	}
	if conn == nil {
		return nil, types.Wrapf(types.ErrConnUnavailable, "no %s connection to listen on", s.role)
	}
	return conn, nil
}

// Store is the connection holding the receiver's store and announcement
// channel, used by both roles.
func (s *ConnSet) Store() (*Conn, error) {
	if s.Receiver == nil {
		return nil, types.Wrapf(types.ErrConnUnavailable, "no receiver connection")
	}
	return s.Receiver, nil
}

func (s *ConnSet) Close() error {
	var firstErr error
	for _, c := range []*Conn{s.Sender, s.Receiver} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
