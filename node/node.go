package node

import (
	"context"
	"sync"

	"aitea-distribution/node/broker"
	"aitea-distribution/node/config"
	"aitea-distribution/node/listener"
	"aitea-distribution/node/transfer"
	"aitea-distribution/types"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("node")

type StopFunc func(context.Context) error

// Node is one sender or receiver process: its broker connections, its
// transfer manager and, once started, its listener loop.
type Node struct {
	role      broker.Role
	cfg       *config.Node
	conns     *broker.ConnSet
	manager   *transfer.Manager
	stopFuncs []StopFunc

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
	err    error
}

func NewSenderNode(ctx context.Context, cfg *config.Node) (*Node, error) {
	return newNode(ctx, broker.RoleSender, cfg)
}

func NewReceiverNode(ctx context.Context, cfg *config.Node) (*Node, error) {
	return newNode(ctx, broker.RoleReceiver, cfg)
}

func newNode(ctx context.Context, role broker.Role, cfg *config.Node) (*Node, error) {
	conns, err := broker.NewConnSet(ctx, role, cfg.Connections)
	if err != nil {
		return nil, err
	}

	manager, err := transfer.NewManager(cfg, conns)
	if err != nil {
		_ = conns.Close()
		return nil, err
	}

	n := &Node{
		role:    role,
		cfg:     cfg,
		conns:   conns,
		manager: manager,
		done:    make(chan struct{}),
	}
	n.stopFuncs = append(n.stopFuncs, func(_ context.Context) error {
		log.Infof("closing %s redis connections", role)
		return conns.Close()
	})
	return n, nil
}

func (n *Node) Role() broker.Role {
	return n.role
}

func (n *Node) Manager() *transfer.Manager {
	return n.manager
}

func (n *Node) newListener() (listener.Listener, error) {
	switch n.role {
	case broker.RoleSender:
		return listener.NewSender(n.manager, n.cfg.Transfer)
	case broker.RoleReceiver:
		return listener.NewReceiver(n.manager, n.cfg.Transfer)
	default:
		return nil, types.Wrapf(types.ErrInvalidRole, "role %q", n.role)
	}
}

// Start runs the listener of the node's role in the background. Done is
// closed when the listener returns, either after Stop or on its own.
func (n *Node) Start(ctx context.Context) error {
	l, err := n.newListener()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	go func() {
		defer close(n.done)
		err := l.Run(ctx)
		if err != nil {
			log.Errorf("%s listener stopped: %v", n.role, err)
		}
		n.mu.Lock()
		n.err = err
		n.mu.Unlock()
	}()
	return nil
}

func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Err is the error the listener stopped with, if any.
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Stop cancels the listener, waits for it to return and releases the
// connections.
func (n *Node) Stop(ctx context.Context) error {
	if n.cancel != nil {
		n.cancel()
		select {
		case <-n.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, f := range n.stopFuncs {
		err := f(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}
