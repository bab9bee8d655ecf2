package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aitea-distribution/node/broker"
	"aitea-distribution/node/config"
	"aitea-distribution/node/transfer"
	"aitea-distribution/types"
	"aitea-distribution/utils"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("listener")

// Listener consumes the control channel of one role until ctx is done.
type Listener interface {
	Run(ctx context.Context) error
}

type handler func(ctx context.Context, traceId string, msg *broker.Message) error

type loop struct {
	name    string
	conn    *broker.Conn
	backoff time.Duration
	handle  handler
}

// run subscribes and hands every data message to l.handle, one at a time.
// Handler errors are logged and never stop the loop. A failed receive is
// logged and retried after the backoff; go-redis reconnects on its own.
func (l *loop) run(ctx context.Context) error {
	sub, err := l.conn.Subscribe(ctx, l.conn.Channel())
	if err != nil {
		return err
	}
	defer sub.Close() //nolint:errcheck

	log.Infof("%s listening on %s", l.name, sub.Channel())
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Infof("%s stopped listening on %s", l.name, sub.Channel())
				return nil
			}
			if errors.Is(err, types.ErrSubscriptionDone) {
				return err
			}
			log.Errorf("%s failed to receive from %s: %v", l.name, sub.Channel(), err)
			if !sleep(ctx, l.backoff) {
				return nil
			}
			continue
		}
		if msg == nil {
			continue
		}

		traceId := utils.GenerateTraceId()
		if err := l.dispatch(ctx, traceId, msg); err != nil {
			log.Errorf("[%s] %s dropped message %q: %v", traceId, l.name, msg.Payload, err)
		}
	}
}

func (l *loop) dispatch(ctx context.Context, traceId string, msg *broker.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.handle(ctx, traceId, msg)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Sender turns orders received on the sender channel into SendFile calls.
type Sender struct {
	mgr         *transfer.Manager
	perFileKeys bool
	loop
}

func NewSender(mgr *transfer.Manager, cfg config.Transfer) (*Sender, error) {
	conn, err := mgr.Conns().Listen()
	if err != nil {
		return nil, err
	}
	s := &Sender{
		mgr:         mgr,
		perFileKeys: cfg.PerFileKeys,
	}
	s.loop = loop{
		name:    "sender",
		conn:    conn,
		backoff: time.Duration(cfg.ReceiveErrorBackoff),
		handle:  s.handleOrder,
	}
	return s, nil
}

func (s *Sender) Run(ctx context.Context) error {
	return s.run(ctx)
}

func (s *Sender) handleOrder(ctx context.Context, traceId string, msg *broker.Message) error {
	if !IsOrder(msg.Payload) {
		log.Debugf("[%s] ignoring %q", traceId, msg.Payload)
		return nil
	}
	reqs, err := ParseOrder(msg.Payload)
	if err != nil {
		return err
	}
	key, err := s.mgr.PublishKey()
	if err != nil {
		return err
	}

	log.Infof("[%s] order for %d file(s)", traceId, len(reqs))
	failed := 0
	for _, req := range reqs {
		k := key
		if s.perFileKeys {
			k = utils.GenerateKey(key)
		}
		if err := s.mgr.SendFile(ctx, req.Path, k, req.Type, req.Name); err != nil {
			log.Errorf("[%s] failed to send %s: %v", traceId, req.Path, err)
			failed++
			continue
		}
		log.Infof("[%s] sent %s as %s (%s)", traceId, req.Path, req.Name, req.Type)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) not sent", failed, len(reqs))
	}
	return nil
}

// Receiver turns announcements received on the receiver channel into
// ReceiveFile calls.
type Receiver struct {
	mgr *transfer.Manager
	loop
}

func NewReceiver(mgr *transfer.Manager, cfg config.Transfer) (*Receiver, error) {
	conn, err := mgr.Conns().Listen()
	if err != nil {
		return nil, err
	}
	r := &Receiver{mgr: mgr}
	r.loop = loop{
		name:    "receiver",
		conn:    conn,
		backoff: time.Duration(cfg.ReceiveErrorBackoff),
		handle:  r.handleAnnouncement,
	}
	return r, nil
}

func (r *Receiver) Run(ctx context.Context) error {
	return r.run(ctx)
}

func (r *Receiver) handleAnnouncement(ctx context.Context, traceId string, msg *broker.Message) error {
	if msg.Payload == "" {
		return nil
	}
	ann, err := types.ParseAnnouncement([]byte(msg.Payload))
	if err != nil {
		return err
	}

	log.Infof("[%s] announcement of %s (%s) under %s", traceId, ann.FileName, ann.FileType, ann.KeyToVerify)
	dest, err := r.mgr.ReceiveFile(ctx, ann.KeyToVerify, ann.FileType, ann.FileName)
	if err != nil {
		return err
	}
	if dest != "" {
		log.Infof("[%s] wrote %s", traceId, dest)
	}
	return nil
}
