package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"aitea-distribution/node/broker"
	"aitea-distribution/node/config"
	"aitea-distribution/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func testConfig(m *miniredis.Miniredis) *config.Node {
	cfg := config.DefaultNode()
	cfg.PathsToSave.DefaultRoot = "/nonexistent"
	cfg.Connections.Redis.Sender = config.Redis{Addrs: []string{m.Addr()}, ChannelToListen: "orders"}
	cfg.Connections.Redis.Receiver = config.Redis{Addrs: []string{m.Addr()}, ChannelToListen: "announcements"}
	return cfg
}

func TestNodeLifecycle(t *testing.T) {
	m := miniredis.RunT(t)
	ctx := context.Background()

	for _, tc := range []struct {
		newNode func(context.Context, *config.Node) (*Node, error)
		role    broker.Role
		channel string
	}{
		{NewSenderNode, broker.RoleSender, "orders"},
		{NewReceiverNode, broker.RoleReceiver, "announcements"},
	} {
		t.Run(string(tc.role), func(t *testing.T) {
			n, err := tc.newNode(ctx, testConfig(m))
			require.NoError(t, err)
			require.Equal(t, tc.role, n.Role())
			require.NotNil(t, n.Manager())

			require.NoError(t, n.Start(ctx))
			require.Eventually(t, func() bool {
				return m.PubSubNumSub(tc.channel)[tc.channel] == 1
			}, 5*time.Second, 10*time.Millisecond)

			require.NoError(t, n.Stop(ctx))
			<-n.Done()
			require.NoError(t, n.Err())
			require.Eventually(t, func() bool {
				return m.PubSubNumSub(tc.channel)[tc.channel] == 0
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}

func TestNodeWithoutConnection(t *testing.T) {
	cfg := config.DefaultNode()
	_, err := NewSenderNode(context.Background(), cfg)
	require.True(t, errors.Is(err, types.ErrNoConnection))

	_, err = NewReceiverNode(context.Background(), cfg)
	require.True(t, errors.Is(err, types.ErrNoConnection))
}

func TestNodeInvalidCompression(t *testing.T) {
	m := miniredis.RunT(t)
	cfg := testConfig(m)
	cfg.Transfer.Compression = "brotli"

	_, err := NewReceiverNode(context.Background(), cfg)
	require.True(t, errors.Is(err, types.ErrInvalidConfig))
}

func TestMonitorShutdown(t *testing.T) {
	trigger := make(chan struct{})
	var order []string
	finish := MonitorShutdown(trigger,
		ShutdownHandler{Component: "first", StopFunc: func(context.Context) error {
			order = append(order, "first")
			return errors.New("boom")
		}},
		ShutdownHandler{Component: "second", StopFunc: func(context.Context) error {
			order = append(order, "second")
			return nil
		}},
	)

	close(trigger)
	select {
	case <-finish:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	require.Equal(t, []string{"first", "second"}, order)
}
