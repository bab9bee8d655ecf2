package listener

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aitea-distribution/node/broker"
	"aitea-distribution/node/config"
	"aitea-distribution/node/transfer"
	"aitea-distribution/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestParseOrder(t *testing.T) {
	reqs, err := ParseOrder("ORDER SEND_FILES a/b/c.json d/e.pkl f.so")
	require.NoError(t, err)
	require.Equal(t, []FileRequest{
		{Path: "a/b/c.json", Type: types.FileTypeJSON, Name: "c"},
		{Path: "d/e.pkl", Type: types.FileTypePkl, Name: "e"},
		{Path: "f.so", Type: types.FileTypeSo, Name: "f"},
	}, reqs)

	reqs, err = ParseOrder("ORDER SEND_FILES\t/data/notes.txt   /data/libx.so.1.so /data/blob\n")
	require.NoError(t, err)
	require.Equal(t, []FileRequest{
		{Path: "/data/notes.txt", Type: types.FileTypeTxt, Name: "notes"},
		{Path: "/data/libx.so.1.so", Type: types.FileTypeSo, Name: "libx.so.1"},
		{Path: "/data/blob", Type: types.FileTypeBin, Name: "blob"},
	}, reqs)

	for _, text := range []string{"ORDER SEND_FILES", "ORDER SEND_FILES   ", "ORDER SEND_FILESx a.txt", "ORDER  SEND_FILES a.txt", "ORDER", "SEND_FILES a.json", ""} {
		_, err := ParseOrder(text)
		require.True(t, errors.Is(err, types.ErrMalformedCommand), text)
	}

	require.True(t, IsOrder("ORDER SEND_FILES"))
	require.False(t, IsOrder("hello"))
	require.True(t, IsOrder("ORDER SEND_FILESx a.txt"))
	require.False(t, IsOrder("ORDER  SEND_FILES a.txt"))
	require.False(t, IsOrder(" ORDER SEND_FILES a.txt"))
	require.Equal(t, "ORDER SEND_FILES a.json b.so", FormatOrder("a.json", "b.so"))
}

const (
	ordersChannel        = "orders"
	announcementsChannel = "announcements"
)

type fixture struct {
	redis *miniredis.Miniredis
	paths config.PathsToSave
	src   string
}

func newFixture(t *testing.T) *fixture {
	root := t.TempDir()
	f := &fixture{
		redis: miniredis.RunT(t),
		paths: config.PathsToSave{
			DefaultRoot: filepath.Join(root, "default"),
			JSON:        filepath.Join(root, "json"),
			Txt:         filepath.Join(root, "txt"),
			So:          filepath.Join(root, "so"),
		},
		src: filepath.Join(root, "src"),
	}
	for _, dir := range []string{f.paths.DefaultRoot, f.paths.JSON, f.paths.Txt, f.src} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	return f
}

func (f *fixture) config(perFileKeys bool) *config.Node {
	cfg := config.DefaultNode()
	cfg.PathsToSave = f.paths
	cfg.Transfer.PerFileKeys = perFileKeys
	cfg.Transfer.ReceiveErrorBackoff = config.Duration(10 * time.Millisecond)
	cfg.Connections.Redis.Sender = config.Redis{
		Addrs:           []string{f.redis.Addr()},
		ChannelToListen: ordersChannel,
	}
	cfg.Connections.Redis.Receiver = config.Redis{
		Addrs:           []string{f.redis.Addr()},
		ChannelToListen: announcementsChannel,
		KeyToPublish:    "files_to_receive",
	}
	return cfg
}

func (f *fixture) manager(t *testing.T, role broker.Role, cfg *config.Node) *transfer.Manager {
	conns, err := broker.NewConnSet(context.Background(), role, cfg.Connections)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })
	mgr, err := transfer.NewManager(cfg, conns)
	require.NoError(t, err)
	return mgr
}

func (f *fixture) writeSource(t *testing.T, name string, content string) string {
	path := filepath.Join(f.src, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// start runs l until the test ends and waits for it to subscribe.
func (f *fixture) start(t *testing.T, l Listener, channel string) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx)
	}()
	t.Cleanup(cancel)

	require.Eventually(t, func() bool {
		return f.redis.PubSubNumSub(channel)[channel] == 1
	}, 5*time.Second, 10*time.Millisecond)
	return cancel, done
}

func waitStopped(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestReceiverSurvivesBadMessages(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(false)

	receiver, err := NewReceiver(f.manager(t, broker.RoleReceiver, cfg), cfg.Transfer)
	require.NoError(t, err)
	cancel, done := f.start(t, receiver, announcementsChannel)

	f.redis.Publish(announcementsChannel, "{not json")
	f.redis.Publish(announcementsChannel, `{"key_to_verify": "k", "file_type": "exe", "file_name": "x"}`)
	f.redis.Publish(announcementsChannel, `{"key_to_verify": "absent", "file_type": "txt", "file_name": "ghost"}`)
	f.redis.Publish(announcementsChannel, `{"key_to_verify": "k", "file_type": "txt", "file_name": "../escape"}`)

	sender := f.manager(t, broker.RoleSender, cfg)
	src := f.writeSource(t, "notes.txt", "still listening")
	require.NoError(t, sender.SendFile(context.Background(), src, "files_to_receive", types.FileTypeTxt, "notes"))

	dest := filepath.Join(f.paths.Txt, "notes.txt")
	require.Eventually(t, func() bool {
		got, err := os.ReadFile(dest)
		return err == nil && string(got) == "still listening"
	}, 5*time.Second, 10*time.Millisecond)
	require.NoFileExists(t, filepath.Join(f.paths.Txt, "ghost.txt"))

	waitStopped(t, cancel, done)
}

func TestSenderToReceiver(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(true)

	receiver, err := NewReceiver(f.manager(t, broker.RoleReceiver, cfg), cfg.Transfer)
	require.NoError(t, err)
	cancelReceiver, receiverDone := f.start(t, receiver, announcementsChannel)

	sender, err := NewSender(f.manager(t, broker.RoleSender, cfg), cfg.Transfer)
	require.NoError(t, err)
	cancelSender, senderDone := f.start(t, sender, ordersChannel)

	jsonPath := f.writeSource(t, "config.json", `{"lr": 0.01, "layers": [64, 32]}`)
	txtPath := f.writeSource(t, "readme.txt", "plain text")
	soPath := f.writeSource(t, "libmodel.so", "\x7fELF")

	f.redis.Publish(ordersChannel, "hello there")
	f.redis.Publish(ordersChannel, "ORDER SEND_FILES")
	f.redis.Publish(ordersChannel, FormatOrder(filepath.Join(f.src, "missing.txt"), jsonPath, txtPath, soPath))

	require.Eventually(t, func() bool {
		for _, p := range []string{
			filepath.Join(f.paths.JSON, "config.json"),
			filepath.Join(f.paths.Txt, "readme.txt"),
			filepath.Join(f.paths.So, "libmodel.so"),
		} {
			if _, err := os.Stat(p); err != nil {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	got, err := os.ReadFile(filepath.Join(f.paths.JSON, "config.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"layers": [64, 32], "lr": 0.01}`, string(got))

	info, err := os.Stat(filepath.Join(f.paths.So, "libmodel.so"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0755), info.Mode().Perm())

	// every file went under its own key
	keys := f.redis.Keys()
	require.Len(t, keys, 3)
	for _, k := range keys {
		require.Regexp(t, `^files_to_receive:[0-9a-f-]{36}$`, k)
	}

	waitStopped(t, cancelSender, senderDone)
	waitStopped(t, cancelReceiver, receiverDone)
}

func TestSenderSharedKey(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(false)

	sender, err := NewSender(f.manager(t, broker.RoleSender, cfg), cfg.Transfer)
	require.NoError(t, err)
	cancel, done := f.start(t, sender, ordersChannel)

	src := f.writeSource(t, "one.txt", "single file")
	f.redis.Publish(ordersChannel, FormatOrder(src))

	require.Eventually(t, func() bool {
		return f.redis.Exists("files_to_receive")
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"files_to_receive"}, f.redis.Keys())

	waitStopped(t, cancel, done)
}

func TestListenerNeedsConnection(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(false)
	cfg.Connections.Redis.Sender = config.Redis{}

	mgr := f.manager(t, broker.RoleSender, cfg)
	_, err := NewSender(mgr, cfg.Transfer)
	require.True(t, errors.Is(err, types.ErrConnUnavailable))
}
