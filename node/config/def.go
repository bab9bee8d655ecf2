package config

import (
	"time"
)

const (
	DefaultSaveRoot   = "/opt/aitea_distribution/"
	DefaultLogRoot    = "/var/log/aitea/aitea_distribution/"
	DefaultChannel    = "files_to_send"
	DefaultPublishKey = "files_to_receive"
	DefaultRedisPort  = 6379
)

func DefaultNode() *Node {
	return &Node{
		Logging: Logging{
			Level:     "INFO",
			LogName:   "Aitea Distribution",
			Rotation:  "500 MB",
			Retention: "10 days",
			MaxSize:   "10 GB",
		},
		PathsToSave: PathsToSave{
			DefaultRoot: DefaultSaveRoot,
		},
		Transfer: Transfer{
			Compress:            true,
			Compression:         "zlib",
			ReceiveErrorBackoff: Duration(time.Second),
		},
	}
}

// ExampleConnections is written into freshly initialized repos; a process
// started without any connections block has no broker to talk to.
func ExampleConnections() Connections {
	return Connections{
		Redis: RedisRoles{
			Sender: Redis{
				Host:            "localhost",
				Port:            DefaultRedisPort,
				ChannelToListen: DefaultChannel,
			},
			Receiver: Redis{
				Host:            "localhost",
				Port:            DefaultRedisPort,
				ChannelToListen: DefaultChannel,
				KeyToPublish:    DefaultPublishKey,
			},
		},
	}
}
