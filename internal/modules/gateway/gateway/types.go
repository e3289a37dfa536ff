package gateway

import (
	"sync"

	pkgredis "github.com/surveykit/hooks/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	RoomAdmin      = "admin"
	namespaceAdmin = "/admin"
	redisChanAdmin = "svk:gateway:admin"

	nativeLogSnapshotChunkSize = 32 * 1024
)

// Message is the envelope used by hub broadcasts and Redis fan-out.
// Origin carries the publishing instance ID so replicas can skip their
// own messages coming back off the Redis channel.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Code    *int        `json:"code,omitempty"`
	Room    string      `json:"room,omitempty"`
	Origin  string      `json:"origin,omitempty"`
}

type gatewayPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Code *int        `json:"code,omitempty"`
}

type clientMeta struct {
	sid  string
	room string
}

type adminLogSubscription struct {
	streamID int
	stopCh   chan struct{}
}

// Hub manages the admin socket.io namespace and cluster fan-out. Every
// replica delivers locally and republishes through Redis so dashboards
// connected to any instance see the same stream.
type Hub struct {
	mu sync.RWMutex

	sidRoom   map[string]string
	roomCount map[string]int

	logSubMu sync.Mutex
	logSubs  map[string]adminLogSubscription

	broadcast  chan Message
	register   chan clientMeta
	unregister chan clientMeta

	rc             *pkgredis.Client
	logger         *zap.Logger
	sio            *socketio.Server
	tokenValidator func(string) bool
	instanceID     string
}
