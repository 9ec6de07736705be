package natspublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/events"
)

// SubjectPrefix 生命周期事件的 Subject 前缀
// 完整格式: hill.{event type}，例如 hill.room.closed
const SubjectPrefix = "hill."

// Subject 构建事件对应的 Subject
func Subject(t events.Type) string {
	return SubjectPrefix + string(t)
}

// Publisher 是 events.Publisher 的 NATS 实现
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher 连接 NATS 服务器
func NewPublisher(url string) (*Publisher, error) {
	log := logrus.WithField("component", "nats_publisher")
	conn, err := nats.Connect(url,
		nats.Name("board-hill"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}
	return &Publisher{conn: conn}, nil
}

// Publish 序列化事件并发布
func (p *Publisher) Publish(_ context.Context, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("nats: marshal %s event: %w", ev.Type, err)
	}
	if err := p.conn.Publish(Subject(ev.Type), data); err != nil {
		return fmt.Errorf("nats: publish %s: %w", Subject(ev.Type), err)
	}
	return nil
}

// Close 刷新缓冲并断开连接
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
