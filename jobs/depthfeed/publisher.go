// Package depthfeed publishes periodic aggregated-depth snapshots to
// the market-data topic.
package depthfeed

import (
	"context"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"tern/domain/book"
	"tern/infra/feed"
	"tern/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Publisher struct {
	svc      *service.OrderService
	producer *feed.Producer
	every    time.Duration
	limit    int
	log      *zap.Logger
}

type snapshot struct {
	Bids []book.LevelInfo `json:"bids"`
	Asks []book.LevelInfo `json:"asks"`
	Ts   int64            `json:"ts"`
}

func New(svc *service.OrderService, producer *feed.Producer, every time.Duration, limit int, log *zap.Logger) *Publisher {
	return &Publisher{
		svc:      svc,
		producer: producer,
		every:    every,
		limit:    limit,
		log:      log,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	bids, asks := p.svc.Depth(p.limit)
	snap := snapshot{Bids: bids, Asks: asks, Ts: time.Now().UnixNano()}

	payload, err := json.Marshal(snap)
	if err != nil {
		p.log.Error("depth snapshot marshal failed", zap.Error(err))
		return
	}

	key := []byte(strconv.FormatInt(snap.Ts, 10))
	if err := p.producer.Send(ctx, key, payload); err != nil {
		p.log.Warn("depth snapshot publish failed", zap.Error(err))
	}
}
