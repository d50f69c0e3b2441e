package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tern_orders_total",
		Help: "Orders accepted by the engine.",
	})
	ordersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tern_orders_rejected_total",
		Help: "Orders rejected at admission.",
	})
	cancelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tern_cancels_total",
		Help: "Cancel commands applied, including batch members.",
	})
	tradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tern_trades_total",
		Help: "Trades produced by matching.",
	})
	pruneCancels = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tern_gfd_prune_cancels_total",
		Help: "Good-for-day orders cancelled by the daily prune.",
	})
)
