// Package metrics declares the Prometheus collectors exported across
// the orchestrator and host agent, named `<service>_<noun>_<unit>`
// per cuemby-warren/pkg/metrics/metrics.go's convention.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bus metrics.
	BusMessagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hposcore_bus_messages_published_total",
			Help: "Total number of messages published by subject",
		},
		[]string{"subject"},
	)

	BusHandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hposcore_bus_handler_duration_seconds",
			Help:    "Consumer handler duration in seconds by subject",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	BusHandlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hposcore_bus_handler_errors_total",
			Help: "Total number of consumer handler errors by subject",
		},
		[]string{"subject"},
	)

	// Auth callout metrics.
	AuthCalloutRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hposcore_auth_callout_requests_total",
			Help: "Total number of auth callout requests by outcome",
		},
		[]string{"outcome"}, // authorized, guard, error
	)

	AuthCalloutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hposcore_auth_callout_duration_seconds",
			Help:    "Auth callout request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Reconciler metrics.
	ReconcileCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hposcore_reconcile_cycles_total",
			Help: "Total number of reconcile cycles completed",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hposcore_reconcile_duration_seconds",
			Help:    "Time taken for a single reconcile cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkloadsAssignedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hposcore_workloads_assigned_total",
			Help: "Total number of host assignments made by the reconciler",
		},
	)

	WorkloadAssignmentRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hposcore_workload_assignment_retries_total",
			Help: "Total number of assignment retries requeued by the workqueue",
		},
	)

	// Host agent metrics.
	WorkloadCommandsHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hposcore_workload_commands_handled_total",
			Help: "Total number of workload commands handled by the host agent, by op and outcome",
		},
		[]string{"op", "outcome"},
	)

	HcGatewayRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hposcore_hc_gateway_request_duration_seconds",
			Help:    "HC-HTTP-GW proxied request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	HcGatewayConsumersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hposcore_hc_gateway_consumers_active",
			Help: "Number of HC-HTTP-GW bus consumers currently registered",
		},
	)

	// Blob store metrics.
	BlobStoreWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hposcore_blobstore_writes_total",
			Help: "Total number of blobs finalized into the store",
		},
	)

	BlobStoreBytesWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hposcore_blobstore_bytes_written_total",
			Help: "Total number of bytes written across finalized blobs",
		},
	)
)

func init() {
	prometheus.MustRegister(
		BusMessagesPublishedTotal,
		BusHandlerDuration,
		BusHandlerErrorsTotal,
		AuthCalloutRequestsTotal,
		AuthCalloutDuration,
		ReconcileCyclesTotal,
		ReconcileDuration,
		WorkloadsAssignedTotal,
		WorkloadAssignmentRetriesTotal,
		WorkloadCommandsHandledTotal,
		HcGatewayRequestDuration,
		HcGatewayConsumersActive,
		BlobStoreWritesTotal,
		BlobStoreBytesWrittenTotal,
	)
}

// Handler serves the Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
