// Package metrics holds Prometheus instruments shared by the extension
// runtime, the popup bridge, and the view transport.  All collectors are
// registered with the global registry, so mounting promhttp.Handler() in
// the server is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ExtensionInitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmi_extension_init_total",
			Help: "Extension initialization procedures that completed successfully.",
		}, []string{"extension"})

	ExtensionInitErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmi_extension_init_errors_total",
			Help: "Extension initialization procedures that failed or panicked.",
		}, []string{"extension"})

	RegisteredTypes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hmi_registered_types",
			Help: "Value types announced to the process-wide meta-type registry.",
		})

	PopupRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmi_popup_requests_total",
			Help: "Accepted popup requests by prompt kind.",
		}, []string{"kind"})

	PopupDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hmi_popup_dropped_total",
			Help: "Popup requests made while the bridge had no bound view context.",
		})

	PopupDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hmi_popup_delivered_total",
			Help: "Popup notifications delivered on the view loop.",
		})

	ViewClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hmi_view_clients",
			Help: "Websocket view clients currently connected.",
		})
)

func init() {
	prometheus.MustRegister(
		ExtensionInitTotal,
		ExtensionInitErrorsTotal,
		RegisteredTypes,
		PopupRequestsTotal,
		PopupDroppedTotal,
		PopupDeliveredTotal,
		ViewClients,
	)
}
