// Copyright (C) 2021 Alexander Sowitzki
//
// This program is free software: you can redistribute it and/or modify it under the terms of the
// GNU Affero General Public License as published by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY; without even the implied
// warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License for more
// details.
//
// You should have received a copy of the GNU Affero General Public License along with this program.
// If not, see <https://www.gnu.org/licenses/>.

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"go.eqrx.net/nat64gw/internal/nat64"
)

// Metrics exposes the translator's runtime behaviour to prometheus. Mapping and address gauges
// are pull based: Collect asks the translator directly, so no periodic sampling goroutine is
// needed.
type Metrics struct {
	packets    *prometheus.CounterVec
	mappings   prometheus.GaugeFunc
	available  prometheus.GaugeFunc
	translator *nat64.Translator
}

// NewMetrics constructs a [Metrics] collector bound to translator and registers it with reg.
func NewMetrics(reg prometheus.Registerer, translator *nat64.Translator) *Metrics {
	m := &Metrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nat64",
			Name:      "packets_total",
			Help:      "Packets handled by the translator, partitioned by disposition.",
		}, []string{"disposition"}),
		translator: translator,
	}

	m.mappings = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "nat64",
		Name:      "active_mappings",
		Help:      "Number of currently active IPv6-to-IPv4 address mappings.",
	}, func() float64 { return float64(translator.MappingCount()) })

	m.available = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "nat64",
		Name:      "available_addresses",
		Help:      "Number of free IPv4 addresses left in the configured pool.",
	}, func() float64 { return float64(translator.AvailableAddresses()) })

	reg.MustRegister(m.packets, m.mappings, m.available)

	return m
}

// observe records the disposition of one handled packet.
func (m *Metrics) observe(d nat64.Disposition) {
	if m == nil {
		return
	}

	m.packets.WithLabelValues(dispositionLabel(d)).Inc()
}

func dispositionLabel(d nat64.Disposition) string {
	switch d {
	case nat64.Forward:
		return "forward"
	case nat64.Drop:
		return "drop"
	case nat64.ReplyIcmp:
		return "reply_icmp"
	default:
		return "unknown"
	}
}
