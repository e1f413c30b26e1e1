package api

import (
	"io"
	"net/http"
	"sort"
	"strconv"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/brewbridge/brewbridge/bridge/internal/host"
	"github.com/brewbridge/brewbridge/bridge/internal/security"
	"github.com/brewbridge/brewbridge/bridge/internal/sensor"
)

const (
	metricRefreshSuccess      = "brewbridge_refresh_success"
	metricLastSuccess         = "brewbridge_last_success_timestamp_seconds"
	metricConsecutiveFailures = "brewbridge_refresh_consecutive_failures"
	metricFloats              = "brewbridge_floats"
	metricCertDaysLeft        = "brewbridge_cert_days_left"
)

var exposition = expfmt.NewFormat(expfmt.TypeTextPlain)

// metrics returns GET /metrics in the Prometheus text format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", string(exposition))
	WriteMetrics(w, h.host.List(), h.latestCert()) //nolint:errcheck // headers already sent
}

// WriteMetrics encodes one gauge family per sensor kind plus the per-entry
// refresh families and, when cert is set, the certificate family. Sensor
// values that are unset or not numeric are omitted, and families with no
// samples are not written.
func WriteMetrics(w io.Writer, entries []host.Entry, cert *security.CertStatus) error {
	enc := expfmt.NewEncoder(w, exposition)
	families := buildFamilies(entries)
	if cert != nil && cert.Status != "unreachable" {
		mf := gaugeFamily(metricCertDaysLeft, "Days until the service TLS certificate expires.")
		mf.Metric = append(mf.Metric, gauge(float64(cert.DaysLeft), labelPair("endpoint", cert.Endpoint)))
		families = append(families, mf)
	}
	for _, mf := range families {
		if len(mf.Metric) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func buildFamilies(entries []host.Entry) []*dto.MetricFamily {
	byKind := make(map[string]*dto.MetricFamily, len(sensor.Kinds))
	families := make([]*dto.MetricFamily, 0, len(sensor.Kinds)+4)
	for _, k := range sensor.Kinds {
		mf := gaugeFamily(k.MetricName, k.Help)
		byKind[k.Key] = mf
		families = append(families, mf)
	}

	success := gaugeFamily(metricRefreshSuccess, "Whether the last refresh cycle of the account succeeded (1) or failed (0).")
	lastOK := gaugeFamily(metricLastSuccess, "Unix time of the last successful refresh cycle of the account.")
	failures := gaugeFamily(metricConsecutiveFailures, "Number of refresh cycles that failed in a row.")
	floats := gaugeFamily(metricFloats, "Number of floats discovered for the account.")
	families = append(families, success, lastOK, failures, floats)

	for _, e := range entries {
		entryLabel := labelPair("entry", e.ID)
		for _, s := range e.Sensors {
			v, ok := s.State()
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			mf := byKind[s.Kind.Key]
			mf.Metric = append(mf.Metric, gauge(f,
				entryLabel,
				labelPair("float_id", s.FloatID),
				labelPair("float_name", s.FloatName),
			))
		}

		st := e.Coordinator.Status()
		ok := 0.0
		if e.LastFailure == "" && !st.LastSuccess.IsZero() {
			ok = 1
		}
		success.Metric = append(success.Metric, gauge(ok, entryLabel))
		if !st.LastSuccess.IsZero() {
			secs := float64(st.LastSuccess.UnixNano()) / 1e9
			lastOK.Metric = append(lastOK.Metric, gauge(secs, entryLabel))
		}
		failures.Metric = append(failures.Metric, gauge(float64(st.ConsecutiveFailures), entryLabel))
		floats.Metric = append(floats.Metric, gauge(float64(len(e.Coordinator.Floats())), entryLabel))
	}

	// Stable sample order inside each sensor family: entry, then float id.
	for _, mf := range byKind {
		sort.SliceStable(mf.Metric, func(i, j int) bool {
			a, b := mf.Metric[i].Label, mf.Metric[j].Label
			if a[0].GetValue() != b[0].GetValue() {
				return a[0].GetValue() < b[0].GetValue()
			}
			return a[1].GetValue() < b[1].GetValue()
		})
	}
	return families
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: proto.Float64(v)},
	}
}

func labelPair(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}
