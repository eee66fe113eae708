package cultivation

import "time"

// Metric identifies a monitored environmental reading
type Metric string

const (
	MetricTemp Metric = "temp"
	MetricRH   Metric = "rh"
	MetricPPFD Metric = "ppfd"
	MetricPH   Metric = "ph"
	MetricEC   Metric = "ec"
)

// AllMetrics lists every metric carried by a weekly target
var AllMetrics = []Metric{MetricTemp, MetricRH, MetricPPFD, MetricPH, MetricEC}

// metricLabels holds the user-facing name and unit of each metric
var metricLabels = map[Metric]struct {
	label string
	unit  string
}{
	MetricTemp: {"Temperatura", "°C"},
	MetricRH:   {"Umidade", "%"},
	MetricPPFD: {"PPFD", " µmol/m²/s"},
	MetricPH:   {"pH", ""},
	MetricEC:   {"EC", " mS/cm"},
}

// Label returns the display name of the metric
func (m Metric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l.label
	}
	return string(m)
}

// Unit returns the unit suffix appended to values of the metric
func (m Metric) Unit() string {
	return metricLabels[m].unit
}

// AlertStatus is the lifecycle of a stored alert
type AlertStatus string

const (
	AlertActive       AlertStatus = "ACTIVE"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertResolved     AlertStatus = "RESOLVED"
)

// Severity grades how far a reading is from its ideal
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is derived from a daily log that fell outside its phase margin
type Alert struct {
	ID        string
	TentID    int64
	LogID     int64
	Metric    Metric
	Severity  Severity
	Message   string
	Value     float64
	Ideal     float64
	Margin    float64
	Phase     Phase
	Week      int
	Status    AlertStatus
	CreatedAt time.Time
}
