package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/voxnode/voxclient/internal/sipclient"
)

// Counters are process-wide event counters incremented by the session
// manager. All fields are safe for concurrent use.
type Counters struct {
	LoginAttempts   atomic.Uint64
	LoginFailures   atomic.Uint64
	OutboundCalls   atomic.Uint64
	SMSSent         atomic.Uint64
	CallerIDFetches atomic.Uint64
}

// SessionProvider exposes whether a session is active.
type SessionProvider interface {
	LoggedIn() bool
}

// RegistrationProvider exposes the SIP registration state.
type RegistrationProvider interface {
	State() sipclient.State
}

// registrationStatuses are the label values emitted for the registration
// status gauge; exactly one carries the value 1.
var registrationStatuses = []sipclient.Status{
	sipclient.StatusUnregistered,
	sipclient.StatusRegistering,
	sipclient.StatusRegistered,
	sipclient.StatusFailed,
}

// Collector is a prometheus.Collector that gathers client metrics at scrape time.
type Collector struct {
	session      SessionProvider
	registration RegistrationProvider
	counters     *Counters
	startTime    time.Time

	// Metric descriptors.
	loggedInDesc        *prometheus.Desc
	regStatusDesc       *prometheus.Desc
	regRetriesDesc      *prometheus.Desc
	outboundCallsDesc   *prometheus.Desc
	smsSentDesc         *prometheus.Desc
	callerIDFetchesDesc *prometheus.Desc
	loginAttemptsDesc   *prometheus.Desc
	loginFailuresDesc   *prometheus.Desc
	uptimeDesc          *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(
	session SessionProvider,
	registration RegistrationProvider,
	counters *Counters,
	startTime time.Time,
) *Collector {
	return &Collector{
		session:      session,
		registration: registration,
		counters:     counters,
		startTime:    startTime,

		loggedInDesc: prometheus.NewDesc(
			"voxclient_session_logged_in",
			"Whether a VoxNode session is currently active (1=logged in)",
			nil, nil,
		),
		regStatusDesc: prometheus.NewDesc(
			"voxclient_sip_registration_status",
			"SIP registration status (1 for the current status)",
			[]string{"status"}, nil,
		),
		regRetriesDesc: prometheus.NewDesc(
			"voxclient_sip_registration_retries",
			"Consecutive failed SIP registration attempts",
			nil, nil,
		),
		outboundCallsDesc: prometheus.NewDesc(
			"voxclient_outbound_calls_total",
			"Total outbound calls initiated through the backend",
			nil, nil,
		),
		smsSentDesc: prometheus.NewDesc(
			"voxclient_sms_sent_total",
			"Total SMS messages sent through the backend",
			nil, nil,
		),
		callerIDFetchesDesc: prometheus.NewDesc(
			"voxclient_callerid_fetches_total",
			"Total caller-ID list fetches from the backend",
			nil, nil,
		),
		loginAttemptsDesc: prometheus.NewDesc(
			"voxclient_login_attempts_total",
			"Total login attempts against the backend",
			nil, nil,
		),
		loginFailuresDesc: prometheus.NewDesc(
			"voxclient_login_failures_total",
			"Total failed login attempts",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"voxclient_uptime_seconds",
			"Seconds since the voxclient process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.loggedInDesc
	ch <- c.regStatusDesc
	ch <- c.regRetriesDesc
	ch <- c.outboundCallsDesc
	ch <- c.smsSentDesc
	ch <- c.callerIDFetchesDesc
	ch <- c.loginAttemptsDesc
	ch <- c.loginFailuresDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.session != nil {
		val := 0.0
		if c.session.LoggedIn() {
			val = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.loggedInDesc, prometheus.GaugeValue, val)
	}

	if c.registration != nil {
		state := c.registration.State()
		for _, status := range registrationStatuses {
			val := 0.0
			if state.Status == status {
				val = 1.0
			}
			ch <- prometheus.MustNewConstMetric(
				c.regStatusDesc, prometheus.GaugeValue, val, string(status),
			)
		}
		ch <- prometheus.MustNewConstMetric(
			c.regRetriesDesc, prometheus.GaugeValue,
			float64(state.RetryAttempt),
		)
	}

	if c.counters != nil {
		ch <- prometheus.MustNewConstMetric(
			c.outboundCallsDesc, prometheus.CounterValue,
			float64(c.counters.OutboundCalls.Load()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.smsSentDesc, prometheus.CounterValue,
			float64(c.counters.SMSSent.Load()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.callerIDFetchesDesc, prometheus.CounterValue,
			float64(c.counters.CallerIDFetches.Load()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.loginAttemptsDesc, prometheus.CounterValue,
			float64(c.counters.LoginAttempts.Load()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.loginFailuresDesc, prometheus.CounterValue,
			float64(c.counters.LoginFailures.Load()),
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
