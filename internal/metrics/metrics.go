package metrics

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsNamespace = "uitest"

	ResultPass = "pass"
	ResultFail = "fail"
	ResultSkip = "skip"
)

var (
	validResults = []string{ResultPass, ResultFail, ResultSkip}

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors by class",
	}, []string{
		"class",
	})

	casesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cases_total",
		Help:      "Count of test case outcomes",
	}, []string{
		"case",
		"result",
	})

	caseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "case_duration_seconds",
		Help:      "Total elapsed time of executed test cases",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{
		"case",
	})

	usersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "users_total",
		Help:      "Count of simulated user runs",
	}, []string{
		"result",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of engine runs",
	}, []string{
		"mode",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Elapsed time of the last run",
	}, []string{
		"mode",
	})

	activeUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "active_users",
		Help:      "Number of user tasks currently running",
	})
)

func RecordError(class string) {
	errorsTotal.WithLabelValues(class).Inc()
}

func RecordCase(caseName string, result string, elapsed time.Duration) {
	if !isValidResult(result) {
		slog.Error("RecordCase - invalid result", "result", result)
		return
	}
	// 标签值必须是合法的 UTF-8，否则 WithLabelValues 会 panic
	caseName = strings.ToValidUTF8(caseName, "\uFFFD")
	casesTotal.WithLabelValues(caseName, result).Inc()
	if result != ResultSkip {
		caseDuration.WithLabelValues(caseName).Observe(elapsed.Seconds())
	}
}

func RecordUser(success bool) {
	usersTotal.WithLabelValues(resultFromBool(success)).Inc()
}

func RecordRun(mode string, success bool, elapsed time.Duration) {
	runsTotal.WithLabelValues(mode, resultFromBool(success)).Inc()
	runDuration.WithLabelValues(mode).Set(elapsed.Seconds())
}

// UserStarted / UserFinished 跟踪正在运行的用户任务数
func UserStarted() {
	activeUsers.Inc()
}

func UserFinished() {
	activeUsers.Dec()
}

// Handler 暴露默认注册表
func Handler() http.Handler {
	return promhttp.Handler()
}

func resultFromBool(ok bool) string {
	if ok {
		return ResultPass
	}
	return ResultFail
}

func isValidResult(result string) bool {
	return slices.Contains(validResults, result)
}
