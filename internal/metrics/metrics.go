// Package metrics содержит счётчики Prometheus сервиса совместных покупок.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics учитывает операции с пулами и уведомлениями.
// Нулевое значение и nil безопасны и ничего не записывают.
type PoolMetrics struct {
	joins               prometheus.Counter
	leaves              prometheus.Counter
	conflicts           prometheus.Counter
	tierReached         prometheus.Counter
	notificationsSent   prometheus.Counter
	notificationsFailed prometheus.Counter
	notificationsSwept  prometheus.Counter
}

// NewPoolMetrics регистрирует счётчики в переданном реестре.
func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	if reg == nil {
		return &PoolMetrics{}
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupbuy",
			Name:      name,
			Help:      help,
		})
	}

	m := &PoolMetrics{
		joins:               counter("pool_joins_total", "Successful pool joins."),
		leaves:              counter("pool_leaves_total", "Successful pool leaves."),
		conflicts:           counter("pool_conflicts_total", "Pool writes rejected by a version conflict."),
		tierReached:         counter("tier_reached_total", "Times a pool crossed into the maximum tier."),
		notificationsSent:   counter("notifications_emitted_total", "Notifications persisted."),
		notificationsFailed: counter("notifications_failed_total", "Notifications that failed to persist."),
		notificationsSwept:  counter("notifications_swept_total", "Read notifications removed by retention."),
	}
	reg.MustRegister(m.joins, m.leaves, m.conflicts, m.tierReached,
		m.notificationsSent, m.notificationsFailed, m.notificationsSwept)
	return m
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// IncJoin увеличивает счётчик вступлений в пул.
func (m *PoolMetrics) IncJoin() {
	if m != nil {
		inc(m.joins)
	}
}

// IncLeave увеличивает счётчик выходов из пула.
func (m *PoolMetrics) IncLeave() {
	if m != nil {
		inc(m.leaves)
	}
}

// IncConflict увеличивает счётчик конфликтов версий.
func (m *PoolMetrics) IncConflict() {
	if m != nil {
		inc(m.conflicts)
	}
}

// IncTierReached увеличивает счётчик достижений максимального уровня.
func (m *PoolMetrics) IncTierReached() {
	if m != nil {
		inc(m.tierReached)
	}
}

// IncNotificationSent увеличивает счётчик сохранённых уведомлений.
func (m *PoolMetrics) IncNotificationSent() {
	if m != nil {
		inc(m.notificationsSent)
	}
}

// IncNotificationFailed увеличивает счётчик несохранённых уведомлений.
func (m *PoolMetrics) IncNotificationFailed() {
	if m != nil {
		inc(m.notificationsFailed)
	}
}

// AddSwept добавляет число удалённых уведомлений.
func (m *PoolMetrics) AddSwept(n int) {
	if m != nil && m.notificationsSwept != nil && n > 0 {
		m.notificationsSwept.Add(float64(n))
	}
}
