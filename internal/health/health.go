package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status представляет статус компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 2 * time.Second

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — суммарный ответ health-эндпоинта.
type Response struct {
	Status        Status  `json:"status"`
	Checks        []Check `json:"checks,omitempty"`
	Version       string  `json:"version,omitempty"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// CheckFunc выполняет проверку одного компонента. Возврат ошибки означает
// unhealthy, ненулевой статус в Check имеет приоритет.
type CheckFunc func(ctx context.Context) error

// Handler выполняет зарегистрированные проверки и отдаёт их по HTTP.
type Handler struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	version   string
	startTime time.Time
}

func NewHandler(version string) *Handler {
	return &Handler{
		checks:    make(map[string]CheckFunc),
		version:   version,
		startTime: time.Now(),
	}
}

// Register добавляет проверку компонента под уникальным именем.
func (h *Handler) Register(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// PingCheck оборачивает Ping-подобный метод хранилища в CheckFunc.
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return ping
}

// BacklogCheck помечает компонент как degraded, когда размер очереди
// превышает threshold. Используется для backlog transactional outbox.
func BacklogCheck(size func() (int, error), threshold int) CheckFunc {
	return func(_ context.Context) error {
		n, err := size()
		if err != nil {
			return err
		}
		if n > threshold {
			return degradedError{fmt.Sprintf("backlog of %d exceeds threshold %d", n, threshold)}
		}
		return nil
	}
}

type degradedError struct{ msg string }

func (e degradedError) Error() string { return e.msg }

func (h *Handler) run(ctx context.Context) ([]Check, Status) {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	results := make([]Check, 0, len(checks))
	overall := StatusHealthy

	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		start := time.Now()
		err := fn(checkCtx)
		cancel()

		check := Check{
			Name:       name,
			Status:     StatusHealthy,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			check.Message = err.Error()
			if _, degraded := err.(degradedError); degraded {
				check.Status = StatusDegraded
			} else {
				check.Status = StatusUnhealthy
			}
		}
		results = append(results, check)

		switch {
		case check.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case check.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, overall
}

// ServeHTTP отдаёт полный отчёт о состоянии сервиса.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks, overall := h.run(r.Context())

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Response{
		Status:        overall,
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// Liveness всегда отвечает 200, пока процесс жив.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readiness отвечает 503, пока хотя бы одна проверка unhealthy.
// Degraded считается готовым: сервис работает, но медленнее обычного.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	_, overall := h.run(r.Context())
	if overall == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
