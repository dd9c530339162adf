package api

import "net/http"

// ListSchedules возвращает расписания и время их следующего запуска.
// GET /api/v1/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, _ *http.Request) {
	if h.schedules == nil {
		List(w, []ScheduleResponse{}, 0)
		return
	}

	schedules := h.schedules.Schedules()
	result := make([]ScheduleResponse, len(schedules))
	for i, s := range schedules {
		result[i] = ScheduleFromDomain(s)
	}

	List(w, result, len(result))
}
