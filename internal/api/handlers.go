package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/healing-scheduler/internal/metrics"
	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

// getSlotsHandler serves GET /staff/{staffID}/slots?service_id=&date=&duration=
func getSlotsHandler(engine *scheduling.Engine, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, err := pathInt64(r, "staffID")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		serviceID, err := queryInt64(r, "service_id", 0)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		duration, err := queryInt(r, "duration", engine.Config().DefaultDurationMinutes)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "date is required (YYYY-MM-DD)")
			return
		}

		slots, err := engine.GetAvailableSlots(r.Context(), staffID, serviceID, date, duration)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if m != nil {
			m.ObserveSlots(len(slots))
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			Date:            date,
			StaffID:         staffID,
			ServiceID:       serviceID,
			DurationMinutes: duration,
			Slots:           slots,
		})
	}
}

// getSlotRangeHandler serves GET /staff/{staffID}/slots/range?service_id=&from=&to=&duration=&include_appointment_only=
func getSlotRangeHandler(engine *scheduling.Engine, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, err := pathInt64(r, "staffID")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		serviceID, err := queryInt64(r, "service_id", 0)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		duration, err := queryInt(r, "duration", engine.Config().DefaultDurationMinutes)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		includeAppt, err := queryBool(r, "include_appointment_only")
		if err != nil {
			writeDomainError(w, err)
			return
		}

		q := r.URL.Query()
		from, err := scheduling.ParseDate(q.Get("from"), engine.Location())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		to := from
		if q.Get("to") != "" {
			if to, err = scheduling.ParseDate(q.Get("to"), engine.Location()); err != nil {
				writeDomainError(w, err)
				return
			}
		}

		slots, err := engine.AvailableSlots(r.Context(), scheduling.SlotQuery{
			StaffID:                staffID,
			ServiceID:              serviceID,
			From:                   from,
			To:                     to,
			DurationMinutes:        duration,
			IncludeAppointmentOnly: includeAppt,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if m != nil {
			m.ObserveSlots(len(slots))
		}

		resp := SlotRangeResponse{
			From:            from.Format(scheduling.DateFormat),
			To:              to.Format(scheduling.DateFormat),
			StaffID:         staffID,
			ServiceID:       serviceID,
			DurationMinutes: duration,
			Slots:           make([]SlotResponse, len(slots)),
		}
		for i, s := range slots {
			resp.Slots[i] = SlotResponse{
				Start:           s.StartTime,
				End:             s.EndTime,
				AppointmentOnly: s.AppointmentOnly,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// checkAvailabilityHandler serves GET /staff/{staffID}/availability?start=&duration=&exclude_booking_id=
func checkAvailabilityHandler(engine *scheduling.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, err := pathInt64(r, "staffID")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		duration, err := queryInt(r, "duration", engine.Config().DefaultDurationMinutes)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		exclude, err := queryInt64(r, "exclude_booking_id", 0)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		start := r.URL.Query().Get("start")
		ok, err := engine.IsSlotAvailable(r.Context(), staffID, start, duration, exclude)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			StaffID:         staffID,
			Start:           start,
			DurationMinutes: duration,
			Available:       ok,
		})
	}
}

// validateBookingHandler serves POST /bookings/validate. A conflict is a 200 with valid=false.
func validateBookingHandler(engine *scheduling.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateBookingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, err)
			return
		}

		res, err := engine.ValidateBookingRequest(r.Context(), req.BookingID, req.ServiceID, req.StaffID, req.Start)
		if err != nil {
			status, _ := errorStatus(err)
			if status >= http.StatusInternalServerError {
				logger.Error("validate booking failed", zap.Int64("booking_id", req.BookingID), zap.Error(err))
			}
			writeJSON(w, status, ValidationResponse{Valid: false, Message: res.Message})
			return
		}

		writeJSON(w, http.StatusOK, ValidationResponse{Valid: res.Valid, Message: res.Message})
	}
}
