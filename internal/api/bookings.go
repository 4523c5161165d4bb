package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hackgods/healing-scheduler/internal/metrics"
	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

func createBookingHandler(svc *scheduling.BookingService, loc *time.Location, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, err)
			return
		}

		start, err := scheduling.ParseDateTime(req.Start, loc)
		if err != nil {
			observeBooking(m, "create", err)
			writeDomainError(w, err)
			return
		}

		b, err := svc.Create(r.Context(), scheduling.NewBooking{
			StaffID:         req.StaffID,
			ServiceID:       req.ServiceID,
			CustomerID:      req.CustomerID,
			StartTime:       start,
			DurationMinutes: req.DurationMinutes,
			Status:          scheduling.BookingStatus(req.Status),
		})
		observeBooking(m, "create", err)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func getBookingHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt64(r, "id")
		if err != nil {
			writeDomainError(w, err)
			return
		}

		b, err := svc.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func rescheduleBookingHandler(svc *scheduling.BookingService, loc *time.Location, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt64(r, "id")
		if err != nil {
			writeDomainError(w, err)
			return
		}

		var req RescheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, err)
			return
		}

		start, err := scheduling.ParseDateTime(req.Start, loc)
		if err != nil {
			observeBooking(m, "reschedule", err)
			writeDomainError(w, err)
			return
		}

		b, err := svc.Reschedule(r.Context(), id, start, req.DurationMinutes)
		observeBooking(m, "reschedule", err)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func updateBookingStatusHandler(svc *scheduling.BookingService, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt64(r, "id")
		if err != nil {
			writeDomainError(w, err)
			return
		}

		var req UpdateStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, err)
			return
		}

		b, err := svc.UpdateStatus(r.Context(), id, scheduling.BookingStatus(req.Status))
		observeBooking(m, "update_status", err)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func deleteBookingHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt64(r, "id")
		if err != nil {
			writeDomainError(w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func observeBooking(m *metrics.Metrics, op string, err error) {
	if m == nil {
		return
	}
	m.ObserveBooking(op, bookingOutcome(err))
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, scheduling.ErrSlotConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, scheduling.ErrStaffBusy):
		return metrics.OutcomeBusy
	}
	if status, _ := errorStatus(err); status < http.StatusInternalServerError {
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}
