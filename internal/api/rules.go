package api

import (
	"net/http"
	"time"

	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

func listRulesHandler(svc *scheduling.RuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, err := pathInt64(r, "staffID")
		if err != nil {
			writeDomainError(w, err)
			return
		}

		rules, err := svc.List(r.Context(), staffID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]RuleResponse, len(rules))
		for i := range rules {
			resp[i] = toRuleResponse(&rules[i])
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// upsertRuleHandler serves PUT /staff/{staffID}/rules. A body without id creates a rule.
func upsertRuleHandler(svc *scheduling.RuleService, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, err := pathInt64(r, "staffID")
		if err != nil {
			writeDomainError(w, err)
			return
		}

		var req RuleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, err)
			return
		}

		rule, err := req.toRule(staffID, loc)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		created := rule.ID == 0
		if err := svc.Upsert(r.Context(), rule); err != nil {
			writeDomainError(w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, toRuleResponse(rule))
	}
}

func deleteRuleHandler(svc *scheduling.RuleService) http.HandlerFunc {
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
