package http

import (
	"strings"

	"triage_server/core/domain"
	"triage_server/core/service/triage"
	"triage_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

const statusAll = "all"

// QueryBool parses a boolean query parameter (returns nil if not present)
func QueryBool(c *fiber.Ctx, key string) *bool {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	b := val == "true" || val == "1"
	return &b
}

func isAsync(c *fiber.Ctx) bool {
	async := QueryBool(c, "async")
	return async != nil && *async
}

// listFilterFromQuery reads status, limit and sort. Status defaults to pending; "all" lists everything.
func listFilterFromQuery(c *fiber.Ctx) (*domain.ListFilter, error) {
	filter := &domain.ListFilter{
		Limit: c.QueryInt("limit", triage.DefaultListLimit),
		Sort:  domain.SortPriorityDesc,
	}

	status := strings.ToLower(c.Query("status", string(domain.StatusPending)))
	if status != statusAll {
		st, err := domain.ParseStatus(status)
		if err != nil {
			return nil, apperr.InvalidInput("status", err.Error()).
				WithDetail("allowed", []string{string(domain.StatusPending), string(domain.StatusEscalated), string(domain.StatusResolved), statusAll})
		}
		filter.Status = &st
	}

	switch sort := domain.ListSort(c.Query("sort", string(domain.SortPriorityDesc))); sort {
	case domain.SortPriorityDesc, domain.SortDateDesc:
		filter.Sort = sort
	default:
		return nil, apperr.InvalidInput("sort", "must be priority_desc or date_desc").
			WithDetail("allowed", []string{string(domain.SortPriorityDesc), string(domain.SortDateDesc)})
	}

	return filter, nil
}
