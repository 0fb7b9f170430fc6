package handler

import (
	"net/http"
)

type analyticsResponse struct {
	Users         int64               `json:"users"`
	Products      int64               `json:"products"`
	Orders        int64               `json:"orders"`
	Revenue       float64             `json:"revenue"`
	AvgOrderValue float64             `json:"avgOrderValue"`
	Daily         []dailyStatResponse `json:"daily"`
}

type dailyStatResponse struct {
	Date    string  `json:"date"`
	Orders  int64   `json:"orders"`
	Revenue float64 `json:"revenue"`
}

func (h *Handler) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Analytics.Summary(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	daily := make([]dailyStatResponse, len(sum.Daily))
	for i, d := range sum.Daily {
		daily[i] = dailyStatResponse{
			Date:    d.Date,
			Orders:  d.Orders,
			Revenue: d.Revenue.InexactFloat64(),
		}
	}
	writeJSON(w, http.StatusOK, analyticsResponse{
		Users:         sum.Users,
		Products:      sum.Products,
		Orders:        sum.Orders,
		Revenue:       sum.Revenue.InexactFloat64(),
		AvgOrderValue: sum.AvgOrderValue.InexactFloat64(),
		Daily:         daily,
	})
}
