/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-throttledbucket/bucket"
	"github.com/acronis/go-throttledbucket/log"
	"github.com/acronis/go-throttledbucket/redelivery"
)

type admitResponse struct {
	Item     string `json:"item"`
	Admitted bool   `json:"admitted"`
}

type deferredItemResponse struct {
	ID          string    `json:"id"`
	Item        string    `json:"item"`
	DeferredAt  time.Time `json:"deferredAt"`
	ReleaseTime time.Time `json:"releaseTime"`
}

type statsResponse struct {
	MaxRate     int              `json:"maxRate"`
	Window      string           `json:"window"`
	Remaining   int              `json:"remaining"`
	WindowStart time.Time        `json:"windowStart"`
	Held        int              `json:"held"`
	Redelivery  redelivery.Stats `json:"redelivery"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statsProvider interface {
	Stats() redelivery.Stats
}

func newRouter(b *bucket.Bucket[string], redeliveryStats statsProvider, logger log.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/admit", func(rw http.ResponseWriter, req *http.Request) {
		item := req.URL.Query().Get("item")
		if item == "" {
			respondJSON(rw, http.StatusBadRequest, errorResponse{Error: `query parameter "item" is required`}, logger)
			return
		}
		if b.TryAdmit(item) {
			respondJSON(rw, http.StatusOK, admitResponse{Item: item, Admitted: true}, logger)
			return
		}
		respondJSON(rw, http.StatusAccepted, admitResponse{Item: item, Admitted: false}, logger)
	})
	r.Get("/deferred", func(rw http.ResponseWriter, req *http.Request) {
		items := b.Deferred()
		resp := make([]deferredItemResponse, 0, len(items))
		for _, item := range items {
			resp = append(resp, deferredItemResponse{
				ID: item.ID, Item: item.Payload, DeferredAt: item.DeferredAt, ReleaseTime: item.ReleaseTime,
			})
		}
		respondJSON(rw, http.StatusOK, resp, logger)
	})
	r.Get("/stats", func(rw http.ResponseWriter, req *http.Request) {
		st := b.Stats()
		respondJSON(rw, http.StatusOK, statsResponse{
			MaxRate:     st.MaxRate,
			Window:      st.Window.String(),
			Remaining:   st.Remaining,
			WindowStart: st.WindowStart,
			Held:        st.Held,
			Redelivery:  redeliveryStats.Stats(),
		}, logger)
	})
	return r
}

func respondJSON(rw http.ResponseWriter, status int, data interface{}, logger log.FieldLogger) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(data); err != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}
