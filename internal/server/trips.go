package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beetlebot/skitrip-cli/internal/core"
)

// tripParams is the query-string form of core.Query.
type tripParams struct {
	Region   string `form:"region"`
	Zip      string `form:"zip"`
	Guests   int    `form:"guests"`
	CheckIn  string `form:"checkin"`
	CheckOut string `form:"checkout"`
	Sort     string `form:"sort"`
	Dir      string `form:"dir"`
	Small    bool   `form:"small"`
}

func (p tripParams) query() core.Query {
	return core.Query{
		Region:       p.Region,
		OriginZip:    p.Zip,
		Guests:       p.Guests,
		CheckIn:      p.CheckIn,
		CheckOut:     p.CheckOut,
		Sort:         core.SortKey(p.Sort),
		Direction:    core.SortDirection(p.Dir),
		IncludeSmall: p.Small,
	}
}

// searchTrips runs one query to completion and returns the final View.
// An empty body searches with every default.
func (s *Server) searchTrips(c *gin.Context) {
	var q core.Query
	if err := c.ShouldBindJSON(&q); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.searchTimeout)
	defer cancel()

	engine, stop := s.startEngine(ctx, false)
	defer stop()

	if _, err := engine.Submit(ctx, q); err != nil {
		writeSubmitError(c, err)
		return
	}
	v, err := engine.WaitFor(ctx, func(v core.View) bool { return v.Settled })
	if err != nil {
		writeEngineError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

// streamTrips sends every View of a paced search as a server-sent event
// until the search settles or the client goes away.
func (s *Server) streamTrips(c *gin.Context) {
	var p tripParams
	if err := c.ShouldBindQuery(&p); err != nil {
		writeError(c, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.searchTimeout)
	defer cancel()

	engine, stop := s.startEngine(ctx, true)
	defer stop()

	epoch, err := engine.Submit(ctx, p.query())
	if err != nil {
		writeSubmitError(c, err)
		return
	}
	views, unsubscribe, err := engine.Subscribe(ctx)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	defer unsubscribe()

	sent := 0
	clientGone := c.Stream(func(w io.Writer) bool {
		select {
		case v, ok := <-views:
			if !ok {
				return false
			}
			c.SSEvent("view", v)
			sent++
			return !v.Settled
		case <-ctx.Done():
			return false
		}
	})
	slog.Debug("trip stream finished", "epoch", epoch, "events", sent, "client_gone", clientGone)
}

type resortList struct {
	Region  string        `json:"region"`
	Regions []string      `json:"regions"`
	Resorts []core.Resort `json:"resorts"`
}

func (s *Server) listResorts(c *gin.Context) {
	region := c.DefaultQuery("region", core.AllRegions)
	resorts := s.catalog.Resorts(region)
	if resorts == nil {
		resorts = []core.Resort{}
	}
	writeJSON(c, http.StatusOK, resortList{
		Region:  region,
		Regions: s.catalog.Regions(),
		Resorts: resorts,
	})
}

func (s *Server) listProviders(c *gin.Context) {
	infos := s.providers()
	if infos == nil {
		infos = []core.ProviderInfo{}
	}
	writeJSON(c, http.StatusOK, infos)
}
