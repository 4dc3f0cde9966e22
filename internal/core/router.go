package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beetlebot/skitrip-cli/internal/config"
)

type Router struct {
	cfg             *config.Config
	lodgingAdapters []LodgingAdapter
}

func NewRouter(cfg *config.Config) *Router {
	return &Router{cfg: cfg}
}

func (r *Router) RegisterLodging(a LodgingAdapter) {
	r.lodgingAdapters = append(r.lodgingAdapters, a)
}

// ActiveLodgingAdapters returns the adapters allowed by the current mode,
// lowest configured priority first.
func (r *Router) ActiveLodgingAdapters() []LodgingAdapter {
	var out []LodgingAdapter
	for _, a := range r.lodgingAdapters {
		if r.shouldUse(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return r.priority(out[i].Name()) < r.priority(out[j].Name())
	})
	return out
}

// Lodging returns the adapter the engine should price with.
func (r *Router) Lodging() (LodgingAdapter, error) {
	active := r.ActiveLodgingAdapters()
	if len(active) == 0 {
		return nil, fmt.Errorf("no active lodging providers for mode %s", r.cfg.Mode)
	}
	return active[0], nil
}

func (r *Router) shouldUse(a LodgingAdapter) bool {
	name := a.Name()
	if pc, ok := r.cfg.Providers[name]; ok && !pc.Enabled {
		return false
	}
	switch r.cfg.Mode {
	case config.ModeMock:
		return isMockProvider(name)
	case config.ModeLive:
		return !isMockProvider(name)
	case config.ModeHybrid:
		if !isMockProvider(name) {
			avail, _ := a.Available()
			return avail
		}
		return r.noLiveAlternative()
	}
	return false
}

func (r *Router) noLiveAlternative() bool {
	for _, a := range r.lodgingAdapters {
		if isMockProvider(a.Name()) {
			continue
		}
		if pc, ok := r.cfg.Providers[a.Name()]; ok && !pc.Enabled {
			continue
		}
		if avail, _ := a.Available(); avail {
			return false
		}
	}
	return true
}

func (r *Router) priority(name string) int {
	if pc, ok := r.cfg.Providers[name]; ok {
		return pc.Priority
	}
	return 1000
}

func isMockProvider(name string) bool {
	return strings.HasPrefix(name, "mock_")
}

func (r *Router) ProviderInfos() []ProviderInfo {
	var infos []ProviderInfo

	for _, a := range r.lodgingAdapters {
		info := ProviderInfo{
			Name:         a.Name(),
			Capabilities: a.Capabilities(),
			Tier:         a.Tier(),
		}
		if avail, reason := a.Available(); !avail {
			info.Status = "unavailable"
			info.Reason = reason
		} else {
			info.Status = "active"
		}
		if pc, ok := r.cfg.Providers[a.Name()]; ok && !pc.Enabled {
			info.Status = "disabled"
			info.Reason = "disabled in config"
		} else if info.Status == "active" && !r.shouldUse(a) {
			info.Status = "inactive"
			info.Reason = fmt.Sprintf("mode is %s", r.cfg.Mode)
		}
		infos = append(infos, info)
	}

	return infos
}
