package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLodgingPrice_JSON(t *testing.T) {
	tests := []struct {
		price LodgingPrice
		want  string
	}{
		{UnknownPrice(), `"unknown"`},
		{UnavailablePrice(), `null`},
		{ResolvedPrice(412.5), `412.5`},
		{LodgingPrice{}, `"unknown"`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.price)
		if err != nil {
			t.Fatalf("marshal %+v: %v", tt.price, err)
		}
		if string(data) != tt.want {
			t.Errorf("marshal %+v = %s, want %s", tt.price, data, tt.want)
		}
	}
}

func TestLodgingPrice_UnmarshalJSON(t *testing.T) {
	var pr PricedResort
	if err := json.Unmarshal([]byte(`{"name":"Vail","lodging":640}`), &pr); err != nil {
		t.Fatal(err)
	}
	if v, ok := pr.Lodging.Value(); !ok || v != 640 {
		t.Errorf("lodging = %+v", pr.Lodging)
	}
	if err := json.Unmarshal([]byte(`{"lodging":null}`), &pr); err != nil {
		t.Fatal(err)
	}
	if pr.Lodging.Status != PriceUnavailable {
		t.Errorf("null should decode as unavailable, got %s", pr.Lodging.Status)
	}
	if err := json.Unmarshal([]byte(`{"lodging":"unknown"}`), &pr); err != nil {
		t.Fatal(err)
	}
	if pr.Lodging.Status != PriceUnknown {
		t.Errorf("string should decode as unknown, got %s", pr.Lodging.Status)
	}
}

func TestFetchState_Text(t *testing.T) {
	data, _ := json.Marshal(map[string]FetchState{"a": InFlight})
	if string(data) != `{"a":"in_flight"}` {
		t.Errorf("marshal = %s", data)
	}
	var s FetchState
	if err := s.UnmarshalText([]byte("failed")); err != nil || s != Failed {
		t.Errorf("unmarshal failed = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestQuery_WithDefaults(t *testing.T) {
	now := time.Date(2026, 1, 10, 15, 0, 0, 0, time.UTC)
	q := Query{}.WithDefaults(now)
	if q.Region != AllRegions || q.OriginZip != DefaultOriginZip || q.Guests != DefaultGuests {
		t.Errorf("unexpected defaults: %+v", q)
	}
	if q.CheckIn != "2026-01-10" || q.CheckOut != "2026-01-13" {
		t.Errorf("dates = %s..%s", q.CheckIn, q.CheckOut)
	}
	if q.Sort != SortRelevant || q.Direction != Asc {
		t.Errorf("sort = %s %s", q.Sort, q.Direction)
	}
	if err := q.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestQuery_Validate(t *testing.T) {
	base := Query{}.WithDefaults(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))

	bad := base
	bad.CheckOut = "2026-01-01"
	if bad.Validate() == nil {
		t.Error("check-out before check-in should fail")
	}

	bad = base
	bad.CheckIn = "10/01/2026"
	if bad.Validate() == nil {
		t.Error("malformed date should fail")
	}

	bad = base
	bad.Sort = "altitude"
	if bad.Validate() == nil {
		t.Error("unknown sort should fail")
	}
}
