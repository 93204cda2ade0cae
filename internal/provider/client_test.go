package provider

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func discardLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}

func TestStationsByNameDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stationinfo/getStationByName" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("serviceKey") != "key-1" {
			t.Errorf("missing service key, got %q", r.URL.Query().Get("serviceKey"))
		}
		if r.URL.Query().Get("stSrch") != "강남" {
			t.Errorf("unexpected search term %q", r.URL.Query().Get("stSrch"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"comMsgHeader": {"responseTime": "20260901120000"},
			"msgHeader": {"headerMsg": "정상", "headerCd": "0", "itemCount": 1},
			"msgBody": {"itemList": [
				{"stId": "23001", "stNm": "강남구청", "posX": "127.0473", "posY": "37.5172", "direction": "시청방향"}
			]}
		}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "key-1", time.Second, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	stations := client.StationsByName(context.Background(), "강남")
	if len(stations) != 1 {
		t.Fatalf("got %d stations, want 1", len(stations))
	}
	if stations[0].StID != "23001" || stations[0].PosY != "37.5172" {
		t.Errorf("unexpected station %+v", stations[0])
	}
}

func TestFetchReturnsEmptyOnMissingBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"msgHeader": {"headerCd": "4", "headerMsg": "결과 없음"}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "key-1", time.Second, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if positions := client.PositionsByRoute(context.Background(), "472"); len(positions) != 0 {
		t.Errorf("got %d positions, want 0", len(positions))
	}
}

func TestFetchReturnsEmptyOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "key-1", time.Second, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if arrivals := client.ArrivalsByStation(context.Background(), "23001"); len(arrivals) != 0 {
		t.Errorf("got %d arrivals, want 0", len(arrivals))
	}
}

func TestFetchReturnsEmptyOnGarbageBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "key-1", time.Second, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if stations := client.StationsByName(context.Background(), "시청"); len(stations) != 0 {
		t.Errorf("got %d stations, want 0", len(stations))
	}
}

func TestHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"msgHeader": {"headerCd": "0"}, "msgBody": {"itemList": []}}`))
	}))

	client, err := NewClient(server.URL, "key-1", time.Second, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if !client.Healthy(context.Background()) {
		t.Error("Healthy = false against a working upstream")
	}

	// Dead listener: the probe must report false without escaping.
	server.Close()
	if client.Healthy(context.Background()) {
		t.Error("Healthy = true against a closed upstream")
	}
}

func TestHealthyFalseOnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "key-1", 20*time.Millisecond, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if client.Healthy(context.Background()) {
		t.Error("Healthy = true despite timeout")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "key", time.Second, nil); err == nil {
		t.Error("expected error for empty base url")
	}
	if _, err := NewClient("http://example.com", "", time.Second, nil); err == nil {
		t.Error("expected error for empty service key")
	}
}
