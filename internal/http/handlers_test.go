package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redismock/v9"
	redisadapter "github.com/robertarktes/seat-reservation-service/internal/adapters/redis"
	"github.com/robertarktes/seat-reservation-service/internal/config"
	httphandler "github.com/robertarktes/seat-reservation-service/internal/http"
	"github.com/robertarktes/seat-reservation-service/internal/idempotency"
	"github.com/robertarktes/seat-reservation-service/internal/observability"
	"github.com/robertarktes/seat-reservation-service/internal/registry"
)

func newTestServer(t *testing.T, ttl time.Duration) *httptest.Server {
	t.Helper()
	return newTestServerWithIdemp(t, ttl, idempotency.NewIdempotency(nil, 0))
}

func newTestServerWithIdemp(t *testing.T, ttl time.Duration, idemp *idempotency.Idempotency) *httptest.Server {
	t.Helper()
	cfg := &config.Config{SeatRows: 2, SeatsPerRow: 3, LockTTL: ttl}
	reg := registry.New(cfg.SeatRows, cfg.SeatsPerRow, cfg.LockTTL)
	logger := observability.NewLogger()
	handlers := httphandler.NewHandlers(cfg, reg, idemp, nil, logger, nil)
	srv := httptest.NewServer(httphandler.SetupRouter(handlers, logger, nil))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string, body map[string]interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp, decodeBody(t, resp)
}

func postWithKey(t *testing.T, url, key string, body map[string]interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp, decodeBody(t, resp)
}

func get(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		// Error responses are plain text; surface them under a fixed key.
		return map[string]interface{}{"_text": string(raw)}
	}
	return out
}

func lockSeat(t *testing.T, srv *httptest.Server, seatID, actorID string) {
	t.Helper()
	resp, _ := post(t, srv.URL+"/v1/seats/"+seatID+"/lock", map[string]interface{}{"actor_id": actorID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("lock %s by %s: expected 201, got %d", seatID, actorID, resp.StatusCode)
	}
}

func TestLockSeat(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp, body := post(t, srv.URL+"/v1/seats/A1/lock", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["status"] != "LOCKED" || body["holder"] != "u1" || body["extended"] != false {
		t.Errorf("unexpected body: %v", body)
	}
	if rem, ok := body["remaining_seconds"].(float64); !ok || rem <= 0 || rem > 60 {
		t.Errorf("expected remaining_seconds in (0,60], got %v", body["remaining_seconds"])
	}

	// Same actor again extends.
	resp, body = post(t, srv.URL+"/v1/seats/A1/lock", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on extend, got %d", resp.StatusCode)
	}
	if body["extended"] != true {
		t.Errorf("expected extended=true, got %v", body["extended"])
	}

	// Different actor is rejected with the remaining time in the detail.
	resp, body = post(t, srv.URL+"/v1/seats/A1/lock", map[string]interface{}{"actor_id": "u2"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if text, _ := body["_text"].(string); !strings.Contains(text, "retry in") {
		t.Errorf("expected retry detail in conflict body, got %q", text)
	}
}

func TestLockSeat_BadRequests(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp, _ := post(t, srv.URL+"/v1/seats/A1/lock", map[string]interface{}{"actor_id": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty actor: expected 400, got %d", resp.StatusCode)
	}

	raw, err := http.Post(srv.URL+"/v1/seats/A1/lock", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", raw.StatusCode)
	}

	resp, _ = post(t, srv.URL+"/v1/seats/Z9/lock", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown seat: expected 404, got %d", resp.StatusCode)
	}
}

func TestLockSeat_IdempotentReplay(t *testing.T) {
	db, mock := redismock.NewClientMock()
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(db), time.Hour)
	srv := newTestServerWithIdemp(t, time.Minute, idemp)

	stored, _ := json.Marshal(redisadapter.IdempResponse{
		Status: http.StatusCreated,
		Result: []byte(`{"id":"A1","status":"LOCKED","holder":"u1","extended":false}`),
	})
	mock.ExpectGet("seatres:idemp:lock-a1").SetVal(string(stored))

	// A different actor repeating the key gets the stored response back.
	resp, body := postWithKey(t, srv.URL+"/v1/seats/A1/lock", "lock-a1", map[string]interface{}{"actor_id": "u2"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", resp.StatusCode)
	}
	if body["holder"] != "u1" {
		t.Errorf("expected stored response body, got %v", body)
	}

	// The replay short-circuits before the lock is taken: A1 is untouched.
	_, seat := get(t, srv.URL+"/v1/seats/A1")
	if seat["status"] != "AVAILABLE" {
		t.Errorf("expected A1 untouched on replay, got %v", seat["status"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLockSeat_StoresIdempotentResponse(t *testing.T) {
	db, mock := redismock.NewClientMock()
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(db), time.Hour)
	srv := newTestServerWithIdemp(t, time.Minute, idemp)

	mock.ExpectGet("seatres:idemp:lock-b1").RedisNil()
	mock.Regexp().ExpectSet("seatres:idemp:lock-b1", `.*`, time.Hour).SetVal("OK")

	resp, body := postWithKey(t, srv.URL+"/v1/seats/B1/lock", "lock-b1", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["holder"] != "u1" {
		t.Errorf("unexpected body: %v", body)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLockSeat_IdempotentStoreFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(db), time.Hour)
	srv := newTestServerWithIdemp(t, time.Minute, idemp)

	mock.ExpectGet("seatres:idemp:lock-a2").RedisNil()
	mock.Regexp().ExpectSet("seatres:idemp:lock-a2", `.*`, time.Hour).SetErr(errors.New("redis down"))

	// A failed store is logged, not surfaced: the lock itself succeeded.
	resp, _ := postWithKey(t, srv.URL+"/v1/seats/A2/lock", "lock-a2", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 despite store failure, got %d", resp.StatusCode)
	}

	_, seat := get(t, srv.URL+"/v1/seats/A2")
	if seat["status"] != "LOCKED" || seat["holder"] != "u1" {
		t.Errorf("expected lock to stand, got %v", seat)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestConfirmSeat_IdempotentReplay(t *testing.T) {
	db, mock := redismock.NewClientMock()
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(db), time.Hour)
	srv := newTestServerWithIdemp(t, time.Minute, idemp)

	// No Idempotency-Key on this lock, so it does not touch redis.
	lockSeat(t, srv, "A1", "u1")

	stored, _ := json.Marshal(redisadapter.IdempResponse{
		Status: http.StatusCreated,
		Result: []byte(`{"booking_id":"11111111-1111-1111-1111-111111111111","seat_id":"A1","actor_id":"u1"}`),
	})
	mock.ExpectGet("seatres:idemp:confirm-a1").SetVal(string(stored))

	resp, body := postWithKey(t, srv.URL+"/v1/seats/A1/confirm", "confirm-a1", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", resp.StatusCode)
	}
	if body["booking_id"] != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("expected stored booking replayed, got %v", body)
	}

	// The replay never reached the confirm: the seat is still LOCKED.
	_, seat := get(t, srv.URL+"/v1/seats/A1")
	if seat["status"] != "LOCKED" {
		t.Errorf("expected A1 still locked after replay, got %v", seat["status"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetSeat(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp, body := get(t, srv.URL+"/v1/seats/B2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["id"] != "B2" || body["status"] != "AVAILABLE" || body["row"] != "B" {
		t.Errorf("unexpected body: %v", body)
	}
	if _, present := body["holder"]; present {
		t.Error("available seat must not report a holder")
	}

	resp, _ = get(t, srv.URL+"/v1/seats/Q1")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestConfirmSeat(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	// Confirm without a lock is a precondition failure, never a booking.
	resp, _ := post(t, srv.URL+"/v1/seats/A1/confirm", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", resp.StatusCode)
	}

	lockSeat(t, srv, "A1", "u1")

	resp, _ = post(t, srv.URL+"/v1/seats/A1/confirm", map[string]interface{}{"actor_id": "u2"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("confirm by non-holder: expected 403, got %d", resp.StatusCode)
	}

	resp, body := post(t, srv.URL+"/v1/seats/A1/confirm", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["seat_id"] != "A1" || body["actor_id"] != "u1" {
		t.Errorf("unexpected booking: %v", body)
	}
	if body["booking_id"] == "" || body["booked_at"] == "" {
		t.Errorf("booking record incomplete: %v", body)
	}

	resp, _ = post(t, srv.URL+"/v1/seats/A1/confirm", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("re-confirm: expected 409, got %d", resp.StatusCode)
	}
}

func TestReleaseSeat(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp, _ := post(t, srv.URL+"/v1/seats/A1/release", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("release of unlocked seat: expected 412, got %d", resp.StatusCode)
	}

	lockSeat(t, srv, "A1", "u1")

	resp, _ = post(t, srv.URL+"/v1/seats/A1/release", map[string]interface{}{"actor_id": "u2"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("release by non-holder: expected 403, got %d", resp.StatusCode)
	}

	resp, body := post(t, srv.URL+"/v1/seats/A1/release", map[string]interface{}{"actor_id": "u1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["released"] != true {
		t.Errorf("expected release ack, got %v", body)
	}

	_, seat := get(t, srv.URL+"/v1/seats/A1")
	if seat["status"] != "AVAILABLE" {
		t.Errorf("expected AVAILABLE after release, got %v", seat["status"])
	}
}

func TestListSeats(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	lockSeat(t, srv, "A1", "u1")
	lockSeat(t, srv, "B1", "u2")
	if resp, _ := post(t, srv.URL+"/v1/seats/B1/confirm", map[string]interface{}{"actor_id": "u2"}); resp.StatusCode != http.StatusCreated {
		t.Fatal("confirm failed")
	}

	resp, body := get(t, srv.URL+"/v1/seats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	counts := body["counts"].(map[string]interface{})
	if counts["total"] != float64(6) || counts["available"] != float64(4) ||
		counts["locked"] != float64(1) || counts["booked"] != float64(1) {
		t.Errorf("unexpected counts: %v", counts)
	}

	_, body = get(t, srv.URL+"/v1/seats?status=LOCKED")
	if seats := body["seats"].([]interface{}); len(seats) != 1 {
		t.Errorf("expected 1 locked seat, got %d", len(seats))
	}

	_, body = get(t, srv.URL+"/v1/seats?actor=u2")
	if seats := body["seats"].([]interface{}); len(seats) != 1 {
		t.Errorf("expected 1 seat for u2, got %d", len(seats))
	}

	resp, _ = get(t, srv.URL+"/v1/seats?status=bogus")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad status filter: expected 400, got %d", resp.StatusCode)
	}
}

func TestListBookings(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	lockSeat(t, srv, "A1", "u1")
	if resp, _ := post(t, srv.URL+"/v1/seats/A1/confirm", map[string]interface{}{"actor_id": "u1"}); resp.StatusCode != http.StatusCreated {
		t.Fatal("confirm failed")
	}

	_, body := get(t, srv.URL+"/v1/bookings")
	if bookings := body["bookings"].([]interface{}); len(bookings) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(bookings))
	}

	_, body = get(t, srv.URL+"/v1/bookings?actor=nobody")
	if bookings := body["bookings"].([]interface{}); len(bookings) != 0 {
		t.Errorf("expected no bookings for unknown actor, got %d", len(bookings))
	}
}

func TestReset(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	lockSeat(t, srv, "A1", "u1")
	lockSeat(t, srv, "B1", "u2")
	if resp, _ := post(t, srv.URL+"/v1/seats/B1/confirm", map[string]interface{}{"actor_id": "u2"}); resp.StatusCode != http.StatusCreated {
		t.Fatal("confirm failed")
	}

	resp, body := post(t, srv.URL+"/v1/admin/reset", nil)
	if resp.StatusCode != http.StatusOK || body["reset"] != true {
		t.Fatalf("expected reset ack, got %d %v", resp.StatusCode, body)
	}

	_, listBody := get(t, srv.URL+"/v1/seats")
	counts := listBody["counts"].(map[string]interface{})
	if counts["available"] != counts["total"] {
		t.Errorf("expected all seats available after reset, got %v", counts)
	}
	_, bookBody := get(t, srv.URL+"/v1/bookings")
	if bookings := bookBody["bookings"].([]interface{}); len(bookings) != 0 {
		t.Errorf("expected bookings cleared after reset, got %d", len(bookings))
	}
}

func TestLockExpiry(t *testing.T) {
	srv := newTestServer(t, 50*time.Millisecond)

	lockSeat(t, srv, "A1", "u1")
	time.Sleep(120 * time.Millisecond)

	_, body := get(t, srv.URL+"/v1/seats/A1")
	if body["status"] != "AVAILABLE" {
		t.Errorf("expected expired lock reported AVAILABLE, got %v", body["status"])
	}
	if _, present := body["holder"]; present {
		t.Error("expired lock must not report a holder")
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	for _, path := range []string{"/v1/healthz", "/v1/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
