package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/tradereplay/configs"
	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/events"
	"github.com/navid-fn/tradereplay/internal/handler"
	"github.com/navid-fn/tradereplay/internal/logging"
	"github.com/navid-fn/tradereplay/internal/models"
	"github.com/navid-fn/tradereplay/internal/replay"
	"github.com/navid-fn/tradereplay/internal/repository"
	"github.com/navid-fn/tradereplay/internal/router"
	"github.com/navid-fn/tradereplay/internal/service"
)

var entryAt = time.Date(2024, 11, 4, 8, 6, 0, 0, time.UTC)

type stubReplay struct {
	bars []models.Bar
}

func (s *stubReplay) Prepare(_ context.Context, date time.Time, windowKey string, tfs []models.Timeframe) (replay.Replay, error) {
	frames := map[models.Timeframe]replay.Frame{}
	for _, tf := range tfs {
		frames[tf] = replay.Frame{Timeframe: tf, Bars: s.bars}
	}
	return replay.Replay{Date: date.Format(calendar.DateLayout), TimeWindow: windowKey, Frames: frames}, nil
}

func (s *stubReplay) Slice(_ context.Context, date time.Time, windowKey string, tf models.Timeframe, limit int) (replay.Slice, error) {
	sl := replay.Slice{Date: date.Format(calendar.DateLayout), TimeWindow: windowKey, Timeframe: tf, Bars: s.bars, Total: len(s.bars)}
	return sl.Reveal(limit), nil
}

func newTestRouter(t *testing.T, rp *stubReplay) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	trading := configs.DefaultTrading()
	logger := logging.Discard()
	cal, err := calendar.NewFromConfig(trading, logger)
	require.NoError(t, err)

	svc := service.New(repository.NewMemoryRepository(), cal, rp, events.Noop{}, service.NewConfig(trading), logger)
	streamer := replay.NewStreamer(replay.StreamConfig{Initial: 1, Interval: time.Millisecond, Speeds: trading.ReplaySpeeds}, logger)

	return router.NewRouter(&router.Config{
		MarketHandler:  handler.NewMarketHandler(svc, streamer, logger),
		SessionHandler: handler.NewSessionHandler(svc),
		TradeHandler:   handler.NewTradeHandler(svc),
		Logger:         logger,
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestHealthAndWindows(t *testing.T) {
	r := newTestRouter(t, &stubReplay{})

	code, body := do(t, r, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = do(t, r, http.MethodGet, "/v1/time-windows", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["time_windows"], 4)
}

func TestAvailableDates(t *testing.T) {
	r := newTestRouter(t, &stubReplay{})

	code, body := do(t, r, http.MethodGet, "/v1/available-dates?start_date=2024-11-04&end_date=2024-11-10&time_window=morning_1", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["count"])

	code, _ = do(t, r, http.MethodGet, "/v1/available-dates?start_date=2024-11-04", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, http.MethodGet, "/v1/available-dates?start_date=2024-11-04&end_date=2024-11-10&time_window=lunch", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestCandles(t *testing.T) {
	rp := &stubReplay{bars: []models.Bar{
		{Timestamp: entryAt, Timeframe: models.TF3m, Open: 1, High: 2, Low: 1, Close: 2},
		{Timestamp: entryAt.Add(3 * time.Minute), Timeframe: models.TF3m, Open: 2, High: 3, Low: 2, Close: 3},
	}}
	r := newTestRouter(t, rp)

	code, body := do(t, r, http.MethodGet, "/v1/candles?date=2024-11-04&time_window=morning_1&timeframe=3m&limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["candles"], 1)
	assert.EqualValues(t, 2, body["total_candles"])

	code, _ = do(t, r, http.MethodGet, "/v1/candles?date=2024-11-04&time_window=morning_1&limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodGet, "/v1/candles?date=2024-11-04&time_window=morning_1&timeframe=2m", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSessionLifecycle(t *testing.T) {
	r := newTestRouter(t, &stubReplay{})

	code, _ := do(t, r, http.MethodPost, "/v1/session/start", map[string]any{"time_window": "morning_1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, r, http.MethodPost, "/v1/session/start", map[string]any{
		"dates":       []string{"2024-11-04", "2024-11-08"},
		"time_window": "morning_1",
	})
	require.Equal(t, http.StatusCreated, code)
	session := body["session"].(map[string]any)
	id := session["id"].(string)
	assert.EqualValues(t, 2, session["total_dates"])

	code, body = do(t, r, http.MethodPost, "/v1/session/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["session_completed"])

	code, body = do(t, r, http.MethodPost, "/v1/session/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["session_completed"])

	code, _ = do(t, r, http.MethodPost, "/v1/session/"+id+"/next", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, r, http.MethodDelete, "/v1/session/"+id, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, r, http.MethodGet, "/v1/session/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTradeFlow(t *testing.T) {
	rp := &stubReplay{}
	r := newTestRouter(t, rp)

	_, body := do(t, r, http.MethodPost, "/v1/session/start", map[string]any{
		"dates":       []string{"2024-11-04"},
		"time_window": "morning_1",
	})
	id := body["session"].(map[string]any)["id"].(string)

	code, body := do(t, r, http.MethodPost, "/v1/trade/enter", map[string]any{
		"session_id":  id,
		"timestamp":   entryAt,
		"direction":   "short",
		"entry_price": 100.0,
		"is_a_grade":  true,
	})
	require.Equal(t, http.StatusCreated, code)
	trade := body["trade"].(map[string]any)
	tradeID := trade["id"].(string)
	assert.EqualValues(t, 118, trade["stop_loss"])
	assert.EqualValues(t, 46, trade["take_profit"])

	code, body = do(t, r, http.MethodGet, "/v1/trade/"+tradeID+"/outcome", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["resolved"])
	assert.Equal(t, false, body["already_resolved"])

	rp.bars = []models.Bar{
		{Timestamp: entryAt.Add(3 * time.Minute), Timeframe: models.TF3m, Open: 100, High: 101, Low: 45, Close: 50},
	}
	code, body = do(t, r, http.MethodGet, "/v1/trade/"+tradeID+"/outcome?date=2024-11-04", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["resolved"])
	assert.Equal(t, false, body["already_resolved"])
	assert.Equal(t, "win", body["trade"].(map[string]any)["outcome"])

	// a repeated lookup reports the stored result
	code, body = do(t, r, http.MethodGet, "/v1/trade/"+tradeID+"/outcome", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["resolved"])
	assert.Equal(t, true, body["already_resolved"])
	assert.Equal(t, "win", body["trade"].(map[string]any)["outcome"])

	code, _ = do(t, r, http.MethodPost, "/v1/trade/"+tradeID+"/scratch", map[string]any{
		"timestamp":  entryAt.Add(10 * time.Minute),
		"exit_price": 99.0,
	})
	assert.Equal(t, http.StatusConflict, code)

	code, body = do(t, r, http.MethodGet, "/v1/session/"+id+"/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, body["stats"])

	code, body = do(t, r, http.MethodGet, "/v1/session/"+id+"/trades", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, _ = do(t, r, http.MethodPost, "/v1/trade/enter", map[string]any{
		"session_id":  id,
		"timestamp":   entryAt,
		"direction":   "sideways",
		"entry_price": 100.0,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodGet, "/v1/trade/missing/outcome", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
