package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/arnold/achievements-api/internal/collection"
	"github.com/arnold/achievements-api/internal/config"
	"github.com/arnold/achievements-api/internal/database"
	"github.com/arnold/achievements-api/internal/handlers"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/arnold/achievements-api/internal/services"
	"github.com/arnold/achievements-api/internal/store"
	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	app   *fiber.App
	st    *store.Memory
	board *collection.Board
	dir   string
}

func newFixture(t *testing.T, uploader func(dir string) services.Uploader) *fixture {
	t.Helper()
	log := zap.NewNop()

	st := store.NewMemory()
	hub := handlers.NewHub(log, 500*time.Millisecond)
	board := collection.NewBoard(st, log, hub.Broadcast)
	require.NoError(t, board.Open(context.Background()))
	t.Cleanup(func() {
		board.Close()
		st.Close()
	})

	db, err := database.Connect(&config.Config{
		DatabaseURL: filepath.Join(t.TempDir(), "admins.db"),
		AppEnv:      "production",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	_, err = database.CreateAdmin(db, "host", "pw")
	require.NoError(t, err)

	dir := t.TempDir()
	if uploader == nil {
		uploader = func(dir string) services.Uploader {
			return services.NewLocalUploader(dir, "http://test")
		}
	}

	h := &handlers.Handler{
		Board:    board,
		Hub:      hub,
		Uploader: uploader(dir),
		Push:     services.NewPushService(nil, log),
		DB:       db,
		Config:   &config.Config{JWTSecret: "test-secret", SuccessSoundURL: "/sounds/success.mp3"},
		Log:      log,
	}
	app := fiber.New()
	Setup(app, h)

	return &fixture{app: app, st: st, board: board, dir: dir}
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	resp := f.do(t, "POST", "/api/admin/login", models.LoginRequest{Username: "host", Password: "pw"}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out models.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (f *fixture) seed(t *testing.T, day models.Day, titles ...string) {
	t.Helper()
	updates := store.Updates{}
	for i, title := range titles {
		updates[store.ItemPath(day, title)] = map[string]any{
			store.FieldTitle:       title,
			store.FieldDescription: "d",
			store.FieldImage:       "i.png",
			store.FieldCompleted:   false,
			store.FieldOrder:       i,
		}
	}
	require.NoError(t, f.st.Update(context.Background(), updates))
	f.waitFor(t, day, func(items []models.Achievement) bool { return len(items) == len(titles) })
}

func (f *fixture) waitFor(t *testing.T, day models.Day, cond func([]models.Achievement) bool) {
	t.Helper()
	list, ok := f.board.Day(day)
	require.True(t, ok)
	require.Eventually(t, func() bool { return cond(list.Items()) }, 2*time.Second, 5*time.Millisecond)
}

func decodeItems(t *testing.T, resp *http.Response) []models.Achievement {
	t.Helper()
	var items []models.Achievement
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	return items
}

func titles(items []models.Achievement) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}

func proofRequest(t *testing.T, path, filename string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestGetAchievements(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, "GET", "/api/days/friday/achievements", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeItems(t, resp))

	f.seed(t, models.Friday, "A", "B")
	resp = f.do(t, "GET", "/api/days/Friday/achievements", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"A", "B"}, titles(decodeItems(t, resp)))

	resp = f.do(t, "GET", "/api/days/monday/achievements", nil, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, "POST", "/api/admin/login", models.LoginRequest{Username: "host", Password: "wrong"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, "POST", "/api/admin/login", models.LoginRequest{Username: "host"}, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	assert.NotEmpty(t, f.login(t))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t, nil)
	input := models.AchievementInput{Title: "T", Description: "D", Image: "I"}

	resp := f.do(t, "POST", "/api/admin/days/friday/achievements", input, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, "POST", "/api/admin/days/friday/achievements", input, "not-a-token")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAchievement(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t)
	f.seed(t, models.Saturday, "existing")

	resp := f.do(t, "POST", "/api/admin/days/saturday/achievements",
		models.AchievementInput{Title: "T", Description: "D", Image: "I"}, token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)

	f.waitFor(t, models.Saturday, func(items []models.Achievement) bool { return len(items) == 2 })
	list, _ := f.board.Day(models.Saturday)
	item, ok := list.Find(created.ID)
	require.True(t, ok)
	assert.Equal(t, "T", item.Title)
	assert.Equal(t, 1, item.Order)
	assert.False(t, item.Completed)
	assert.Nil(t, item.Proof)
}

func TestCreateAchievement_Incomplete(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t)

	resp := f.do(t, "POST", "/api/admin/days/friday/achievements",
		models.AchievementInput{Title: "", Description: "D", Image: "I"}, token)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	snap, err := f.st.Snapshot(context.Background(), models.Friday)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestUpdateAchievement(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t)
	f.seed(t, models.Friday, "A")

	resp := f.do(t, "PUT", "/api/admin/days/friday/achievements/A",
		models.AchievementInput{Title: "New", Description: "D2", Image: "I2"}, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	f.waitFor(t, models.Friday, func(items []models.Achievement) bool {
		return len(items) == 1 && items[0].Title == "New"
	})

	resp = f.do(t, "PUT", "/api/admin/days/friday/achievements/missing",
		models.AchievementInput{Title: "New", Description: "D2", Image: "I2"}, token)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteAchievement(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t)
	f.seed(t, models.Sunday, "A", "B", "C")

	resp := f.do(t, "DELETE", "/api/admin/days/sunday/achievements/B", nil, token)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	f.waitFor(t, models.Sunday, func(items []models.Achievement) bool { return len(items) == 2 })

	list, _ := f.board.Day(models.Sunday)
	items := list.Items()
	assert.Equal(t, []string{"A", "C"}, titles(items))
	assert.Equal(t, 2, items[1].Order, "orders are not renumbered on delete")
}

func TestReorderAchievements(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t)
	f.seed(t, models.Friday, "A", "B", "C")

	resp := f.do(t, "POST", "/api/admin/days/friday/reorder", map[string]any{"from": 0, "to": 2}, token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	items := decodeItems(t, resp)
	assert.Equal(t, []string{"B", "C", "A"}, titles(items))
	for i, item := range items {
		assert.Equal(t, i, item.Order)
	}

	snap, err := f.st.Snapshot(context.Background(), models.Friday)
	require.NoError(t, err)
	assert.Equal(t, 2, *snap["A"].Order)
	assert.Equal(t, 0, *snap["B"].Order)
	assert.Equal(t, 1, *snap["C"].Order)
}

func TestReorderAchievements_NoDestination(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t)
	f.seed(t, models.Friday, "A", "B")

	resp := f.do(t, "POST", "/api/admin/days/friday/reorder", map[string]any{"from": 0, "to": nil}, token)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = f.do(t, "POST", "/api/admin/days/friday/reorder", map[string]any{"from": 0, "to": 5}, token)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	list, _ := f.board.Day(models.Friday)
	assert.Equal(t, []string{"A", "B"}, titles(list.Items()))
}

func TestReorderAchievements_MissingSource(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t)
	f.seed(t, models.Friday, "A", "B", "C")

	resp := f.do(t, "POST", "/api/admin/days/friday/reorder", map[string]any{"to": 2}, token)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	snap, err := f.st.Snapshot(context.Background(), models.Friday)
	require.NoError(t, err)
	assert.Equal(t, 0, *snap["A"].Order)
	assert.Equal(t, 2, *snap["C"].Order)
}

func TestUploadProof(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, models.Friday, "A")

	resp, err := f.app.Test(proofRequest(t, "/api/days/friday/achievements/A/proof", "me.png"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		ID    string `json:"id"`
		Proof string `json:"proof"`
		Sound string `json:"sound"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "A", out.ID)
	assert.Equal(t, "/sounds/success.mp3", out.Sound)
	require.True(t, strings.HasPrefix(out.Proof, "http://test/uploads/proofs/friday/"))

	stored := filepath.Join(f.dir, filepath.FromSlash(strings.TrimPrefix(out.Proof, "http://test/uploads/")))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(data))

	f.waitFor(t, models.Friday, func(items []models.Achievement) bool {
		return items[0].Completed && items[0].Proof != nil && *items[0].Proof == out.Proof
	})
}

func TestUploadProof_Rejects(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, models.Friday, "A")

	resp, err := f.app.Test(proofRequest(t, "/api/days/friday/achievements/A/proof", "notes.txt"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = f.app.Test(proofRequest(t, "/api/days/friday/achievements/missing/proof", "me.png"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = f.do(t, "POST", "/api/days/friday/achievements/A/proof", map[string]string{}, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	list, _ := f.board.Day(models.Friday)
	assert.False(t, list.Items()[0].Completed)
}

func TestUploadProof_Unavailable(t *testing.T) {
	f := newFixture(t, func(string) services.Uploader { return services.NoUploader{} })
	f.seed(t, models.Friday, "A")

	resp, err := f.app.Test(proofRequest(t, "/api/days/friday/achievements/A/proof", "me.png"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	snap, err := f.st.Snapshot(context.Background(), models.Friday)
	require.NoError(t, err)
	assert.False(t, snap["A"].Completed)
}

func TestResetAchievement(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t)
	f.seed(t, models.Friday, "A")
	proof := "https://x/y.png"
	require.NoError(t, f.st.Update(context.Background(), store.Updates{
		store.FieldPath(models.Friday, "A", store.FieldCompleted): true,
		store.FieldPath(models.Friday, "A", store.FieldProof):     proof,
	}))
	f.waitFor(t, models.Friday, func(items []models.Achievement) bool { return items[0].Completed })

	for i := 0; i < 2; i++ {
		resp := f.do(t, "POST", "/api/admin/days/friday/achievements/A/reset", nil, token)
		require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
	f.waitFor(t, models.Friday, func(items []models.Achievement) bool {
		return !items[0].Completed && items[0].Proof == nil
	})
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, "GET", "/ws/days/friday", nil, "")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

type snapshotEvent struct {
	Type string               `json:"type"`
	Day  models.Day           `json:"day"`
	Data []models.Achievement `json:"data"`
}

func (f *fixture) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go f.app.Listener(ln)
	t.Cleanup(func() { f.app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func TestWebSocket_StreamsSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, models.Friday, "A")
	base := f.listen(t)

	conn, _, err := fastws.DefaultDialer.Dial(base+"/ws/days/friday", nil)
	require.NoError(t, err)
	defer conn.Close()

	var event snapshotEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, handlers.EventSnapshot, event.Type)
	assert.Equal(t, models.Friday, event.Day)
	assert.Equal(t, []string{"A"}, titles(event.Data))

	require.NoError(t, f.st.Update(context.Background(), store.Updates{
		store.ItemPath(models.Friday, "B"): map[string]any{store.FieldTitle: "B", store.FieldOrder: 1},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		require.NoError(t, conn.ReadJSON(&event))
		if len(event.Data) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, titles(event.Data))
}

func TestWebSocket_StalledClientDoesNotBlockUpdates(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, models.Friday, "A")
	base := f.listen(t)

	stalled, _, err := fastws.DefaultDialer.Dial(base+"/ws/days/friday", nil)
	require.NoError(t, err)
	defer stalled.Close()

	reader, _, err := fastws.DefaultDialer.Dial(base+"/ws/days/friday", nil)
	require.NoError(t, err)
	defer reader.Close()

	big := strings.Repeat("x", 1<<20)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		require.NoError(t, f.st.Update(ctx, store.Updates{
			store.FieldPath(models.Friday, "A", store.FieldDescription): big + strconv.Itoa(i),
		}))
	}
	require.NoError(t, f.st.Update(ctx, store.Updates{
		store.FieldPath(models.Friday, "A", store.FieldTitle): "FINAL",
	}))

	f.waitFor(t, models.Friday, func(items []models.Achievement) bool {
		return len(items) == 1 && items[0].Title == "FINAL"
	})
	items := decodeItems(t, f.do(t, "GET", "/api/days/friday/achievements", nil, ""))
	assert.Equal(t, []string{"FINAL"}, titles(items))

	var event snapshotEvent
	require.NoError(t, reader.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		require.NoError(t, reader.ReadJSON(&event))
		if len(event.Data) == 1 && event.Data[0].Title == "FINAL" {
			break
		}
	}
}
