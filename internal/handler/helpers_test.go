package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fittrack/internal/config"
	"fittrack/internal/handler"
	"fittrack/internal/infrastructure/database/dbtest"
	"fittrack/internal/infrastructure/media"
	"fittrack/internal/infrastructure/metrics"
	"fittrack/internal/model"
	"fittrack/internal/service"
	"fittrack/pkg/logger"
	"fittrack/pkg/password"
	"fittrack/pkg/response"
	"fittrack/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type server struct {
	db        *gorm.DB
	engine    *gin.Engine
	tokens    *token.Manager
	uploadDir string
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	log := logger.NewDiscard()
	m := metrics.New()
	hasher := password.NewHasher(bcrypt.MinCost)
	tokens := token.NewManager("handler-test", time.Hour)

	uploadDir := t.TempDir()
	store, err := media.NewLocalStore(config.MediaConfig{UploadDir: uploadDir, MaxImageMB: 1, MaxVideoMB: 1}, log)
	require.NoError(t, err)

	h := handler.NewHandler(handler.Services{
		Auth:          service.NewAuthService(db, hasher, tokens, log),
		Users:         service.NewUserService(db, hasher, log),
		Ledger:        service.NewLedgerService(db, m, log),
		Ordering:      service.NewOrderingService(db, m, log),
		Sessions:      service.NewSessionService(db, log),
		Exercises:     service.NewExerciseService(db, store, log),
		ExerciseTypes: service.NewExerciseTypeService(db),
		SessionTypes:  service.NewSessionTypeService(db),
	}, log)

	engine := handler.SetupRouter(h, handler.RouterOptions{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		UploadDir: uploadDir,
		Metrics:   m,
		Logger:    log,
	})
	return &server{db: db, engine: engine, tokens: tokens, uploadDir: uploadDir}
}

// login 直接建用户并签发令牌，绕开 bcrypt
func (s *server) login(t *testing.T, email, role string) (int64, string) {
	t.Helper()
	var r model.Role
	require.NoError(t, s.db.Where("name = ?", role).First(&r).Error)

	u := &model.User{Email: email, PasswordHash: "x", RoleID: r.ID}
	require.NoError(t, s.db.Create(u).Error)

	signed, err := s.tokens.Issue(u.ID, u.Email, r.ID, r.Name)
	require.NoError(t, err)
	return u.ID, signed
}

func (s *server) exercise(t *testing.T, title string) int64 {
	t.Helper()
	ex := &model.Exercise{Title: title}
	require.NoError(t, s.db.Create(ex).Error)
	return ex.ID
}

// do 发送请求；body 为 string 时原样发送，否则按 JSON 编码
func (s *server) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return s.send(req)
}

func (s *server) send(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// requireError 校验状态码和错误码
func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.Equal(t, code, decode[response.ErrorBody](t, rec).Error)
}

type entriesBody struct {
	SessionID int64                       `json:"session_id"`
	Exercises []model.SessionExerciseView `json:"exercises"`
}

func entryIDs(views []model.SessionExerciseView) []int64 {
	out := make([]int64, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}
