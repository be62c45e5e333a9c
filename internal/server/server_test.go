package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"taskhub/backend/internal/config"
	"taskhub/backend/internal/database/dbtest"
	"taskhub/backend/internal/logger"
	"taskhub/backend/internal/server"
	"taskhub/backend/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:               "localhost",
			Port:               "0",
			RequestTimeout:     5 * time.Second,
			Environment:        "test",
			CORSAllowedOrigins: []string{"http://localhost:5173"},
		},
		Redis:  config.RedisConfig{TaskCacheTTL: time.Minute},
		Worker: config.WorkerConfig{Enabled: false},
		Auth: config.AuthConfig{
			JWTSecret:       "integration-secret",
			Issuer:          "taskhub-backend",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			BCryptCost:      4,
		},
		AccessCode: config.AccessCodeConfig{MaxAttempts: 1000},
	}
}

type ServerSuite struct {
	suite.Suite
	app   *server.App
	mr    *miniredis.Miniredis
	redis *redis.Client
}

func (s *ServerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.mr = miniredis.RunT(s.T())
	s.redis = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = s.redis.Close() })

	app, err := server.New(server.Dependencies{
		Config: testConfig(),
		DB:     dbtest.Open(s.T()),
		Redis:  s.redis,
		Logger: logger.Discard(),
	})
	s.Require().NoError(err)
	s.app = app
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

// signUp registers and logs in a user and returns the access token and ID.
func (s *ServerSuite) signUp(username string) (string, string) {
	w, _ := s.do("POST", "/api/auth/register", "", map[string]string{
		"username":   username,
		"email":      username + "@example.com",
		"password":   "Passw0rd!",
		"first_name": "Test",
		"last_name":  "User",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w, body := s.do("POST", "/api/auth/login", "", map[string]string{
		"email":    username + "@example.com",
		"password": "Passw0rd!",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	user := body["user"].(map[string]interface{})
	return body["access_token"].(string), user["id"].(string)
}

func (s *ServerSuite) TestCreateAndJoinTask() {
	leaderToken, _ := s.signUp("leader")
	joinerToken, joinerID := s.signUp("joiner")

	w, task := s.do("POST", "/api/tasks", leaderToken, map[string]string{
		"title":           "Quarterly report",
		"access_password": "open-sesame",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	code, _ := task["access_code"].(string)
	s.Regexp(codePattern, code)
	s.Equal("********", task["access_password"])
	taskID := task["id"].(string)

	w, _ = s.do("POST", "/api/tasks/join", joinerToken, map[string]string{
		"access_code":     "wrong1",
		"access_password": "open-sesame",
	})
	s.Equal(http.StatusUnauthorized, w.Code)

	w, body := s.do("POST", "/api/tasks/join", joinerToken, map[string]string{
		"access_code":     code,
		"access_password": "nope",
	})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("invalid code or password", body["error"])

	w, joined := s.do("POST", "/api/tasks/join", joinerToken, map[string]string{
		"access_code":     strings.ToLower(code),
		"access_password": "open-sesame",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(code, joined["access_code"])

	members := joined["members"].([]interface{})
	s.Len(members, 2)
	var roles []string
	for _, m := range members {
		member := m.(map[string]interface{})
		if member["user_id"] == joinerID {
			roles = append(roles, member["role"].(string))
		}
	}
	s.Equal([]string{"member"}, roles)

	w, body = s.do("POST", "/api/tasks/join", joinerToken, map[string]string{
		"access_code":     code,
		"access_password": "open-sesame",
	})
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("already a member", body["error"])

	w, _ = s.do("GET", "/api/tasks/"+taskID, joinerToken, nil)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do("PUT", "/api/tasks/"+taskID, joinerToken, map[string]string{"title": "Hijack"})
	s.Equal(http.StatusForbidden, w.Code)

	size, err := worker.NewJobQueue(s.redis).GetQueueSize(context.Background(), worker.QueueActivity)
	s.Require().NoError(err)
	s.Zero(size)

	w, dashboard := s.do("GET", "/api/dashboard", joinerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	activities := dashboard["recent_activities"].([]interface{})
	s.Require().Len(activities, 1)
	s.Equal(joinerID, activities[0].(map[string]interface{})["user_id"])
}

func (s *ServerSuite) TestJoinQueuedWhenWorkerEnabled() {
	cfg := testConfig()
	cfg.Worker = config.WorkerConfig{Enabled: true, PollInterval: time.Second, Queues: []string{worker.QueueActivity}}
	app, err := server.New(server.Dependencies{Config: cfg, DB: dbtest.Open(s.T()), Redis: s.redis, Logger: logger.Discard()})
	s.Require().NoError(err)
	s.Require().NotNil(app.Worker)
	s.app = app

	leaderToken, _ := s.signUp("queued-leader")
	joinerToken, _ := s.signUp("queued-joiner")

	w, task := s.do("POST", "/api/tasks", leaderToken, map[string]string{
		"title":           "Queued",
		"access_password": "pw",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do("POST", "/api/tasks/join", joinerToken, map[string]string{
		"access_code":     task["access_code"].(string),
		"access_password": "pw",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	size, err := worker.NewJobQueue(s.redis).GetQueueSize(context.Background(), worker.QueueActivity)
	s.Require().NoError(err)
	s.EqualValues(1, size)
}

func (s *ServerSuite) TestHealthShowsCacheStats() {
	w, body := s.do("GET", "/health", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	details := body["details"].(map[string]interface{})
	stats := details["task_cache"].(map[string]interface{})
	s.Contains(stats, "metrics")
	s.Contains(stats, "breaker")
}

func (s *ServerSuite) TestProjectsAndDashboard() {
	ownerToken, _ := s.signUp("owner")
	memberToken, memberID := s.signUp("member")

	w, project := s.do("POST", "/api/projects", ownerToken, map[string]string{
		"title":       "Launch",
		"description": "Ship v1",
		"status":      "In Progress",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	projectID := project["id"].(string)

	w, _ = s.do("POST", "/api/projects/"+projectID+"/join", memberToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do("POST", "/api/projects/"+projectID+"/join", memberToken, nil)
	s.Equal(http.StatusConflict, w.Code)

	w, _ = s.do("GET", "/api/projects/user/"+memberID, ownerToken, nil)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do("POST", "/api/tasks", memberToken, map[string]string{
		"title":           "Project task",
		"access_password": "pw",
		"project_id":      projectID,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do("GET", "/api/tasks/project/"+projectID, ownerToken, nil)
	s.Equal(http.StatusOK, w.Code)

	w, dashboard := s.do("GET", "/api/dashboard", ownerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	stats := dashboard["stats"].(map[string]interface{})
	s.Equal(float64(1), stats["total_projects"])
	s.Equal(float64(1), stats["active_projects"])
	s.Equal(float64(2), stats["total_team_members"])
}

func (s *ServerSuite) TestTeams() {
	creatorToken, _ := s.signUp("teamlead")
	memberToken, memberID := s.signUp("teammate")
	outsiderToken, _ := s.signUp("stranger")

	w, team := s.do("POST", "/api/team", creatorToken, map[string]string{"name": "Backend", "description": "APIs"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	teamID := team["id"].(string)

	w, _ = s.do("PUT", "/api/team/"+teamID+"/members", outsiderToken, map[string]string{"user_id": memberID})
	s.Equal(http.StatusForbidden, w.Code)

	w, team = s.do("PUT", "/api/team/"+teamID+"/members", creatorToken, map[string]string{"user_id": memberID})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Len(team["members"].([]interface{}), 2)

	w, _ = s.do("PUT", "/api/team/"+teamID+"/members", creatorToken, map[string]string{"user_id": memberID})
	s.Equal(http.StatusConflict, w.Code)

	w, body := s.do("PUT", "/api/team/"+teamID+"/members", creatorToken, map[string]string{"user_id": "00000000-0000-4000-8000-000000000001"})
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("user not found", body["error"])

	w, _ = s.do("GET", "/api/team", outsiderToken, nil)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do("DELETE", "/api/team/"+teamID+"/members/"+memberID, memberToken, nil)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do("DELETE", "/api/team/"+teamID, creatorToken, nil)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do("GET", "/api/team/"+teamID, creatorToken, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ServerSuite) TestAuthRequired() {
	w, _ := s.do("GET", "/api/tasks", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w, _ = s.do("GET", "/api/dashboard", "not-a-jwt", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *ServerSuite) TestRefreshAndLogout() {
	w, _ := s.do("POST", "/api/auth/register", "", map[string]string{
		"username": "rotator", "email": "rotator@example.com", "password": "Passw0rd!",
		"first_name": "R", "last_name": "T",
	})
	s.Require().Equal(http.StatusCreated, w.Code)

	_, login := s.do("POST", "/api/auth/login", "", map[string]string{"email": "rotator@example.com", "password": "Passw0rd!"})
	refresh := login["refresh_token"].(string)

	w, rotated := s.do("POST", "/api/auth/refresh", "", map[string]string{"refresh_token": refresh})
	s.Require().Equal(http.StatusOK, w.Code)

	w, _ = s.do("POST", "/api/auth/logout", "", map[string]string{"refresh_token": rotated["refresh_token"].(string)})
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do("POST", "/api/auth/refresh", "", map[string]string{"refresh_token": rotated["refresh_token"].(string)})
	s.Equal(http.StatusUnauthorized, w.Code)

	w, profile := s.do("GET", "/api/auth/profile", login["access_token"].(string), nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("rotator", profile["username"])
}

func (s *ServerSuite) TestHealthEndpoints() {
	w, body := s.do("GET", "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("healthy", body["status"])

	s.mr.Close()
	w, _ = s.do("GET", "/ready", "", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)

	w, _ = s.do("GET", "/live", "", nil)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do("GET", "/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
}

func TestServer_WithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := server.New(server.Dependencies{Config: testConfig(), DB: dbtest.Open(t), Logger: logger.Discard()})
	require.NoError(t, err)
	assert.Nil(t, app.Worker)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_JoinIsRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstSize: 2, CleanupInterval: time.Minute}

	app, err := server.New(server.Dependencies{Config: cfg, DB: dbtest.Open(t), Logger: logger.Discard()})
	require.NoError(t, err)

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"x@example.com","password":"Passw0rd!"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := server.New(server.Dependencies{})
	assert.Error(t, err)
}
