package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vidhub/backend/internal/auth"
	"github.com/vidhub/backend/internal/config"
	"github.com/vidhub/backend/internal/media"
	"github.com/vidhub/backend/internal/middleware"
	"github.com/vidhub/backend/internal/models"
	"github.com/vidhub/backend/internal/repositories"
	"github.com/vidhub/backend/internal/response"
)

// memoryDB backs the fake stores below. Each fake exposes one store
// interface over the shared maps.
type memoryDB struct {
	mu      sync.Mutex
	users   map[string]models.User
	videos  map[string]models.Video
	subs    map[[2]string]time.Time
	history map[string]map[string]time.Time
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		users:   make(map[string]models.User),
		videos:  make(map[string]models.Video),
		subs:    make(map[[2]string]time.Time),
		history: make(map[string]map[string]time.Time),
	}
}

type fakeUsers struct{ *memoryDB }

func (s fakeUsers) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) || strings.EqualFold(existing.Username, user.Username) {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s fakeUsers) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s fakeUsers) FindByLogin(_ context.Context, username, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s fakeUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s fakeUsers) UpdateAccount(_ context.Context, id, fullName, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	for otherID, other := range s.users {
		if otherID != id && other.Email == email {
			return models.User{}, repositories.ErrConflict
		}
	}
	user.FullName, user.Email = fullName, email
	s.users[id] = user
	return user, nil
}

func (s fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return s.mutate(id, func(u *models.User) { u.PasswordHash = hash })
}

func (s fakeUsers) UpdateAvatar(ctx context.Context, id, url string) (models.User, error) {
	if err := s.mutate(id, func(u *models.User) { u.Avatar = url }); err != nil {
		return models.User{}, err
	}
	return s.FindByID(ctx, id)
}

func (s fakeUsers) UpdateCoverImage(ctx context.Context, id, url string) (models.User, error) {
	if err := s.mutate(id, func(u *models.User) { u.CoverImage = url }); err != nil {
		return models.User{}, err
	}
	return s.FindByID(ctx, id)
}

func (s fakeUsers) SetRefreshToken(_ context.Context, id, token string) error {
	return s.mutate(id, func(u *models.User) { u.RefreshToken = token })
}

func (s fakeUsers) mutate(id string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&user)
	s.users[id] = user
	return nil
}

func (s fakeUsers) ChannelProfile(_ context.Context, username, viewerID string) (models.ChannelProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username != username {
			continue
		}
		profile := models.ChannelProfile{
			ID:         user.ID,
			FullName:   user.FullName,
			Username:   user.Username,
			Avatar:     user.Avatar,
			CoverImage: user.CoverImage,
			Email:      user.Email,
		}
		for pair := range s.subs {
			if pair[1] == user.ID {
				profile.SubscribersCount++
				if pair[0] == viewerID {
					profile.IsSubscribed = true
				}
			}
			if pair[0] == user.ID {
				profile.ChannelsSubscribedToCount++
			}
		}
		return profile, nil
	}
	return models.ChannelProfile{}, repositories.ErrNotFound
}

func (s fakeUsers) WatchHistory(_ context.Context, userID string) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := []models.HistoryEntry{}
	for videoID, at := range s.history[userID] {
		video := s.videos[videoID]
		owner := s.users[video.OwnerID]
		entries = append(entries, models.HistoryEntry{
			Video:     video,
			Owner:     models.UserSummary{ID: owner.ID, FullName: owner.FullName, Username: owner.Username, Avatar: owner.Avatar},
			WatchedAt: at,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].WatchedAt.After(entries[j].WatchedAt) })
	return entries, nil
}

func (s fakeUsers) RecordWatch(_ context.Context, userID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history[userID] == nil {
		s.history[userID] = make(map[string]time.Time)
	}
	s.history[userID][videoID] = time.Now()
	return nil
}

type fakeVideos struct{ *memoryDB }

func (s fakeVideos) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[video.OwnerID]; !ok {
		return repositories.ErrNotFound
	}
	s.videos[video.ID] = video
	return nil
}

func (s fakeVideos) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s fakeVideos) List(_ context.Context, q models.VideoQuery) (models.VideoPage, error) {
	q = repositories.NormalizeVideoQuery(q)
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Video
	for _, video := range s.videos {
		if !video.IsPublished && video.OwnerID != q.ViewerID {
			continue
		}
		if q.OwnerID != "" && video.OwnerID != q.OwnerID {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(video.Title+" "+video.Description), strings.ToLower(q.Search)) {
			continue
		}
		matched = append(matched, video)
	}
	sort.Slice(matched, func(i, j int) bool {
		if q.SortDesc {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	page := models.VideoPage{Videos: []models.Video{}, Page: q.Page, Limit: q.Limit, Total: int64(len(matched))}
	start := (q.Page - 1) * q.Limit
	if start < len(matched) {
		end := min(start+q.Limit, len(matched))
		page.Videos = append(page.Videos, matched[start:end]...)
	}
	return page, nil
}

func (s fakeVideos) Update(_ context.Context, id string, update models.VideoUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	if update.Title != nil {
		video.Title = *update.Title
	}
	if update.Description != nil {
		video.Description = *update.Description
	}
	if update.Thumbnail != nil {
		video.Thumbnail = *update.Thumbnail
	}
	s.videos[id] = video
	return video, nil
}

func (s fakeVideos) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

func (s fakeVideos) TogglePublish(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	video.IsPublished = !video.IsPublished
	s.videos[id] = video
	return video, nil
}

func (s fakeVideos) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.Views++
	s.videos[id] = video
	return nil
}

type fakeSubscriptions struct{ *memoryDB }

func (s fakeSubscriptions) Toggle(_ context.Context, subscriberID, channelID string) (bool, error) {
	if subscriberID == channelID {
		return false, repositories.ErrSelfSubscription
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[channelID]; !ok {
		return false, repositories.ErrNotFound
	}
	key := [2]string{subscriberID, channelID}
	if _, ok := s.subs[key]; ok {
		delete(s.subs, key)
		return false, nil
	}
	s.subs[key] = time.Now()
	return true, nil
}

func (s fakeSubscriptions) ListSubscribers(_ context.Context, channelID string) ([]models.UserSummary, error) {
	return s.list(func(pair [2]string) (string, bool) { return pair[0], pair[1] == channelID }), nil
}

func (s fakeSubscriptions) ListSubscribedChannels(_ context.Context, subscriberID string) ([]models.UserSummary, error) {
	return s.list(func(pair [2]string) (string, bool) { return pair[1], pair[0] == subscriberID }), nil
}

func (s fakeSubscriptions) list(match func([2]string) (string, bool)) []models.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserSummary
	for pair := range s.subs {
		if id, ok := match(pair); ok {
			u := s.users[id]
			out = append(out, models.UserSummary{ID: u.ID, FullName: u.FullName, Username: u.Username, Avatar: u.Avatar})
		}
	}
	return out
}

// fakeMedia "uploads" by deleting the local file and returning a fake URL.
// Files whose extension is in failExt fail with err.
type fakeMedia struct {
	mu       sync.Mutex
	uploaded []string
	failExt  map[string]error
	duration float64
}

func (m *fakeMedia) Upload(_ context.Context, path string, accept ...media.Kind) (media.Asset, error) {
	defer os.Remove(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failExt[filepath.Ext(path)]; ok {
		return media.Asset{}, err
	}
	m.uploaded = append(m.uploaded, path)

	asset := media.Asset{URL: "https://cdn.test/" + filepath.Base(path), Kind: media.KindImage}
	if len(accept) > 0 && accept[0] == media.KindVideo {
		asset.Kind = media.KindVideo
		asset.Duration = m.duration
	}
	return asset, nil
}

func (m *fakeMedia) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploaded)
}

type testEnv struct {
	db      *memoryDB
	media   *fakeMedia
	tokens  *auth.TokenService
	handler http.Handler
	cfg     config.Config
	tempDir string
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLimiter(t, nil)
}

func newTestEnvWithLimiter(t *testing.T, limiter middleware.RateLimiter) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.AccessSecret = "test-access-secret"
	cfg.Auth.RefreshSecret = "test-refresh-secret"
	cfg.Media.TempDir = t.TempDir()

	db := newMemoryDB()
	users := fakeUsers{db}
	tokens, err := auth.NewTokenService(cfg.Auth, users)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	fm := &fakeMedia{failExt: map[string]error{}, duration: 42.5}

	handler := NewRouter(Dependencies{
		Users:         users,
		Profiles:      users,
		Videos:        fakeVideos{db},
		Subscriptions: fakeSubscriptions{db},
		Tokens:        tokens,
		Auth:          auth.Middleware{Tokens: tokens, Users: users},
		Media:         fm,
		Limiter:       limiter,
		Config:        cfg,
	})

	return &testEnv{db: db, media: fm, tokens: tokens, handler: handler, cfg: cfg, tempDir: cfg.Media.TempDir}
}

func (e *testEnv) url(path string) string {
	return e.cfg.Server.APIPrefix + path
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// addUser stores a user with a real bcrypt hash of password.
func (e *testEnv) addUser(t *testing.T, username, password string) models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		Avatar:       "https://cdn.test/" + username + ".png",
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.db.mu.Lock()
	e.db.users[user.ID] = user
	e.db.mu.Unlock()
	return user
}

func (e *testEnv) addVideo(t *testing.T, owner models.User, title string, published bool) models.Video {
	t.Helper()
	now := time.Now().UTC()
	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     owner.ID,
		VideoFile:   "https://cdn.test/" + title + ".mp4",
		Thumbnail:   "https://cdn.test/" + title + ".png",
		Title:       title,
		Description: title + " description",
		Duration:    10,
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.db.mu.Lock()
	e.db.videos[video.ID] = video
	e.db.mu.Unlock()
	return video
}

func (e *testEnv) user(id string) models.User {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.users[id]
}

func (e *testEnv) accessToken(t *testing.T, user models.User) string {
	t.Helper()
	pair, err := e.tokens.IssueTokenPair(t.Context(), user.ID)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return pair.AccessToken
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

type formFile struct {
	field    string
	filename string
	content  []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("create form file %s: %v", f.field, err)
		}
		if _, err := part.Write(f.content); err != nil {
			t.Fatalf("write form file %s: %v", f.field, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return env
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var errUploadRejected = errors.New("upload rejected")
