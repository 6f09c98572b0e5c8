package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidhub/backend/internal/models"
)

var (
	testPool *pgxpool.Pool
	// skipReason is set when no cockroach binary is available; database
	// tests skip and unit tests in the package still run.
	skipReason string
)

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		skipReason = fmt.Sprintf("cockroach test server unavailable: %v", err)
		fmt.Fprintln(os.Stderr, skipReason)
		os.Exit(m.Run())
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice")

	dup := newTestUser("other")
	dup.Email = user.Email
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	exists, err := repo.ExistsByUsernameOrEmail(ctx, "nobody", "ALICE@example.com")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected email lookup to be case-insensitive")
	}

	byEmail, err := repo.FindByEmail(ctx, " ALICE@Example.com ")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Fatalf("expected %s got %s", user.ID, byEmail.ID)
	}
	if _, err := repo.FindByEmail(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown email, got %v", err)
	}

	fetched, err := repo.FindByLogin(ctx, "", user.Email)
	if err != nil {
		t.Fatalf("find by login: %v", err)
	}
	if fetched.ID != user.ID || fetched.PasswordHash != user.PasswordHash || fetched.RefreshToken != "" {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	if _, err := repo.FindByLogin(ctx, "ghost", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown login, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}

	updated, err := repo.UpdateAccount(ctx, user.ID, "Alice Renamed", "renamed@example.com")
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if updated.FullName != "Alice Renamed" || updated.Email != "renamed@example.com" {
		t.Fatalf("expected updated fields to persist, got %+v", updated)
	}
	if !updated.UpdatedAt.After(user.UpdatedAt) && !timesClose(updated.UpdatedAt, user.UpdatedAt, time.Second) {
		t.Fatalf("expected updated_at to move forward")
	}

	other := createTestUser(t, repo, "bob")
	if _, err := repo.UpdateAccount(ctx, other.ID, other.FullName, "renamed@example.com"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when taking another user's email, got %v", err)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	avatar, err := repo.UpdateAvatar(ctx, user.ID, "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	cover, err := repo.UpdateCoverImage(ctx, user.ID, "https://cdn.example.com/c.png")
	if err != nil {
		t.Fatalf("update cover: %v", err)
	}
	if avatar.Avatar != "https://cdn.example.com/a.png" || cover.CoverImage != "https://cdn.example.com/c.png" || cover.PasswordHash != "new-hash" {
		t.Fatalf("unexpected user after media updates: %+v", cover)
	}

	if _, err := repo.UpdateAvatar(ctx, uuid.NewString(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func TestPostgresUserRepository_RefreshToken(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "carol")

	if err := repo.SetRefreshToken(ctx, user.ID, "token-1"); err != nil {
		t.Fatalf("set refresh token: %v", err)
	}
	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fetched.RefreshToken != "token-1" {
		t.Fatalf("expected stored token, got %q", fetched.RefreshToken)
	}

	if err := repo.SetRefreshToken(ctx, user.ID, ""); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}
	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fetched.RefreshToken != "" {
		t.Fatalf("expected cleared token, got %q", fetched.RefreshToken)
	}

	if err := repo.SetRefreshToken(ctx, uuid.NewString(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestPostgresUserRepository_ChannelProfile(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	subs := NewPostgresSubscriptionRepository(testPool)

	channel := createTestUser(t, users, "channel")
	var fans []models.User
	for i := 0; i < 3; i++ {
		fan := createTestUser(t, users, fmt.Sprintf("fan%d", i))
		fans = append(fans, fan)
		toggleOn(t, subs, fan.ID, channel.ID)
	}
	followed := []models.User{createTestUser(t, users, "creator1"), createTestUser(t, users, "creator2")}
	for _, c := range followed {
		toggleOn(t, subs, channel.ID, c.ID)
	}

	profile, err := users.ChannelProfile(ctx, "CHANNEL", fans[0].ID)
	if err != nil {
		t.Fatalf("channel profile: %v", err)
	}
	if profile.SubscribersCount != 3 || profile.ChannelsSubscribedToCount != 2 {
		t.Fatalf("expected 3 subscribers / 2 subscriptions, got %d / %d", profile.SubscribersCount, profile.ChannelsSubscribedToCount)
	}
	if !profile.IsSubscribed {
		t.Fatal("expected viewer to be subscribed")
	}
	if profile.ID != channel.ID || profile.Email != channel.Email || profile.Avatar != channel.Avatar {
		t.Fatalf("unexpected projection: %+v", profile)
	}

	anonymous, err := users.ChannelProfile(ctx, "channel", "")
	if err != nil {
		t.Fatalf("anonymous channel profile: %v", err)
	}
	if anonymous.IsSubscribed {
		t.Fatal("anonymous viewer cannot be subscribed")
	}

	stranger, err := users.ChannelProfile(ctx, "channel", followed[0].ID)
	if err != nil {
		t.Fatalf("stranger channel profile: %v", err)
	}
	if stranger.IsSubscribed {
		t.Fatal("expected stranger not to be subscribed")
	}

	if _, err := users.ChannelProfile(ctx, "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown channel, got %v", err)
	}
}

func TestPostgresSubscriptionRepository_ToggleAndList(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	repo := NewPostgresSubscriptionRepository(testPool)

	viewer := createTestUser(t, users, "viewer")
	channel := createTestUser(t, users, "creator")

	toggleOn(t, repo, viewer.ID, channel.ID)

	subscribers, err := repo.ListSubscribers(ctx, channel.ID)
	if err != nil {
		t.Fatalf("list subscribers: %v", err)
	}
	if len(subscribers) != 1 || subscribers[0].ID != viewer.ID || subscribers[0].Username != "viewer" {
		t.Fatalf("unexpected subscribers: %+v", subscribers)
	}

	channels, err := repo.ListSubscribedChannels(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 1 || channels[0].ID != channel.ID {
		t.Fatalf("unexpected channels: %+v", channels)
	}

	subscribed, err := repo.Toggle(ctx, viewer.ID, channel.ID)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if subscribed {
		t.Fatal("expected second toggle to unsubscribe")
	}

	subscribers, err = repo.ListSubscribers(ctx, channel.ID)
	if err != nil {
		t.Fatalf("list subscribers: %v", err)
	}
	if len(subscribers) != 0 {
		t.Fatalf("expected no subscribers, got %+v", subscribers)
	}

	if _, err := repo.Toggle(ctx, viewer.ID, viewer.ID); !errors.Is(err, ErrSelfSubscription) {
		t.Fatalf("expected ErrSelfSubscription, got %v", err)
	}
	if _, err := repo.Toggle(ctx, viewer.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown channel, got %v", err)
	}
}

func TestPostgresVideoRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	repo := NewPostgresVideoRepository(testPool)

	owner := createTestUser(t, users, "owner")
	viewer := createTestUser(t, users, "watcher")

	video := newTestVideo(owner.ID, "First upload", true)
	if err := repo.Create(ctx, video); err != nil {
		t.Fatalf("create video: %v", err)
	}

	orphan := newTestVideo(uuid.NewString(), "Orphan", true)
	if err := repo.Create(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}

	title := "Renamed upload"
	updated, err := repo.Update(ctx, video.ID, models.VideoUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update video: %v", err)
	}
	if updated.Title != title || updated.Description != video.Description {
		t.Fatalf("expected only title to change, got %+v", updated)
	}

	toggled, err := repo.TogglePublish(ctx, video.ID)
	if err != nil {
		t.Fatalf("toggle publish: %v", err)
	}
	if toggled.IsPublished {
		t.Fatal("expected video to be unpublished")
	}

	if err := repo.IncrementViews(ctx, video.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	if err := users.RecordWatch(ctx, viewer.ID, video.ID); err != nil {
		t.Fatalf("record watch: %v", err)
	}
	if err := users.RecordWatch(ctx, viewer.ID, video.ID); err != nil {
		t.Fatalf("record watch twice: %v", err)
	}

	history, err := users.WatchHistory(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("watch history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one history entry, got %d", len(history))
	}
	entry := history[0]
	if entry.ID != video.ID || entry.Views != 1 || entry.Owner.Username != "owner" || entry.Owner.Avatar != owner.Avatar {
		t.Fatalf("unexpected history entry: %+v", entry)
	}

	if err := repo.Delete(ctx, video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if err := repo.Delete(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	if err := repo.Delete(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}

	history, err = users.WatchHistory(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("watch history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected history to drop deleted videos, got %d", len(history))
	}
}

func TestPostgresVideoRepository_List(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	repo := NewPostgresVideoRepository(testPool)

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	fixtures := []struct {
		owner     string
		title     string
		published bool
		views     int64
	}{
		{alice.ID, "Cooking pasta", true, 5},
		{alice.ID, "Cooking rice", true, 50},
		{alice.ID, "Secret draft", false, 0},
		{bob.ID, "Bike repair", true, 10},
	}
	for i, f := range fixtures {
		v := newTestVideo(f.owner, f.title, f.published)
		v.Views = f.views
		v.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		v.UpdatedAt = v.CreatedAt
		if err := repo.Create(ctx, v); err != nil {
			t.Fatalf("create %s: %v", f.title, err)
		}
	}

	tests := []struct {
		name   string
		query  models.VideoQuery
		total  int64
		titles []string
	}{
		{
			name:   "bob sees published videos newest first",
			query:  models.VideoQuery{ViewerID: bob.ID, SortDesc: true},
			total:  3,
			titles: []string{"Bike repair", "Cooking rice", "Cooking pasta"},
		},
		{
			name:   "owner sees own drafts",
			query:  models.VideoQuery{ViewerID: alice.ID, OwnerID: alice.ID, SortDesc: true},
			total:  3,
			titles: []string{"Secret draft", "Cooking rice", "Cooking pasta"},
		},
		{
			name:   "search is case-insensitive",
			query:  models.VideoQuery{ViewerID: bob.ID, Search: "COOKING", SortBy: "views"},
			total:  2,
			titles: []string{"Cooking pasta", "Cooking rice"},
		},
		{
			name:   "paging",
			query:  models.VideoQuery{ViewerID: bob.ID, Page: 2, Limit: 2, SortDesc: true},
			total:  3,
			titles: []string{"Cooking pasta"},
		},
		{
			name:   "malformed owner filter",
			query:  models.VideoQuery{ViewerID: bob.ID, OwnerID: "nope"},
			total:  0,
			titles: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, err := repo.List(ctx, tc.query)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if page.Total != tc.total {
				t.Fatalf("expected total %d, got %d", tc.total, page.Total)
			}
			if len(page.Videos) != len(tc.titles) {
				t.Fatalf("expected %d videos, got %d", len(tc.titles), len(page.Videos))
			}
			for i, title := range tc.titles {
				if page.Videos[i].Title != title {
					t.Fatalf("position %d: expected %q got %q", i, title, page.Videos[i].Title)
				}
			}
		})
	}
}

func toggleOn(t *testing.T, repo *PostgresSubscriptionRepository, subscriberID, channelID string) {
	t.Helper()
	subscribed, err := repo.Toggle(context.Background(), subscriberID, channelID)
	if err != nil {
		t.Fatalf("toggle subscription: %v", err)
	}
	if !subscribed {
		t.Fatal("expected toggle to subscribe")
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip(skipReason)
	}
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE watch_history, subscriptions, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func newTestUser(username string) models.User {
	now := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	return models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		Avatar:       "https://cdn.example.com/" + username + ".png",
		PasswordHash: "password-hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	user := newTestUser(username)
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func newTestVideo(ownerID, title string, published bool) models.Video {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return models.Video{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		VideoFile:   "https://cdn.example.com/video.mp4",
		Thumbnail:   "https://cdn.example.com/thumb.png",
		Title:       title,
		Description: title + " description",
		Duration:    61.5,
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
