package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/runly/internal/config"
	"github.com/iliyamo/runly/internal/database"
	"github.com/iliyamo/runly/internal/model"
)

// newTestDB returns a migrated sqlite database in a temp dir.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runly.db")
	require.NoError(t, database.MigrateUp(config.Config{DBDriver: "sqlite3", DBPath: path}))
	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mkUser(t *testing.T, users *UserRepo, name string) *model.User {
	t.Helper()
	u := &model.User{
		Email:        name + "@example.com",
		Username:     name,
		PasswordHash: "x",
		Age:          30,
		Gender:       "drugo",
		FitnessLevel: "srednji",
		PaceMinPerKm: 5.5,
		Role:         model.RoleRunner,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func mkRun(t *testing.T, runs *RunRepo, host uint64, title string, startsAt time.Time, pace float64) *model.Run {
	t.Helper()
	run := &model.Run{
		Title:        title,
		Route:        "Along the river",
		StartsAt:     startsAt,
		DistanceKm:   10,
		PaceMinPerKm: pace,
		HostUserID:   host,
	}
	require.NoError(t, runs.Create(context.Background(), run, LocationInput{City: "Beograd", Municipality: "Vracar"}))
	return run
}

func count(t *testing.T, db *sql.DB, table, where string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where), args...).Scan(&n))
	return n
}

func TestUserCreateRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepo(db)
	ctx := context.Background()
	mkUser(t, users, "ana")

	dupEmail := &model.User{Email: " ANA@example.com ", Username: "other", PasswordHash: "x", Age: 20,
		Gender: "zenski", FitnessLevel: "pocetni", PaceMinPerKm: 6, Role: model.RoleRunner}
	assert.ErrorIs(t, users.Create(ctx, dupEmail), ErrEmailExists)

	dupName := &model.User{Email: "new@example.com", Username: "ana", PasswordHash: "x", Age: 20,
		Gender: "zenski", FitnessLevel: "pocetni", PaceMinPerKm: 6, Role: model.RoleRunner}
	assert.ErrorIs(t, users.Create(ctx, dupName), ErrUsernameExists)

	_, err := users.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunCreateAddsHostAsMember(t *testing.T) {
	db := newTestDB(t)
	users, runs, members := NewUserRepo(db), NewRunRepo(db), NewMembershipRepo(db)
	host := mkUser(t, users, "host")
	run := mkRun(t, runs, host.ID, "Morning 10k", time.Now().Add(24*time.Hour), 5)

	ok, err := members.IsMember(context.Background(), run.ID, host.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := participantsOf(context.Background(), db, []uint64{run.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint64{host.ID}, ids[run.ID])
}

func TestRunCreateReusesLocation(t *testing.T) {
	db := newTestDB(t)
	users, runs := NewUserRepo(db), NewRunRepo(db)
	host := mkUser(t, users, "host")
	a := mkRun(t, runs, host.ID, "First", time.Now().Add(time.Hour), 5)
	b := mkRun(t, runs, host.ID, "Second", time.Now().Add(2*time.Hour), 5)

	assert.Equal(t, a.LocationID, b.LocationID)
	assert.Equal(t, 1, count(t, db, "locations", "1=1"))
}

func TestJoinIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	users, runs, members := NewUserRepo(db), NewRunRepo(db), NewMembershipRepo(db)
	ctx := context.Background()
	host := mkUser(t, users, "host")
	runner := mkUser(t, users, "runner")
	run := mkRun(t, runs, host.ID, "Tempo", time.Now().Add(time.Hour), 5)

	already, err := members.Join(ctx, run.ID, runner.ID)
	require.NoError(t, err)
	assert.False(t, already)

	already, err = members.Join(ctx, run.ID, runner.ID)
	require.NoError(t, err)
	assert.True(t, already)

	assert.Equal(t, 1, count(t, db, "run_users", "run_id = ? AND user_id = ?", run.ID, runner.ID))

	_, err = members.Join(ctx, 12345, runner.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunListFiltersAndOrders(t *testing.T) {
	db := newTestDB(t)
	users, runs, members := NewUserRepo(db), NewRunRepo(db), NewMembershipRepo(db)
	ctx := context.Background()
	host := mkUser(t, users, "host")
	runner := mkUser(t, users, "runner")
	now := time.Now()
	late := mkRun(t, runs, host.ID, "Evening Easy", now.Add(48*time.Hour), 6.5)
	early := mkRun(t, runs, host.ID, "Morning Tempo", now.Add(24*time.Hour), 4.5)
	_, err := members.Join(ctx, late.ID, runner.ID)
	require.NoError(t, err)

	all, err := runs.List(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, early.ID, all[0].Run.ID)
	assert.Equal(t, late.ID, all[1].Run.ID)
	assert.Equal(t, "host", all[0].HostUsername)
	assert.Equal(t, []uint64{host.ID, runner.ID}, all[1].ParticipantIDs)

	byQuery, err := runs.List(ctx, RunFilter{Query: "tEMPO"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, early.ID, byQuery[0].Run.ID)

	pace := 5.0
	byPace, err := runs.List(ctx, RunFilter{MaxPace: &pace})
	require.NoError(t, err)
	require.Len(t, byPace, 1)
	assert.Equal(t, early.ID, byPace[0].Run.ID)
}

func TestRatingCreateRejectsSecondRating(t *testing.T) {
	db := newTestDB(t)
	users, runs, ratings := NewUserRepo(db), NewRunRepo(db), NewRatingRepo(db)
	ctx := context.Background()
	host := mkUser(t, users, "host")
	runner := mkUser(t, users, "runner")
	run := mkRun(t, runs, host.ID, "Hills", time.Now().Add(time.Hour), 5)

	first := &model.Rating{RunID: run.ID, FromUserID: runner.ID, ToUserID: host.ID, Score: 5, Comment: "great"}
	require.NoError(t, ratings.Create(ctx, first))
	second := &model.Rating{RunID: run.ID, FromUserID: runner.ID, ToUserID: host.ID, Score: 1, Comment: "again"}
	assert.ErrorIs(t, ratings.Create(ctx, second), ErrRatingExists)

	rated, err := ratings.HasRated(ctx, run.ID, runner.ID)
	require.NoError(t, err)
	assert.True(t, rated)

	received, err := ratings.ReceivedBy(ctx, host.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "Hills", received[0].RunTitle)
	assert.Equal(t, "runner", received[0].FromUsername)
}

func TestCascadeDeleteRun(t *testing.T) {
	db := newTestDB(t)
	users, runs, members := NewUserRepo(db), NewRunRepo(db), NewMembershipRepo(db)
	msgs, ratings, cascade := NewMessageRepo(db), NewRatingRepo(db), NewCascadeRepo(db)
	ctx := context.Background()
	host := mkUser(t, users, "host")
	runner := mkUser(t, users, "runner")
	run := mkRun(t, runs, host.ID, "Long run", time.Now().Add(time.Hour), 5.5)
	keep := mkRun(t, runs, host.ID, "Other run", time.Now().Add(2*time.Hour), 5.5)

	_, err := members.Join(ctx, run.ID, runner.ID)
	require.NoError(t, err)
	require.NoError(t, msgs.Create(ctx, &model.Message{RunID: run.ID, FromUserID: runner.ID, ToUserID: host.ID, Content: "hi", SentAt: time.Now()}))
	require.NoError(t, ratings.Create(ctx, &model.Rating{RunID: run.ID, FromUserID: runner.ID, ToUserID: host.ID, Score: 4, Comment: "ok"}))

	require.NoError(t, cascade.DeleteRun(ctx, run.ID))

	assert.Zero(t, count(t, db, "runs", "id = ?", run.ID))
	assert.Zero(t, count(t, db, "run_users", "run_id = ?", run.ID))
	assert.Zero(t, count(t, db, "messages", "run_id = ?", run.ID))
	assert.Zero(t, count(t, db, "ratings", "run_id = ?", run.ID))
	assert.Equal(t, 1, count(t, db, "runs", "id = ?", keep.ID))

	assert.ErrorIs(t, cascade.DeleteRun(ctx, run.ID), ErrNotFound)
}

func TestCascadeDeleteRunRollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	users, runs, members := NewUserRepo(db), NewRunRepo(db), NewMembershipRepo(db)
	msgs, cascade := NewMessageRepo(db), NewCascadeRepo(db)
	ctx := context.Background()
	host := mkUser(t, users, "host")
	runner := mkUser(t, users, "runner")
	run := mkRun(t, runs, host.ID, "Long run", time.Now().Add(time.Hour), 5.5)
	_, err := members.Join(ctx, run.ID, runner.ID)
	require.NoError(t, err)
	require.NoError(t, msgs.Create(ctx, &model.Message{RunID: run.ID, FromUserID: runner.ID, ToUserID: host.ID, Content: "hi", SentAt: time.Now()}))

	// the last step of the cascade fails
	_, err = db.Exec(`CREATE TRIGGER fail_run_delete BEFORE DELETE ON runs BEGIN SELECT RAISE(ABORT, 'boom'); END`)
	require.NoError(t, err)

	require.Error(t, cascade.DeleteRun(ctx, run.ID))
	assert.Equal(t, 1, count(t, db, "runs", "id = ?", run.ID))
	assert.Equal(t, 2, count(t, db, "run_users", "run_id = ?", run.ID))
	assert.Equal(t, 1, count(t, db, "messages", "run_id = ?", run.ID))
}

func TestCascadeDeleteUserRemovesEveryReference(t *testing.T) {
	db := newTestDB(t)
	users, runs, members := NewUserRepo(db), NewRunRepo(db), NewMembershipRepo(db)
	msgs, ratings, cascade := NewMessageRepo(db), NewRatingRepo(db), NewCascadeRepo(db)
	sessions := NewSessionRepo(db)
	ctx := context.Background()

	victim := mkUser(t, users, "victim")
	other := mkUser(t, users, "other")
	hosted := mkRun(t, runs, victim.ID, "Victim hosts", time.Now().Add(time.Hour), 5)
	foreign := mkRun(t, runs, other.ID, "Other hosts", time.Now().Add(time.Hour), 5)

	// other joins and chats in the victim's run
	_, err := members.Join(ctx, hosted.ID, other.ID)
	require.NoError(t, err)
	require.NoError(t, msgs.Create(ctx, &model.Message{RunID: hosted.ID, FromUserID: other.ID, ToUserID: victim.ID, Content: "a", SentAt: time.Now()}))
	require.NoError(t, ratings.Create(ctx, &model.Rating{RunID: hosted.ID, FromUserID: other.ID, ToUserID: victim.ID, Score: 3, Comment: "c"}))

	// victim joins, chats and rates in the other run
	_, err = members.Join(ctx, foreign.ID, victim.ID)
	require.NoError(t, err)
	require.NoError(t, msgs.Create(ctx, &model.Message{RunID: foreign.ID, FromUserID: victim.ID, ToUserID: other.ID, Content: "b", SentAt: time.Now()}))
	require.NoError(t, ratings.Create(ctx, &model.Rating{RunID: foreign.ID, FromUserID: victim.ID, ToUserID: other.ID, Score: 5, Comment: "d"}))
	require.NoError(t, sessions.Create(ctx, "tok", victim.ID, time.Now().Add(time.Hour)))

	n, err := cascade.DeleteUser(ctx, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Zero(t, count(t, db, "users", "id = ?", victim.ID))
	assert.Zero(t, count(t, db, "runs", "host_user_id = ?", victim.ID))
	assert.Zero(t, count(t, db, "run_users", "user_id = ? OR run_id = ?", victim.ID, hosted.ID))
	assert.Zero(t, count(t, db, "messages", "from_user_id = ? OR to_user_id = ?", victim.ID, victim.ID))
	assert.Zero(t, count(t, db, "ratings", "from_user_id = ? OR to_user_id = ?", victim.ID, victim.ID))
	assert.Zero(t, count(t, db, "sessions", "user_id = ?", victim.ID))

	// the other user's run and membership survive
	assert.Equal(t, 1, count(t, db, "runs", "id = ?", foreign.ID))
	assert.Equal(t, 1, count(t, db, "run_users", "run_id = ? AND user_id = ?", foreign.ID, other.ID))

	_, err = cascade.DeleteUser(ctx, victim.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDashboardQueries(t *testing.T) {
	db := newTestDB(t)
	users, runs, members, msgs := NewUserRepo(db), NewRunRepo(db), NewMembershipRepo(db), NewMessageRepo(db)
	ctx := context.Background()
	host := mkUser(t, users, "host")
	runner := mkUser(t, users, "runner")
	now := time.Now().UTC()

	past := mkRun(t, runs, host.ID, "Yesterday", now.Add(-24*time.Hour), 5)
	soon := mkRun(t, runs, host.ID, "Tomorrow", now.Add(24*time.Hour), 5)
	for _, r := range []*model.Run{past, soon} {
		_, err := members.Join(ctx, r.ID, runner.ID)
		require.NoError(t, err)
	}
	require.NoError(t, msgs.Create(ctx, &model.Message{RunID: past.ID, FromUserID: host.ID, ToUserID: host.ID, Content: "first", SentAt: now.Add(-2 * time.Minute)}))
	require.NoError(t, msgs.Create(ctx, &model.Message{RunID: soon.ID, FromUserID: runner.ID, ToUserID: host.ID, Content: "second", SentAt: now.Add(-time.Minute)}))

	n, err := members.CountForUser(ctx, runner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	upcoming, err := runs.UpcomingForUser(ctx, runner.ID, now, 5)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, soon.ID, upcoming[0].ID)

	recent, err := msgs.RecentForUser(ctx, runner.ID, 8)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Message.Content)
	assert.Equal(t, "Tomorrow", recent[0].RunTitle)
}

func TestRunCreateRefreshesCoordinates(t *testing.T) {
	db := newTestDB(t)
	users, runs, locations := NewUserRepo(db), NewRunRepo(db), NewLocationRepo(db)
	ctx := context.Background()
	host := mkUser(t, users, "host")
	first := mkRun(t, runs, host.ID, "No coords", time.Now().Add(time.Hour), 5)

	loc, err := locations.GetByID(ctx, first.LocationID)
	require.NoError(t, err)
	assert.Nil(t, loc.Lat)

	lat, lng := 44.8, 20.47
	second := &model.Run{Title: "With coords", Route: "Park", StartsAt: time.Now().Add(2 * time.Hour),
		DistanceKm: 5, PaceMinPerKm: 6, HostUserID: host.ID}
	require.NoError(t, runs.Create(ctx, second, LocationInput{City: "Beograd", Municipality: "Vracar", Lat: &lat, Lng: &lng}))
	assert.Equal(t, first.LocationID, second.LocationID)

	loc, err = locations.GetByID(ctx, first.LocationID)
	require.NoError(t, err)
	require.NotNil(t, loc.Lat)
	assert.InDelta(t, lat, *loc.Lat, 1e-9)
	assert.InDelta(t, lng, *loc.Lng, 1e-9)

	_, err = locations.GetByID(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatesOfVanishedRowsReportNotFound(t *testing.T) {
	db := newTestDB(t)
	users, runs := NewUserRepo(db), NewRunRepo(db)
	msgs, ratings := NewMessageRepo(db), NewRatingRepo(db)
	ctx := context.Background()
	host := mkUser(t, users, "host")
	runner := mkUser(t, users, "runner")
	run := mkRun(t, runs, host.ID, "Intervals", time.Now().Add(time.Hour), 4.5)

	msg := &model.Message{RunID: run.ID, FromUserID: runner.ID, ToUserID: host.ID, Content: "hi", SentAt: time.Now()}
	require.NoError(t, msgs.Create(ctx, msg))
	rt := &model.Rating{RunID: run.ID, FromUserID: runner.ID, ToUserID: host.ID, Score: 4, Comment: "ok"}
	require.NoError(t, ratings.Create(ctx, rt))

	// rewriting identical values still matches the row
	assert.NoError(t, msgs.UpdateContent(ctx, msg.ID, "hi"))
	assert.NoError(t, ratings.Update(ctx, rt.ID, 4, "ok"))

	require.NoError(t, msgs.Delete(ctx, msg.ID))
	require.NoError(t, ratings.Delete(ctx, rt.ID))
	assert.ErrorIs(t, msgs.UpdateContent(ctx, msg.ID, "edited"), ErrNotFound)
	assert.ErrorIs(t, ratings.Update(ctx, rt.ID, 5, "edited"), ErrNotFound)
}
