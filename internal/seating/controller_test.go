package seating

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-waitlist/internal/apperr"
	"github.com/iliyamo/restaurant-waitlist/internal/model"
)

// fakeStore keeps restaurant, user and queue state in memory and runs
// Admit callbacks against it, mimicking the transactional store.
type fakeStore struct {
	restaurant model.Restaurant
	users      map[string]*model.User // by email
	queue      []HeadEntry
	nextID     uint64
}

func newFakeStore(total, available int) *fakeStore {
	return &fakeStore{
		restaurant: model.Restaurant{
			ID: 1, Name: "Trattoria", PlaceID: "place-1",
			TotalSeats: total, AvailableSeats: available,
		},
		users:  map[string]*model.User{},
		nextID: 1,
	}
}

func (s *fakeStore) addUser(email string) *model.User {
	u := &model.User{ID: s.nextID, Email: email, IsActive: true}
	s.nextID++
	s.users[email] = u
	return u
}

func (s *fakeStore) RestaurantByPlaceID(_ context.Context, placeID string) (model.Restaurant, error) {
	if placeID != s.restaurant.PlaceID {
		return model.Restaurant{}, sql.ErrNoRows
	}
	return s.restaurant, nil
}

func (s *fakeStore) UserByEmail(_ context.Context, email string) (model.User, error) {
	if u, ok := s.users[email]; ok {
		return *u, nil
	}
	return model.User{}, sql.ErrNoRows
}

func (s *fakeStore) Admit(_ context.Context, restaurantID uint64, fn func(Tx) error) error {
	if restaurantID != s.restaurant.ID {
		return sql.ErrNoRows
	}
	snapshot := s.restaurant
	tx := &fakeTx{store: s, restaurant: &snapshot}
	if err := fn(tx); err != nil {
		return err // rollback: snapshot discarded
	}
	s.restaurant = snapshot
	return nil
}

func (s *fakeStore) QueueHeadcount(_ context.Context, _ uint64) (int, error) {
	total := 0
	for _, e := range s.queue {
		total += e.PartySize
	}
	return total, nil
}

type fakeTx struct {
	store      *fakeStore
	restaurant *model.Restaurant
}

func (t *fakeTx) Restaurant() *model.Restaurant { return t.restaurant }

func (t *fakeTx) SetAvailableSeats(_ context.Context, seats int) error {
	t.restaurant.AvailableSeats = seats
	return nil
}

func (t *fakeTx) UserForUpdate(_ context.Context, userID uint64) (model.User, error) {
	for _, u := range t.store.users {
		if u.ID == userID {
			return *u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (t *fakeTx) SetUserSeated(_ context.Context, userID uint64, seated bool) error {
	for _, u := range t.store.users {
		if u.ID == userID {
			u.IsSeated = seated
			return nil
		}
	}
	return sql.ErrNoRows
}

func (t *fakeTx) HasQueueEntry(_ context.Context, userID uint64) (bool, error) {
	for _, e := range t.store.queue {
		if e.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) AddQueueEntry(_ context.Context, userID uint64, partySize int, joinedAt time.Time) (model.QueueEntry, error) {
	var email string
	for _, u := range t.store.users {
		if u.ID == userID {
			email = u.Email
		}
	}
	entry := model.QueueEntry{
		ID: t.store.nextID, RestaurantID: t.store.restaurant.ID,
		UserID: userID, PartySize: partySize, JoinedAt: joinedAt,
	}
	t.store.nextID++
	t.store.queue = append(t.store.queue, HeadEntry{QueueEntry: entry, UserEmail: email})
	return entry, nil
}

func (t *fakeTx) HeadcountAhead(_ context.Context, entry model.QueueEntry) (int, error) {
	total := 0
	for _, e := range t.store.queue {
		if e.JoinedAt.Before(entry.JoinedAt) || (e.JoinedAt.Equal(entry.JoinedAt) && e.ID < entry.ID) {
			total += e.PartySize
		}
	}
	return total, nil
}

func (t *fakeTx) QueueInOrder(_ context.Context) ([]HeadEntry, error) {
	out := make([]HeadEntry, len(t.store.queue))
	copy(out, t.store.queue)
	return out, nil
}

func (t *fakeTx) RemoveQueueEntry(_ context.Context, entryID uint64) error {
	for i, e := range t.store.queue {
		if e.ID == entryID {
			t.store.queue = append(t.store.queue[:i], t.store.queue[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func TestJoinQueue_InvalidPartySize(t *testing.T) {
	store := newFakeStore(20, 20)
	store.addUser("amy@example.com")
	c := NewController(store)

	for _, size := range []int{0, -3} {
		_, err := c.JoinQueue(context.Background(), "place-1", "amy@example.com", size)
		assert.True(t, apperr.IsKind(err, apperr.InvalidInput), "size %d", size)
	}
	// no state change
	assert.Equal(t, 20, store.restaurant.AvailableSeats)
	assert.Empty(t, store.queue)
	assert.False(t, store.users["amy@example.com"].IsSeated)
}

func TestJoinQueue_NotFound(t *testing.T) {
	store := newFakeStore(20, 20)
	store.addUser("amy@example.com")
	c := NewController(store)

	_, err := c.JoinQueue(context.Background(), "nope", "amy@example.com", 2)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	_, err = c.JoinQueue(context.Background(), "place-1", "ghost@example.com", 2)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestJoinQueue_SeatsImmediatelyThenQueues(t *testing.T) {
	store := newFakeStore(20, 20)
	store.addUser("amy@example.com")
	store.addUser("bob@example.com")
	c := NewController(store)

	res, err := c.JoinQueue(context.Background(), "place-1", "amy@example.com", 5)
	require.NoError(t, err)
	assert.True(t, res.Seated)
	assert.Equal(t, 15, res.AvailableSeats)
	assert.True(t, store.users["amy@example.com"].IsSeated)

	res, err = c.JoinQueue(context.Background(), "place-1", "bob@example.com", 25)
	require.NoError(t, err)
	assert.False(t, res.Seated)
	assert.Equal(t, 1, res.Position)
	assert.Len(t, store.queue, 1)
	assert.Equal(t, 15, store.restaurant.AvailableSeats)
}

func TestJoinQueue_PositionIsHeadcountAhead(t *testing.T) {
	store := newFakeStore(4, 0)
	store.addUser("a@example.com")
	store.addUser("b@example.com")
	store.addUser("c@example.com")
	c := NewController(store)

	res, err := c.JoinQueue(context.Background(), "place-1", "a@example.com", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Position)

	res, err = c.JoinQueue(context.Background(), "place-1", "b@example.com", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Position) // 4 people ahead + 1

	res, err = c.JoinQueue(context.Background(), "place-1", "c@example.com", 2)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Position)
}

func TestJoinQueue_Conflicts(t *testing.T) {
	store := newFakeStore(2, 0)
	store.addUser("amy@example.com")
	c := NewController(store)

	_, err := c.JoinQueue(context.Background(), "place-1", "amy@example.com", 2)
	require.NoError(t, err)

	// second join while queued
	_, err = c.JoinQueue(context.Background(), "place-1", "amy@example.com", 2)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))

	// seated users may not join anywhere
	store.queue = nil
	store.users["amy@example.com"].IsSeated = true
	_, err = c.JoinQueue(context.Background(), "place-1", "amy@example.com", 2)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))
}

func TestReleaseSeats_InvalidAmount(t *testing.T) {
	store := newFakeStore(20, 5)
	c := NewController(store)

	_, err := c.ReleaseSeats(context.Background(), "place-1", 0)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	assert.Equal(t, 5, store.restaurant.AvailableSeats)
}

func TestReleaseSeats_CappedAtTotal(t *testing.T) {
	store := newFakeStore(20, 18)
	c := NewController(store)

	res, err := c.ReleaseSeats(context.Background(), "place-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 20, res.AvailableSeats)
}

func TestReleaseSeats_StrictFIFONoBackfill(t *testing.T) {
	store := newFakeStore(20, 0)
	a := store.addUser("a@example.com")
	store.addUser("b@example.com")
	c := NewController(store)

	t1 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, store.Admit(context.Background(), 1, func(tx Tx) error {
		if _, err := tx.AddQueueEntry(context.Background(), a.ID, 4, t1); err != nil {
			return err
		}
		_, err := tx.AddQueueEntry(context.Background(), store.users["b@example.com"].ID, 3, t1.Add(time.Minute))
		return err
	}))

	res, err := c.ReleaseSeats(context.Background(), "place-1", 5)
	require.NoError(t, err)

	// party of 4 is seated, leaving 1 seat; party of 3 stays queued
	require.Len(t, res.Seated, 1)
	assert.Equal(t, "a@example.com", res.Seated[0].UserEmail)
	assert.Equal(t, 1, res.AvailableSeats)
	require.Len(t, store.queue, 1)
	assert.Equal(t, "b@example.com", store.queue[0].UserEmail)
	assert.True(t, store.users["a@example.com"].IsSeated)
	assert.False(t, store.users["b@example.com"].IsSeated)
}

func TestReleaseSeats_DrainsMultipleInOrder(t *testing.T) {
	store := newFakeStore(10, 0)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		store.addUser(email)
	}
	c := NewController(store)

	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, store.Admit(context.Background(), 1, func(tx Tx) error {
		sizes := map[string]int{"a@example.com": 2, "b@example.com": 3, "c@example.com": 4}
		i := 0
		for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
			if _, err := tx.AddQueueEntry(context.Background(), store.users[email].ID, sizes[email], base.Add(time.Duration(i)*time.Minute)); err != nil {
				return err
			}
			i++
		}
		return nil
	}))

	res, err := c.ReleaseSeats(context.Background(), "place-1", 6)
	require.NoError(t, err)

	require.Len(t, res.Seated, 2)
	assert.Equal(t, "a@example.com", res.Seated[0].UserEmail)
	assert.Equal(t, "b@example.com", res.Seated[1].UserEmail)
	assert.Equal(t, 1, res.AvailableSeats)
	require.Len(t, store.queue, 1)
}

func TestSeatInvariantHoldsAcrossSequence(t *testing.T) {
	store := newFakeStore(20, 20)
	emails := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"}
	for _, e := range emails {
		store.addUser(e)
	}
	c := NewController(store)
	ctx := context.Background()

	check := func() {
		assert.GreaterOrEqual(t, store.restaurant.AvailableSeats, 0)
		assert.LessOrEqual(t, store.restaurant.AvailableSeats, store.restaurant.TotalSeats)
	}

	_, _ = c.JoinQueue(ctx, "place-1", "a@example.com", 12)
	check()
	_, _ = c.JoinQueue(ctx, "place-1", "b@example.com", 8)
	check()
	_, _ = c.JoinQueue(ctx, "place-1", "c@example.com", 5) // queues
	check()
	_, _ = c.ReleaseSeats(ctx, "place-1", 7)
	check()
	_, _ = c.JoinQueue(ctx, "place-1", "d@example.com", 1)
	check()
	_, _ = c.ReleaseSeats(ctx, "place-1", 40) // capped
	check()
	assert.Equal(t, 20, store.restaurant.TotalSeats)
}

func TestQueueSize_SumsPartySizes(t *testing.T) {
	store := newFakeStore(2, 0)
	store.addUser("a@example.com")
	store.addUser("b@example.com")
	c := NewController(store)
	ctx := context.Background()

	size, err := c.QueueSize(ctx, "place-1")
	require.NoError(t, err)
	assert.Equal(t, 0, size)

	_, err = c.JoinQueue(ctx, "place-1", "a@example.com", 4)
	require.NoError(t, err)
	_, err = c.JoinQueue(ctx, "place-1", "b@example.com", 3)
	require.NoError(t, err)

	size, err = c.QueueSize(ctx, "place-1")
	require.NoError(t, err)
	assert.Equal(t, 7, size)

	_, err = c.QueueSize(ctx, "missing")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}
