package client_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedecaccia/mongodb/pkg/api"
	"github.com/fedecaccia/mongodb/pkg/client"
	"github.com/fedecaccia/mongodb/pkg/domain"
	"github.com/fedecaccia/mongodb/pkg/server"
	"github.com/fedecaccia/mongodb/pkg/storage"
)

type connectFunc func(t *testing.T, opts ...client.Option) *client.Client

// forEachTransport runs fn against an in-process session and against a
// session talking HTTP to a test server.
func forEachTransport(t *testing.T, fn func(t *testing.T, connect connectFunc)) {
	t.Run("local", func(t *testing.T) {
		fn(t, func(t *testing.T, opts ...client.Option) *client.Client {
			return connect(t, append([]client.Option{client.WithURI("mem://")}, opts...)...)
		})
	})
	t.Run("remote", func(t *testing.T) {
		ts := httptest.NewServer(server.NewServer().Router())
		t.Cleanup(ts.Close)
		fn(t, func(t *testing.T, opts ...client.Option) *client.Client {
			return connect(t, append([]client.Option{client.WithURI("docstore://" + ts.Listener.Addr().String())}, opts...)...)
		})
	})
}

func connect(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.Connect(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func customers() []map[string]any {
	names := []struct{ name, address string }{
		{"John", "Highway 37"}, {"Peter", "Lowstreet 27"}, {"Amy", "Apple st 652"},
		{"Hannah", "Mountain 21"}, {"Michael", "Valley 345"}, {"Sandy", "Ocean blvd 2"},
		{"Betty", "Green Grass 1"}, {"Richard", "Sky st 331"}, {"Susan", "One way 98"},
		{"Vicky", "Yellow Garden 2"}, {"Ben", "Park Lane 38"}, {"William", "Central st 954"},
		{"Chuck", "Main Road 989"}, {"Viola", "Sideway 1633"},
	}
	docs := make([]map[string]any, len(names))
	for i, n := range names {
		docs[i] = map[string]any{"name": n.name, "address": n.address}
	}
	return docs
}

func names(t *testing.T, docs []domain.Document) []string {
	t.Helper()
	out := make([]string, len(docs))
	for i, doc := range docs {
		v, ok := doc.Get("name")
		require.True(t, ok)
		out[i], _ = v.AsString()
	}
	return out
}

func TestClient_TutorialScenario(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect connectFunc) {
		ctx := context.Background()
		c := connect(t)
		db := c.Database("mydatabase")
		customersColl := db.Collection("customers")

		date := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
		fede := domain.NewDocument(
			domain.E("name", "Fede"),
			domain.E("address", "Sideway 1633"),
			domain.E("date", date),
		)
		res, err := customersColl.InsertOne(ctx, fede)
		require.NoError(t, err)
		assert.Equal(t, domain.KindObjectID, res.InsertedID.Kind())
		assert.False(t, fede.Has(domain.IDField), "caller's document is not modified")

		got, err := customersColl.FindOne(ctx, domain.NewDocument(domain.Element{Key: domain.IDField, Value: res.InsertedID}))
		require.NoError(t, err)
		want := fede.Clone()
		want.Prepend(domain.IDField, res.InsertedID)
		assert.True(t, want.Equal(got), "got %s", got)

		many, err := customersColl.InsertMany(ctx, customers())
		require.NoError(t, err)
		require.Len(t, many.InsertedIDs, 14)
		seen := map[domain.ObjectID]bool{}
		for _, id := range many.InsertedIDs {
			oid, ok := id.AsObjectID()
			require.True(t, ok)
			assert.False(t, seen[oid])
			seen[oid] = true
		}

		n, err := customersColl.CountDocuments(ctx, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 15, n)

		dbs, err := c.ListDatabaseNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"mydatabase"}, dbs)

		cur, err := customersColl.Find(ctx, map[string]any{"date": map[string]any{"$lt": time.Now()}}, client.SortBy("name", domain.Ascending))
		require.NoError(t, err)
		docs, err := cur.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Fede"}, names(t, docs))

		newCol := db.Collection("mynewcol")
		name, err := newCol.CreateIndex(ctx, domain.IndexModel{
			Keys:   []domain.IndexKey{{Field: "user_id", Direction: domain.Ascending}},
			Unique: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "user_id_1", name)

		_, err = newCol.InsertOne(ctx, map[string]any{"user_id": 211, "name": "Luke", "last_name": "Skywalker"})
		require.NoError(t, err)
		_, err = newCol.InsertOne(ctx, map[string]any{"user_id": 211, "name": "Leia"})
		require.ErrorIs(t, err, domain.ErrDuplicateKey)
		var dup *domain.DuplicateKeyError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "user_id_1", dup.Index)

		n, err = newCol.CountDocuments(ctx, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "rejected insert leaves the collection unchanged")

		indexes, err := newCol.ListIndexes(ctx)
		require.NoError(t, err)
		require.Len(t, indexes, 2)
		assert.Equal(t, domain.IDIndexName, indexes[0].Name)
		assert.Equal(t, "user_id_1", indexes[1].Name)

		colls, err := db.ListCollectionNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"customers", "mynewcol"}, colls)

		require.NoError(t, newCol.Drop(ctx))
		require.NoError(t, newCol.Drop(ctx), "drop is idempotent")
		colls, err = db.ListCollectionNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"customers"}, colls)

		require.NoError(t, db.Drop(ctx))
		require.NoError(t, db.Drop(ctx))
		dbs, err = c.ListDatabaseNames(ctx)
		require.NoError(t, err)
		assert.Empty(t, dbs)
	})
}

func TestClient_FindOptionsAndCursor(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect connectFunc) {
		ctx := context.Background()
		coll := connect(t).Database("db").Collection("customers")
		_, err := coll.InsertMany(ctx, customers())
		require.NoError(t, err)

		cur, err := coll.Find(ctx, nil, client.SortBy("name", domain.Descending), client.Skip(2), client.Limit(3))
		require.NoError(t, err)
		var got []string
		for doc, err := range cur.Docs(ctx) {
			require.NoError(t, err)
			s, _ := doc.Lookup("name")
			name, _ := s.AsString()
			got = append(got, name)
		}
		assert.Equal(t, []string{"Vicky", "Susan", "Sandy"}, got)
		assert.False(t, cur.Next(ctx), "exhausted cursor stays exhausted")
		assert.NoError(t, cur.Err())

		// leaving the loop early closes the cursor
		cur, err = coll.Find(ctx, nil)
		require.NoError(t, err)
		for range cur.Docs(ctx) {
			break
		}
		assert.False(t, cur.Next(ctx))
		assert.NoError(t, cur.Err())

		// re-running a find gives a fresh cursor from the start
		first, err := coll.FindOne(ctx, nil)
		require.NoError(t, err)
		again, err := coll.FindOne(ctx, nil)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
		assert.Equal(t, []string{"John"}, names(t, []domain.Document{first}))

		_, err = coll.FindOne(ctx, map[string]any{"name": "Nobody"})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = coll.Find(ctx, map[string]any{"name": map[string]any{"$regex": "^J"}})
		assert.ErrorIs(t, err, domain.ErrBadFilter)
	})
}

func TestClient_InsertManyPartialFailure(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect connectFunc) {
		ctx := context.Background()
		coll := connect(t).Database("db").Collection("c")
		batch := []domain.Document{
			domain.NewDocument(domain.E(domain.IDField, 1)),
			domain.NewDocument(domain.E(domain.IDField, 1)),
			domain.NewDocument(domain.E(domain.IDField, 2)),
		}

		res, err := coll.InsertMany(ctx, batch)
		var bulk *domain.BulkWriteError
		require.ErrorAs(t, err, &bulk)
		assert.ErrorIs(t, err, domain.ErrDuplicateKey)
		require.Len(t, bulk.WriteErrors, 1)
		assert.Equal(t, 1, bulk.WriteErrors[0].Index)
		assert.Len(t, res.InsertedIDs, 1)

		res, err = coll.InsertMany(ctx, batch, client.Ordered(false))
		require.ErrorAs(t, err, &bulk)
		assert.Len(t, bulk.WriteErrors, 2)
		require.Len(t, res.InsertedIDs, 1)
		assert.True(t, res.InsertedIDs[0].Equal(domain.Int(2)))

		n, err := coll.CountDocuments(ctx, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})
}

type customer struct {
	Name   string  `json:"name"`
	UserID int     `json:"user_id"`
	Score  float64 `json:"score"`
}

func TestClient_StructDocuments(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect connectFunc) {
		ctx := context.Background()
		coll := connect(t).Database("db").Collection("c")

		_, err := coll.InsertMany(ctx, []customer{{"Luke", 1, 2.5}, {"Leia", 2, 3}})
		require.NoError(t, err)

		doc, err := coll.FindOne(ctx, customerFilter{UserID: 1})
		require.NoError(t, err)
		score, _ := doc.Get("score")
		assert.Equal(t, domain.KindDouble, score.Kind())
		userID, _ := doc.Get("user_id")
		assert.Equal(t, domain.KindInt64, userID.Kind())

		_, err = coll.InsertOne(ctx, 42)
		assert.ErrorIs(t, err, domain.ErrInvalidDocument)
	})
}

type customerFilter struct {
	UserID int `json:"user_id"`
}

func TestClient_DeleteMany(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect connectFunc) {
		ctx := context.Background()
		coll := connect(t).Database("db").Collection("c")
		_, err := coll.InsertMany(ctx, customers())
		require.NoError(t, err)

		n, err := coll.DeleteMany(ctx, map[string]any{"name": map[string]any{"$in": []any{"John", "Amy"}}})
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		count, err := coll.CountDocuments(ctx, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 12, count)
	})
}

func TestClient_DropIndex(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect connectFunc) {
		ctx := context.Background()
		coll := connect(t).Database("db").Collection("c")
		name, err := coll.CreateIndex(ctx, domain.IndexModel{Keys: []domain.IndexKey{{Field: "a", Direction: 1}}})
		require.NoError(t, err)

		require.NoError(t, coll.DropIndex(ctx, name))
		assert.ErrorIs(t, coll.DropIndex(ctx, name), domain.ErrIndexNotFound)
		assert.ErrorIs(t, coll.DropIndex(ctx, domain.IDIndexName), domain.ErrBadIndex)
	})
}

func TestClient_InvalidCollectionName(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect connectFunc) {
		c := connect(t)
		_, err := c.Database("db").Collection("a/b").InsertOne(context.Background(), map[string]any{"a": 1})
		assert.ErrorIs(t, err, domain.ErrInvalidDocument)
	})
}

func TestClient_Closed(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect connectFunc) {
		ctx := context.Background()
		c := connect(t)
		coll := c.Database("db").Collection("c")
		_, err := coll.InsertMany(ctx, customers())
		require.NoError(t, err)

		// an abandoned cursor is released by Close
		cur, err := coll.Find(ctx, nil)
		require.NoError(t, err)
		require.True(t, cur.Next(ctx))

		require.NoError(t, c.Close(ctx))
		require.NoError(t, c.Close(ctx), "closing twice is a no-op")
		assert.False(t, cur.Next(ctx))

		_, err = coll.InsertOne(ctx, map[string]any{"a": 1})
		assert.ErrorIs(t, err, domain.ErrClientClosed)
		_, err = coll.Find(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrClientClosed)
		_, err = c.ListDatabaseNames(ctx)
		assert.ErrorIs(t, err, domain.ErrClientClosed)
		assert.ErrorIs(t, c.Database("db").Drop(ctx), domain.ErrClientClosed)
		assert.ErrorIs(t, c.Ping(ctx), domain.ErrClientClosed)
	})
}

func TestClient_ConcurrentUniqueInserts(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect connectFunc) {
		ctx := context.Background()
		coll := connect(t, client.WithMaxConns(4)).Database("db").Collection("users")
		_, err := coll.CreateIndex(ctx, domain.IndexModel{
			Keys: []domain.IndexKey{{Field: "user_id", Direction: 1}}, Unique: true,
		})
		require.NoError(t, err)

		const workers, keys = 8, 20
		var succeeded, duplicates atomic.Int64
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := range keys {
					_, err := coll.InsertOne(ctx, map[string]any{"user_id": k})
					switch {
					case err == nil:
						succeeded.Add(1)
					case errors.Is(err, domain.ErrDuplicateKey):
						duplicates.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, keys, succeeded.Load())
		assert.EqualValues(t, (workers-1)*keys, duplicates.Load())
	})
}

func TestClient_WithEngine(t *testing.T) {
	engine := storage.NewStorageEngine()
	c := connect(t, client.WithEngine(engine))
	ctx := context.Background()

	_, err := c.Database("db").Collection("c").InsertOne(ctx, map[string]any{"a": 1})
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	// the engine outlives the session
	n, err := engine.CountDocuments(ctx, "db", "c", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestConnect_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	_, err = client.Connect(context.Background(), client.WithHost("127.0.0.1", port), client.WithConnectTimeout(time.Second))
	assert.ErrorIs(t, err, domain.ErrConnectionFailure)

	_, err = client.Connect(context.Background(), client.WithURI("ftp://localhost"))
	assert.Error(t, err)
}

// slowServer answers health checks at once and every other request after
// delay, unless the request is abandoned first.
func slowServer(t *testing.T, healthDelay, delay time.Duration) *httptest.Server {
	router := server.NewServer().Router()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wait := delay
		if r.URL.Path == "/health" {
			wait = healthDelay
		}
		select {
		case <-time.After(wait):
		case <-r.Context().Done():
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_OperationTimeout(t *testing.T) {
	ts := slowServer(t, 0, time.Second)
	c := connect(t, client.WithURI(ts.URL), client.WithTimeout(50*time.Millisecond))
	coll := c.Database("db").Collection("c")

	start := time.Now()
	_, err := coll.CountDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	// a caller deadline takes precedence over the session timeout
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = coll.InsertOne(ctx, map[string]any{"a": 1})
	assert.ErrorIs(t, err, domain.ErrTimeout)

	_, err = coll.Find(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestClient_LocalTimeout(t *testing.T) {
	c := connect(t, client.WithURI("mem://"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := c.Database("db").Collection("c").InsertOne(ctx, map[string]any{"a": 1})
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestConnect_Timeout(t *testing.T) {
	ts := slowServer(t, time.Second, 0)
	start := time.Now()
	_, err := client.Connect(context.Background(), client.WithURI(ts.URL), client.WithConnectTimeout(50*time.Millisecond))
	assert.ErrorIs(t, err, domain.ErrConnectionFailure)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestClient_RemoteBatchesLargeInserts(t *testing.T) {
	ts := httptest.NewServer(server.NewServer().Router())
	t.Cleanup(ts.Close)
	c := connect(t, client.WithURI(ts.URL))
	coll := c.Database("db").Collection("c")
	ctx := context.Background()

	docs := make([]domain.Document, api.MaxBatchSize+5)
	for i := range docs {
		docs[i] = domain.NewDocument(domain.E("i", i))
	}
	// a duplicate in the second batch is reported at its position in docs
	docs[api.MaxBatchSize+2] = domain.NewDocument(domain.E(domain.IDField, "dup"))
	docs[api.MaxBatchSize+3] = domain.NewDocument(domain.E(domain.IDField, "dup"))

	res, err := coll.InsertMany(ctx, docs, client.Ordered(false))
	var bulk *domain.BulkWriteError
	require.ErrorAs(t, err, &bulk)
	require.Len(t, bulk.WriteErrors, 1)
	assert.Equal(t, api.MaxBatchSize+3, bulk.WriteErrors[0].Index)
	assert.Len(t, res.InsertedIDs, api.MaxBatchSize+4)

	n, err := coll.CountDocuments(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, api.MaxBatchSize+4, n)
}

func ExampleConnect() {
	ctx := context.Background()
	c, err := client.Connect(ctx, client.WithURI("mem://"))
	if err != nil {
		panic(err)
	}
	defer c.Close(ctx)

	coll := c.Database("mydatabase").Collection("customers")
	if _, err := coll.InsertOne(ctx, map[string]any{"name": "Fede", "address": "Sideway 1633"}); err != nil {
		panic(err)
	}
	doc, err := coll.FindOne(ctx, map[string]any{"name": "Fede"})
	if err != nil {
		panic(err)
	}
	address, _ := doc.Get("address")
	s, _ := address.AsString()
	fmt.Println(s)
	// Output: Sideway 1633
}
