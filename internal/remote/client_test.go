package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
)

// fakeAPI is an in-memory version of the card collection API.
type fakeAPI struct {
	mu         sync.Mutex
	cards      []ctypes.Card
	requestIDs []string
	nextID     int
	failList   bool
}

func (f *fakeAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.requestIDs = append(f.requestIDs, r.Header.Get("X-Request-ID"))
			f.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/api/cards", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failList {
			http.Error(w, "database down", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(f.cards)
	})
	r.Post("/api/cards", func(w http.ResponseWriter, r *http.Request) {
		var in ctypes.CardInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		card := ctypes.Card{
			ID:        "c" + strconv.Itoa(f.nextID),
			Name:      in.Name,
			ImageRef:  in.ImageRef,
			Link:      in.Link,
			CreatedAt: time.UnixMilli(1700000000000).UTC(),
		}
		f.cards = append(f.cards, card)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(card)
	})
	r.Put("/api/cards/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch ctypes.CardPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, c := range f.cards {
			if c.ID == chi.URLParam(r, "id") {
				f.cards[i] = applyPatch(c, patch)
				json.NewEncoder(w).Encode(f.cards[i])
				return
			}
		}
		http.Error(w, "card not found", http.StatusNotFound)
	})
	r.Delete("/api/cards/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, c := range f.cards {
			if c.ID == chi.URLParam(r, "id") {
				f.cards = append(f.cards[:i], f.cards[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		http.Error(w, "card not found", http.StatusNotFound)
	})
	r.Delete("/api/cards", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cards = nil
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()

	srv := httptest.NewServer(api.router())
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:           srv.URL + "/api/",
		RequestsPerSecond: 1000,
		Logger:            log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_CRUD(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	ctx := context.Background()

	cards, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if cards == nil || len(cards) != 0 {
		t.Fatalf("empty list = %#v", cards)
	}

	if err := c.Create(ctx, ctypes.CardInput{Name: "Ace", ImageRef: "https://img/a.jpg", Link: "https://a"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	cards, _ = c.List(ctx)
	if len(cards) != 1 || cards[0].Name != "Ace" || cards[0].ID == "" {
		t.Fatalf("after create: %+v", cards)
	}
	id := cards[0].ID

	name := "Ace of Spades"
	if err := c.Update(ctx, id, ctypes.CardPatch{Name: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	cards, _ = c.List(ctx)
	if cards[0].Name != name || cards[0].Link != "https://a" {
		t.Fatalf("after update: %+v", cards[0])
	}

	if err := c.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	cards, _ = c.List(ctx)
	if len(cards) != 0 {
		t.Fatalf("after delete: %+v", cards)
	}
}

func TestClient_Clear(t *testing.T) {
	api := &fakeAPI{cards: []ctypes.Card{{ID: "a"}, {ID: "b"}}}
	c := newTestClient(t, api)

	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	cards, _ := c.List(context.Background())
	if len(cards) != 0 {
		t.Errorf("cards survived Clear: %+v", cards)
	}
}

func TestClient_NotFoundOnIDRoutes(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	ctx := context.Background()

	name := "x"
	err := c.Update(ctx, "missing", ctypes.CardPatch{Name: &name})
	if !errors.Is(err, ctypes.ErrNotFound) {
		t.Errorf("Update missing: %v", err)
	}

	err = c.Delete(ctx, "missing")
	if !errors.Is(err, ctypes.ErrNotFound) {
		t.Errorf("Delete missing: %v", err)
	}

	var cerr *ctypes.Error
	if !errors.As(err, &cerr) || cerr.Status != http.StatusNotFound {
		t.Errorf("status not recorded: %#v", err)
	}
}

func TestClient_ServerErrorIsNetwork(t *testing.T) {
	c := newTestClient(t, &fakeAPI{failList: true})

	_, err := c.List(context.Background())
	if ctypes.KindOf(err) != ctypes.KindNetwork {
		t.Fatalf("err = %v", err)
	}

	var cerr *ctypes.Error
	if !errors.As(err, &cerr) || cerr.Status != http.StatusInternalServerError || !cerr.Retryable() {
		t.Errorf("err = %#v", err)
	}
}

func TestClient_TransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Logger: log.New(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.List(context.Background()); !errors.Is(err, ctypes.ErrNetwork) {
		t.Fatalf("err = %v", err)
	}
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{not json")
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Logger: log.New(io.Discard)})
	if _, err := c.List(context.Background()); ctypes.KindOf(err) != ctypes.KindNetwork {
		t.Fatalf("err = %v", err)
	}
}

func TestClient_RequestIDs(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	c.List(context.Background())
	c.List(context.Background())

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.requestIDs) != 2 {
		t.Fatalf("got %d requests", len(api.requestIDs))
	}
	if api.requestIDs[0] == "" || api.requestIDs[0] == api.requestIDs[1] {
		t.Errorf("request ids = %v", api.requestIDs)
	}
}

func TestClient_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, _ := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, Logger: log.New(io.Discard)})
	if _, err := c.List(context.Background()); !errors.Is(err, ctypes.ErrNetwork) {
		t.Fatalf("err = %v", err)
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "ftp://example.com"}); err == nil {
		t.Error("ftp scheme accepted")
	}
}

func applyPatch(c ctypes.Card, p ctypes.CardPatch) ctypes.Card {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.ImageRef != nil {
		c.ImageRef = *p.ImageRef
	}
	if p.Link != nil {
		c.Link = *p.Link
	}
	return c
}
