// Package platformtest provides an in-memory map-site API for tests.
package platformtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/mapsite-admin/internal/models"
)

// IDFields maps each resource namespace to its identifier field.
var IDFields = map[string]string{
	"usermanage": "uid",
	"layer":      "lyid",
	"map":        "mid",
	"link":       "lkid",
	"tab":        "tbid",
	"attach":     "aid",
	"hook":       "hid",
}

const sessionCookie = "mapsite_sess"

type account struct {
	pwd string
	uid int
}

// Backend is a fake map-site API backed by in-memory collections. Deny and
// ScanGet may be filled before the first request; use SetDeny and SetScanGet
// afterwards.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	items    map[string][]models.Entity
	nextID   map[string]int
	accounts map[string]account
	sessions map[string]int
	hits     map[string]int
	config   models.Entity

	// Deny answers "no permission" for these "METHOD /path" keys.
	Deny map[string]bool
	// ScanGet makes GET /api/{name}/{id} answer with the whole collection.
	ScanGet map[string]bool
}

// New starts a fake API with an "admin"/"secret" account.
func New() *Backend {
	b := &Backend{
		items:    make(map[string][]models.Entity),
		nextID:   make(map[string]int),
		accounts: make(map[string]account),
		sessions: make(map[string]int),
		hits:     make(map[string]int),
		config:   models.Entity{"title": "Map", "lang": "en"},
		Deny:     make(map[string]bool),
		ScanGet:  make(map[string]bool),
	}
	b.AddUser("admin", "secret", "Administrator")

	r := chi.NewRouter()
	r.Use(b.count)
	r.Get("/api/info", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, map[string]string{"name": "fake"}) })
	r.Get("/api/auth", b.auth)
	r.Post("/api/login", b.login)
	r.Post("/api/logout", b.logout)
	r.Get("/api/user", b.requireSession(b.profile))
	r.Post("/api/user", b.requireSession(b.saveProfile))
	r.Get("/api/config/", b.requireSession(b.getConfig))
	r.Post("/api/config/", b.requireSession(b.saveConfig))
	r.Get("/api/astats", b.requireSession(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"pv": 10, "uv": 3})
	}))
	r.Post("/api/attach/", b.requireSession(b.upload))
	r.Get("/api/{res}/", b.requireSession(b.list))
	r.Post("/api/{res}/", b.requireSession(b.save))
	r.Post("/api/{res}/order", b.requireSession(b.order))
	r.Get("/api/{res}/{id}", b.requireSession(b.get))
	r.Post("/api/{res}/{id}", b.requireSession(b.save))
	r.Post("/api/{res}/{id}/del", b.requireSession(b.del))

	b.Server = httptest.NewServer(r)
	return b
}

// AddUser creates an account and its usermanage record.
func (b *Backend) AddUser(acc, pwd, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	uid := b.allocID("usermanage")
	b.items["usermanage"] = append(b.items["usermanage"], models.Entity{"uid": float64(uid), "acc": acc, "name": name})
	b.accounts[acc] = account{pwd: pwd, uid: uid}
	return uid
}

// Seed appends an entity and returns its id.
func (b *Backend) Seed(res string, fields models.Entity) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.allocID(res)
	ent := fields.Clone()
	ent[IDFields[res]] = float64(id)
	b.items[res] = append(b.items[res], ent)
	return id
}

// Items returns a copy of a collection in stored order.
func (b *Backend) Items(res string) []models.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Entity, len(b.items[res]))
	for i, e := range b.items[res] {
		out[i] = e.Clone()
	}
	return out
}

// Hits returns how many requests hit "METHOD /path".
func (b *Backend) Hits(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

// Total returns the number of requests served.
func (b *Backend) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.hits {
		n += v
	}
	return n
}

// ResetHits clears the request counters.
func (b *Backend) ResetHits() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits = make(map[string]int)
}

// SetDeny toggles a "no permission" answer for "METHOD /path".
func (b *Backend) SetDeny(key string, deny bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Deny[key] = deny
}

// SetScanGet toggles whole-collection answers for GET /api/{res}/{id}.
func (b *Backend) SetScanGet(res string, scan bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ScanGet[res] = scan
}

// Settings returns connection settings pointing at the fake server.
func (b *Backend) Settings() *models.Backend {
	u, _ := url.Parse(b.URL)
	port, _ := strconv.Atoi(u.Port())
	return &models.Backend{Name: "fake", Scheme: u.Scheme, Host: u.Hostname(), Port: port}
}

func (b *Backend) allocID(res string) int {
	b.nextID[res]++
	return b.nextID[res]
}

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		b.mu.Lock()
		b.hits[key]++
		deny := b.Deny[key]
		b.mu.Unlock()
		if deny {
			http.Error(w, "no permission", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) currentUID(r *http.Request) (int, bool) {
	ck, err := r.Cookie(sessionCookie)
	if err != nil {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	uid, ok := b.sessions[ck.Value]
	return uid, ok
}

func (b *Backend) requireSession(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.currentUID(r); !ok {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		h(w, r)
	}
}

func (b *Backend) auth(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.currentUID(r); !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, map[string]interface{}{"user": b.Items("usermanage")})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	b.mu.Lock()
	acc, ok := b.accounts[r.Form.Get("acc")]
	if !ok || acc.pwd != r.Form.Get("pwd") {
		b.mu.Unlock()
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token := fmt.Sprintf("s%d-%d", acc.uid, len(b.sessions)+1)
	b.sessions[token] = acc.uid
	b.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/"})
	writeJSON(w, map[string]bool{"ok": true})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(sessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, ck.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, map[string]bool{"ok": true})
}

func (b *Backend) profile(w http.ResponseWriter, r *http.Request) {
	uid, _ := b.currentUID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.items["usermanage"] {
		if u.Int("uid") == uid {
			writeJSON(w, u)
			return
		}
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

func (b *Backend) saveProfile(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	uid, _ := b.currentUID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for acc, a := range b.accounts {
		if a.uid != uid {
			continue
		}
		if a.pwd != r.Form.Get("pwd") {
			writeJSON(w, map[string]interface{}{"ok": false, "msg": "wrong password"})
			return
		}
		if p := r.Form.Get("pwd2"); p != "" {
			a.pwd = p
			b.accounts[acc] = a
		}
	}
	for _, u := range b.items["usermanage"] {
		if u.Int("uid") == uid {
			u["name"] = r.Form.Get("name")
		}
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (b *Backend) getConfig(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, b.config)
}

func (b *Backend) saveConfig(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range r.Form {
		b.config[k] = r.Form.Get(k)
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (b *Backend) list(w http.ResponseWriter, r *http.Request) {
	res := chi.URLParam(r, "res")
	writeJSON(w, map[string]interface{}{"data": b.Items(res), "next": 0})
}

func (b *Backend) get(w http.ResponseWriter, r *http.Request) {
	res, id := chi.URLParam(r, "res"), chi.URLParam(r, "id")
	items := b.Items(res)
	b.mu.Lock()
	scan := b.ScanGet[res]
	b.mu.Unlock()
	if scan {
		writeJSON(w, items)
		return
	}
	if ent, ok := models.FindByID(items, IDFields[res], id); ok {
		writeJSON(w, ent)
		return
	}
	http.Error(w, "item not exist", http.StatusNotFound)
}

func (b *Backend) save(w http.ResponseWriter, r *http.Request) {
	res, id := chi.URLParam(r, "res"), chi.URLParam(r, "id")
	r.ParseForm()
	idField := IDFields[res]

	b.mu.Lock()
	defer b.mu.Unlock()
	name := r.Form.Get("name")
	for _, e := range b.items[res] {
		if name != "" && e.String("name") == name && e.String(idField) != id {
			writeJSON(w, map[string]interface{}{"ok": false, "msg": "duplicate name"})
			return
		}
	}

	var target models.Entity
	if id == "" {
		target = models.Entity{idField: float64(b.allocID(res))}
		b.items[res] = append(b.items[res], target)
	} else {
		target, _ = models.FindByID(b.items[res], idField, id)
		if target == nil {
			writeJSON(w, map[string]interface{}{"ok": false, "msg": "not found"})
			return
		}
	}
	for k := range r.Form {
		v := r.Form.Get(k)
		if v == "" {
			delete(target, k)
			continue
		}
		target[k] = v
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (b *Backend) del(w http.ResponseWriter, r *http.Request) {
	res, id := chi.URLParam(r, "res"), chi.URLParam(r, "id")
	idField := IDFields[res]
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.items[res]
	for i, e := range list {
		if e.String(idField) == id {
			b.items[res] = append(list[:i:i], list[i+1:]...)
			writeJSON(w, map[string]bool{"ok": true})
			return
		}
	}
	writeJSON(w, map[string]interface{}{"ok": false, "msg": "not found"})
}

func (b *Backend) order(w http.ResponseWriter, r *http.Request) {
	res := chi.URLParam(r, "res")
	r.ParseForm()
	idField := IDFields[res]

	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.items[res]
	pos := make(map[string]int)
	for i, pair := range strings.Split(r.Form.Get("order"), ",") {
		id, lv, hasLevel := strings.Cut(pair, "/")
		pos[id] = i
		if ent, ok := models.FindByID(list, idField, id); ok && hasLevel {
			n, _ := strconv.Atoi(lv)
			ent["indent"] = float64(n)
		}
	}
	if len(pos) != len(list) {
		writeJSON(w, map[string]interface{}{"ok": false, "msg": "order size mismatch"})
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		return pos[list[i].String(idField)] < pos[list[j].String(idField)]
	})
	writeJSON(w, map[string]bool{"ok": true})
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	uid, _ := b.currentUID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	var added []models.Entity
	for _, fh := range r.MultipartForm.File["attach"] {
		ent := models.Entity{
			"aid": float64(b.allocID("attach")),
			"uid": float64(uid),
			"on":  fh.Filename,
			"sz":  float64(fh.Size),
		}
		b.items["attach"] = append(b.items["attach"], ent)
		added = append(added, ent)
	}
	writeJSON(w, added)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
