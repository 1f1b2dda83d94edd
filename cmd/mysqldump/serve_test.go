package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ruslano69/tdtp-mysqldump/pkg/resultlog"
)

const shopFixture = `
	CREATE TABLE users (id INTEGER NOT NULL, name VARCHAR(20));
	INSERT INTO users VALUES (1, 'ann'), (2, 'bob'), (3, 'cid');
	CREATE TABLE tokens (id INTEGER NOT NULL, token UUID);
`

// sqliteDatabase creates a source database file and returns its path
func sqliteDatabase(t *testing.T, ddl string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("setup error = %v", err)
	}
	return path
}

func newTestServer(t *testing.T, dev bool) (*Pipeline, http.Handler) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Database = DatabaseConfig{Type: "sqlite", Database: sqliteDatabase(t, shopFixture)}
	cfg.Metrics.Enabled = true

	p, err := InitPipeline(context.Background(), cfg, zerolog.Nop(), dev)
	if err != nil {
		t.Fatalf("InitPipeline() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	p.serving = true

	return p, NewRouter(p)
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServe_Healthz(t *testing.T) {
	_, h := newTestServer(t, false)

	rec := get(h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestServe_DumpStreamsSQL(t *testing.T) {
	_, h := newTestServer(t, false)

	rec := get(h, "/dump?tables=users&triggers=0&max_rows=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/sql") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="shop.sql"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"/*!40101 SET NAMES utf8mb4 */;",
		"# SCHEMA DUMP FOR TABLE: users",
		"INSERT INTO `users` (`id`,`name`) VALUES (1,'ann'),(2,'bob');\n",
		"INSERT INTO `users` (`id`,`name`) VALUES (3,'cid');\n",
		"/*!40101 SET COLLATION_CONNECTION=@OLD_COLLATION_CONNECTION */;",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "tokens") {
		t.Errorf("unselected table dumped:\n%s", body)
	}
}

func TestServe_DumpWithoutSchema(t *testing.T) {
	_, h := newTestServer(t, false)

	body := get(h, "/dump?tables=users&schema=false&triggers=0").Body.String()
	if strings.Contains(body, "CREATE TABLE") {
		t.Errorf("schema=false still dumps DDL:\n%s", body)
	}
	if !strings.Contains(body, "VALUES (1,'ann');") {
		t.Errorf("data missing:\n%s", body)
	}
}

func TestServe_BadParameters(t *testing.T) {
	_, h := newTestServer(t, false)

	for _, target := range []string{
		"/dump?schema=maybe",
		"/dump?max_rows=0",
		"/dump?exclude=2",
		"/dump?schema=0&data=0&triggers=0",
	} {
		rec := get(h, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestServe_DumpWhere(t *testing.T) {
	_, h := newTestServer(t, false)

	q := url.Values{}
	q.Set("tables", "users")
	q.Set("schema", "0")
	q.Set("triggers", "0")
	q.Add("where", "users:id > 1 AND name <> 'cid'")

	rec := get(h, "/dump?"+q.Encode())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "VALUES (2,'bob');") {
		t.Errorf("filtered row missing:\n%s", body)
	}
	if strings.Contains(body, "'ann'") || strings.Contains(body, "'cid'") {
		t.Errorf("where not applied:\n%s", body)
	}
}

func TestServe_DumpWhereRejected(t *testing.T) {
	_, h := newTestServer(t, false)

	for _, where := range []string{
		"users:1=1; DROP TABLE users",
		"users:id IN (SELECT id FROM tokens)",
		"users:id = 1 -- x",
		"id > 1",
		":id > 1",
	} {
		q := url.Values{"where": {where}}
		rec := get(h, "/dump?"+q.Encode())
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", where, rec.Code)
		}
	}
}

func TestServe_CatalogDriftBeforeOutput(t *testing.T) {
	_, h := newTestServer(t, false)

	rec := get(h, "/dump?tables=tokens")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500; body = %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if !strings.Contains(body["error"], "catalog drift") {
		t.Errorf("error = %q", body["error"])
	}
}

func TestServe_MetricsAfterDump(t *testing.T) {
	_, h := newTestServer(t, false)

	if rec := get(h, "/dump?tables=users"); rec.Code != http.StatusOK {
		t.Fatalf("dump status = %d", rec.Code)
	}
	get(h, "/dump?tables=tokens")

	rec := get(h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`mysqldump_rows_total{table="users"} 3`,
		`status="success"} 1`,
		`mysqldump_dumps_total{error_class="catalog_drift",status="failed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestServe_DevPublishesResult(t *testing.T) {
	p, h := newTestServer(t, true)

	if rec := get(h, "/dump?tables=users"); rec.Code != http.StatusOK {
		t.Fatalf("dump status = %d", rec.Code)
	}

	raw, err := p.mini.Get(resultlog.StateKey("shop"))
	if err != nil {
		t.Fatalf("state key missing: %v", err)
	}

	var res resultlog.DumpResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if res.Status != "success" || res.Rows != 3 || res.Database != "shop" {
		t.Errorf("result = %+v", res)
	}
}

func TestServe_AuditEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database = DatabaseConfig{Type: "sqlite", Database: sqliteDatabase(t, shopFixture)}
	cfg.Audit = AuditConfig{
		Enabled:  true,
		Level:    "standard",
		Database: filepath.Join(t.TempDir(), "audit.db"),
	}

	p, err := InitPipeline(context.Background(), cfg, zerolog.Nop(), false)
	if err != nil {
		t.Fatalf("InitPipeline() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	p.serving = true
	h := NewRouter(p)

	if rec := get(h, "/dump?tables=users&triggers=0"); rec.Code != http.StatusOK {
		t.Fatalf("dump status = %d", rec.Code)
	}

	rec := get(h, "/audit?operation=dump")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Entries []struct {
			DumpID   string `json:"dump_id"`
			Database string `json:"database"`
			Rows     int64  `json:"rows"`
		} `json:"entries"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body.Count != 1 || body.Entries[0].Rows != 3 || body.Entries[0].Database != "shop" {
		t.Fatalf("audit = %+v", body)
	}

	rec = get(h, "/audit?dump_id="+body.Entries[0].DumpID)
	if !strings.Contains(rec.Body.String(), `"operation":"data"`) || !strings.Contains(rec.Body.String(), `"object":"users"`) {
		t.Errorf("per-dump entries missing table step: %s", rec.Body.String())
	}

	for _, target := range []string{"/audit?limit=0", "/audit?since=yesterday"} {
		if rec := get(h, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestServe_NoAuditEndpointWithoutStore(t *testing.T) {
	_, h := newTestServer(t, false)
	if rec := get(h, "/audit"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
