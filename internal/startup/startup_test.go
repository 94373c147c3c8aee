package startup

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("version should never be empty")
	}
	if info.GoVersion == "" {
		t.Error("go version should never be empty")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("os/arch should be populated")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("STARTUP_TEST_STR", "value")
	if got := getEnv("STARTUP_TEST_STR", "fallback"); got != "value" {
		t.Errorf("getEnv = %q, want value", got)
	}
	if got := getEnv("STARTUP_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q, want fallback", got)
	}

	t.Setenv("STARTUP_TEST_BOOL", "true")
	if !getEnvBool("STARTUP_TEST_BOOL", false) {
		t.Error("getEnvBool should parse true")
	}
	t.Setenv("STARTUP_TEST_BOOL", "nonsense")
	if !getEnvBool("STARTUP_TEST_BOOL", true) {
		t.Error("getEnvBool should fall back on garbage")
	}

	t.Setenv("STARTUP_TEST_INT", "6")
	if got := getEnvInt("STARTUP_TEST_INT", 3); got != 6 {
		t.Errorf("getEnvInt = %d, want 6", got)
	}
	t.Setenv("STARTUP_TEST_INT", "0")
	if got := getEnvInt("STARTUP_TEST_INT", 3); got != 3 {
		t.Errorf("getEnvInt with zero = %d, want the default 3", got)
	}

	t.Setenv("STARTUP_TEST_DUR", "90s")
	if got := getEnvDuration("STARTUP_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("getEnvDuration = %s, want 90s", got)
	}
	t.Setenv("STARTUP_TEST_DUR", "-5s")
	if got := getEnvDuration("STARTUP_TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration with negative = %s, want the default", got)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/search", "api/search"},
		{"/api/search/async/start", "api/search"},
		{"/admin/scan", "admin/scan"},
		{"/healthz", "healthz"},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	handler := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	r.HandleFunc("/healthz", handler).Methods("GET")
	r.HandleFunc("/api/search", handler).Methods("GET")
	r.HandleFunc("/admin/scan", handler).Methods("POST")

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("got %d routes, want 3", len(routes))
	}

	byPath := make(map[string]string)
	for _, route := range routes {
		byPath[route.Path] = route.Method
	}
	if byPath["/admin/scan"] != "POST" {
		t.Errorf("method for /admin/scan = %q, want POST", byPath["/admin/scan"])
	}
	if byPath["/api/search"] != "GET" {
		t.Errorf("method for /api/search = %q, want GET", byPath["/api/search"])
	}
}

func TestLoadConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv("PHOTOS_DIR", filepath.Join(base, "photos"))
	t.Setenv("PREVIEWS_DIR", filepath.Join(base, "previews"))
	t.Setenv("DATABASE_DIR", filepath.Join(base, "database"))
	t.Setenv("PORT", "")
	t.Setenv("MAX_PREVIEW_ROUNDS", "2")
	t.Setenv("TOMBSTONE_RETENTION", "48h")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.Port != "8080" {
		t.Errorf("port = %q, want the 8080 default", config.Port)
	}
	if config.MaxPreviewRounds != 2 {
		t.Errorf("max preview rounds = %d, want 2", config.MaxPreviewRounds)
	}
	if config.TombstoneRetention != 48*time.Hour {
		t.Errorf("tombstone retention = %s, want 48h", config.TombstoneRetention)
	}
	if config.DatabasePath != filepath.Join(config.DatabaseDir, "photos.db") {
		t.Errorf("database path = %q, want it under the database dir", config.DatabasePath)
	}
	if config.PhotosDir != filepath.Join(base, "photos") {
		t.Errorf("photos dir = %q, want %q", config.PhotosDir, filepath.Join(base, "photos"))
	}
}
