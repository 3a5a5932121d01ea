package api

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// BuildInfo is the build metadata injected with -ldflags.
type BuildInfo struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	GitCommit   string `json:"git_commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go_version"`
	Environment string `json:"environment"`
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// VersionHandler serves info as JSON. Missing fields read "dev" or "unknown".
func VersionHandler(info BuildInfo) http.Handler {
	info.Service = orDefault(info.Service, "whitecross-gateway")
	info.Version = orDefault(info.Version, "dev")
	info.GitCommit = orDefault(info.GitCommit, "unknown")
	info.BuildDate = orDefault(info.BuildDate, "unknown")
	info.GoVersion = runtime.Version()

	body, _ := json.Marshal(info)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(body)
	})
}
