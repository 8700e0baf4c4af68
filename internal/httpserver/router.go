package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	StationsCollection http.HandlerFunc // GET list, POST create
	StationSubtree     http.HandlerFunc // GET one, DELETE, POST actions
	Revenue            http.HandlerFunc
	QuickPacks         http.HandlerFunc
	Connection         http.HandlerFunc
	Health             http.HandlerFunc
}

// NewRouter registers the operator endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.StationsCollection != nil {
		mux.Handle("/stations", routes.StationsCollection)
	}
	if routes.StationSubtree != nil {
		mux.Handle("/stations/", routes.StationSubtree)
	}
	if routes.Revenue != nil {
		mux.Handle("/revenue/daily", method(http.MethodGet, routes.Revenue))
	}
	if routes.QuickPacks != nil {
		mux.Handle("/quick-packs", method(http.MethodGet, routes.QuickPacks))
	}
	if routes.Connection != nil {
		mux.Handle("/connection", method(http.MethodGet, routes.Connection))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
